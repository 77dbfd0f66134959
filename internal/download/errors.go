package download

import (
	"errors"
	"fmt"
)

var (
	// ErrStalled is returned when no bytes arrive for the stall timeout.
	ErrStalled = errors.New("transfer stalled")

	// ErrRootLocked is returned by LockRoot when another run holds the root.
	ErrRootLocked = errors.New("download root is locked by another run")

	// ErrNoCandidates is reported for items no URL can be built for.
	ErrNoCandidates = errors.New("no candidate URLs")
)

// StatusError is a non-2xx answer from a file URL.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// HTTPStatus exposes the code to the retry classifier.
func (e *StatusError) HTTPStatus() int {
	return e.Code
}

// IncompleteError is a finished transfer rejected by the acceptance policy.
type IncompleteError struct {
	Got      int64
	Expected int64 // server Content-Length, <= 0 when unknown
}

func (e *IncompleteError) Error() string {
	if e.Expected > 0 {
		return fmt.Sprintf("incomplete download: got %d of %d bytes", e.Got, e.Expected)
	}
	return fmt.Sprintf("download too small: got %d bytes without a reported length", e.Got)
}

// ValidationFailure marks the error for the retry classifier.
func (e *IncompleteError) ValidationFailure() bool {
	return true
}

// ErrIncomplete matches every IncompleteError via errors.Is.
var ErrIncomplete = errors.New("incomplete download")

func (e *IncompleteError) Unwrap() error {
	return ErrIncomplete
}
