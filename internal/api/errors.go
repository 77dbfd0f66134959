// Package api provides error types for tracking-service responses.
package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched (errors.Is) by any 404 from the tracking service.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is matched by 401 responses and failed logins.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-success HTTP response. It unwraps to ErrNotFound or
// ErrUnauthorized where applicable, so callers can tell a missing record
// apart from a transport problem.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.Code
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
