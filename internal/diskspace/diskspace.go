// Package diskspace checks free space on the filesystem holding a download root.
package diskspace

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		e.Path, humanize.IBytes(uint64(e.RequiredBytes)), humanize.IBytes(uint64(e.AvailableBytes)))
}

// CheckAvailableSpace checks that the filesystem holding dir can take
// requiredBytes plus bufferPercent (0.10 for 10%) of headroom. dir must exist.
//
// When free space cannot be determined (network or virtual filesystems) the
// check passes and the download is left to fail naturally.
func CheckAvailableSpace(dir string, requiredBytes int64, bufferPercent float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	available, err := availableBytes(dir)
	if err != nil {
		return nil
	}

	required := requiredBytes + int64(float64(requiredBytes)*bufferPercent)
	if available < required {
		return &InsufficientSpaceError{
			Path:           dir,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// GetAvailableSpace returns the free bytes for the filesystem holding dir,
// or 0 if it cannot be determined.
func GetAvailableSpace(dir string) int64 {
	n, err := availableBytes(dir)
	if err != nil {
		return 0
	}
	return n
}

// IsInsufficientSpaceError checks if an error is an InsufficientSpaceError
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}
