package download

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
)

// RootLock is an advisory lock that keeps two runs from writing into the
// same download root.
type RootLock struct {
	path string
	lock *flock.Flock
}

// LockRoot creates root if needed and takes its lock without blocking.
// ErrRootLocked is returned when another process holds it.
func LockRoot(root string) (*RootLock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create download root: %w", err)
	}
	path := filepath.Join(root, constants.LockFileName)
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", root, ErrRootLocked)
	}
	return &RootLock{path: path, lock: l}, nil
}

// Path is the lock file location.
func (l *RootLock) Path() string {
	return l.path
}

// Unlock releases the lock. The lock file itself is left in place.
func (l *RootLock) Unlock() error {
	return l.lock.Unlock()
}
