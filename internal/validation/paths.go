// Package validation checks that download destinations stay inside the
// download root.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// ValidateFilename validates a single path segment built from server data.
//
// Returns an error if the name:
//   - Is empty
//   - Contains path separators (/ or \)
//   - Is "." or ".."
//   - Contains null bytes
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}
	// "foo..bar.mov" is fine; only the bare relative segments are rejected.
	if filename == ".." || filename == "." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	return nil
}

// ValidatePathInDirectory validates that a path, when resolved, stays within baseDir.
// Relative paths are resolved against baseDir.
//
//	ValidatePathInDirectory("../../etc/passwd", "/tmp/root") // error
//	ValidatePathInDirectory("EP01/SQ010/file.mov", "/tmp/root") // ok
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if baseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	cleanBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(cleanBase, resolved)
	}

	rel, err := filepath.Rel(cleanBase, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s (base: %s)", path, baseDir)
	}
	return nil
}

// ValidateDestination checks a queue item before anything is written for it:
// the filename must be a single safe segment and the final path must stay
// under root.
func ValidateDestination(item models.DownloadItem, root string) error {
	if err := ValidateFilename(item.Filename); err != nil {
		return fmt.Errorf("%s: %w", item.Fingerprint(), err)
	}
	if err := ValidatePathInDirectory(item.Path(), root); err != nil {
		return fmt.Errorf("%s: %w", item.Fingerprint(), err)
	}
	return nil
}
