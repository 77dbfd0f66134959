// Package pathutil resolves user-supplied download roots.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveRoot turns a download root into an absolute, symlink-free path.
// "~" expands to the home directory and "" means the working directory.
// The root may not exist yet: symlinks are resolved in its deepest existing
// ancestor and the missing components are appended unchanged.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		return os.Getwd()
	}

	if root == "~" || strings.HasPrefix(root, "~/") || strings.HasPrefix(root, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		root = filepath.Join(home, root[1:])
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	current := abs
	var missing []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
