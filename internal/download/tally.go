package download

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
)

// DiskTally counts what is actually present under a download root.
type DiskTally struct {
	Files int
	Bytes int64
}

// Tally walks root and counts regular files, ignoring temp files and the
// lock file. Unreadable entries are skipped.
func Tally(root string) (DiskTally, error) {
	var t DiskTally
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, constants.TempSuffix) || name == constants.LockFileName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		t.Files++
		t.Bytes += info.Size()
		return nil
	})
	return t, err
}
