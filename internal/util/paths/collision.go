// Package paths keeps download destinations unique within a queue.
package paths

import (
	"path/filepath"
	"strings"

	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// idSuffixLen is how much of a file id is used to disambiguate a name.
const idSuffixLen = 8

// CollisionStats reports what ResolveCollisions changed.
type CollisionStats struct {
	Duplicates int // identical items dropped
	Renamed    int // items moved to a suffixed filename
}

// ResolveCollisions makes every destination path in items unique.
//
// Items with the same fingerprint and the same path are the same download
// and only the first is kept. When different files land on the same path,
// the first keeps the name and each later one gets " (<id prefix>)" inserted
// before the extension:
//
//	Anim_Output_render.mov -> Anim_Output_render (3f2a9c1b).mov
//
// Order is preserved, so the result is stable across runs of the same scan.
func ResolveCollisions(items []models.DownloadItem) ([]models.DownloadItem, CollisionStats) {
	var stats CollisionStats
	if len(items) == 0 {
		return items, stats
	}

	owner := make(map[string]models.Fingerprint, len(items))
	out := items[:0:0]
	for _, item := range items {
		key := pathKey(item.Path())
		fp, taken := owner[key]
		switch {
		case !taken:
			owner[key] = item.Fingerprint()
			out = append(out, item)
		case fp == item.Fingerprint():
			stats.Duplicates++
		default:
			item.Filename = uniqueName(item, owner)
			owner[pathKey(item.Path())] = item.Fingerprint()
			out = append(out, item)
			stats.Renamed++
		}
	}
	return out, stats
}

func uniqueName(item models.DownloadItem, owner map[string]models.Fingerprint) string {
	ext := filepath.Ext(item.Filename)
	base := strings.TrimSuffix(item.Filename, ext)

	id := item.ID
	if len(id) > idSuffixLen {
		id = id[:idSuffixLen]
	}
	name := base + " (" + id + ")" + ext
	if _, taken := owner[pathKey(filepath.Join(item.Folder, name))]; !taken {
		return name
	}
	// Short prefixes can clash; the full id cannot within one category.
	return base + " (" + string(item.Category) + "-" + item.ID + ")" + ext
}

// pathKey compares paths the way case-insensitive filesystems would, so two
// names differing only in case never share a file on macOS or Windows.
func pathKey(p string) string {
	return strings.ToLower(filepath.Clean(p))
}
