package download

import (
	"strings"

	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// GenerateCandidates lists the URLs a file of the given category may be
// served from, in the order they should be tried. host is the API base
// (ending in /api).
//
// Preview files moved between the movies and pictures buckets, gained an
// "originals" segment and are mounted either under the API root or beside
// it depending on server version and reverse proxy, hence six shapes.
// Output and working files have two historical route names each.
func GenerateCandidates(category models.Category, fileID, host string) []string {
	api := strings.TrimRight(host, "/")
	noAPI := strings.TrimSuffix(api, "/api")

	switch category {
	case models.CategoryPreview:
		return []string{
			api + "/movies/originals/preview-files/" + fileID + "/download",
			api + "/pictures/originals/preview-files/" + fileID + "/download",
			api + "/movies/preview-files/" + fileID + "/download",
			api + "/pictures/preview-files/" + fileID + "/download",
			noAPI + "/api/movies/originals/preview-files/" + fileID + "/download",
			noAPI + "/api/pictures/originals/preview-files/" + fileID + "/download",
		}
	case models.CategoryOutput:
		return []string{
			api + "/data/output-files/" + fileID + "/download",
			api + "/data/output-files/" + fileID + "/file",
		}
	case models.CategoryWorking:
		return []string{
			api + "/data/working-files/" + fileID + "/download",
			api + "/data/working-files/" + fileID + "/file",
		}
	default:
		return nil
	}
}

// FullURL turns a url field from a file record into an absolute URL.
// Absolute http(s) URLs are kept; paths are joined to the host without its
// /api suffix.
func FullURL(host, raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	base := strings.TrimSuffix(strings.TrimRight(host, "/"), "/api")
	if strings.HasPrefix(raw, "/") {
		return base + raw
	}
	return base + "/" + raw
}

// Candidates returns the full try order for an item: its explicit url
// first, then the generated shapes, each URL at most once.
func Candidates(item models.DownloadItem, host string) []string {
	generated := GenerateCandidates(item.Category, item.ID, host)
	urls := make([]string, 0, len(generated)+1)
	seen := make(map[string]bool, len(generated)+1)
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}
	add(FullURL(host, item.URL))
	for _, u := range generated {
		add(u)
	}
	return urls
}
