package models

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Category routes a file record to its URL-generation rules.
type Category string

const (
	CategoryPreview Category = "preview"
	CategoryOutput  Category = "output"
	CategoryWorking Category = "working"
)

// Categories lists every category in queue order.
var Categories = []Category{CategoryPreview, CategoryOutput, CategoryWorking}

// ParseCategory validates a category name read from config or a snapshot.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryPreview, CategoryOutput, CategoryWorking:
		return c, nil
	}
	return "", fmt.Errorf("unknown file category %q", s)
}

// ByteSize is a file size that tolerates the shapes servers actually send:
// integers, floats, numeric strings and null (all decoded, null as 0).
type ByteSize int64

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*b = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*b = ByteSize(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid file size %s: %w", data, err)
	}
	*b = ByteSize(f)
	return nil
}

// FileRecord is a preview, output or working file. The three categories share
// one shape; Category is set by whoever fetched the record.
type FileRecord struct {
	Category     Category `json:"-"`
	ID           string   `json:"id"`
	OriginalName string   `json:"original_name,omitempty"`
	Name         string   `json:"name,omitempty"`
	Extension    string   `json:"extension,omitempty"`
	URL          string   `json:"url,omitempty"`
	FileSize     ByteSize `json:"file_size,omitempty"`
}

// BaseName picks original_name, then name, then fallback.
func (f FileRecord) BaseName(fallback string) string {
	if f.OriginalName != "" {
		return f.OriginalName
	}
	if f.Name != "" {
		return f.Name
	}
	return fallback
}

// Fingerprint identifies a download by its network identity, independent of
// where it lands locally.
type Fingerprint struct {
	Category Category
	ID       string
}

func (f Fingerprint) String() string {
	return string(f.Category) + ":" + f.ID
}

// DownloadItem is one unit of work for the download engine. The JSON shape is
// the one stored in scan snapshots.
type DownloadItem struct {
	Category Category `json:"type"`
	ID       string   `json:"id"`
	URL      string   `json:"url,omitempty"`
	Folder   string   `json:"folder"`
	Filename string   `json:"filename"`
	Size     ByteSize `json:"size"`
}

// Fingerprint returns category + id.
func (d DownloadItem) Fingerprint() Fingerprint {
	return Fingerprint{Category: d.Category, ID: d.ID}
}

// Path is the final destination of the item.
func (d DownloadItem) Path() string {
	return filepath.Join(d.Folder, d.Filename)
}

// TempPath is the private sibling the body is streamed into.
func (d DownloadItem) TempPath() string {
	return d.Path() + ".tmp"
}

// MarshalJSON writes a null url when none is known, matching snapshots
// written by earlier tools.
func (d DownloadItem) MarshalJSON() ([]byte, error) {
	type wire struct {
		Category Category `json:"type"`
		ID       string   `json:"id"`
		URL      *string  `json:"url"`
		Folder   string   `json:"folder"`
		Filename string   `json:"filename"`
		Size     ByteSize `json:"size"`
	}
	w := wire{Category: d.Category, ID: d.ID, Folder: d.Folder, Filename: d.Filename, Size: d.Size}
	if d.URL != "" {
		u := d.URL
		w.URL = &u
	}
	return json.Marshal(w)
}
