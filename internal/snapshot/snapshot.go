// Package snapshot persists scan results so a download can be replayed
// without walking the tracking service again.
//
// The file holds one entry per scanned project, keyed by the project's
// position in the open-projects listing:
//
//	{"timestamp": 1700000000.5, "date_str": "2023-11-14 22:13:20",
//	 "data": {"0": {"project": {...}, "total_size": 0, "total_files": 0,
//	                "queue": [...], "download_root": "...", "total_shots": 0}}}
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/models"
	"github.com/studiopipe/kitsu-fetch/internal/scan"
)

const dateLayout = "2006-01-02 15:04:05"

// File is the whole snapshot document.
type File struct {
	Timestamp float64          `json:"timestamp"`
	DateStr   string           `json:"date_str"`
	RunID     string           `json:"run_id,omitempty"`
	Data      map[string]Entry `json:"data"`
}

// Entry is one scanned project.
type Entry struct {
	Project      models.Project        `json:"project"`
	TotalSize    int64                 `json:"total_size"`
	TotalFiles   int                   `json:"total_files"`
	Queue        []models.DownloadItem `json:"queue"`
	DownloadRoot string                `json:"download_root"`
	TotalShots   int                   `json:"total_shots"`
	TotalAssets  int                   `json:"total_assets,omitempty"`
}

// New returns an empty snapshot stamped with now.
func New(runID string, now time.Time) *File {
	f := &File{RunID: runID, Data: map[string]Entry{}}
	f.stamp(now)
	return f
}

func (f *File) stamp(now time.Time) {
	f.Timestamp = float64(now.UnixNano()) / float64(time.Second)
	f.DateStr = now.Format(dateLayout)
}

// Time returns the moment the snapshot was last written.
func (f *File) Time() time.Time {
	sec := int64(f.Timestamp)
	nsec := int64((f.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// FromScan converts a scan result. downloadRoot is the parent folder the
// project root was built under.
func FromScan(res *scan.Result, downloadRoot string) Entry {
	queue := res.Queue
	if queue == nil {
		queue = []models.DownloadItem{}
	}
	return Entry{
		Project:      res.Project,
		TotalSize:    res.TotalSize,
		TotalFiles:   len(res.Queue),
		Queue:        queue,
		DownloadRoot: downloadRoot,
		TotalShots:   res.TotalShots,
		TotalAssets:  res.TotalAssets,
	}
}

// ToScan rebuilds the in-memory result. Failures from the original scan are
// not persisted; the queue is re-checked with scan.Reconcile, so entries
// written by other tools cannot collide or escape the project root.
func (e Entry) ToScan() *scan.Result {
	queue := make([]models.DownloadItem, len(e.Queue))
	copy(queue, e.Queue)
	res := &scan.Result{
		Project:     e.Project,
		Root:        scan.ProjectRoot(e.DownloadRoot, e.Project.Name),
		Queue:       queue,
		TotalShots:  e.TotalShots,
		TotalAssets: e.TotalAssets,
	}
	scan.Reconcile(res)
	return res
}

// Put stores entry under index, replacing any entry for the same project.
func (f *File) Put(index int, entry Entry) {
	if f.Data == nil {
		f.Data = map[string]Entry{}
	}
	for k, e := range f.Data {
		if e.Project.ID != "" && e.Project.ID == entry.Project.ID {
			delete(f.Data, k)
		}
	}
	f.Data[strconv.Itoa(index)] = entry
}

// Keys returns the entry keys in numeric order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.Data))
	for k := range f.Data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}

// Find looks an entry up by key, project id or case-insensitive name.
func (f *File) Find(ref string) (Entry, bool) {
	if e, ok := f.Data[ref]; ok {
		return e, true
	}
	for _, k := range f.Keys() {
		e := f.Data[k]
		if e.Project.ID == ref || strings.EqualFold(e.Project.Name, ref) {
			return e, true
		}
	}
	return Entry{}, false
}

// Store reads and writes the snapshot file.
type Store struct {
	path string
}

// NewStore creates a store at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStore uses the per-user scan cache location.
func DefaultStore() (*Store, error) {
	path, err := config.ScanCachePath()
	if err != nil {
		return nil, fmt.Errorf("failed to locate scan cache: %w", err)
	}
	return NewStore(path), nil
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (s *Store) Load() (*File, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &File{Data: map[string]Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scan cache: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scan cache %s: %w", s.path, err)
	}
	if f.Data == nil {
		f.Data = map[string]Entry{}
	}
	return &f, nil
}

// Save stamps f with now and writes it atomically.
func (s *Store) Save(f *File, now time.Time) error {
	f.stamp(now)
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scan cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create scan cache directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write scan cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace scan cache: %w", err)
	}
	return nil
}
