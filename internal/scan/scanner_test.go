package scan

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/studiopipe/kitsu-fetch/internal/hierarchy"
	"github.com/studiopipe/kitsu-fetch/internal/models"
)

const testHost = "https://kitsu.studio.test/api"

type fakeSource struct {
	episodes    []models.Episode
	episodeSeqs map[string][]models.Sequence
	projectSeqs []models.Sequence
	shots       []models.Entity
	assets      []models.Entity
	tasks       map[string][]models.Task
	previews    map[string]*models.FileRecord
	outputs     map[string][]models.FileRecord
	workings    map[string][]models.FileRecord
	failTasks   map[string]bool
	failShots   bool

	taskCalls int
}

func (f *fakeSource) ListEpisodes(ctx context.Context, projectID string) ([]models.Episode, error) {
	return f.episodes, nil
}

func (f *fakeSource) ListEpisodeSequences(ctx context.Context, episodeID string) ([]models.Sequence, error) {
	return f.episodeSeqs[episodeID], nil
}

func (f *fakeSource) ListProjectSequences(ctx context.Context, projectID string) ([]models.Sequence, error) {
	return f.projectSeqs, nil
}

func (f *fakeSource) ListShots(ctx context.Context, projectID string) ([]models.Entity, error) {
	if f.failShots {
		return nil, errors.New("shots unavailable")
	}
	out := make([]models.Entity, len(f.shots))
	for i, s := range f.shots {
		out[i] = models.NewShot(s)
	}
	return out, nil
}

func (f *fakeSource) ListAssets(ctx context.Context, projectID string) ([]models.Entity, error) {
	out := make([]models.Entity, len(f.assets))
	for i, a := range f.assets {
		out[i] = models.NewAsset(a)
	}
	return out, nil
}

func (f *fakeSource) ListTasks(ctx context.Context, entity models.Entity) ([]models.Task, error) {
	f.taskCalls++
	if f.failTasks[entity.ID] {
		return nil, errors.New("tasks unavailable")
	}
	return f.tasks[entity.ID], nil
}

func (f *fakeSource) GetPreviewFile(ctx context.Context, id string) (*models.FileRecord, error) {
	pf, ok := f.previews[id]
	if !ok {
		return nil, errors.New("preview not found")
	}
	cp := *pf
	cp.Category = models.CategoryPreview
	return &cp, nil
}

func (f *fakeSource) ListOutputFiles(ctx context.Context, taskID string) ([]models.FileRecord, error) {
	return f.outputs[taskID], nil
}

func (f *fakeSource) ListWorkingFiles(ctx context.Context, taskID string) ([]models.FileRecord, error) {
	return f.workings[taskID], nil
}

func allOn(root string) Options {
	return Options{
		DownloadRoot:   root,
		Host:           testHost,
		IncludePreview: true,
		IncludeOutput:  true,
		IncludeWorking: true,
	}
}

func rel(t *testing.T, root string, item models.DownloadItem) string {
	t.Helper()
	r, err := filepath.Rel(root, item.Path())
	if err != nil {
		t.Fatal(err)
	}
	return filepath.ToSlash(r)
}

func TestScanEmptyProject(t *testing.T) {
	root := t.TempDir()
	res, err := NewScanner(&fakeSource{}, allOn(root)).Scan(context.Background(), models.Project{ID: "p", Name: "Empty Show"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Queue) != 0 || res.TotalSize != 0 || res.TotalShots != 0 || res.TotalAssets != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Root != filepath.Join(root, "Kitsu_Empty Show") {
		t.Errorf("Root = %s", res.Root)
	}
}

func fullSource() *fakeSource {
	return &fakeSource{
		episodes: []models.Episode{{ID: "ep1", Name: "EP01"}},
		episodeSeqs: map[string][]models.Sequence{
			"ep1": {{ID: "sq1", Name: "SQ010"}},
		},
		shots: []models.Entity{
			{ID: "sh1", Name: "SH010", SequenceID: "sq1", PreviewFileID: "pv1"},
		},
		assets: []models.Entity{
			{ID: "as1", Name: "Chair", AssetTypeName: "Props/Furniture"},
		},
		tasks: map[string][]models.Task{
			"sh1": {{ID: "t1", TaskTypeName: "Animation", PreviewFileID: "pv2"}},
			"as1": {{ID: "t2", TaskTypeName: "Modeling"}},
		},
		previews: map[string]*models.FileRecord{
			"pv1": {ID: "pv1", OriginalName: "sh010_v003.MP4", Extension: "mp4", FileSize: 2_000_000},
			"pv2": {ID: "pv2", Name: "anim_v1", Extension: "mov", URL: "/api/movies/originals/preview-files/pv2/download", FileSize: 500},
		},
		outputs: map[string][]models.FileRecord{
			"t1": {{ID: "o1", Name: "render", Extension: "exr", FileSize: 100}},
		},
		workings: map[string][]models.FileRecord{
			"t2": {{ID: "w1", OriginalName: "chair.blend", Extension: "blend", FileSize: 7}},
		},
	}
}

func TestScanBuildsLayout(t *testing.T) {
	root := t.TempDir()
	src := fullSource()

	res, err := NewScanner(src, allOn(root)).Scan(context.Background(), models.Project{ID: "p", Name: "Show"})
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, item := range res.Queue {
		got = append(got, string(item.Category)+" "+rel(t, res.Root, item))
	}
	sort.Strings(got)
	want := []string{
		"output EP01/SQ010/SH010/Animation/Animation_Output_render.exr",
		"preview EP01/SQ010/SH010/Animation/Animation_Preview_anim_v1.mov",
		"preview EP01/SQ010/SH010/sh010_v003.MP4",
		"working Assets/PropsFurniture/Chair/Modeling/Modeling_SRC_chair.blend",
	}
	if len(got) != len(want) {
		t.Fatalf("queue = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if res.TotalSize != 2_000_607 {
		t.Errorf("TotalSize = %d", res.TotalSize)
	}
	if res.TotalShots != 1 || res.TotalAssets != 1 {
		t.Errorf("totals = %d shots, %d assets", res.TotalShots, res.TotalAssets)
	}
	if len(res.Failures) != 0 {
		t.Errorf("Failures = %v", res.Failures)
	}

	for _, item := range res.Queue {
		if item.ID == "pv2" && item.URL != "https://kitsu.studio.test/api/movies/originals/preview-files/pv2/download" {
			t.Errorf("URL = %s", item.URL)
		}
		if item.ID == "o1" && item.URL != "" {
			t.Errorf("output without url got %s", item.URL)
		}
	}
}

func TestScanSwallowsPerEntityFailures(t *testing.T) {
	src := fullSource()
	delete(src.previews, "pv1")
	src.failTasks = map[string]bool{"as1": true}

	res, err := NewScanner(src, allOn(t.TempDir())).Scan(context.Background(), models.Project{ID: "p", Name: "Show"})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Queue) != 2 {
		t.Errorf("queue has %d items, want the two shot task files", len(res.Queue))
	}
	if len(res.Failures) != 2 {
		t.Fatalf("Failures = %v", res.Failures)
	}
	ops := map[string]string{}
	for _, f := range res.Failures {
		ops[f.Op] = f.EntityID
	}
	if ops["get preview file"] != "sh1" || ops["list tasks"] != "as1" {
		t.Errorf("failures = %v", ops)
	}
}

func TestScanListingFailureIsRecorded(t *testing.T) {
	src := fullSource()
	src.failShots = true

	res, err := NewScanner(src, allOn(t.TempDir())).Scan(context.Background(), models.Project{ID: "p", Name: "Show"})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalShots != 0 || res.TotalAssets != 1 {
		t.Errorf("totals = %d/%d", res.TotalShots, res.TotalAssets)
	}
	if len(res.Failures) != 1 || res.Failures[0].Op != "list shots" {
		t.Errorf("Failures = %v", res.Failures)
	}
}

func TestScanIncludeFlags(t *testing.T) {
	opts := allOn(t.TempDir())
	opts.IncludeOutput = false
	opts.IncludeWorking = false

	res, err := NewScanner(fullSource(), opts).Scan(context.Background(), models.Project{ID: "p", Name: "Show"})
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range res.Queue {
		if item.Category != models.CategoryPreview {
			t.Errorf("unexpected %s item", item.Category)
		}
	}
	if len(res.Queue) != 2 {
		t.Errorf("queue = %d", len(res.Queue))
	}

	src := fullSource()
	opts.IncludePreview = false
	res, err = NewScanner(src, opts).Scan(context.Background(), models.Project{ID: "p", Name: "Show"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Queue) != 0 || src.taskCalls != 0 {
		t.Errorf("queue = %d, task calls = %d", len(res.Queue), src.taskCalls)
	}
}

func TestScanResolvesCollisions(t *testing.T) {
	src := fullSource()
	src.outputs["t1"] = []models.FileRecord{
		{ID: "o1aaaaaaaa", Name: "render", Extension: "exr"},
		{ID: "o2bbbbbbbb", Name: "render", Extension: "exr"},
		{ID: "o1aaaaaaaa", Name: "render", Extension: "exr"},
	}

	res, err := NewScanner(src, allOn(t.TempDir())).Scan(context.Background(), models.Project{ID: "p", Name: "Show"})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, item := range res.Queue {
		if item.Category == models.CategoryOutput {
			names = append(names, item.Filename)
		}
	}
	if len(names) != 2 || names[0] != "Animation_Output_render.exr" || names[1] != "Animation_Output_render (o2bbbbbb).exr" {
		t.Errorf("outputs = %v", names)
	}
	if res.Collisions.Duplicates != 1 || res.Collisions.Renamed != 1 {
		t.Errorf("Collisions = %+v", res.Collisions)
	}
}

func TestScanTypeFallbacks(t *testing.T) {
	src := &fakeSource{
		assets: []models.Entity{
			{ID: "a1", Name: "Hero", EntityTypeID: "type-char"},
			{ID: "a2", Name: "Rock"},
		},
		tasks: map[string][]models.Task{
			"a1": {{ID: "t1", TaskTypeID: "tt-rig"}},
			"a2": {{ID: "t2"}},
		},
		outputs: map[string][]models.FileRecord{
			"t1": {{ID: "o1", Name: "hero_rig"}},
			"t2": {{ID: "o2", Name: "rock"}},
		},
	}
	names := func(m map[string]string) hierarchy.FetchFunc {
		return func(ctx context.Context, id string) (string, error) {
			if n, ok := m[id]; ok {
				return n, nil
			}
			return "", errors.New("unknown")
		}
	}
	opts := allOn(t.TempDir())
	opts.AssetTypes = hierarchy.NewNameCache(names(map[string]string{"type-char": "Characters"}), nil)
	opts.TaskTypes = hierarchy.NewNameCache(names(map[string]string{"tt-rig": "Rigging"}), nil)

	res, err := NewScanner(src, opts).Scan(context.Background(), models.Project{ID: "p", Name: "Show"})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, item := range res.Queue {
		got = append(got, rel(t, res.Root, item))
	}
	sort.Strings(got)
	want := []string{
		"Assets/Characters/Hero/Rigging/Rigging_Output_hero_rig",
		"Assets/Props/Rock/Task/Task_Output_rock",
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("paths = %v", got)
	}
}

func TestScanShotWithoutHierarchy(t *testing.T) {
	src := &fakeSource{
		shots: []models.Entity{{ID: "s1", Name: "SH999", ParentID: "p9", PreviewFileID: "pv"}},
		previews: map[string]*models.FileRecord{
			"pv": {ID: "pv", Name: "clip"},
		},
	}
	opts := allOn(t.TempDir())
	opts.Parents = hierarchy.NewNameCache(func(ctx context.Context, id string) (string, error) {
		if id == "p9" {
			return "SEQ_ALPHA", nil
		}
		return "", errors.New("unknown")
	}, nil)

	res, err := NewScanner(src, opts).Scan(context.Background(), models.Project{ID: "p", Name: "Show"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Queue) != 1 {
		t.Fatalf("queue = %v", res.Queue)
	}
	if got := rel(t, res.Root, res.Queue[0]); got != "No_Episode/SEQ_ALPHA/SH999/clip.mp4" {
		t.Errorf("path = %s", got)
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScanner(fullSource(), allOn(t.TempDir())).Scan(ctx, models.Project{ID: "p", Name: "Show"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestWithExtension(t *testing.T) {
	tests := []struct{ name, ext, want string }{
		{"clip", "mp4", "clip.mp4"},
		{"clip.MP4", "mp4", "clip.MP4"},
		{"clip.mov", "mp4", "clip.mov.mp4"},
		{"scene", "", "scene"},
	}
	for _, tt := range tests {
		if got := withExtension(tt.name, tt.ext); got != tt.want {
			t.Errorf("withExtension(%q, %q) = %q, want %q", tt.name, tt.ext, got, tt.want)
		}
	}
	if cleanExtension(".exr") != "exr" || cleanExtension(" ") != "" || cleanExtension("..") != "" {
		t.Error("cleanExtension")
	}
}
