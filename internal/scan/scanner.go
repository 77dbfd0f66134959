// Package scan walks a project on the tracking service and builds the
// download queue with a stable folder layout.
package scan

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/download"
	"github.com/studiopipe/kitsu-fetch/internal/hierarchy"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/models"
	"github.com/studiopipe/kitsu-fetch/internal/util/paths"
	"github.com/studiopipe/kitsu-fetch/internal/util/sanitize"
	"github.com/studiopipe/kitsu-fetch/internal/validation"
)

// Source is the read-only query surface the scanner needs. *api.Client
// satisfies it.
type Source interface {
	hierarchy.MapSource
	ListShots(ctx context.Context, projectID string) ([]models.Entity, error)
	ListAssets(ctx context.Context, projectID string) ([]models.Entity, error)
	ListTasks(ctx context.Context, entity models.Entity) ([]models.Task, error)
	GetPreviewFile(ctx context.Context, id string) (*models.FileRecord, error)
	ListOutputFiles(ctx context.Context, taskID string) ([]models.FileRecord, error)
	ListWorkingFiles(ctx context.Context, taskID string) ([]models.FileRecord, error)
}

// Progress is updated with the number of entities processed.
type Progress interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
}

// Options configures a Scanner.
type Options struct {
	// DownloadRoot is the parent of the per-project folder.
	DownloadRoot string
	// Host is the API base used to absolutize relative file urls.
	Host string

	IncludePreview bool
	IncludeOutput  bool
	IncludeWorking bool

	// Parents resolves sequence, episode and other parent ids. TaskTypes and
	// AssetTypes resolve the type ids of tasks and assets. Nil caches fall
	// back to the placeholder names.
	Parents    *hierarchy.NameCache
	TaskTypes  *hierarchy.NameCache
	AssetTypes *hierarchy.NameCache

	Progress Progress
	Logger   *logging.Logger
}

// Failure is one sub-resource that could not be read. The affected entity
// or task contributed no items for that resource.
type Failure struct {
	EntityID string
	TaskID   string
	Op       string
	Err      error
}

func (f Failure) Error() string {
	var b strings.Builder
	b.WriteString(f.Op)
	if f.EntityID != "" {
		b.WriteString(" entity=" + f.EntityID)
	}
	if f.TaskID != "" {
		b.WriteString(" task=" + f.TaskID)
	}
	b.WriteString(": ")
	b.WriteString(f.Err.Error())
	return b.String()
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Result is the scan of one project.
type Result struct {
	Project     models.Project
	Root        string
	Queue       []models.DownloadItem
	TotalSize   int64
	TotalShots  int
	TotalAssets int
	Failures    []Failure
	Collisions  paths.CollisionStats
}

// Scanner builds download queues. Scans run sequentially; the name caches
// may be shared with other goroutines.
type Scanner struct {
	src    Source
	opts   Options
	logger *logging.Logger
}

// NewScanner creates a scanner over src.
func NewScanner(src Source, opts Options) *Scanner {
	return &Scanner{src: src, opts: opts, logger: logging.OrNop(opts.Logger)}
}

// ProjectRoot is the folder a project is downloaded into.
func ProjectRoot(downloadRoot, projectName string) string {
	return filepath.Join(downloadRoot, constants.RootFolderPrefix+sanitize.Name(projectName))
}

// Scan walks project. Sub-resource failures are collected in
// Result.Failures; only cancellation of ctx returns an error.
func (s *Scanner) Scan(ctx context.Context, project models.Project) (*Result, error) {
	res := &Result{
		Project: project,
		Root:    ProjectRoot(s.opts.DownloadRoot, project.Name),
	}
	w := &walk{Scanner: s, res: res}

	maps, errs := hierarchy.BuildMaps(ctx, s.src, project.ID, s.opts.Parents, s.logger)
	for _, err := range errs {
		w.fail("", "", "build hierarchy", err)
	}
	w.resolver = hierarchy.NewResolver(maps, s.opts.Parents)

	shots, err := s.src.ListShots(ctx, project.ID)
	if err != nil {
		w.fail("", "", "list shots", err)
	}
	assets, err := s.src.ListAssets(ctx, project.ID)
	if err != nil {
		w.fail("", "", "list assets", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.TotalShots = len(shots)
	res.TotalAssets = len(assets)

	s.logger.Info().
		Str("project", project.Name).
		Int("shots", len(shots)).
		Int("assets", len(assets)).
		Int("sequences", len(maps.Sequences)).
		Msg("Scanning project")

	if p := s.opts.Progress; p != nil {
		p.Start(int64(len(shots)+len(assets)), "Scanning")
		defer p.Finish()
	}

	done := int64(0)
	for _, group := range [][]models.Entity{shots, assets} {
		for _, e := range group {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			w.entity(ctx, e)
			done++
			if p := s.opts.Progress; p != nil {
				p.Update(done)
			}
		}
	}

	w.finalize()
	return res, nil
}

// walk carries the state of one Scan call.
type walk struct {
	*Scanner
	res      *Result
	resolver *hierarchy.Resolver
}

func (w *walk) fail(entityID, taskID, op string, err error) {
	f := Failure{EntityID: entityID, TaskID: taskID, Op: op, Err: err}
	w.res.Failures = append(w.res.Failures, f)
	w.logger.Debug().Err(f).Msg("Scan step failed")
}

func (w *walk) add(item models.DownloadItem) {
	w.res.Queue = append(w.res.Queue, item)
}

// entityFolder is root/Episode/Sequence/Shot or root/Assets/Type/Asset.
func (w *walk) entityFolder(ctx context.Context, e models.Entity) string {
	name := sanitize.Name(e.Name)
	if e.Kind == models.KindShot {
		ep, seq := w.resolver.EpisodeAndSequence(ctx, e)
		return filepath.Join(w.res.Root, ep, seq, name)
	}
	return filepath.Join(w.res.Root, constants.AssetsFolder, w.assetType(ctx, e), name)
}

func (w *walk) assetType(ctx context.Context, e models.Entity) string {
	if e.AssetTypeName != "" {
		return sanitize.Name(e.AssetTypeName)
	}
	if e.EntityTypeID != "" && w.opts.AssetTypes != nil {
		if name, err := w.opts.AssetTypes.Lookup(ctx, e.EntityTypeID); err == nil {
			return sanitize.Name(name)
		}
	}
	return constants.DefaultAssetType
}

func (w *walk) taskType(ctx context.Context, t models.Task) string {
	if t.TaskTypeName != "" {
		return sanitize.Name(t.TaskTypeName)
	}
	if t.TaskTypeID != "" && w.opts.TaskTypes != nil {
		if name, err := w.opts.TaskTypes.Lookup(ctx, t.TaskTypeID); err == nil {
			return sanitize.Name(name)
		}
	}
	return constants.DefaultTaskType
}

func (w *walk) entity(ctx context.Context, e models.Entity) {
	folder := w.entityFolder(ctx, e)
	entityName := sanitize.Name(e.Name)

	if w.opts.IncludePreview && e.PreviewFileID != "" {
		pf, err := w.src.GetPreviewFile(ctx, e.PreviewFileID)
		if err != nil {
			w.fail(e.ID, "", "get preview file", err)
		} else {
			name := withExtension(sanitize.Name(pf.BaseName(e.Name)), previewExtension(pf))
			w.add(w.item(models.CategoryPreview, pf, folder, name))
		}
	}

	if !w.opts.IncludePreview && !w.opts.IncludeOutput && !w.opts.IncludeWorking {
		return
	}
	tasks, err := w.src.ListTasks(ctx, e)
	if err != nil {
		w.fail(e.ID, "", "list tasks", err)
		return
	}
	for _, t := range tasks {
		w.task(ctx, e, entityName, folder, t)
	}
}

func (w *walk) task(ctx context.Context, e models.Entity, entityName, entityFolder string, t models.Task) {
	tt := w.taskType(ctx, t)
	folder := filepath.Join(entityFolder, tt)

	if w.opts.IncludePreview && t.PreviewFileID != "" {
		pf, err := w.src.GetPreviewFile(ctx, t.PreviewFileID)
		if err != nil {
			w.fail(e.ID, t.ID, "get task preview file", err)
		} else {
			name := withExtension(tt+"_Preview_"+sanitize.Name(pf.BaseName(entityName)), previewExtension(pf))
			w.add(w.item(models.CategoryPreview, pf, folder, name))
		}
	}

	if w.opts.IncludeOutput {
		files, err := w.src.ListOutputFiles(ctx, t.ID)
		if err != nil {
			w.fail(e.ID, t.ID, "list output files", err)
		}
		for i := range files {
			name := withExtension(tt+"_Output_"+sanitize.Name(files[i].BaseName("")), cleanExtension(files[i].Extension))
			w.add(w.item(models.CategoryOutput, &files[i], folder, name))
		}
	}

	if w.opts.IncludeWorking {
		files, err := w.src.ListWorkingFiles(ctx, t.ID)
		if err != nil {
			w.fail(e.ID, t.ID, "list working files", err)
		}
		for i := range files {
			name := withExtension(tt+"_SRC_"+sanitize.Name(files[i].BaseName("")), cleanExtension(files[i].Extension))
			w.add(w.item(models.CategoryWorking, &files[i], folder, name))
		}
	}
}

func (w *walk) item(category models.Category, f *models.FileRecord, folder, filename string) models.DownloadItem {
	return models.DownloadItem{
		Category: category,
		ID:       f.ID,
		URL:      download.FullURL(w.opts.Host, f.URL),
		Folder:   folder,
		Filename: filename,
		Size:     f.FileSize,
	}
}

// finalize makes destinations unique, drops anything that would escape the
// root and computes totals.
func (w *walk) finalize() {
	for _, f := range settle(w.res) {
		w.fail(f.EntityID, f.TaskID, f.Op, f.Err)
	}
	if stats := w.res.Collisions; stats.Duplicates > 0 || stats.Renamed > 0 {
		w.logger.Info().
			Int("duplicates", stats.Duplicates).
			Int("renamed", stats.Renamed).
			Msg("Resolved destination collisions")
	}
}

// Reconcile applies the destination rules of a live scan to a queue from
// elsewhere, such as a replayed snapshot. Items whose path leaves res.Root
// move to Failures; TotalSize covers what remains.
func Reconcile(res *Result) {
	res.Failures = append(res.Failures, settle(res)...)
}

func settle(res *Result) []Failure {
	queue, stats := paths.ResolveCollisions(res.Queue)
	res.Collisions = stats

	var failures []Failure
	var total int64
	kept := queue[:0]
	for _, item := range queue {
		if err := validation.ValidateDestination(item, res.Root); err != nil {
			failures = append(failures, Failure{EntityID: item.ID, Op: "validate destination", Err: err})
			continue
		}
		kept = append(kept, item)
		total += int64(item.Size)
	}
	res.Queue = kept
	res.TotalSize = total
	return failures
}

func previewExtension(f *models.FileRecord) string {
	if ext := cleanExtension(f.Extension); ext != "" {
		return ext
	}
	return constants.DefaultPreviewExtension
}

// cleanExtension normalizes a server-provided extension: no leading dot,
// only filename-safe characters.
func cleanExtension(ext string) string {
	ext = strings.TrimLeft(strings.TrimSpace(ext), ".")
	if ext == "" {
		return ""
	}
	if ext = sanitize.Name(ext); ext == sanitize.Placeholder {
		return ""
	}
	return ext
}

// withExtension appends "."+ext unless name already ends with it, ignoring
// case. An empty ext leaves name unchanged.
func withExtension(name, ext string) string {
	if ext == "" {
		return name
	}
	if strings.HasSuffix(strings.ToLower(name), "."+strings.ToLower(ext)) {
		return name
	}
	return name + "." + ext
}
