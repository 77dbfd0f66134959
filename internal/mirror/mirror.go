// Package mirror copies a finished download tree to object storage.
package mirror

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/download"
	"github.com/studiopipe/kitsu-fetch/internal/http"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
)

// Uploader is one object storage backend.
type Uploader interface {
	// Stat returns the size of the object at key. exists is false when the
	// object is missing; err is only set for failed lookups.
	Stat(ctx context.Context, key string) (size int64, exists bool, err error)
	Upload(ctx context.Context, key, localPath string, size int64) error
	// Target describes the destination for logs, e.g. s3://bucket.
	Target() string
}

// New builds the uploader selected by cfg. httpClient may be nil.
func New(ctx context.Context, cfg config.MirrorConfig, httpClient *nethttp.Client) (Uploader, error) {
	switch strings.ToLower(cfg.Provider) {
	case "s3":
		return NewS3Uploader(ctx, cfg, httpClient)
	case "azure":
		return NewAzureUploader(cfg, httpClient)
	case "", "none":
		return nil, errors.New("mirror is not configured")
	default:
		return nil, fmt.Errorf("unsupported mirror provider: %s", cfg.Provider)
	}
}

// FileFailure is a file that could not be mirrored.
type FileFailure struct {
	Path string
	Key  string
	Err  error
}

// Result summarizes a mirror run.
type Result struct {
	Uploaded int
	Skipped  int // remote object already had the local size
	Failed   int
	Bytes    int64
	Failures []FileFailure
}

// Mirror uploads the files of successful outcomes under prefix, keeping
// their path relative to root.
type Mirror struct {
	up      Uploader
	root    string
	prefix  string
	workers int
	policy  http.Policy
	logger  *logging.Logger
}

// NewMirror creates a mirror run. workers is clamped to [1, MaxWorkers].
func NewMirror(up Uploader, root, prefix string, workers int, logger *logging.Logger) *Mirror {
	if workers < 1 {
		workers = 1
	}
	if workers > constants.MaxWorkers {
		workers = constants.MaxWorkers
	}
	logger = logging.OrNop(logger)
	policy := http.DefaultPolicy()
	policy.OnRetry = func(attempt int, err error, t http.ErrorType, wait time.Duration) {
		logger.Debug().
			Int("attempt", attempt).
			Str("class", http.ErrorTypeName(t)).
			Dur("wait", wait).
			Err(err).
			Msg("Retrying mirror upload")
	}
	return &Mirror{
		up:      up,
		root:    root,
		prefix:  strings.Trim(prefix, "/"),
		workers: workers,
		policy:  policy,
		logger:  logger,
	}
}

// Key returns the object key for a local file under the root.
func (m *Mirror) Key(localPath string) (string, error) {
	rel, err := filepath.Rel(m.root, localPath)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", localPath, m.root)
	}
	if m.prefix == "" {
		return rel, nil
	}
	return path.Join(m.prefix, rel), nil
}

// Run mirrors every outcome whose file is present. Failures are collected
// and never stop the run.
func (m *Mirror) Run(ctx context.Context, outcomes []download.Outcome) Result {
	var (
		res      Result
		mu       sync.Mutex
		uploaded atomic.Int64
		skipped  atomic.Int64
		bytes    atomic.Int64
	)
	fail := func(p, key string, err error) {
		mu.Lock()
		res.Failures = append(res.Failures, FileFailure{Path: p, Key: key, Err: err})
		mu.Unlock()
		m.logger.Warn().Str("file", p).Err(err).Msg("Mirror upload failed")
	}

	m.logger.Info().Str("target", m.up.Target()).Int("workers", m.workers).Msg("Mirroring downloads")

	g := new(errgroup.Group)
	g.SetLimit(m.workers)
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		local := o.Item.Path()
		g.Go(func() error {
			key, err := m.Key(local)
			if err != nil {
				fail(local, "", err)
				return nil
			}
			sent, err := m.one(ctx, key, local)
			switch {
			case err != nil:
				fail(local, key, err)
			case sent < 0:
				skipped.Add(1)
			default:
				uploaded.Add(1)
				bytes.Add(sent)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Uploaded = int(uploaded.Load())
	res.Skipped = int(skipped.Load())
	res.Bytes = bytes.Load()
	res.Failed = len(res.Failures)
	return res
}

// one uploads a single file and returns the bytes sent, or -1 when the
// remote copy was already current.
func (m *Mirror) one(ctx context.Context, key, local string) (int64, error) {
	info, err := os.Stat(local)
	if err != nil {
		return 0, err
	}
	size := info.Size()

	var remote int64
	var exists bool
	err = m.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		var err error
		remote, exists, err = m.up.Stat(ctx, key)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", key, err)
	}
	if exists && remote == size {
		return -1, nil
	}

	err = m.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		return m.up.Upload(ctx, key, local, size)
	})
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	m.logger.Debug().Str("key", key).Int64("bytes", size).Msg("Mirrored file")
	return size, nil
}
