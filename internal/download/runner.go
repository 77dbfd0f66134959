package download

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// Fetcher is what the runner needs from an Engine.
type Fetcher interface {
	Fetch(ctx context.Context, item models.DownloadItem, progress ProgressFunc) Outcome
}

// Reporter receives per-item lifecycle events, typically to drive progress
// bars. Start may return nil when byte progress is not wanted. Calls for
// different items arrive concurrently.
type Reporter interface {
	Start(index int, item models.DownloadItem) ProgressFunc
	Finish(index int, outcome Outcome)
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Total           int
	Downloaded      int
	AlreadyComplete int
	Failed          int
	Skipped         int   // never started because the run was cancelled
	Bytes           int64 // bytes written by this run
	Duration        time.Duration
	Failures        []Outcome
	Outcomes        []Outcome // every started item, in queue order
}

// Succeeded counts items whose file is present at the end of the run.
func (s Summary) Succeeded() int {
	return s.Downloaded + s.AlreadyComplete
}

// Runner drives a bounded pool of downloads over a queue.
type Runner struct {
	fetcher  Fetcher
	workers  int
	reporter Reporter
	logger   *logging.Logger

	done  atomic.Int64
	bytes atomic.Int64
}

// NewRunner creates a runner. workers is clamped to [1, MaxWorkers].
func NewRunner(f Fetcher, workers int, reporter Reporter, logger *logging.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if workers > constants.MaxWorkers {
		workers = constants.MaxWorkers
	}
	return &Runner{
		fetcher:  f,
		workers:  workers,
		reporter: reporter,
		logger:   logging.OrNop(logger),
	}
}

// Progress returns the number of finished items and bytes written so far.
// It may be called while Run is in progress.
func (r *Runner) Progress() (done int64, bytes int64) {
	return r.done.Load(), r.bytes.Load()
}

// Run downloads every item. Individual failures are recorded in the
// summary and never stop the run; cancelling ctx stops scheduling new
// items and aborts the ones in flight.
func (r *Runner) Run(ctx context.Context, items []models.DownloadItem) Summary {
	start := time.Now()
	outcomes := make([]Outcome, len(items))
	started := make([]bool, len(items))

	g := new(errgroup.Group)
	g.SetLimit(r.workers)

	r.logger.Info().
		Int("items", len(items)).
		Int("workers", r.workers).
		Msg("Starting downloads")

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			// The slot may have freed up only after cancellation.
			if ctx.Err() != nil {
				started[i] = false
				return nil
			}
			var progress ProgressFunc
			if r.reporter != nil {
				progress = r.reporter.Start(i, item)
			}
			o := r.fetcher.Fetch(ctx, item, progress)
			outcomes[i] = o

			r.done.Add(1)
			r.bytes.Add(o.Bytes)
			if o.Status == StatusFailed {
				r.logger.Warn().
					Str("file", item.Path()).
					Str("reason", o.Reason).
					Err(o.Err).
					Msg("Download failed")
			}
			if r.reporter != nil {
				r.reporter.Finish(i, o)
			}
			return nil
		})
	}
	_ = g.Wait()

	s := Summary{Total: len(items), Duration: time.Since(start)}
	for i, o := range outcomes {
		if !started[i] {
			s.Skipped++
			continue
		}
		s.Bytes += o.Bytes
		s.Outcomes = append(s.Outcomes, o)
		switch o.Status {
		case StatusDownloaded:
			s.Downloaded++
		case StatusAlreadyComplete:
			s.AlreadyComplete++
		default:
			s.Failed++
			s.Failures = append(s.Failures, o)
		}
	}
	return s
}
