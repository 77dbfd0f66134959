// Package download fetches queue items to disk with candidate URL
// escalation, size validation and temp-file-then-rename writes.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"time"

	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/http"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// Status is the terminal state of one item.
type Status int

const (
	StatusDownloaded Status = iota
	StatusAlreadyComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusAlreadyComplete:
		return "already-complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-item result. Failures never surface as errors from
// Fetch; they are described here.
type Outcome struct {
	Item     models.DownloadItem
	Status   Status
	URL      string // candidate that produced the file
	Bytes    int64  // bytes written by this run
	Reason   string // short failure reason
	Err      error  // last underlying error
	Duration time.Duration
}

// OK reports whether the file is present at its destination.
func (o Outcome) OK() bool {
	return o.Status == StatusDownloaded || o.Status == StatusAlreadyComplete
}

// ProgressFunc receives the bytes written so far by the current attempt and
// the server-reported total (<= 0 when unknown). A new attempt starts again
// from zero.
type ProgressFunc func(written, total int64)

// Options configures an Engine. Zero durations fall back to the defaults;
// tests set Sleep to avoid real waits.
type Options struct {
	Client     *nethttp.Client
	Host       string // API base used to generate candidates
	Acceptance AcceptanceSet

	AttemptsPerURL    int
	ValidationBackoff time.Duration
	NetworkBackoff    time.Duration
	ErrorBackoff      time.Duration

	// StallTimeout cancels a request when no bytes arrive for this long.
	StallTimeout time.Duration
	ChunkSize    int

	// Authorize decorates each request, typically with the bearer token.
	Authorize func(*nethttp.Request)
	Sleep     func(ctx context.Context, d time.Duration) error
	Logger    *logging.Logger
}

// OptionsFromConfig fills Options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Host:              cfg.APIBase(),
		Acceptance:        AcceptanceSetFromConfig(cfg),
		AttemptsPerURL:    cfg.AttemptsPerURL,
		ValidationBackoff: cfg.ValidationBackoff,
		NetworkBackoff:    cfg.NetworkBackoff,
		ErrorBackoff:      cfg.ErrorBackoff,
		StallTimeout:      cfg.ReadTimeout,
	}
}

// Engine downloads single items. It holds no per-item state and is safe
// for concurrent use as long as items have distinct destinations.
type Engine struct {
	opts   Options
	policy http.Policy
	logger *logging.Logger
}

// NewEngine creates an engine.
func NewEngine(opts Options) *Engine {
	if opts.Client == nil {
		opts.Client = nethttp.DefaultClient
	}
	if opts.AttemptsPerURL <= 0 {
		opts.AttemptsPerURL = constants.AttemptsPerURL
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = constants.DownloadChunkSize
	}
	if opts.Acceptance.Default == (AcceptancePolicy{}) {
		opts.Acceptance.Default = DefaultAcceptance()
	}
	logger := logging.OrNop(opts.Logger)

	policy := http.Policy{
		MaxAttempts: opts.AttemptsPerURL,
		Backoff: map[http.ErrorType]time.Duration{
			http.ErrorTypeValidation: opts.ValidationBackoff,
			http.ErrorTypeNetwork:    opts.NetworkBackoff,
			http.ErrorTypeRetryable:  opts.ErrorBackoff,
		},
		Classify: classify,
		Sleep:    opts.Sleep,
		OnRetry: func(attempt int, err error, t http.ErrorType, wait time.Duration) {
			logger.Debug().
				Int("attempt", attempt).
				Str("class", http.ErrorTypeName(t)).
				Dur("wait", wait).
				Err(err).
				Msg("Retrying download")
		},
	}

	return &Engine{opts: opts, policy: policy, logger: logger}
}

// classify maps download errors onto retry classes: 404/403 abandon the
// URL, truncation and stalls are network errors, undersized results are
// validation failures and every other failure, including other HTTP
// statuses, gets the generic error backoff.
func classify(err error) http.ErrorType {
	if errors.Is(err, ErrStalled) {
		return http.ErrorTypeNetwork
	}
	if errors.Is(err, context.Canceled) {
		return http.ErrorTypeFatal
	}
	// Local file errors carry paths built from remote names; never match
	// status codes or network words inside them.
	var pathErr *os.PathError
	var linkErr *os.LinkError
	if errors.As(err, &pathErr) || errors.As(err, &linkErr) {
		return http.ErrorTypeRetryable
	}
	switch t := http.ClassifyError(err); t {
	case http.ErrorTypePermanent, http.ErrorTypeNetwork, http.ErrorTypeValidation:
		return t
	default:
		return http.ErrorTypeRetryable
	}
}

// Fetch downloads item trying its explicit url and then every generated
// candidate.
func (e *Engine) Fetch(ctx context.Context, item models.DownloadItem, progress ProgressFunc) Outcome {
	return e.FetchFrom(ctx, item, Candidates(item, e.opts.Host), progress)
}

// FetchFrom downloads item from the given URLs in order.
//
// On success the file exists at item.Path(). On failure the destination is
// left as it was before the call, minus a small leftover that the
// pre-flight removed, and no temp file remains.
func (e *Engine) FetchFrom(ctx context.Context, item models.DownloadItem, urls []string, progress ProgressFunc) Outcome {
	start := time.Now()
	out := Outcome{Item: item, Status: StatusFailed}
	finish := func() Outcome {
		out.Duration = time.Since(start)
		return out
	}
	acc := e.opts.Acceptance.For(item.Category)

	if err := ensureWritable(item); err != nil {
		out.Reason = "destination not writable"
		out.Err = err
		return finish()
	}

	final := item.Path()
	if info, err := os.Stat(final); err == nil && info.Mode().IsRegular() {
		if acc.Complete(info.Size(), int64(item.Size)) {
			out.Status = StatusAlreadyComplete
			return finish()
		}
		e.logger.Debug().Str("path", final).Int64("size", info.Size()).Msg("Removing undersized existing file")
		if err := os.Remove(final); err != nil && !os.IsNotExist(err) {
			out.Reason = "cannot replace existing file"
			out.Err = err
			return finish()
		}
	}

	if len(urls) == 0 {
		out.Reason = "no candidate URLs"
		out.Err = ErrNoCandidates
		return finish()
	}

	defer removeQuiet(item.TempPath())

	var lastErr error
	var written int64
	url, err := e.policy.Escalate(ctx, urls, func(ctx context.Context, url string, attempt int) error {
		n, err := e.attempt(ctx, item, url, acc, progress)
		if err != nil {
			lastErr = err
			return err
		}
		written = n
		return nil
	})
	if err != nil {
		out.Err = lastErr
		if ctx.Err() != nil {
			out.Reason = "cancelled"
			out.Err = ctx.Err()
		} else {
			out.Reason = fmt.Sprintf("all %d candidate URLs failed", len(urls))
		}
		e.logger.Debug().Str("path", final).Err(err).Msg("Download failed")
		return finish()
	}

	out.Status = StatusDownloaded
	out.URL = url
	out.Bytes = written
	return finish()
}

// attempt performs one GET and, if the body passes validation, moves it
// into place.
func (e *Engine) attempt(ctx context.Context, item models.DownloadItem, url string, acc AcceptancePolicy, progress ProgressFunc) (n int64, err error) {
	tmp := item.TempPath()
	defer func() {
		if err != nil {
			removeQuiet(tmp)
		}
	}()

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var watchdog *time.Timer
	if e.opts.StallTimeout > 0 {
		watchdog = time.AfterFunc(e.opts.StallTimeout, func() { cancel(ErrStalled) })
		defer watchdog.Stop()
	}
	stalled := func(err error) error {
		if errors.Is(context.Cause(reqCtx), ErrStalled) {
			return fmt.Errorf("%s: %w", url, ErrStalled)
		}
		return err
	}

	req, err := nethttp.NewRequestWithContext(reqCtx, nethttp.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if e.opts.Authorize != nil {
		e.opts.Authorize(req)
	}

	resp, err := e.opts.Client.Do(req)
	if err != nil {
		return 0, stalled(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, &StatusError{URL: url, Code: resp.StatusCode}
	}

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err = e.stream(f, resp.Body, watchdog, resp.ContentLength, progress)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, stalled(err)
	}

	if !acc.Accept(n, resp.ContentLength) {
		return n, &IncompleteError{Got: n, Expected: resp.ContentLength}
	}

	final := item.Path()
	if err := os.Remove(final); err != nil && !os.IsNotExist(err) {
		return n, fmt.Errorf("remove previous file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return n, fmt.Errorf("rename into place: %w", err)
	}
	return n, nil
}

// stream copies src to dst in chunks, re-arming the stall watchdog after
// every chunk received.
func (e *Engine) stream(dst io.Writer, src io.Reader, watchdog *time.Timer, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, e.opts.ChunkSize)
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			if watchdog != nil {
				watchdog.Reset(e.opts.StallTimeout)
			}
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if progress != nil {
				progress(written, total)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// ensureWritable creates the destination folder and proves a file can be
// created in it, before any network traffic.
func ensureWritable(item models.DownloadItem) error {
	if item.Folder == "" || item.Filename == "" {
		return fmt.Errorf("item %s has no destination", item.Fingerprint())
	}
	if err := os.MkdirAll(item.Folder, 0o755); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	probe := item.TempPath()
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("folder not writable: %w", err)
	}
	f.Close()
	return os.Remove(probe)
}

func removeQuiet(path string) {
	_ = os.Remove(path)
}
