package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/studiopipe/kitsu-fetch/internal/download"
	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// DownloadUI renders one mpb bar per in-flight download and a result line
// per finished item. It implements download.Reporter.
type DownloadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	bars       sync.Map // index -> *fileBar
	isTerminal bool
	totalFiles int
	completed  atomic.Int32
	failed     atomic.Int32
}

type fileBar struct {
	bar        *mpb.Bar
	label      string
	size       int64
	retries    atomic.Int32
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
}

// NewDownloadUI creates a UI for totalFiles items writing to stderr. Bars are
// only drawn when stderr is a terminal; otherwise plain lines are printed.
func NewDownloadUI(totalFiles int) *DownloadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSI(os.Stderr)
	}
	return newDownloadUI(totalFiles, os.Stderr, isTerminal)
}

func newDownloadUI(totalFiles int, out io.Writer, isTerminal bool) *DownloadUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	}
	return &DownloadUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
	}
}

// Start registers a bar for item and returns the byte progress callback
// the engine feeds.
func (u *DownloadUI) Start(index int, item models.DownloadItem) download.ProgressFunc {
	fb := &fileBar{
		label:      fmt.Sprintf("[%d/%d] %s", index+1, u.totalFiles, truncatePath(item.Path(), 3)),
		size:       int64(item.Size),
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	if u.isTerminal {
		fb.bar = u.progress.New(fb.size,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					if r := fb.retries.Load(); r > 0 {
						return fmt.Sprintf("%s (retry %d)", fb.label, r)
					}
					return fb.label
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Any(func(s decor.Statistics) string {
					if s.Total <= 0 {
						return "   ?  %"
					}
					return fmt.Sprintf("%6.2f%%", float64(s.Current)/float64(s.Total)*100)
				}, decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 60, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		size := "unknown size"
		if fb.size > 0 {
			size = humanize.IBytes(uint64(fb.size))
		}
		fmt.Fprintf(u.out, "Downloading %s (%s)\n", fb.label, size)
	}

	u.bars.Store(index, fb)
	return fb.update
}

// update follows the engine's byte counter. A counter that goes backwards
// means the engine started a new attempt.
func (f *fileBar) update(written, total int64) {
	if written < f.lastBytes {
		f.retries.Add(1)
		f.lastBytes = 0
		if f.bar != nil {
			f.bar.SetCurrent(0)
		}
	}
	if f.bar == nil {
		f.lastBytes = written
		return
	}
	if total > 0 && total != f.size {
		f.size = total
		f.bar.SetTotal(total, false)
	}

	const updateInterval = 300 * time.Millisecond
	now := time.Now()
	if elapsed := now.Sub(f.lastUpdate); elapsed >= updateInterval {
		f.bar.EwmaIncrBy(int(written-f.lastBytes), elapsed)
		f.lastBytes = written
		f.lastUpdate = now
	}
}

// Finish completes the bar for index and prints a result line above the
// bars.
func (u *DownloadUI) Finish(index int, o download.Outcome) {
	v, ok := u.bars.LoadAndDelete(index)
	if !ok {
		return
	}
	fb := v.(*fileBar)
	u.completed.Add(1)

	var msg string
	switch o.Status {
	case download.StatusDownloaded:
		if fb.bar != nil {
			fb.bar.SetCurrent(o.Bytes)
			fb.bar.SetTotal(o.Bytes, true)
		}
		msg = fmt.Sprintf("✓ %s (%s, %s)\n",
			truncatePath(o.Item.Path(), 3),
			humanize.IBytes(uint64(o.Bytes)),
			o.Duration.Round(100*time.Millisecond))
	case download.StatusAlreadyComplete:
		if fb.bar != nil {
			fb.bar.SetTotal(-1, true)
		}
		msg = fmt.Sprintf("= %s (already complete)\n", truncatePath(o.Item.Path(), 3))
	default:
		u.failed.Add(1)
		if fb.bar != nil {
			fb.bar.Abort(true)
		}
		msg = fmt.Sprintf("✗ %s: %s\n", truncatePath(o.Item.Path(), 3), o.Reason)
	}

	_, _ = io.WriteString(u.Writer(), msg)
}

// Wait blocks until every bar has been completed or aborted.
func (u *DownloadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns a writer that prints above the bars when they are drawn.
func (u *DownloadUI) Writer() io.Writer {
	if u.progress != nil {
		return u.progress
	}
	return u.out
}

// Completed returns the number of finished items and how many of them failed.
func (u *DownloadUI) Completed() (done, failed int) {
	return int(u.completed.Load()), int(u.failed.Load())
}

// IsTerminal reports whether bars are being drawn.
func (u *DownloadUI) IsTerminal() bool {
	return u.isTerminal
}

// truncatePath keeps the last maxComponents elements of path.
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.ToSlash(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
