package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/studiopipe/kitsu-fetch/internal/download"
	"github.com/studiopipe/kitsu-fetch/internal/mirror"
	"github.com/studiopipe/kitsu-fetch/internal/models"
	"github.com/studiopipe/kitsu-fetch/internal/scan"
)

// maxListedFailures bounds the per-item failure listing.
const maxListedFailures = 50

func printScanSummary(w io.Writer, res *scan.Result) {
	counts := map[models.Category]int{}
	for _, item := range res.Queue {
		counts[item.Category]++
	}

	fmt.Fprintf(w, "\nScan of %s\n", res.Project.Name)
	fmt.Fprintf(w, "  Destination: %s\n", res.Root)
	fmt.Fprintf(w, "  Shots:       %s\n", humanize.Comma(int64(res.TotalShots)))
	fmt.Fprintf(w, "  Assets:      %s\n", humanize.Comma(int64(res.TotalAssets)))
	fmt.Fprintf(w, "  Files:       %s (%d previews, %d outputs, %d working files)\n",
		humanize.Comma(int64(len(res.Queue))),
		counts[models.CategoryPreview], counts[models.CategoryOutput], counts[models.CategoryWorking])
	fmt.Fprintf(w, "  Total size:  %s (estimated)\n", humanize.IBytes(uint64(res.TotalSize)))
	if n := res.Collisions.Renamed + res.Collisions.Duplicates; n > 0 {
		fmt.Fprintf(w, "  Collisions:  %d renamed, %d duplicates dropped\n", res.Collisions.Renamed, res.Collisions.Duplicates)
	}
	if len(res.Failures) > 0 {
		fmt.Fprintf(w, "  Skipped:     %d lookups failed (run with --verbose for details)\n", len(res.Failures))
	}
}

func printRunSummary(w io.Writer, s download.Summary, tally download.DiskTally, tallyErr error) {
	fmt.Fprintf(w, "\nDownload finished in %s\n", s.Duration.Round(time.Second))
	fmt.Fprintf(w, "  Succeeded:   %d of %d (%d downloaded, %d already complete)\n",
		s.Succeeded(), s.Total, s.Downloaded, s.AlreadyComplete)
	fmt.Fprintf(w, "  Failed:      %d\n", s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  Not started: %d (cancelled)\n", s.Skipped)
	}
	fmt.Fprintf(w, "  Transferred: %s\n", humanize.IBytes(uint64(s.Bytes)))
	if tallyErr != nil {
		fmt.Fprintf(w, "  On disk:     unknown (%v)\n", tallyErr)
	} else {
		fmt.Fprintf(w, "  On disk:     %s files, %s\n", humanize.Comma(int64(tally.Files)), humanize.IBytes(uint64(tally.Bytes)))
	}

	if len(s.Failures) == 0 {
		return
	}
	fmt.Fprintln(w, "\nFailed files:")
	for i, o := range s.Failures {
		if i == maxListedFailures {
			fmt.Fprintf(w, "  ... and %d more\n", len(s.Failures)-maxListedFailures)
			break
		}
		fmt.Fprintf(w, "  %s: %s\n", o.Item.Path(), o.Reason)
	}
}

func printMirrorSummary(w io.Writer, target string, r mirror.Result) {
	fmt.Fprintf(w, "\nMirror to %s: %d uploaded (%s), %d already current, %d failed\n",
		target, r.Uploaded, humanize.IBytes(uint64(r.Bytes)), r.Skipped, r.Failed)
	for i, f := range r.Failures {
		if i == maxListedFailures {
			fmt.Fprintf(w, "  ... and %d more\n", len(r.Failures)-maxListedFailures)
			break
		}
		fmt.Fprintf(w, "  %s: %v\n", f.Path, f.Err)
	}
}
