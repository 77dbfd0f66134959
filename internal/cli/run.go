package cli

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"

	"github.com/spf13/cobra"

	"github.com/studiopipe/kitsu-fetch/internal/api"
	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/diskspace"
	"github.com/studiopipe/kitsu-fetch/internal/download"
	"github.com/studiopipe/kitsu-fetch/internal/http"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/mirror"
	"github.com/studiopipe/kitsu-fetch/internal/progress"
	"github.com/studiopipe/kitsu-fetch/internal/scan"
)

// runFlags are the download options shared by download and fetch.
type runFlags struct {
	workers     int
	strictSpace bool
	noMirror    bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVarP(&f.workers, "workers", "w", 0, fmt.Sprintf("Concurrent downloads (default from config, max %d)", constants.MaxWorkers))
	flags.BoolVar(&f.strictSpace, "strict-space", false, "Abort when free disk space looks insufficient instead of warning")
	flags.BoolVar(&f.noMirror, "no-mirror", false, "Skip the configured object storage mirror")
}

// runDownload downloads res.Queue into res.Root, prints the final tally and
// mirrors the tree when configured. It returns an error when any file
// failed or the run was cancelled.
func runDownload(ctx context.Context, cfg *config.Config, client *api.Client, res *scan.Result, flags runFlags, out io.Writer, logger *logging.Logger) error {
	if len(res.Queue) == 0 {
		fmt.Fprintln(out, "Nothing to download.")
		return nil
	}

	lock, err := download.LockRoot(res.Root)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := diskspace.CheckAvailableSpace(res.Root, res.TotalSize, constants.DiskSpaceBufferPercent); err != nil {
		if flags.strictSpace {
			return err
		}
		logger.Warn().Err(err).Msg("Continuing despite low disk space")
	}

	httpClient, err := http.CreateOptimizedClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create download client: %w", err)
	}

	opts := download.OptionsFromConfig(cfg)
	opts.Client = httpClient
	opts.Host = client.BaseURL()
	opts.Authorize = client.Authorize
	opts.Logger = logger
	engine := download.NewEngine(opts)

	workers := cfg.Workers
	if flags.workers > 0 {
		workers = flags.workers
	}

	ui := progress.NewDownloadUI(len(res.Queue))
	if ui.IsTerminal() {
		prev := logger.Output()
		logger.SetOutput(ui.Writer())
		defer logger.SetOutput(prev)
	}

	runner := download.NewRunner(engine, workers, ui, logger)
	summary := runner.Run(ctx, res.Queue)
	ui.Wait()

	tally, tallyErr := download.Tally(res.Root)
	printRunSummary(out, summary, tally, tallyErr)

	if cfg.Mirror.Enabled() && !flags.noMirror && ctx.Err() == nil {
		if err := runMirror(ctx, cfg, httpClient, res.Root, summary.Outcomes, out, logger); err != nil {
			logger.Error().Err(err).Msg("Mirror failed")
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("download cancelled: %w", err)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Total)
	}
	return nil
}

func runMirror(ctx context.Context, cfg *config.Config, httpClient *nethttp.Client, root string, outcomes []download.Outcome, out io.Writer, logger *logging.Logger) error {
	up, err := mirror.New(ctx, cfg.Mirror, httpClient)
	if err != nil {
		return err
	}
	m := mirror.NewMirror(up, root, cfg.Mirror.Prefix, cfg.Mirror.Workers, logger)
	r := m.Run(ctx, outcomes)
	printMirrorSummary(out, up.Target(), r)
	return nil
}
