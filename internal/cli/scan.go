package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/scan"
	"github.com/studiopipe/kitsu-fetch/internal/snapshot"
)

func (f *includeFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noPreview, "no-preview", false, "Skip preview files")
	cmd.Flags().BoolVar(&f.noOutput, "no-output", false, "Skip output files")
	cmd.Flags().BoolVar(&f.noWorking, "no-working", false, "Skip working files")
}

func newScanCmd() *cobra.Command {
	var (
		projectRef string
		root       string
		inc        includeFlags
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a project and save the download queue",
		Long: `Scan one project and save its download queue to the scan cache
(~/.config/kitsu-fetch/scan_cache.json), so 'kitsu-fetch download' can
replay it later without walking the tracking service again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			logger := GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if root != "" {
				cfg.DownloadRoot = root
			}

			p := newStdPrompter()
			client, err := login(ctx, cfg, p, logger)
			if err != nil {
				return err
			}
			idx, project, err := selectProject(ctx, client, projectRef, p)
			if err != nil {
				return err
			}

			res, err := scanProject(ctx, cfg, client, project, inc, logger)
			if err != nil {
				return err
			}
			printScanSummary(cmd.OutOrStdout(), res)

			path, err := saveScan(idx, res, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSaved scan to %s (entry %d)\n", path, idx)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectRef, "project", "p", "", "Project number, id or name (prompted when omitted)")
	cmd.Flags().StringVar(&root, "root", "", "Download root (default from config)")
	inc.register(cmd)
	return cmd
}

// saveScan stores res under idx in the scan cache and returns its path.
func saveScan(idx int, res *scan.Result, logger *logging.Logger) (string, error) {
	store, err := snapshot.DefaultStore()
	if err != nil {
		return "", err
	}
	snap, err := store.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("Replacing unreadable scan cache")
		snap = snapshot.New(runID, time.Now())
	}
	snap.RunID = runID
	snap.Put(idx, snapshot.FromScan(res, filepath.Dir(res.Root)))
	if err := store.Save(snap, time.Now()); err != nil {
		return "", err
	}
	return store.Path(), nil
}
