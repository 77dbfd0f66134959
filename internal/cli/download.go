package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/studiopipe/kitsu-fetch/internal/snapshot"
)

func newDownloadCmd() *cobra.Command {
	var (
		projectRef string
		list       bool
		yes        bool
		flags      runFlags
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a project from the saved scan",
		Long: `Download the queue saved by 'kitsu-fetch scan'. Files already complete on
disk are skipped, so an interrupted download can simply be run again.

Use --list to show the saved scans.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			logger := GetLogger()
			out := cmd.OutOrStdout()

			store, err := snapshot.DefaultStore()
			if err != nil {
				return err
			}
			snap, err := store.Load()
			if err != nil {
				return err
			}
			if len(snap.Data) == 0 {
				return errors.New("no saved scans; run 'kitsu-fetch scan' first")
			}
			if list || projectRef == "" {
				printSnapshot(out, snap)
				if list {
					return nil
				}
				return errors.New("choose a saved scan with --project")
			}

			entry, ok := snap.Find(projectRef)
			if !ok {
				return fmt.Errorf("no saved scan for %q", projectRef)
			}
			res := entry.ToScan()
			for _, f := range res.Failures {
				logger.Warn().Err(f).Msg("Dropped saved item with an unsafe destination")
			}
			printScanSummary(out, res)
			fmt.Fprintf(out, "  Scanned:     %s\n", humanize.Time(snap.Time()))

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p := newStdPrompter()
			if !yes {
				ok, err := p.confirm("\nStart download?")
				if err != nil {
					return err
				}
				if !ok {
					return errAborted
				}
			}

			client, err := login(ctx, cfg, p, logger)
			if err != nil {
				return err
			}
			return runDownload(ctx, cfg, client, res, flags, out, logger)
		},
	}

	cmd.Flags().StringVarP(&projectRef, "project", "p", "", "Saved scan: entry number, project id or name")
	cmd.Flags().BoolVar(&list, "list", false, "List saved scans and exit")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	flags.register(cmd)
	return cmd
}

func printSnapshot(w io.Writer, snap *snapshot.File) {
	fmt.Fprintf(w, "Saved scans (%s):\n", snap.DateStr)
	rows := make([][]string, 0, len(snap.Data))
	for _, k := range snap.Keys() {
		e := snap.Data[k]
		rows = append(rows, []string{k, e.Project.Name, humanize.Comma(int64(e.TotalFiles)), humanize.IBytes(uint64(e.TotalSize))})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Entry", "Project", "Files", "Size"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight}))
}
