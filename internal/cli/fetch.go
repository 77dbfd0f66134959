package cli

import (
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var (
		projectRef string
		root       string
		yes        bool
		inc        includeFlags
		flags      runFlags
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Log in, scan a project and download it",
		Long: `Log in, choose a project, scan it, confirm and download everything into
<root>/Kitsu_<project>/. The scan is also saved to the scan cache.

Credentials come from the config file, KITSU_EMAIL / KITSU_PASSWORD or an
interactive prompt. Run again at any time: complete files are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			logger := GetLogger()
			out := cmd.OutOrStdout()

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
			printScanSummary(out, res)

			if _, err := saveScan(idx, res, logger); err != nil {
				logger.Warn().Err(err).Msg("Could not save scan cache")
			}

			if len(res.Queue) > 0 && !yes {
				ok, err := p.confirm("\nStart download?")
				if err != nil {
					return err
				}
				if !ok {
					return errAborted
				}
			}
			return runDownload(ctx, cfg, client, res, flags, out, logger)
		},
	}

	cmd.Flags().StringVarP(&projectRef, "project", "p", "", "Project number, id or name (prompted when omitted)")
	cmd.Flags().StringVar(&root, "root", "", "Download root (default from config)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	inc.register(cmd)
	flags.register(cmd)
	return cmd
}
