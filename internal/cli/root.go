// Package cli provides the command-line interface for kitsu-fetch.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/version"
)

var (
	// Global flags
	cfgFile  string
	hostFlag string
	verbose  bool
	debug    bool
	logFile  string

	// Global logger, tagged with the run id
	logger *logging.Logger
	runID  string

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kitsu-fetch",
		Short: "Download the media of a Kitsu production to a local tree",
		Long: `kitsu-fetch ` + version.Version + ` - Built: ` + version.BuildTime + `
Scans a Kitsu project (episodes, sequences, shots, assets and their tasks)
and downloads previews, output files and working files into

  <root>/Kitsu_<project>/<episode>/<sequence>/<shot>/<task type>/
  <root>/Kitsu_<project>/Assets/<asset type>/<asset>/<task type>/

Downloads try every known URL shape, validate sizes and resume cleanly:
files already complete on disk are never fetched again.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			runID = uuid.NewString()
			logger = logging.NewDefaultCLILogger().WithField("run", runID[:8])
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
			if logFile != "" {
				if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
					return fmt.Errorf("failed to create log directory: %w", err)
				}
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				logger.TeeToFile(f)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default ~/.config/kitsu-fetch/config.ini)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Kitsu host, e.g. https://kitsu.example.com (overrides config and KITSU_HOST)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON log lines to this file")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so a second Ctrl+C while cleaning up does not kill the process
	// before temp files are removed.
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, cancelling downloads...\n", sig)
				fmt.Fprintf(os.Stderr, "   Please wait for cleanup to complete.\n\n")
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)
	cancelFunc()

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newProjectsCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig merges the config file, the environment and the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if hostFlag != "" {
		cfg.Host = hostFlag
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kitsu-fetch %s (built %s)\n", version.Version, version.BuildTime)
		},
	}
}
