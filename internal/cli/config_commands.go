package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kitsu-fetch configuration",
		Long: `Configuration management commands for kitsu-fetch.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for kitsu-fetch.

The configuration is saved to ~/.config/kitsu-fetch/config.ini (or --config).
The password is not stored; you are asked for it at login unless
KITSU_PASSWORD is set.

Use --force to overwrite an existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", path)
					fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := runConfigWizard(newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nConfiguration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// runConfigWizard asks for the common settings; Enter keeps the default.
func runConfigWizard(p *prompter) (*config.Config, error) {
	cfg := config.DefaultConfig()

	fmt.Fprintln(p.out, "Kitsu Fetch Configuration Setup")
	fmt.Fprintln(p.out, "===============================")
	fmt.Fprintln(p.out)

	for cfg.Host == "" {
		host, err := p.line("Kitsu host (e.g. https://kitsu.example.com): ")
		if err != nil {
			return nil, err
		}
		if host == "" {
			fmt.Fprintln(p.out, "  Error: host is required")
			continue
		}
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		cfg.Host = config.NormalizeHost(host)
	}

	email, err := p.line("Email (optional, asked at login when empty): ")
	if err != nil {
		return nil, err
	}
	cfg.Email = email

	root, err := p.line(fmt.Sprintf("Download root [%s]: ", cfg.DownloadRoot))
	if err != nil {
		return nil, err
	}
	if root != "" {
		cfg.DownloadRoot = root
	}

	workers, err := p.line(fmt.Sprintf("Concurrent downloads [%d]: ", cfg.Workers))
	if err != nil {
		return nil, err
	}
	if workers != "" {
		v, err := strconv.Atoi(workers)
		if err != nil || v < 1 || v > constants.MaxWorkers {
			fmt.Fprintf(p.out, "  Invalid value, keeping %d\n", cfg.Workers)
		} else {
			cfg.Workers = v
		}
	}

	return cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/kitsu-fetch/config.ini)
  2. Environment variables (KITSU_HOST, KITSU_EMAIL, KITSU_PASSWORD)
  3. Command-line flags (--host)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	secret := func(s string) string {
		if s == "" {
			return "<not set>"
		}
		return "<set>"
	}

	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Kitsu:")
	fmt.Fprintf(w, "  API base: %s\n", cfg.APIBase())
	fmt.Fprintf(w, "  Email:    %s\n", cfg.Email)
	fmt.Fprintf(w, "  Password: %s\n", secret(cfg.Password))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Download:")
	fmt.Fprintf(w, "  Root:             %s\n", cfg.DownloadRoot)
	fmt.Fprintf(w, "  Workers:          %d\n", cfg.Workers)
	fmt.Fprintf(w, "  Attempts per URL: %d\n", cfg.AttemptsPerURL)
	fmt.Fprintf(w, "  Backoff:          validation %s, network %s, other %s\n",
		cfg.ValidationBackoff, cfg.NetworkBackoff, cfg.ErrorBackoff)
	fmt.Fprintf(w, "  Timeouts:         connect %s, stall %s\n", cfg.ConnectTimeout, cfg.ReadTimeout)
	fmt.Fprintf(w, "  Categories:       preview=%t output=%t working=%t\n",
		cfg.IncludePreview, cfg.IncludeOutput, cfg.IncludeWorking)
	fmt.Fprintf(w, "  Acceptance:       floor %d, unknown-length min %d, ratio %v\n",
		cfg.Acceptance.LargeFileFloor, cfg.Acceptance.MinUnknownSize, cfg.Acceptance.MinRatio)
	for _, name := range []string{"preview", "output", "working"} {
		a, ok := cfg.Overrides[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "    %-8s        floor %d, unknown-length min %d, ratio %v\n",
			name, a.LargeFileFloor, a.MinUnknownSize, a.MinRatio)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Proxy:")
	fmt.Fprintf(w, "  Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(w, "  Host: %s:%d\n", cfg.ProxyHost, cfg.ProxyPort)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Mirror:")
	fmt.Fprintf(w, "  Provider: %s\n", cfg.Mirror.Provider)
	if cfg.Mirror.Enabled() {
		fmt.Fprintf(w, "  Bucket:   %s%s\n", cfg.Mirror.Bucket, cfg.Mirror.AzureContainer)
		fmt.Fprintf(w, "  Prefix:   %s\n", cfg.Mirror.Prefix)
		fmt.Fprintf(w, "  Secret:   %s\n", secret(cfg.Mirror.SecretAccessKey))
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "(file does not exist yet, run 'kitsu-fetch config init')")
			}
			return nil
		},
	}
}
