// Package config provides configuration management for kitsu-fetch.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
)

// Config is the merged configuration of one run: defaults, then the INI
// file, then environment, then command-line flags.
type Config struct {
	// Tracking service
	Host     string
	Email    string
	Password string

	// Download behaviour
	DownloadRoot      string
	Workers           int
	AttemptsPerURL    int
	ValidationBackoff time.Duration
	NetworkBackoff    time.Duration
	ErrorBackoff      time.Duration
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	IncludePreview    bool
	IncludeOutput     bool
	IncludeWorking    bool

	// Acceptance is the default size policy; Overrides replaces it for a
	// single category ("preview", "output", "working").
	Acceptance Acceptance
	Overrides  map[string]Acceptance

	// API client
	APIRatePerSec float64
	APIBurst      int
	APIRetryMax   int

	// Proxy
	ProxyMode     string // no-proxy, system, basic, ntlm
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string
	ProxyWarmup   bool

	Mirror MirrorConfig
}

// Acceptance holds the size heuristics applied to a finished download.
type Acceptance struct {
	LargeFileFloor int64
	MinUnknownSize int64
	MinRatio       float64
}

// MirrorConfig describes the optional post-download copy to object storage.
type MirrorConfig struct {
	Provider        string // none, s3, azure
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	AzureServiceURL string // account URL, SAS query allowed
	AzureContainer  string
	Workers         int
}

// Enabled reports whether a mirror provider is configured.
func (m MirrorConfig) Enabled() bool {
	p := strings.ToLower(m.Provider)
	return p != "" && p != "none"
}

// DefaultAcceptance returns the built-in size policy.
func DefaultAcceptance() Acceptance {
	return Acceptance{
		LargeFileFloor: constants.LargeFileFloor,
		MinUnknownSize: constants.MinUnknownSize,
		MinRatio:       constants.MinSizeRatio,
	}
}

// DefaultConfig returns a configuration populated with defaults.
func DefaultConfig() *Config {
	root := "Downloads"
	if home, err := os.UserHomeDir(); err == nil {
		root = filepath.Join(home, "Downloads")
	}
	return &Config{
		DownloadRoot:      root,
		Workers:           constants.DefaultWorkers,
		AttemptsPerURL:    constants.AttemptsPerURL,
		ValidationBackoff: constants.ValidationBackoff,
		NetworkBackoff:    constants.NetworkBackoff,
		ErrorBackoff:      constants.ErrorBackoff,
		ConnectTimeout:    constants.HTTPDialTimeout,
		ReadTimeout:       constants.HTTPReadTimeout,
		IncludePreview:    true,
		IncludeOutput:     true,
		IncludeWorking:    true,
		Acceptance:        DefaultAcceptance(),
		Overrides:         map[string]Acceptance{},
		APIRatePerSec:     constants.APIRatePerSec,
		APIBurst:          constants.APIBurst,
		APIRetryMax:       constants.APIRetryMax,
		ProxyMode:         "no-proxy",
		Mirror: MirrorConfig{
			Provider: "none",
			Workers:  constants.DefaultWorkers,
		},
	}
}

// ApplyEnv overlays KITSU_HOST, KITSU_EMAIL and KITSU_PASSWORD.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("KITSU_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("KITSU_EMAIL"); v != "" {
		c.Email = v
	}
	if v := os.Getenv("KITSU_PASSWORD"); v != "" {
		c.Password = v
	}
}

// AcceptanceFor returns the policy for a category, honoring overrides.
func (c *Config) AcceptanceFor(category string) Acceptance {
	if a, ok := c.Overrides[category]; ok {
		return a
	}
	return c.Acceptance
}

// APIBase returns the normalized tracking-service API root, always ending in
// "/api" and without a trailing slash.
func (c *Config) APIBase() string {
	return NormalizeHost(c.Host)
}

// NormalizeHost trims trailing slashes and appends "/api" when missing.
func NormalizeHost(host string) string {
	h := strings.TrimRight(strings.TrimSpace(host), "/")
	if h == "" {
		return ""
	}
	if !strings.HasSuffix(h, "/api") {
		h += "/api"
	}
	return h
}

// Validate checks the settings needed to talk to the tracking service and
// run downloads.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("kitsu host is required (set [kitsu] host, KITSU_HOST or --host)")
	}
	u, err := url.Parse(c.APIBase())
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("kitsu host %q is not an http(s) URL", c.Host)
	}
	if c.Workers < 1 || c.Workers > constants.MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", constants.MaxWorkers, c.Workers)
	}
	if c.AttemptsPerURL < 1 {
		return fmt.Errorf("attempts_per_url must be at least 1, got %d", c.AttemptsPerURL)
	}
	if err := c.Acceptance.validate("acceptance"); err != nil {
		return err
	}
	for name, a := range c.Overrides {
		if err := a.validate("acceptance." + name); err != nil {
			return err
		}
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return fmt.Errorf("unsupported proxy mode: %s", c.ProxyMode)
	}
	switch strings.ToLower(c.Mirror.Provider) {
	case "", "none":
	case "s3":
		if c.Mirror.Bucket == "" {
			return errors.New("mirror provider s3 requires [mirror] bucket")
		}
	case "azure":
		if c.Mirror.AzureServiceURL == "" || c.Mirror.AzureContainer == "" {
			return errors.New("mirror provider azure requires [mirror] azure_service_url and azure_container")
		}
	default:
		return fmt.Errorf("unsupported mirror provider: %s", c.Mirror.Provider)
	}
	return nil
}

func (a Acceptance) validate(section string) error {
	if a.MinRatio <= 0 || a.MinRatio > 1 {
		return fmt.Errorf("[%s] min_ratio must be in (0, 1], got %v", section, a.MinRatio)
	}
	if a.LargeFileFloor < 0 || a.MinUnknownSize < 0 {
		return fmt.Errorf("[%s] size floors cannot be negative", section)
	}
	return nil
}
