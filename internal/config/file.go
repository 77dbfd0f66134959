package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// The file uses INI format:
//
//	[kitsu]
//	host = https://kitsu.example.com/api
//	email = artist@example.com
//
//	[download]
//	root = /mnt/projects
//	workers = 4
//	attempts_per_url = 3
//	validation_backoff = 2s
//	network_backoff = 3s
//	error_backoff = 2s
//	connect_timeout = 30s
//	read_timeout = 10m
//	include_preview = true
//	include_output = true
//	include_working = true
//
//	[acceptance]
//	large_file_floor = 1000000
//	min_unknown_size = 100000
//	min_ratio = 0.95
//
//	[acceptance.working]
//	large_file_floor = 0
//	min_unknown_size = 1
//
//	[api]
//	rate_per_sec = 10
//	burst = 20
//	retry_max = 3
//
//	[proxy]
//	mode = no-proxy
//
//	[mirror]
//	provider = none

// Load reads the INI file at path on top of DefaultConfig. A missing file is
// not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	kitsu := f.Section("kitsu")
	cfg.Host = kitsu.Key("host").MustString(cfg.Host)
	cfg.Email = kitsu.Key("email").MustString(cfg.Email)
	cfg.Password = kitsu.Key("password").String()

	dl := f.Section("download")
	cfg.DownloadRoot = expandHome(dl.Key("root").MustString(cfg.DownloadRoot))
	cfg.Workers = dl.Key("workers").MustInt(cfg.Workers)
	cfg.AttemptsPerURL = dl.Key("attempts_per_url").MustInt(cfg.AttemptsPerURL)
	cfg.ValidationBackoff = dl.Key("validation_backoff").MustDuration(cfg.ValidationBackoff)
	cfg.NetworkBackoff = dl.Key("network_backoff").MustDuration(cfg.NetworkBackoff)
	cfg.ErrorBackoff = dl.Key("error_backoff").MustDuration(cfg.ErrorBackoff)
	cfg.ConnectTimeout = dl.Key("connect_timeout").MustDuration(cfg.ConnectTimeout)
	cfg.ReadTimeout = dl.Key("read_timeout").MustDuration(cfg.ReadTimeout)
	cfg.IncludePreview = dl.Key("include_preview").MustBool(cfg.IncludePreview)
	cfg.IncludeOutput = dl.Key("include_output").MustBool(cfg.IncludeOutput)
	cfg.IncludeWorking = dl.Key("include_working").MustBool(cfg.IncludeWorking)

	cfg.Acceptance = readAcceptance(f.Section("acceptance"), cfg.Acceptance)
	for _, c := range models.Categories {
		name := "acceptance." + string(c)
		if f.HasSection(name) {
			cfg.Overrides[string(c)] = readAcceptance(f.Section(name), cfg.Acceptance)
		}
	}

	api := f.Section("api")
	cfg.APIRatePerSec = api.Key("rate_per_sec").MustFloat64(cfg.APIRatePerSec)
	cfg.APIBurst = api.Key("burst").MustInt(cfg.APIBurst)
	cfg.APIRetryMax = api.Key("retry_max").MustInt(cfg.APIRetryMax)

	proxy := f.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	mirror := f.Section("mirror")
	cfg.Mirror.Provider = mirror.Key("provider").MustString(cfg.Mirror.Provider)
	cfg.Mirror.Bucket = mirror.Key("bucket").String()
	cfg.Mirror.Region = mirror.Key("region").String()
	cfg.Mirror.Endpoint = mirror.Key("endpoint").String()
	cfg.Mirror.Prefix = mirror.Key("prefix").String()
	cfg.Mirror.AccessKeyID = mirror.Key("access_key_id").String()
	cfg.Mirror.SecretAccessKey = mirror.Key("secret_access_key").String()
	cfg.Mirror.AzureServiceURL = mirror.Key("azure_service_url").String()
	cfg.Mirror.AzureContainer = mirror.Key("azure_container").String()
	cfg.Mirror.Workers = mirror.Key("workers").MustInt(cfg.Mirror.Workers)

	return cfg, nil
}

func readAcceptance(sec *ini.Section, base Acceptance) Acceptance {
	return Acceptance{
		LargeFileFloor: sec.Key("large_file_floor").MustInt64(base.LargeFileFloor),
		MinUnknownSize: sec.Key("min_unknown_size").MustInt64(base.MinUnknownSize),
		MinRatio:       sec.Key("min_ratio").MustFloat64(base.MinRatio),
	}
}

// Save writes cfg to path. Passwords and secrets are only written when set.
// Creates parent directories if they don't exist.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f := ini.Empty()

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"kitsu", [][2]string{
			{"host", cfg.Host},
			{"email", cfg.Email},
			{"password", cfg.Password},
		}},
		{"download", [][2]string{
			{"root", cfg.DownloadRoot},
			{"workers", strconv.Itoa(cfg.Workers)},
			{"attempts_per_url", strconv.Itoa(cfg.AttemptsPerURL)},
			{"validation_backoff", cfg.ValidationBackoff.String()},
			{"network_backoff", cfg.NetworkBackoff.String()},
			{"error_backoff", cfg.ErrorBackoff.String()},
			{"connect_timeout", cfg.ConnectTimeout.String()},
			{"read_timeout", cfg.ReadTimeout.String()},
			{"include_preview", strconv.FormatBool(cfg.IncludePreview)},
			{"include_output", strconv.FormatBool(cfg.IncludeOutput)},
			{"include_working", strconv.FormatBool(cfg.IncludeWorking)},
		}},
		{"acceptance", acceptanceValues(cfg.Acceptance)},
		{"api", [][2]string{
			{"rate_per_sec", strconv.FormatFloat(cfg.APIRatePerSec, 'f', -1, 64)},
			{"burst", strconv.Itoa(cfg.APIBurst)},
			{"retry_max", strconv.Itoa(cfg.APIRetryMax)},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", portString(cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"password", cfg.ProxyPassword},
			{"no_proxy", cfg.NoProxy},
		}},
		{"mirror", [][2]string{
			{"provider", cfg.Mirror.Provider},
			{"bucket", cfg.Mirror.Bucket},
			{"region", cfg.Mirror.Region},
			{"endpoint", cfg.Mirror.Endpoint},
			{"prefix", cfg.Mirror.Prefix},
			{"access_key_id", cfg.Mirror.AccessKeyID},
			{"secret_access_key", cfg.Mirror.SecretAccessKey},
			{"azure_service_url", cfg.Mirror.AzureServiceURL},
			{"azure_container", cfg.Mirror.AzureContainer},
			{"workers", strconv.Itoa(cfg.Mirror.Workers)},
		}},
	}
	for _, c := range models.Categories {
		if a, ok := cfg.Overrides[string(c)]; ok {
			sections = append(sections, struct {
				name   string
				values [][2]string
			}{"acceptance." + string(c), acceptanceValues(a)})
		}
	}

	for _, s := range sections {
		sec, err := f.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.values {
			if kv[1] == "" {
				continue
			}
			sec.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename so a crash never leaves a half-written config
	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// Restrictive permissions, the file may contain a password
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func acceptanceValues(a Acceptance) [][2]string {
	return [][2]string{
		{"large_file_floor", strconv.FormatInt(a.LargeFileFloor, 10)},
		{"min_unknown_size", strconv.FormatInt(a.MinUnknownSize, 10)},
		{"min_ratio", strconv.FormatFloat(a.MinRatio, 'f', -1, 64)},
	}
}

func portString(p int) string {
	if p == 0 {
		return ""
	}
	return strconv.Itoa(p)
}

// expandHome turns a leading "~" into the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
