package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
)

// ConfigDirectory returns the per-user configuration directory.
//
// Locations:
//   - Windows: %APPDATA%\kitsu-fetch
//   - Unix: ~/.config/kitsu-fetch
func ConfigDirectory() (string, error) {
	if runtime.GOOS != "windows" {
		// Prefer ~/.config on macOS too, which is where users look for CLI config
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", constants.AppName), nil
		}
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.AppName), nil
}

// DefaultConfigPath returns the default location of config.ini.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.ini"), nil
}

// ScanCachePath returns the location of the persisted scan snapshot.
func ScanCachePath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "scan_cache.json"), nil
}
