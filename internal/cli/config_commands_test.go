package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/studiopipe/kitsu-fetch/internal/config"
)

// TestConfigPath tests the config path command
func TestConfigPath(t *testing.T) {
	cmd := newConfigPathCmd()
	if cmd == nil {
		t.Fatal("newConfigPathCmd() returned nil")
	}

	if cmd.Use != "path" {
		t.Errorf("Expected Use='path', got '%s'", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("Short description is empty")
	}
}

// TestConfigShow tests the config show command
func TestConfigShow(t *testing.T) {
	cmd := newConfigShowCmd()
	if cmd == nil {
		t.Fatal("newConfigShowCmd() returned nil")
	}

	if cmd.Use != "show" {
		t.Errorf("Expected Use='show', got '%s'", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("Short description is empty")
	}

	if cmd.RunE == nil {
		t.Error("RunE function is nil")
	}
}

// TestConfigInit tests the config init command structure
func TestConfigInit(t *testing.T) {
	cmd := newConfigInitCmd()
	if cmd == nil {
		t.Fatal("newConfigInitCmd() returned nil")
	}

	if cmd.Use != "init" {
		t.Errorf("Expected Use='init', got '%s'", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("Short description is empty")
	}

	if cmd.Flags().Lookup("force") == nil {
		t.Error("--force flag not registered")
	}
}

// TestConfigCmd tests the config command group
func TestConfigCmd(t *testing.T) {
	cmd := newConfigCmd()
	want := map[string]bool{"init": false, "show": false, "path": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

// TestConfigInitWritesFile runs the wizard against scripted answers
func TestConfigInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	prev := cfgFile
	cfgFile = path
	defer func() { cfgFile = prev }()

	in := strings.Join([]string{
		"https://kitsu.studio.test",
		"artist@studio.test",
		"/data/shows",
		"8",
	}, "\n") + "\n"

	cmd := newConfigInitCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIBase() != "https://kitsu.studio.test/api" {
		t.Errorf("APIBase = %q", cfg.APIBase())
	}
	if cfg.Email != "artist@studio.test" {
		t.Errorf("Email = %q", cfg.Email)
	}
	if cfg.DownloadRoot != "/data/shows" {
		t.Errorf("DownloadRoot = %q", cfg.DownloadRoot)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
}

// TestConfigInitKeepsExisting refuses to overwrite without --force
func TestConfigInitKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte("[kitsu]\nhost = https://old.test\n"), 0600); err != nil {
		t.Fatal(err)
	}
	prev := cfgFile
	cfgFile = path
	defer func() { cfgFile = prev }()

	cmd := newConfigInitCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("expected already-exists notice, got %q", out.String())
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "old.test") {
		t.Error("existing config was overwritten")
	}
}

func TestRunConfigWizardInvalidWorkers(t *testing.T) {
	in := "\nkitsu.studio.test\n\n\n99\n"
	var out bytes.Buffer
	cfg, err := runConfigWizard(newPrompter(strings.NewReader(in), &out))
	if err != nil {
		t.Fatalf("wizard failed: %v", err)
	}
	if !strings.Contains(out.String(), "host is required") {
		t.Error("empty host was not rejected")
	}
	if cfg.Host == "" {
		t.Error("host not set after retry")
	}
	if cfg.Workers != config.DefaultConfig().Workers {
		t.Errorf("Workers = %d, want default", cfg.Workers)
	}
	if !strings.Contains(out.String(), "Invalid value") {
		t.Error("out-of-range workers not reported")
	}
}

func TestPrintConfigMasksSecrets(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Host = "https://kitsu.studio.test"
	cfg.Password = "hunter2"
	cfg.Mirror.Provider = "s3"
	cfg.Mirror.Bucket = "renders"
	cfg.Mirror.SecretAccessKey = "very-secret"

	var out bytes.Buffer
	printConfig(&out, cfg)
	s := out.String()
	if strings.Contains(s, "hunter2") || strings.Contains(s, "very-secret") {
		t.Errorf("secret leaked in output:\n%s", s)
	}
	if !strings.Contains(s, "Password: <set>") {
		t.Error("password not reported as set")
	}
	if !strings.Contains(s, "renders") {
		t.Error("mirror bucket missing")
	}
}
