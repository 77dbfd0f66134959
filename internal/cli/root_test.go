package cli

import (
	"testing"
)

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	for _, name := range []string{"projects", "scan", "download", "fetch", "config", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not found: %v", name, err)
			continue
		}
		if cmd.Short == "" {
			t.Errorf("%s: Short description is empty", name)
		}
	}
}

func TestRootPersistentFlags(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"config", "host", "verbose", "debug", "log-file"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag --%s not registered", name)
		}
	}
}

func TestRunFlagsRegistered(t *testing.T) {
	for _, cmd := range []struct {
		name  string
		flags []string
	}{
		{"fetch", []string{"project", "root", "yes", "workers", "strict-space", "no-mirror", "no-preview", "no-output", "no-working"}},
		{"download", []string{"project", "list", "yes", "workers", "strict-space", "no-mirror"}},
		{"scan", []string{"project", "root", "no-preview", "no-output", "no-working"}},
	} {
		root := NewRootCmd()
		AddCommands(root)
		sub, _, err := root.Find([]string{cmd.name})
		if err != nil {
			t.Fatalf("find %s: %v", cmd.name, err)
		}
		for _, f := range cmd.flags {
			if sub.Flags().Lookup(f) == nil {
				t.Errorf("%s: flag --%s not registered", cmd.name, f)
			}
		}
	}
}

func TestLoadConfigHostFlag(t *testing.T) {
	t.Setenv("KITSU_HOST", "https://env.test")
	prevCfg, prevHost := cfgFile, hostFlag
	cfgFile = t.TempDir() + "/missing.ini"
	hostFlag = "https://flag.test"
	defer func() { cfgFile, hostFlag = prevCfg, prevHost }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Host != "https://flag.test" {
		t.Errorf("Host = %q, want flag value", cfg.Host)
	}
}
