package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/branchsnap/branchsnap/config"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{"BRANCHSNAP_LISTEN", "BRANCHSNAP_DB", "BRANCHSNAP_REPO_ROOT", "LOG_LEVEL"} {
		t.Setenv(name, "")
	}
	c, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Listen != ":8095" || c.DBPath != "data/branchsnap.db" || c.RepoRoot != "repos" || c.LogLevel != "info" {
		t.Fatalf("defaults = %+v", c)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "listen: \":9000\"\ndb_path: /var/lib/bs.db\nrepo_root: /srv/repos\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Listen != ":9000" || c.DBPath != "/var/lib/bs.db" || c.RepoRoot != "/srv/repos" {
		t.Fatalf("config = %+v", c)
	}
	if c.SlogLevel() != slog.LevelDebug {
		t.Fatalf("slog level = %v", c.SlogLevel())
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BRANCHSNAP_LISTEN", ":9100")
	t.Setenv("LOG_LEVEL", "warn")

	c, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Listen != ":9100" {
		t.Fatalf("listen = %q, env override lost", c.Listen)
	}
	if c.SlogLevel() != slog.LevelWarn {
		t.Fatalf("slog level = %v", c.SlogLevel())
	}
}

func TestLoadBadFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
