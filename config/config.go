// Package config loads the daemon configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete branchsnapd configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`
	// RepoRoot is the directory comparison repository paths are resolved
	// under. Requests may not escape it.
	RepoRoot string `yaml:"repo_root"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":8095"
	}
	if c.DBPath == "" {
		c.DBPath = "data/branchsnap.db"
	}
	if c.RepoRoot == "" {
		c.RepoRoot = "repos"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads path (optional — "" skips the file), applies environment
// overrides (BRANCHSNAP_LISTEN, BRANCHSNAP_DB, BRANCHSNAP_REPO_ROOT,
// LOG_LEVEL), then fills defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("BRANCHSNAP_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("BRANCHSNAP_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("BRANCHSNAP_REPO_ROOT"); v != "" {
		c.RepoRoot = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	c.defaults()
	return &c, nil
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
