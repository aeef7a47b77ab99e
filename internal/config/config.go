// Package config loads the qflow YAML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qflow-dev/qflow/internal/sched/sshexec"
)

// Config is the top-level qflow configuration.
type Config struct {
	// Server is the batch server jobs are routed to; empty uses the login
	// node's default server.
	Server string `yaml:"server"`
	// Queue is the default destination queue; empty uses the server default.
	Queue string `yaml:"queue"`
	// Scheduler selects the client variant: "sshexec" or "none".
	Scheduler string `yaml:"scheduler"`
	// SSH configures the login node for the sshexec variant.
	SSH sshexec.Config `yaml:"ssh"`
	// StorePath is the SQLite file recording submitted batches.
	StorePath string `yaml:"store_path"`
}

// DefaultPath resolves $XDG_CONFIG_HOME/qflow/config.yaml, falling back to
// ~/.config/qflow/config.yaml.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "qflow", "config.yaml")
}

// Load reads YAML configuration from path, or from the default location when
// path is empty.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		path = DefaultPath()
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Scheduler: "sshexec",
		SSH: sshexec.Config{
			RemoteTmp: "/tmp",
			Timeout:   30 * time.Second,
		},
		StorePath: filepath.Join(filepath.Dir(DefaultPath()), "qflow.db"),
	}
}

// Write serializes cfg to path, creating parent directories as needed.
func Write(path string, cfg Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
