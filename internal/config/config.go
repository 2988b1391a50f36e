package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type LogCfg struct {
	File       string `yaml:"file" json:"file"`                 // Empty disables the run log
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`   // Rotate after this many megabytes
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`   // Rotated files to keep
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"` // Days to keep rotated files
}

type MetricsCfg struct {
	Textfile string `yaml:"textfile" json:"textfile"` // node_exporter textfile written after each run
}

type HistoryCfg struct {
	DatabasePath string `yaml:"database_path" json:"database_path"` // SQLite run history, empty disables
}

type SafetyCfg struct {
	Disable        bool     `yaml:"disable" json:"disable"`
	ProtectedPaths []string `yaml:"protected_paths" json:"protected_paths"` // Added to the built-in list
	AllowedRoots   []string `yaml:"allowed_roots" json:"allowed_roots"`     // Empty allows everything not protected
}

type Config struct {
	Jobs     int        `yaml:"jobs" json:"jobs"`           // Worker pool size
	Verbose  bool       `yaml:"verbose" json:"verbose"`     // Print each path before removing it
	Force    bool       `yaml:"force" json:"force"`         // Treat paths that vanished as removed
	FailFast bool       `yaml:"fail_fast" json:"fail_fast"` // Stop starting new work after the first failure
	Log      LogCfg     `yaml:"log" json:"log"`
	Metrics  MetricsCfg `yaml:"metrics" json:"metrics"`
	History  HistoryCfg `yaml:"history" json:"history"`
	Safety   SafetyCfg  `yaml:"safety" json:"safety"`
}

var (
	ErrInvalidJobs = errors.New("jobs must be a positive integer")
	errInvalidPath = errors.New("path must be absolute")
)

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	// Defaults cannot fail validation.
	_ = cfg.validateAndDefault()
	return cfg
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	// A zero value means "not set"; an explicit negative is rejected.
	if c.Jobs == 0 {
		c.Jobs = 1
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}

	for i, p := range c.Safety.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("safety.protected_paths: %w", err)
		}
		c.Safety.ProtectedPaths[i] = cp
	}
	for i, p := range c.Safety.AllowedRoots {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("safety.allowed_roots: %w", err)
		}
		c.Safety.AllowedRoots[i] = cp
	}

	return nil
}

// Validate checks settings that command-line overrides can also break
func (c *Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidJobs, c.Jobs)
	}
	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}
