// Package config loads treecache settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/treecache/internal/logging"
)

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SSHConfig configures remote trees.
type SSHConfig struct {
	// Port is the default SSH port.
	Port int `yaml:"port"`

	// Batch disables password and host key prompts.
	Batch bool `yaml:"batch"`

	// Timeout bounds connection setup.
	Timeout time.Duration `yaml:"timeout"`

	// ScanTimeout bounds a whole remote walk (0 = none).
	ScanTimeout time.Duration `yaml:"scan_timeout"`
}

// Config represents treecache configuration options.
type Config struct {
	// Concurrency is the number of parallel directory listers (0 = 3 x GOMAXPROCS).
	Concurrency int `yaml:"concurrency"`

	// FollowSymlinks descends into symlinked directories.
	FollowSymlinks bool `yaml:"follow_symlinks"`

	Log LogConfig `yaml:"log"`
	SSH SSHConfig `yaml:"ssh"`

	// Metrics dumps Prometheus metrics to stderr on exit.
	Metrics bool `yaml:"metrics"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
		SSH: SSHConfig{
			Port:    22,
			Timeout: 15 * time.Second,
		},
	}
}

// DefaultPath returns the user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "treecache", "config.yaml")
}

// Load reads configuration from path on top of the defaults. A missing
// file yields the defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are read as strings so errors name the offending field.
	var raw struct {
		Concurrency    *int      `yaml:"concurrency"`
		FollowSymlinks *bool     `yaml:"follow_symlinks"`
		Log            LogConfig `yaml:"log"`
		SSH            struct {
			Port        *int   `yaml:"port"`
			Batch       *bool  `yaml:"batch"`
			Timeout     string `yaml:"timeout"`
			ScanTimeout string `yaml:"scan_timeout"`
		} `yaml:"ssh"`
		Metrics *bool `yaml:"metrics"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if raw.Concurrency != nil {
		cfg.Concurrency = *raw.Concurrency
	}
	if raw.FollowSymlinks != nil {
		cfg.FollowSymlinks = *raw.FollowSymlinks
	}
	if raw.Metrics != nil {
		cfg.Metrics = *raw.Metrics
	}
	if raw.Log.Level != "" {
		cfg.Log.Level = raw.Log.Level
	}
	if raw.Log.Format != "" {
		cfg.Log.Format = raw.Log.Format
	}
	if raw.Log.Output != "" {
		cfg.Log.Output = raw.Log.Output
	}
	if raw.SSH.Port != nil {
		cfg.SSH.Port = *raw.SSH.Port
	}
	if raw.SSH.Batch != nil {
		cfg.SSH.Batch = *raw.SSH.Batch
	}
	if raw.SSH.Timeout != "" {
		d, err := time.ParseDuration(raw.SSH.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid ssh.timeout %q: %w", raw.SSH.Timeout, err)
		}
		cfg.SSH.Timeout = d
	}
	if raw.SSH.ScanTimeout != "" {
		d, err := time.ParseDuration(raw.SSH.ScanTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid ssh.scan_timeout %q: %w", raw.SSH.ScanTimeout, err)
		}
		cfg.SSH.ScanTimeout = d
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log.format %q, must be one of: json, console", c.Log.Format)
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port must be between 1 and 65535, got %d", c.SSH.Port)
	}
	if c.SSH.Timeout <= 0 {
		return fmt.Errorf("ssh.timeout must be > 0, got %v", c.SSH.Timeout)
	}
	if c.SSH.ScanTimeout < 0 {
		return fmt.Errorf("ssh.scan_timeout must be >= 0, got %v", c.SSH.ScanTimeout)
	}
	return nil
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		OutputPath: c.Log.Output,
	}
}
