// Package config loads the optional run configuration file.
package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

// Config is the top-level run configuration. Every field has a usable
// default; command-line flags override file values.
type Config struct {
	LogLevel     string   `yaml:"log_level"`
	LookbackDays int      `yaml:"lookback_days"`
	Keywords     []string `yaml:"keywords"`
	Destination  string   `yaml:"destination"`
	LogDir       string   `yaml:"log_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		LookbackDays: 30,
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive")
	}
	return nil
}
