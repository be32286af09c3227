// Package config loads the admin CLI's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL     = "http://127.0.0.1:8080"
	DefaultTimeout     = 10 * time.Second
	DefaultHistoryPath = "configs/cli_history"
)

// Config is the CLI's config file. PrettyJSON is a pointer so an
// explicit `prettyJSON: false` can be told apart from an absent key.
type Config struct {
	BaseURL     string        `yaml:"baseURL"`
	Timeout     time.Duration `yaml:"timeout"`
	HistoryPath string        `yaml:"historyPath"`
	PrettyJSON  *bool         `yaml:"prettyJSON"`
}

// Load reads and parses the config file at path, filling unset fields
// with defaults.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read cli config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse cli config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// Default is the config used when no file exists.
func Default() Config {
	var cfg Config
	cfg.fillDefaults()
	return cfg
}

func (c *Config) fillDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HistoryPath == "" {
		c.HistoryPath = DefaultHistoryPath
	}
	if c.PrettyJSON == nil {
		on := true
		c.PrettyJSON = &on
	}
}
