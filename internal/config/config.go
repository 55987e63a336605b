// Package config loads the promptforge runtime configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls template sourcing, optimization defaults, token counting,
// and analytics. Zero values fall back to Default() entries on Load.
type Config struct {
	// TemplateDir is a directory of XML template files (memory store).
	TemplateDir string `yaml:"template_dir"`

	// TemplateDB is a SQLite template database. Takes precedence over
	// TemplateDir when both are set.
	TemplateDB string `yaml:"template_db"`

	// CacheSize bounds the SQLite store's LRU cache.
	CacheSize int `yaml:"cache_size"`

	// Watch reloads TemplateDir on filesystem changes.
	Watch bool `yaml:"watch"`

	// DefaultLevel is the optimization level when the caller passes none.
	DefaultLevel string `yaml:"default_level"`

	// TokenModel selects the tiktoken encoding for size estimates.
	TokenModel string `yaml:"token_model"`

	// AnalyticsDB enables the SQLite analytics sink when set.
	AnalyticsDB string `yaml:"analytics_db"`

	// AnalyticsBuffer is the async sink's channel capacity.
	AnalyticsBuffer int `yaml:"analytics_buffer"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		CacheSize:       256,
		DefaultLevel:    "standard",
		TokenModel:      "gpt-4",
		AnalyticsBuffer: 128,
	}
}

// Load reads a YAML config file, layering it over defaults. A missing file
// is not an error; it yields Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects nonsensical settings.
func (c *Config) Validate() error {
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative, got %d", c.CacheSize)
	}
	if c.AnalyticsBuffer < 0 {
		return fmt.Errorf("analytics_buffer must be non-negative, got %d", c.AnalyticsBuffer)
	}
	switch c.DefaultLevel {
	case "", "minimal", "standard", "aggressive":
	default:
		return fmt.Errorf("unknown default_level %q", c.DefaultLevel)
	}
	return nil
}
