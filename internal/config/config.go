// Package config loads the application configuration: a YAML file merged over
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/intentflow/intentflow/internal/pipeline"
	"github.com/intentflow/intentflow/internal/store"
)

// Config is the full application configuration.
type Config struct {
	Store    *store.Config    `yaml:"store"`
	Pipeline *pipeline.Config `yaml:"pipeline"`

	// Session lifecycle
	SessionTTL     time.Duration `yaml:"session_ttl"`
	ReaperInterval time.Duration `yaml:"reaper_interval"`

	// Optional tiers
	EnableRedis  bool `yaml:"enable_redis"`
	EnableDgraph bool `yaml:"enable_dgraph"`

	Debug bool `yaml:"debug"`
}

// DefaultConfig returns settings suitable for local interactive use.
func DefaultConfig() *Config {
	return &Config{
		Store:          store.DefaultConfig(),
		Pipeline:       pipeline.DefaultConfig(),
		SessionTTL:     30 * time.Minute,
		ReaperInterval: 5 * time.Minute,
	}
}

// Load reads a YAML file and merges it over the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Store == nil {
		cfg.Store = store.DefaultConfig()
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = pipeline.DefaultConfig()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = 5 * time.Minute
	}
	return cfg, nil
}
