// Package config handles the bannerhound service configuration from a
// YAML file with defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	// Environment selects the adaptive profile: production, development.
	Environment string `yaml:"environment"`

	// Vocab is an optional override path for the vocabulary tables.
	Vocab string `yaml:"vocab"`

	Adaptive  AdaptiveConfig  `yaml:"adaptive"`
	Store     StoreConfig     `yaml:"store"`
	Browser   BrowserConfig   `yaml:"browser"`
	Cascade   CascadeConfig   `yaml:"cascade"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Events    EventsConfig    `yaml:"events"`
	Maintain  MaintainConfig  `yaml:"maintain"`
}

// AdaptiveConfig controls the configuration provider.
type AdaptiveConfig struct {
	// Enabled is the adaptive-mode toggle. Default: on.
	Enabled *bool         `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Limit   int           `yaml:"limit"`
}

// StoreConfig controls the pattern store.
type StoreConfig struct {
	Path          string        `yaml:"path"`
	AutosaveEvery int           `yaml:"autosave_every"`
	MaxRate       float64       `yaml:"cleanup_max_rate"`
	MinAttempts   int           `yaml:"cleanup_min_attempts"`
	Retention     time.Duration `yaml:"cleanup_retention"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"`
	MemoryLimit     int64         `yaml:"memory_limit"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
	Headless        *bool         `yaml:"headless"`
	NavTimeout      time.Duration `yaml:"nav_timeout"`
	QueueDepth      int           `yaml:"queue_depth"`
}

// CascadeConfig controls extraction timings.
type CascadeConfig struct {
	ObserveWindow  time.Duration `yaml:"observe_window"`
	IdleCutoff     time.Duration `yaml:"idle_cutoff"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// RateLimitConfig controls the shared direct-call limiter.
type RateLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// EventsConfig controls the SQLite event log.
type EventsConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// MaintainConfig controls the maintenance scheduler.
type MaintainConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LoadFile reads a YAML configuration file. An empty path returns the
// defaults.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.Adaptive.Enabled == nil {
		t := true
		c.Adaptive.Enabled = &t
	}
	if c.Adaptive.TTL <= 0 {
		c.Adaptive.TTL = 5 * time.Minute
	}
	if c.Adaptive.Limit <= 0 {
		c.Adaptive.Limit = 20
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/patterns.json"
	}
	if c.Store.AutosaveEvery <= 0 {
		c.Store.AutosaveEvery = 50
	}
	if c.Store.Retention <= 0 {
		c.Store.Retention = 30 * 24 * time.Hour
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Cascade.ObserveWindow <= 0 {
		c.Cascade.ObserveWindow = 12 * time.Second
	}
	if c.Cascade.IdleCutoff <= 0 {
		c.Cascade.IdleCutoff = 4 * time.Second
	}
	if c.Cascade.RequestTimeout <= 0 {
		c.Cascade.RequestTimeout = 10 * time.Second
	}
	if c.Cascade.MaxRetries <= 0 {
		c.Cascade.MaxRetries = 2
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = 10
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Events.Path == "" {
		c.Events.Path = "data/events.db"
	}
	if c.Events.Retention <= 0 {
		c.Events.Retention = 30 * 24 * time.Hour
	}
	if c.Maintain.Interval <= 0 {
		c.Maintain.Interval = 10 * time.Minute
	}
}
