// Package config handles configuration loading and management for the
// learning core. It supports XDG config paths, environment variable
// overrides, and torn-read-free reloads.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Config is an immutable snapshot of the learning core configuration.
// Readers always see a complete snapshot; Reload swaps the whole struct
// atomically.
type Config struct {
	Mode        Mode   `mapstructure:"-"`
	StoragePath string `mapstructure:"storage_path"`

	// Resource ceilings.
	MaxMemoryMB   int     `mapstructure:"max_memory_mb"`
	MaxStorageMB  int     `mapstructure:"max_storage_mb"`
	MaxCPUPercent float64 `mapstructure:"max_cpu_percent"`

	// Failure isolation.
	MaxErrorsPerOperation int           `mapstructure:"max_errors_per_operation"`
	CircuitBreakerTimeout time.Duration `mapstructure:"circuit_breaker_timeout"`

	// Mode-scaled capacity ceilings.
	PatternCacheCapacity int `mapstructure:"pattern_cache_capacity"`
	EventWindowSize      int `mapstructure:"event_window_size"`
	WriteQueueSize       int `mapstructure:"write_queue_size"`
	WriteWorkers         int `mapstructure:"write_workers"`

	// Insight generation.
	MinSampleSize int `mapstructure:"min_sample_size"`

	// Feature toggles.
	Features map[string]bool `mapstructure:"features"`
}

// Feature names understood by the learning core.
const (
	FeatureAnalytics = "analytics"
	FeatureKnowledge = "knowledge"
	FeaturePatterns  = "patterns"
	FeatureTrends    = "trends"
)

// Controller resolves the operating mode and feature flags and serves them
// to concurrent readers while reloads are in progress.
type Controller struct {
	path string // explicit config file path, may be empty

	snapshot atomic.Pointer[Config]

	mu sync.Mutex // serializes Reload
}

// Load builds a Controller from the config file (explicit path, or the XDG
// default location if empty) plus VIGIL_* environment overrides.
func Load(path string) (*Controller, error) {
	c := &Controller{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Snapshot returns the current configuration snapshot. The returned value
// must be treated as read-only.
func (c *Controller) Snapshot() *Config {
	return c.snapshot.Load()
}

// Mode returns the current operating mode.
func (c *Controller) Mode() Mode {
	return c.Snapshot().Mode
}

// IsFeatureEnabled reports whether a named feature toggle is on. Features
// default to enabled when the toggle is unset.
func (c *Controller) IsFeatureEnabled(name string) bool {
	cfg := c.Snapshot()
	if v, ok := cfg.Features[name]; ok {
		return v
	}
	return true
}

// AnalyticsActive reports whether the analytics service should process
// events under the current mode and toggles. Conservative mode runs pattern
// memory only.
func (c *Controller) AnalyticsActive() bool {
	return c.Mode().AtLeast(ModeStandard) && c.IsFeatureEnabled(FeatureAnalytics)
}

// KnowledgeActive reports whether the knowledge base should process events.
func (c *Controller) KnowledgeActive() bool {
	return c.Mode().AtLeast(ModeStandard) && c.IsFeatureEnabled(FeatureKnowledge)
}

// PatternsActive reports whether pattern memory should process events.
func (c *Controller) PatternsActive() bool {
	return c.Mode().Enabled() && c.IsFeatureEnabled(FeaturePatterns)
}

// Reload re-reads configuration and swaps the snapshot atomically. Readers
// concurrent with a reload see either the old snapshot or the new one,
// never a mix.
func (c *Controller) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, err := read(c.path)
	if err != nil {
		return err
	}
	c.snapshot.Store(cfg)
	return nil
}

// read loads one configuration snapshot from file + environment.
func read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(userConfigDir())
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading user config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("VIGIL")
	v.AutomaticEnv()
	v.BindEnv("learning_mode", "VIGIL_LEARNING_MODE")
	v.BindEnv("storage_path", "VIGIL_STORAGE_PATH")
	v.BindEnv("max_memory_mb", "VIGIL_MAX_MEMORY_MB")
	v.BindEnv("max_storage_mb", "VIGIL_MAX_STORAGE_MB")
	v.BindEnv("max_cpu_percent", "VIGIL_MAX_CPU_PERCENT")
	v.BindEnv("max_errors_per_operation", "VIGIL_MAX_ERRORS_PER_OPERATION")
	v.BindEnv("circuit_breaker_timeout", "VIGIL_CIRCUIT_BREAKER_TIMEOUT")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	mode, err := ParseMode(v.GetString("learning_mode"))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	cfg.StoragePath = os.ExpandEnv(cfg.StoragePath)

	// Capacity ceilings scale with the mode unless explicitly set.
	if !v.InConfig("pattern_cache_capacity") {
		cfg.PatternCacheCapacity = mode.scale(cfg.PatternCacheCapacity)
	}
	if !v.InConfig("event_window_size") {
		cfg.EventWindowSize = mode.scale(cfg.EventWindowSize)
	}
	if !v.InConfig("write_queue_size") {
		cfg.WriteQueueSize = mode.scale(cfg.WriteQueueSize)
	}

	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("learning_mode", "disabled")
	v.SetDefault("storage_path", defaultStoragePath())

	v.SetDefault("max_memory_mb", 512)
	v.SetDefault("max_storage_mb", 256)
	v.SetDefault("max_cpu_percent", 80.0)

	v.SetDefault("max_errors_per_operation", 5)
	v.SetDefault("circuit_breaker_timeout", "5m")

	v.SetDefault("pattern_cache_capacity", 1000)
	v.SetDefault("event_window_size", 10000)
	v.SetDefault("write_queue_size", 1024)
	v.SetDefault("write_workers", 2)

	v.SetDefault("min_sample_size", 5)
}

// defaultStoragePath returns the XDG data directory for learning storage.
func defaultStoragePath() string {
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return filepath.Join(dataDir, "vigil", "learning")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".vigil", "learning")
	}
	return filepath.Join(home, ".local", "share", "vigil", "learning")
}

// userConfigDir returns the XDG config directory for vigil.
func userConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vigil")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "vigil")
	}
	return filepath.Join(home, ".config", "vigil")
}
