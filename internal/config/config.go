// Package config handles configuration loading and management for entgraph.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/entgraph/entgraph/pkg/models"
)

// Config holds all configuration for an exploration run.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Recursion RecursionConfig `mapstructure:"recursion"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Lanes     LanesConfig     `mapstructure:"lanes"`
	Cache     CacheConfig     `mapstructure:"cache"`
	State     StateConfig     `mapstructure:"state"`
}

// EngineConfig holds scheduler settings.
type EngineConfig struct {
	// MaxConcurrentTasks caps the number of tasks running at once
	// within a single session.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
	// SessionTimeLimit bounds one session's wall-clock time.
	SessionTimeLimit time.Duration `mapstructure:"session_time_limit"`
	// DebugLog is an optional path for the engine's debug log file.
	DebugLog string `mapstructure:"debug_log"`
}

// RetryConfig holds the task retry policy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `mapstructure:"max_retries"`
	// BaseDelay is the backoff delay before the first retry.
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// BackoffFactor multiplies the delay after each attempt.
	BackoffFactor float64 `mapstructure:"backoff_factor"`
}

// RecursionConfig holds recursion controller settings.
type RecursionConfig struct {
	// MaxDepth is the hard recursion ceiling (root = depth 0).
	MaxDepth int `mapstructure:"max_depth"`
	// SimilarityThreshold is the normalized-name similarity above which
	// two candidates are considered the same entity.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// CriteriaFile is an optional YAML file with per-depth rules.
	// When empty, built-in defaults apply.
	CriteriaFile string `mapstructure:"criteria_file"`
	// WatchCriteria enables hot-reloading the criteria file.
	WatchCriteria bool `mapstructure:"watch_criteria"`
	// Weights blend candidate attributes into the priority score.
	Weights ScoreWeights `mapstructure:"weights"`
}

// ScoreWeights are the priority-score blend weights. They should sum to 1.
type ScoreWeights struct {
	Strength   float64 `mapstructure:"strength"`
	Sector     float64 `mapstructure:"sector"`
	Confidence float64 `mapstructure:"confidence"`
}

// LimitsConfig holds the early-stopping ceilings shared by every session
// spawned from the same root exploration.
type LimitsConfig struct {
	// MaxTotalEntities caps entities explored across the root exploration.
	MaxTotalEntities int `mapstructure:"max_total_entities"`
	// MaxWallClock caps the exploration's total elapsed time.
	MaxWallClock time.Duration `mapstructure:"max_wall_clock"`
	// MaxExternalCalls caps external lookups across the exploration.
	MaxExternalCalls int64 `mapstructure:"max_external_calls"`
}

// LanesConfig sizes the execution-strategy lanes independently of the
// scheduler's concurrency cap.
type LanesConfig struct {
	// CPUWorkers bounds the isolated-process lane.
	CPUWorkers int `mapstructure:"cpu_workers"`
	// PoolWorkers bounds the light worker pool.
	PoolWorkers int `mapstructure:"pool_workers"`
}

// CacheConfig holds cache collaborator settings.
type CacheConfig struct {
	// Enabled turns the step cache on.
	Enabled bool `mapstructure:"enabled"`
	// Path is the on-disk cache directory. Empty means in-memory.
	Path string `mapstructure:"path"`
	// DefaultTTL applies when a step's routing entry has no TTL.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// StateConfig holds persistence collaborator settings.
type StateConfig struct {
	// DBPath is the SQLite database file. Empty disables persistence.
	DBPath string `mapstructure:"db_path"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
//  1. Environment variables (ENTGRAPH_*)
//  2. Project config (.entgraph.yaml in current directory or parent)
//  3. User config (~/.config/entgraph/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("ENTGRAPH")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings the engine cannot run with. Violations are
// configuration errors: fatal before any task runs.
func (c *Config) Validate() error {
	if c.Engine.MaxConcurrentTasks < 1 {
		return models.Configf("engine.max_concurrent_tasks must be >= 1, got %d", c.Engine.MaxConcurrentTasks)
	}
	if c.Retry.MaxRetries < 0 {
		return models.Configf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BackoffFactor < 1 {
		return models.Configf("retry.backoff_factor must be >= 1, got %g", c.Retry.BackoffFactor)
	}
	if c.Recursion.MaxDepth < 0 {
		return models.Configf("recursion.max_depth must be >= 0, got %d", c.Recursion.MaxDepth)
	}
	if c.Recursion.SimilarityThreshold < 0 || c.Recursion.SimilarityThreshold > 1 {
		return models.Configf("recursion.similarity_threshold must be in [0,1], got %g", c.Recursion.SimilarityThreshold)
	}
	if c.Lanes.CPUWorkers < 1 || c.Lanes.PoolWorkers < 1 {
		return models.Configf("lanes must have at least one worker each")
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.max_concurrent_tasks", 5)
	v.SetDefault("engine.session_time_limit", "10m")
	v.SetDefault("engine.debug_log", "")

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "200ms")
	v.SetDefault("retry.backoff_factor", 2.0)

	v.SetDefault("recursion.max_depth", 2)
	v.SetDefault("recursion.similarity_threshold", 0.8)
	v.SetDefault("recursion.criteria_file", "")
	v.SetDefault("recursion.watch_criteria", false)
	v.SetDefault("recursion.weights.strength", 0.5)
	v.SetDefault("recursion.weights.sector", 0.2)
	v.SetDefault("recursion.weights.confidence", 0.3)

	v.SetDefault("limits.max_total_entities", 50)
	v.SetDefault("limits.max_wall_clock", "30m")
	v.SetDefault("limits.max_external_calls", 500)

	v.SetDefault("lanes.cpu_workers", 2)
	v.SetDefault("lanes.pool_workers", 4)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.default_ttl", "12h")

	v.SetDefault("state.db_path", "")
}

// Default returns a Config with default values.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(cfg)
	return cfg
}

// getUserConfigDir returns the XDG config directory for entgraph.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "entgraph")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "entgraph")
	}
	return filepath.Join(home, ".config", "entgraph")
}

// findProjectConfig searches for .entgraph.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".entgraph.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
