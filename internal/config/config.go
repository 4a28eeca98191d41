// Package config loads and validates testflow runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/testflow/internal/models"
)

// ResourceLimits is the yaml shape of the pool's capacity limits.
type ResourceLimits struct {
	MemoryMB        float64 `yaml:"memory_mb"`
	CPUCores        float64 `yaml:"cpu_cores"`
	NetworkMbps     float64 `yaml:"network_mbps"`
	StorageMB       float64 `yaml:"storage_mb"`
	ConcurrentUsers float64 `yaml:"concurrent_users"`
}

// Requirements converts the yaml shape into the model type.
func (r ResourceLimits) Requirements() models.ResourceRequirements {
	return models.ResourceRequirements{
		MemoryMB:        r.MemoryMB,
		CPUCores:        r.CPUCores,
		NetworkMbps:     r.NetworkMbps,
		StorageMB:       r.StorageMB,
		ConcurrentUsers: r.ConcurrentUsers,
	}
}

// HistoryConfig controls the sqlite session history store.
type HistoryConfig struct {
	// Enabled records terminal sessions to the history database.
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database file.
	DBPath string `yaml:"db_path"`
}

// Config holds testflow runtime options.
type Config struct {
	// MaxConcurrentSessions caps sessions executing at once.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`

	// MaxConcurrencyPerPhase caps suites running concurrently in a phase.
	MaxConcurrencyPerPhase int `yaml:"max_concurrency_per_phase"`

	// QueueSize bounds the pending-session queue.
	QueueSize int `yaml:"queue_size"`

	// AdmissionRetryLimit bounds resource-admission retries per session.
	AdmissionRetryLimit int `yaml:"admission_retry_limit"`

	// AdmissionRetryDelay is the pause before a rejected session retries.
	AdmissionRetryDelay time.Duration `yaml:"admission_retry_delay"`

	// Resources are the pool's per-dimension capacity limits.
	Resources ResourceLimits `yaml:"resources"`

	// LogLevel sets console verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// StateDir is where testflow keeps its lock file and history database.
	StateDir string `yaml:"state_dir"`

	// History configures session history recording.
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentSessions:  3,
		MaxConcurrencyPerPhase: 10,
		QueueSize:              1000,
		AdmissionRetryLimit:    10,
		AdmissionRetryDelay:    500 * time.Millisecond,
		Resources: ResourceLimits{
			MemoryMB:        8192,
			CPUCores:        8,
			NetworkMbps:     1000,
			StorageMB:       20480,
			ConcurrentUsers: 200,
		},
		LogLevel: "info",
		StateDir: ".testflow",
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".testflow/history.db",
		},
	}
}

// LoadConfig loads configuration from path, merging file values over
// defaults. A missing file returns defaults without error; a malformed
// file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations arrive as strings ("500ms", "2s"); parse via an
	// intermediate shape.
	type yamlConfig struct {
		MaxConcurrentSessions  int             `yaml:"max_concurrent_sessions"`
		MaxConcurrencyPerPhase int             `yaml:"max_concurrency_per_phase"`
		QueueSize              int             `yaml:"queue_size"`
		AdmissionRetryLimit    int             `yaml:"admission_retry_limit"`
		AdmissionRetryDelay    string          `yaml:"admission_retry_delay"`
		Resources              *ResourceLimits `yaml:"resources"`
		LogLevel               string          `yaml:"log_level"`
		StateDir               string          `yaml:"state_dir"`
		History                *HistoryConfig  `yaml:"history"`
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yc.MaxConcurrentSessions != 0 {
		cfg.MaxConcurrentSessions = yc.MaxConcurrentSessions
	}
	if yc.MaxConcurrencyPerPhase != 0 {
		cfg.MaxConcurrencyPerPhase = yc.MaxConcurrencyPerPhase
	}
	if yc.QueueSize != 0 {
		cfg.QueueSize = yc.QueueSize
	}
	if yc.AdmissionRetryLimit != 0 {
		cfg.AdmissionRetryLimit = yc.AdmissionRetryLimit
	}
	if yc.AdmissionRetryDelay != "" {
		delay, err := time.ParseDuration(yc.AdmissionRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid admission_retry_delay %q: %w", yc.AdmissionRetryDelay, err)
		}
		cfg.AdmissionRetryDelay = delay
	}
	if yc.Resources != nil {
		cfg.Resources = *yc.Resources
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.StateDir != "" {
		cfg.StateDir = yc.StateDir
	}
	if yc.History != nil {
		cfg.History = *yc.History
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .testflow/config.yaml under
// the given directory.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".testflow", "config.yaml"))
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.MaxConcurrentSessions < 1 {
		return fmt.Errorf("max_concurrent_sessions must be at least 1, got %d", c.MaxConcurrentSessions)
	}
	if c.MaxConcurrencyPerPhase < 1 {
		return fmt.Errorf("max_concurrency_per_phase must be at least 1, got %d", c.MaxConcurrencyPerPhase)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.AdmissionRetryDelay < 0 {
		return fmt.Errorf("admission_retry_delay must not be negative")
	}
	if err := c.Resources.Requirements().Validate(); err != nil {
		return fmt.Errorf("resources: %w", err)
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Save writes the configuration to path as yaml, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := struct {
		MaxConcurrentSessions  int            `yaml:"max_concurrent_sessions"`
		MaxConcurrencyPerPhase int            `yaml:"max_concurrency_per_phase"`
		QueueSize              int            `yaml:"queue_size"`
		AdmissionRetryLimit    int            `yaml:"admission_retry_limit"`
		AdmissionRetryDelay    string         `yaml:"admission_retry_delay"`
		Resources              ResourceLimits `yaml:"resources"`
		LogLevel               string         `yaml:"log_level"`
		StateDir               string         `yaml:"state_dir"`
		History                HistoryConfig  `yaml:"history"`
	}{
		MaxConcurrentSessions:  c.MaxConcurrentSessions,
		MaxConcurrencyPerPhase: c.MaxConcurrencyPerPhase,
		QueueSize:              c.QueueSize,
		AdmissionRetryLimit:    c.AdmissionRetryLimit,
		AdmissionRetryDelay:    c.AdmissionRetryDelay.String(),
		Resources:              c.Resources,
		LogLevel:               c.LogLevel,
		StateDir:               c.StateDir,
		History:                c.History,
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
