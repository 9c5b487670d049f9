// Package config loads fleet coordinator configuration from YAML and
// applies defaults and validation before anything else starts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentfleet/core"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// WorkerConfig declares one fleet member.
type WorkerConfig struct {
	// ID is the stable worker identity used everywhere in the coordinator.
	ID string `yaml:"id"`

	// Handle is the injection target, e.g. a tmux pane like "fleet:0.1".
	Handle string `yaml:"handle"`
}

// DispatchConfig tunes the dispatch queue's retry discipline.
type DispatchConfig struct {
	RetryBase      Duration `yaml:"retry_base"`
	RetryFactor    float64  `yaml:"retry_factor"`
	RetryCap       Duration `yaml:"retry_cap"`
	MaxAttempts    int      `yaml:"max_attempts"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
}

// MonitorConfig tunes the activity monitor's timing discipline.
type MonitorConfig struct {
	CheckInterval  Duration `yaml:"check_interval"`
	ActiveGrace    Duration `yaml:"active_grace"`
	StallThreshold Duration `yaml:"stall_threshold"`
	RescueCooldown Duration `yaml:"rescue_cooldown"`
}

// PersistenceConfig locates the coordinator's durable state.
type PersistenceConfig struct {
	// ActivityStatePath is the JSON file holding the monitor's activity map.
	ActivityStatePath string `yaml:"activity_state_path"`

	// TaskDBPath is the SQLite database holding task records. Empty keeps
	// tasks in memory only.
	TaskDBPath string `yaml:"task_db_path"`

	// ActivityDir is the directory of per-worker touch files the default
	// activity source watches.
	ActivityDir string `yaml:"activity_dir"`
}

// Config is the full coordinator configuration.
type Config struct {
	Workers     []WorkerConfig    `yaml:"workers"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Persistence PersistenceConfig `yaml:"persistence"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when a field (or the whole file)
// is absent.
func Default() Config {
	return Config{
		Dispatch: DispatchConfig{
			RetryBase:      Duration(time.Second),
			RetryFactor:    2,
			RetryCap:       Duration(30 * time.Second),
			MaxAttempts:    5,
			AttemptTimeout: Duration(30 * time.Second),
		},
		Monitor: MonitorConfig{
			CheckInterval:  Duration(30 * time.Second),
			ActiveGrace:    Duration(5 * time.Minute),
			StallThreshold: Duration(20 * time.Minute),
			RescueCooldown: Duration(5 * time.Minute),
		},
		Persistence: PersistenceConfig{
			ActivityStatePath: "state/activity.json",
			ActivityDir:       "state/activity",
		},
		LogLevel: "info",
	}
}

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a defaulted, validated Config.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// withDefaults fills zero-valued fields so partial files work.
func (c Config) withDefaults() Config {
	def := Default()
	out := c

	if out.Dispatch.RetryBase == 0 {
		out.Dispatch.RetryBase = def.Dispatch.RetryBase
	}
	if out.Dispatch.RetryFactor == 0 {
		out.Dispatch.RetryFactor = def.Dispatch.RetryFactor
	}
	if out.Dispatch.RetryCap == 0 {
		out.Dispatch.RetryCap = def.Dispatch.RetryCap
	}
	if out.Dispatch.MaxAttempts == 0 {
		out.Dispatch.MaxAttempts = def.Dispatch.MaxAttempts
	}
	if out.Dispatch.AttemptTimeout == 0 {
		out.Dispatch.AttemptTimeout = def.Dispatch.AttemptTimeout
	}
	if out.Monitor.CheckInterval == 0 {
		out.Monitor.CheckInterval = def.Monitor.CheckInterval
	}
	if out.Monitor.ActiveGrace == 0 {
		out.Monitor.ActiveGrace = def.Monitor.ActiveGrace
	}
	if out.Monitor.StallThreshold == 0 {
		out.Monitor.StallThreshold = def.Monitor.StallThreshold
	}
	if out.Monitor.RescueCooldown == 0 {
		out.Monitor.RescueCooldown = def.Monitor.RescueCooldown
	}
	if out.Persistence.ActivityStatePath == "" {
		out.Persistence.ActivityStatePath = def.Persistence.ActivityStatePath
	}
	if out.Persistence.ActivityDir == "" {
		out.Persistence.ActivityDir = def.Persistence.ActivityDir
	}
	if out.LogLevel == "" {
		out.LogLevel = def.LogLevel
	}
	return out
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Workers))
	for i, w := range c.Workers {
		if w.ID == "" {
			return fmt.Errorf("workers[%d]: id is required", i)
		}
		if w.Handle == "" {
			return fmt.Errorf("worker %q: handle is required", w.ID)
		}
		if seen[w.ID] {
			return fmt.Errorf("worker %q: duplicate id", w.ID)
		}
		seen[w.ID] = true
	}

	if c.Dispatch.RetryFactor < 1 {
		return fmt.Errorf("dispatch.retry_factor must be >= 1, got %v", c.Dispatch.RetryFactor)
	}
	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch.max_attempts must be >= 1, got %d", c.Dispatch.MaxAttempts)
	}
	if c.Monitor.ActiveGrace.Std() >= c.Monitor.StallThreshold.Std() {
		return fmt.Errorf("monitor.active_grace (%s) must be below monitor.stall_threshold (%s)",
			c.Monitor.ActiveGrace.Std(), c.Monitor.StallThreshold.Std())
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// FleetWorkers converts the worker declarations to core values.
func (c Config) FleetWorkers() []core.Worker {
	out := make([]core.Worker, 0, len(c.Workers))
	for _, w := range c.Workers {
		out = append(out, core.Worker{ID: core.WorkerID(w.ID), Handle: w.Handle})
	}
	return out
}
