// Package config provides configuration management for foreman with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. Environment variables (FOREMAN_* prefix)
//  2. Project config (.foreman.yaml)
//  3. Global config (~/.foreman/config.yaml)
//  4. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// Every interval, backoff, and restart setting in the system lives here: the
// struct is built once at startup and passed to each component at
// construction, never re-read from the environment ad hoc.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for foreman.
// It contains all configuration sections for the application.
type Config struct {
	// Home is the foreman state directory. Empty means ~/.foreman
	// (or FOREMAN_HOME when set).
	Home string `yaml:"home" mapstructure:"home"`

	// Store contains settings for the task store.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Registry contains settings for the agent registry and heartbeats.
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`

	// Dispatcher contains settings for the assignment sweep.
	Dispatcher DispatcherConfig `yaml:"dispatcher" mapstructure:"dispatcher"`

	// Supervisor contains settings for per-agent restart/backoff supervision.
	Supervisor SupervisorConfig `yaml:"supervisor" mapstructure:"supervisor"`

	// Deps contains settings for pre-flight dependency checks.
	Deps DepsConfig `yaml:"deps" mapstructure:"deps"`

	// Server contains settings for the HTTP control surface.
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// StoreConfig contains settings for the task store.
type StoreConfig struct {
	// TaskTTL is how long terminal tasks are retained before pruning.
	// Default: 168h (7 days)
	TaskTTL time.Duration `yaml:"task_ttl" mapstructure:"task_ttl"`

	// CleanupInterval is how often the daemon prunes expired tasks.
	// Default: 1h
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// RegistryConfig contains settings for agent liveness tracking.
type RegistryConfig struct {
	// HeartbeatInterval is how often agents report liveness.
	// Default: 8s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`

	// StaleMultiplier scales HeartbeatInterval into the staleness timeout.
	// An agent is marked stopped after missing this many heartbeats.
	// Default: 3
	StaleMultiplier int `yaml:"stale_multiplier" mapstructure:"stale_multiplier"`
}

// StaleTimeout returns the effective heartbeat staleness timeout.
func (c *RegistryConfig) StaleTimeout() time.Duration {
	return time.Duration(c.StaleMultiplier) * c.HeartbeatInterval
}

// DispatcherConfig contains settings for the assignment sweep.
type DispatcherConfig struct {
	// SweepInterval is how often queued tasks are matched against idle
	// agents. Assignment also happens synchronously on submission; the
	// sweep catches tasks whose agents freed up later.
	// Default: 4s
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// SupervisorConfig contains settings for the per-agent restart loop.
type SupervisorConfig struct {
	// BackoffBase is the initial restart delay after a failure.
	// The delay doubles each consecutive failure: base * 2^attempt.
	// Default: 1s
	BackoffBase time.Duration `yaml:"backoff_base" mapstructure:"backoff_base"`

	// BackoffCap bounds the exponential restart delay.
	// Default: 30s
	BackoffCap time.Duration `yaml:"backoff_cap" mapstructure:"backoff_cap"`

	// MaxRestarts is the restart ceiling. Once consecutive failures reach
	// this count the supervisor parks in the terminal stopped state and
	// requires external intervention.
	// Default: 5
	MaxRestarts int `yaml:"max_restarts" mapstructure:"max_restarts"`

	// TaskTimeout bounds a single unit of work. Exceeding it is treated
	// as a failure, never a hang.
	// Default: 30m
	TaskTimeout time.Duration `yaml:"task_timeout" mapstructure:"task_timeout"`
}

// DepsConfig contains settings for the dependency manager.
type DepsConfig struct {
	// Manifest is the path to the dependency manifest (deps.yaml).
	// Empty means <home>/deps.yaml; a missing manifest disables checks.
	Manifest string `yaml:"manifest" mapstructure:"manifest"`

	// RecheckInterval is how often the background monitor re-runs checks.
	// Default: 60s
	RecheckInterval time.Duration `yaml:"recheck_interval" mapstructure:"recheck_interval"`

	// HealthTimeout bounds a single HTTP health probe.
	// Default: 5s
	HealthTimeout time.Duration `yaml:"health_timeout" mapstructure:"health_timeout"`
}

// ServerConfig contains settings for the HTTP control surface.
type ServerConfig struct {
	// ListenAddr is the bind address. Loopback only by default: the
	// control surface is unauthenticated.
	// Default: 127.0.0.1:5005
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
}
