package config

import (
	"net"
	"time"

	"github.com/mrz1836/foreman/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - store TTL and cleanup interval must be positive
//   - heartbeat interval must be between 1s and 10m; stale multiplier >= 2
//   - sweep interval must be between 100ms and 10m
//   - backoff base/cap must be positive with cap >= base
//   - max restarts must be between 1 and 100
//   - task timeout must be positive
//   - deps intervals must be positive
//   - server listen address must be host:port
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateStoreConfig(&cfg.Store); err != nil {
		return err
	}
	if err := validateRegistryConfig(&cfg.Registry); err != nil {
		return err
	}
	if err := validateDispatcherConfig(&cfg.Dispatcher); err != nil {
		return err
	}
	if err := validateSupervisorConfig(&cfg.Supervisor); err != nil {
		return err
	}
	if err := validateDepsConfig(&cfg.Deps); err != nil {
		return err
	}
	return validateServerConfig(&cfg.Server)
}

// validateStoreConfig checks task-store configuration values.
func validateStoreConfig(cfg *StoreConfig) error {
	if cfg.TaskTTL <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidStore,
			"store.task_ttl must be positive, got %s", cfg.TaskTTL)
	}
	if cfg.CleanupInterval <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidStore,
			"store.cleanup_interval must be positive, got %s", cfg.CleanupInterval)
	}
	return nil
}

// validateRegistryConfig checks heartbeat configuration values.
func validateRegistryConfig(cfg *RegistryConfig) error {
	minInterval := 1 * time.Second
	maxInterval := 10 * time.Minute
	if cfg.HeartbeatInterval < minInterval || cfg.HeartbeatInterval > maxInterval {
		return errors.Wrapf(errors.ErrConfigInvalidRegistry,
			"registry.heartbeat_interval must be between %s and %s, got %s",
			minInterval, maxInterval, cfg.HeartbeatInterval)
	}

	// Below 2 a single delayed heartbeat would flap agents to stopped.
	if cfg.StaleMultiplier < 2 {
		return errors.Wrapf(errors.ErrConfigInvalidRegistry,
			"registry.stale_multiplier must be at least 2, got %d", cfg.StaleMultiplier)
	}
	return nil
}

// validateDispatcherConfig checks sweep configuration values.
func validateDispatcherConfig(cfg *DispatcherConfig) error {
	minInterval := 100 * time.Millisecond
	maxInterval := 10 * time.Minute
	if cfg.SweepInterval < minInterval || cfg.SweepInterval > maxInterval {
		return errors.Wrapf(errors.ErrConfigInvalidDispatcher,
			"dispatcher.sweep_interval must be between %s and %s, got %s",
			minInterval, maxInterval, cfg.SweepInterval)
	}
	return nil
}

// validateSupervisorConfig checks restart/backoff configuration values.
func validateSupervisorConfig(cfg *SupervisorConfig) error {
	if cfg.BackoffBase <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidSupervisor,
			"supervisor.backoff_base must be positive, got %s", cfg.BackoffBase)
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		return errors.Wrapf(errors.ErrConfigInvalidSupervisor,
			"supervisor.backoff_cap must be >= backoff_base (%s), got %s",
			cfg.BackoffBase, cfg.BackoffCap)
	}
	if cfg.MaxRestarts < 1 || cfg.MaxRestarts > 100 {
		return errors.Wrapf(errors.ErrConfigInvalidSupervisor,
			"supervisor.max_restarts must be between 1 and 100, got %d", cfg.MaxRestarts)
	}
	if cfg.TaskTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidSupervisor,
			"supervisor.task_timeout must be positive, got %s", cfg.TaskTimeout)
	}
	return nil
}

// validateDepsConfig checks dependency-manager configuration values.
func validateDepsConfig(cfg *DepsConfig) error {
	if cfg.RecheckInterval <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidDeps,
			"deps.recheck_interval must be positive, got %s", cfg.RecheckInterval)
	}
	if cfg.HealthTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidDeps,
			"deps.health_timeout must be positive, got %s", cfg.HealthTimeout)
	}
	return nil
}

// validateServerConfig checks the control-surface bind address.
func validateServerConfig(cfg *ServerConfig) error {
	if cfg.ListenAddr == "" {
		return errors.Wrap(errors.ErrConfigInvalidServer,
			"server.listen_addr must not be empty")
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalidServer,
			"server.listen_addr must be host:port, got %q", cfg.ListenAddr)
	}
	return nil
}
