package config

import (
	"github.com/spf13/viper"

	"github.com/mrz1836/foreman/internal/constants"
)

// DefaultConfig returns a new Config with sensible default values.
// These defaults are used as the base layer that can be overridden by
// config files and environment variables.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			// TaskTTL: a week of terminal-task history is enough for
			// post-mortems without letting the store grow unbounded.
			TaskTTL: constants.DefaultTaskTTL,

			// CleanupInterval: hourly pruning keeps the store small.
			CleanupInterval: constants.DefaultCleanupInterval,
		},
		Registry: RegistryConfig{
			// HeartbeatInterval: 8 seconds matches the controller loop
			// cadence the system was tuned for.
			HeartbeatInterval: constants.DefaultHeartbeatInterval,

			// StaleMultiplier: stale after 3 missed heartbeats.
			StaleMultiplier: constants.DefaultStaleMultiplier,
		},
		Dispatcher: DispatcherConfig{
			// SweepInterval: a few seconds balances dispatch latency
			// against store lock contention.
			SweepInterval: constants.DefaultSweepInterval,
		},
		Supervisor: SupervisorConfig{
			// BackoffBase/BackoffCap: 1s doubling to a 30s ceiling keeps
			// crash loops cheap without delaying recovery for minutes.
			BackoffBase: constants.DefaultBackoffBase,
			BackoffCap:  constants.DefaultBackoffCap,

			// MaxRestarts: small on purpose. A work loop that fails five
			// times in a row needs a human, not a sixth attempt.
			MaxRestarts: constants.DefaultMaxRestarts,

			// TaskTimeout: 30 minutes bounds the longest sanctioned unit
			// of work (full analyze/build cycles).
			TaskTimeout: constants.DefaultTaskTimeout,
		},
		Deps: DepsConfig{
			// Manifest: empty means <home>/deps.yaml.
			Manifest: "",

			RecheckInterval: constants.DefaultRecheckInterval,
			HealthTimeout:   constants.DefaultHealthTimeout,
		},
		Server: ServerConfig{
			ListenAddr: constants.DefaultListenAddr,
		},
	}
}

// setDefaults registers default values on a Viper instance so that config
// files and environment variables only need to specify overrides.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("home", defaults.Home)
	v.SetDefault("store.task_ttl", defaults.Store.TaskTTL)
	v.SetDefault("store.cleanup_interval", defaults.Store.CleanupInterval)
	v.SetDefault("registry.heartbeat_interval", defaults.Registry.HeartbeatInterval)
	v.SetDefault("registry.stale_multiplier", defaults.Registry.StaleMultiplier)
	v.SetDefault("dispatcher.sweep_interval", defaults.Dispatcher.SweepInterval)
	v.SetDefault("supervisor.backoff_base", defaults.Supervisor.BackoffBase)
	v.SetDefault("supervisor.backoff_cap", defaults.Supervisor.BackoffCap)
	v.SetDefault("supervisor.max_restarts", defaults.Supervisor.MaxRestarts)
	v.SetDefault("supervisor.task_timeout", defaults.Supervisor.TaskTimeout)
	v.SetDefault("deps.manifest", defaults.Deps.Manifest)
	v.SetDefault("deps.recheck_interval", defaults.Deps.RecheckInterval)
	v.SetDefault("deps.health_timeout", defaults.Deps.HealthTimeout)
	v.SetDefault("server.listen_addr", defaults.Server.ListenAddr)
}
