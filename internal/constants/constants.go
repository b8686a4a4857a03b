// Package constants provides centralized constant values used throughout foreman.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// File names used by foreman for state persistence.
const (
	// TaskStoreFileName is the name of the JSON file holding the task queue.
	TaskStoreFileName = "tasks.json"

	// RegistryFileName is the name of the JSON file holding the agent registry.
	RegistryFileName = "agents.json"

	// PidFileName is the name of the daemon pidfile.
	PidFileName = "foreman.pid"

	// DepsManifestFileName is the name of the dependency manifest file.
	DepsManifestFileName = "deps.yaml"

	// PoolFileName is the name of the agent pool definition file. When
	// present, serve runs a supervisor per entry alongside the daemon.
	PoolFileName = "agents.yaml"
)

// Directory names used by foreman for organizing data.
const (
	// ForemanHome is the hidden directory name where foreman stores all its data.
	// This directory is created in the user's home directory.
	ForemanHome = ".foreman"

	// StatusDir is the directory name where per-agent supervisor status files
	// are written for external consumers (dashboards, monitors).
	StatusDir = "status"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// PidsDir is the directory name where per-agent pidfiles are written
	// for agents started in the background.
	PidsDir = "pids"
)

// Default interval and timeout configurations. All of these can be
// overridden through configuration (see internal/config).
const (
	// DefaultHeartbeatInterval is how often agents report liveness.
	DefaultHeartbeatInterval = 8 * time.Second

	// DefaultStaleMultiplier scales the heartbeat interval into the staleness
	// timeout: an agent is stale after 3 missed heartbeats.
	DefaultStaleMultiplier = 3

	// DefaultSweepInterval is how often the dispatcher attempts to match
	// queued tasks against idle agents.
	DefaultSweepInterval = 4 * time.Second

	// DefaultTaskTimeout bounds a single unit of work. Exceeding it is a
	// failure, not a hang.
	DefaultTaskTimeout = 30 * time.Minute

	// DefaultBackoffBase is the initial restart delay after a supervisor
	// work-loop failure.
	DefaultBackoffBase = 1 * time.Second

	// DefaultBackoffCap bounds the exponential restart delay.
	DefaultBackoffCap = 30 * time.Second

	// DefaultMaxRestarts is the restart ceiling before a supervisor gives up
	// and parks in the terminal stopped state.
	DefaultMaxRestarts = 5

	// DefaultRecheckInterval is how often the dependency monitor re-runs its
	// pre-flight checks in background mode.
	DefaultRecheckInterval = 60 * time.Second

	// DefaultTaskTTL is how long terminal tasks are retained before the
	// daemon prunes them.
	DefaultTaskTTL = 7 * 24 * time.Hour

	// DefaultCleanupInterval is how often the daemon prunes expired tasks.
	DefaultCleanupInterval = time.Hour

	// DefaultHealthTimeout bounds a single HTTP health-endpoint probe.
	DefaultHealthTimeout = 5 * time.Second
)

// DefaultTaskPriority applies to tasks submitted or ingested without an
// explicit priority. Lower values are more urgent, so the default keeps
// unprioritized work behind anything deliberately ranked.
const DefaultTaskPriority = 5

// Server defaults for the HTTP control surface.
const (
	// DefaultListenAddr is the address the control server binds to.
	// Loopback only: the control surface is not authenticated.
	DefaultListenAddr = "127.0.0.1:5005"
)

// Lock configuration for store mutations.
const (
	// LockTimeout is the maximum duration to wait for acquiring a file lock.
	LockTimeout = 5 * time.Second

	// LockRetryInterval is the delay between lock acquisition attempts.
	LockRetryInterval = 50 * time.Millisecond
)

// Schema version constants for data migration support.
const (
	// StoreSchemaVersion is the current version of the task store JSON schema.
	StoreSchemaVersion = 1
)
