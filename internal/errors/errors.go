// Package errors provides centralized error handling for foreman.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrStoreCorrupt indicates persisted state could not be parsed.
	// Fatal for the process touching the store; never auto-repaired.
	ErrStoreCorrupt = errors.New("store file corrupted")

	// ErrDuplicateTask indicates an append with an id already in the store.
	ErrDuplicateTask = errors.New("duplicate task id")

	// ErrTaskNotFound indicates the requested task id is not in the store.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUnknownAgent indicates a heartbeat or lookup for an agent that
	// never registered.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrDependencyUnavailable indicates a required pre-flight check failed.
	// Blocks startup of the component that needs the dependency.
	ErrDependencyUnavailable = errors.New("required dependency unavailable")

	// ErrTaskTimeout indicates a unit of work exceeded its bounded
	// execution window. Treated as a failure, feeds supervisor backoff.
	ErrTaskTimeout = errors.New("task execution timeout")

	// ErrTaskFailed indicates a non-zero exit or error from a unit of work.
	ErrTaskFailed = errors.New("task execution failed")

	// ErrTaskCancelled indicates a running task was cancelled by an
	// explicit signal to its owning supervisor.
	ErrTaskCancelled = errors.New("task cancelled")

	// ErrRestartsExhausted indicates a supervisor hit its restart ceiling
	// and parked in the terminal stopped state.
	ErrRestartsExhausted = errors.New("restart limit exhausted")

	// ErrLockTimeout indicates a file lock could not be acquired within the
	// timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrAlreadyRunning indicates a daemon or agent pool is already running
	// (pidfile is locked by a live process).
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates a stop/restart was requested but no live
	// process owns the pidfile.
	ErrNotRunning = errors.New("not running")

	// ErrInvalidStatus indicates a status transition to an unknown or
	// disallowed state.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrNoEligibleTask indicates no queued task matches the agent's
	// capabilities with all dependencies completed. Normal condition,
	// not a failure.
	ErrNoEligibleTask = errors.New("no eligible task")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidStore indicates an invalid store configuration value.
	ErrConfigInvalidStore = errors.New("invalid store configuration")

	// ErrConfigInvalidRegistry indicates an invalid registry configuration value.
	ErrConfigInvalidRegistry = errors.New("invalid registry configuration")

	// ErrConfigInvalidDispatcher indicates an invalid dispatcher configuration value.
	ErrConfigInvalidDispatcher = errors.New("invalid dispatcher configuration")

	// ErrConfigInvalidSupervisor indicates an invalid supervisor configuration value.
	ErrConfigInvalidSupervisor = errors.New("invalid supervisor configuration")

	// ErrConfigInvalidDeps indicates an invalid dependency-manager configuration value.
	ErrConfigInvalidDeps = errors.New("invalid deps configuration")

	// ErrConfigInvalidServer indicates an invalid server configuration value.
	ErrConfigInvalidServer = errors.New("invalid server configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrManifestInvalid indicates the dependency manifest could not be
	// parsed or contains an unusable check definition.
	ErrManifestInvalid = errors.New("invalid dependency manifest")

	// ErrPoolInvalid indicates the agent pool definition could not be
	// parsed or contains an unusable agent entry.
	ErrPoolInvalid = errors.New("invalid agent pool definition")
)
