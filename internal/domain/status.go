// Package domain provides shared domain types for the foreman coordination system.
package domain

import "github.com/mrz1836/foreman/internal/constants"

// Re-export status types from the constants package.
// This allows consumers to import domain types and status types together,
// providing a unified API for working with foreman domain objects.
//
// Example usage:
//
//	import "github.com/mrz1836/foreman/internal/domain"
//
//	task := domain.Task{
//	    Status: domain.TaskStatusQueued,
//	}
type (
	// TaskStatus represents the state of a task in the foreman state machine.
	TaskStatus = constants.TaskStatus

	// AgentStatus represents the state of an agent in the registry.
	AgentStatus = constants.AgentStatus

	// SupervisorState represents the state of a per-agent supervisor loop.
	SupervisorState = constants.SupervisorState
)

// Re-export TaskStatus constants for convenience.
const (
	// TaskStatusQueued indicates a task is waiting for an eligible agent.
	TaskStatusQueued = constants.TaskStatusQueued

	// TaskStatusAssigned indicates the dispatcher handed the task to an agent.
	TaskStatusAssigned = constants.TaskStatusAssigned

	// TaskStatusRunning indicates the owning agent is executing the task.
	TaskStatusRunning = constants.TaskStatusRunning

	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted = constants.TaskStatusCompleted

	// TaskStatusFailed indicates the task failed, timed out, or was cancelled.
	TaskStatusFailed = constants.TaskStatusFailed
)

// Re-export AgentStatus constants for convenience.
const (
	// AgentStatusIdle indicates the agent is registered and ready for work.
	AgentStatusIdle = constants.AgentStatusIdle

	// AgentStatusBusy indicates the agent is executing exactly one task.
	AgentStatusBusy = constants.AgentStatusBusy

	// AgentStatusUnhealthy indicates the agent reported a degraded state.
	AgentStatusUnhealthy = constants.AgentStatusUnhealthy

	// AgentStatusStopped indicates the agent shut down or went stale.
	AgentStatusStopped = constants.AgentStatusStopped
)
