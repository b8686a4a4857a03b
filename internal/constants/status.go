package constants

// TaskStatus represents the state of a task in the foreman state machine.
// Status values use snake_case for JSON serialization compatibility.
type TaskStatus string

// Task status constants define the valid states a task can be in.
// Transitions are owned by specific components:
//
//	Queued → Assigned        (dispatcher only)
//	Assigned → Running       (owning supervisor only)
//	Running → Completed      (owning supervisor only)
//	Running → Failed         (owning supervisor only; includes timeout and cancellation)
const (
	// TaskStatusQueued indicates a task is waiting for an eligible agent.
	TaskStatusQueued TaskStatus = "queued"

	// TaskStatusAssigned indicates the dispatcher has handed the task to an
	// agent but execution has not started yet.
	TaskStatusAssigned TaskStatus = "assigned"

	// TaskStatusRunning indicates the owning agent is executing the task.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task failed, timed out, or was cancelled.
	TaskStatusFailed TaskStatus = "failed"
)

// IsValid reports whether s is a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusAssigned, TaskStatusRunning,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// AgentStatus represents the state of an agent in the registry.
type AgentStatus string

// Agent status constants.
const (
	// AgentStatusIdle indicates the agent is registered and ready for work.
	AgentStatusIdle AgentStatus = "idle"

	// AgentStatusBusy indicates the agent is executing exactly one task.
	AgentStatusBusy AgentStatus = "busy"

	// AgentStatusUnhealthy indicates the agent reported a degraded state or
	// its dependencies are failing.
	AgentStatusUnhealthy AgentStatus = "unhealthy"

	// AgentStatusStopped indicates the agent shut down or its heartbeat went
	// stale beyond the timeout.
	AgentStatusStopped AgentStatus = "stopped"
)

// IsValid reports whether s is a known agent status.
func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusBusy, AgentStatusUnhealthy, AgentStatusStopped:
		return true
	default:
		return false
	}
}

// SupervisorState represents the state of a per-agent supervisor loop.
// The state machine:
//
//	Starting → Running
//	Running → Completed (clean cycle, loop continues) | Failed
//	Failed → Backoff → Starting   (while restarts remain)
//	Failed → Stopped              (restart ceiling reached, terminal)
//	Starting/Running → Stopped    (explicit shutdown, graceful)
type SupervisorState string

// Supervisor state constants.
const (
	// SupervisorStarting indicates the supervisor is about to begin a work cycle.
	SupervisorStarting SupervisorState = "starting"

	// SupervisorRunning indicates the work function is executing.
	SupervisorRunning SupervisorState = "running"

	// SupervisorCompleted indicates the last cycle finished cleanly.
	SupervisorCompleted SupervisorState = "completed"

	// SupervisorFailed indicates the last cycle returned an error.
	SupervisorFailed SupervisorState = "failed"

	// SupervisorBackoff indicates the supervisor is delaying before a retry.
	SupervisorBackoff SupervisorState = "backoff"

	// SupervisorStopped indicates the loop has exited. StoppedReason
	// distinguishes a graceful stop from restart exhaustion.
	SupervisorStopped SupervisorState = "stopped"
)
