package domain

import (
	"time"

	"github.com/mrz1836/foreman/internal/constants"
)

// Agent represents a worker process tracked by the registry.
//
// Invariant: an agent with status busy has exactly one CurrentTask set to a
// task whose status is running and whose assigned_agent equals the agent's
// name. The dispatcher's reconciliation pass repairs violations left by a
// crash between the task write and the agent write.
type Agent struct {
	// Name is the unique identity of the agent.
	Name string `json:"name"`

	// Capabilities is the set of task types the agent can execute.
	Capabilities []string `json:"capabilities"`

	// Status is the agent's lifecycle state.
	Status constants.AgentStatus `json:"status"`

	// LastHeartbeat is when the agent last reported liveness.
	LastHeartbeat time.Time `json:"last_heartbeat"`

	// CurrentTask is the id of the task the agent is executing, if any.
	CurrentTask string `json:"current_task,omitempty"`

	// RestartCount tracks supervisor restarts. Reset to 0 after a clean
	// work cycle, capped at the configured maximum.
	RestartCount int `json:"restart_count"`

	// Registered is when the agent first registered.
	Registered time.Time `json:"registered"`
}

// CapabilitySet returns the agent's capabilities as a lookup set.
func (a *Agent) CapabilitySet() map[string]bool {
	set := make(map[string]bool, len(a.Capabilities))
	for _, c := range a.Capabilities {
		set[c] = true
	}
	return set
}

// CanExecute reports whether the agent declares the given task type.
func (a *Agent) CanExecute(taskType string) bool {
	for _, c := range a.Capabilities {
		if c == taskType {
			return true
		}
	}
	return false
}

// IsStale reports whether the agent's heartbeat is older than timeout at
// the given instant. This is a point-in-time query, never a sticky state:
// a late heartbeat still updates LastHeartbeat and clears staleness.
func (a *Agent) IsStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(a.LastHeartbeat) > timeout
}
