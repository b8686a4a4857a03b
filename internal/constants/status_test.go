package constants

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		valid  bool
	}{
		{name: "queued", status: TaskStatusQueued, valid: true},
		{name: "assigned", status: TaskStatusAssigned, valid: true},
		{name: "running", status: TaskStatusRunning, valid: true},
		{name: "completed", status: TaskStatusCompleted, valid: true},
		{name: "failed", status: TaskStatusFailed, valid: true},
		{name: "empty", status: TaskStatus(""), valid: false},
		{name: "unknown", status: TaskStatus("paused"), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
		})
	}
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.False(t, TaskStatusQueued.IsTerminal())
	assert.False(t, TaskStatusAssigned.IsTerminal())
	assert.False(t, TaskStatusRunning.IsTerminal())
}

func TestTaskStatus_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(TaskStatusAssigned)
	require.NoError(t, err)
	assert.Equal(t, `"assigned"`, string(data))

	var s TaskStatus
	require.NoError(t, json.Unmarshal([]byte(`"running"`), &s))
	assert.Equal(t, TaskStatusRunning, s)
}

func TestAgentStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status AgentStatus
		valid  bool
	}{
		{name: "idle", status: AgentStatusIdle, valid: true},
		{name: "busy", status: AgentStatusBusy, valid: true},
		{name: "unhealthy", status: AgentStatusUnhealthy, valid: true},
		{name: "stopped", status: AgentStatusStopped, valid: true},
		{name: "empty", status: AgentStatus(""), valid: false},
		{name: "unknown", status: AgentStatus("restarting"), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
		})
	}
}
