// Package domain provides shared domain types for the foreman coordination system.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"time"

	"github.com/mrz1836/foreman/internal/constants"
)

// Task represents a single unit of work in the foreman queue.
//
// Example JSON representation:
//
//	{
//	    "id": "todo_a1b2c3",
//	    "type": "security",
//	    "description": "Fix unchecked error in keychain.swift:42",
//	    "priority": 1,
//	    "assigned_agent": "sec1",
//	    "status": "assigned",
//	    "created": "2026-08-29T10:00:00Z",
//	    "dependencies": ["todo_99"]
//	}
type Task struct {
	// ID is the unique, stable identity of the task. Bridge-ingested tasks
	// derive it from the assignment source so re-ingestion is idempotent.
	ID string `json:"id"`

	// Type determines which agent capability can claim the task
	// (e.g. "testing", "review", "documentation", "security", "debug").
	Type string `json:"type"`

	// Description is a human-readable summary of the work.
	Description string `json:"description"`

	// Priority orders the queue. Lower value means more urgent.
	Priority int `json:"priority"`

	// AssignedAgent is the name of the agent the task was handed to.
	// Empty while the task is queued.
	AssignedAgent string `json:"assigned_agent,omitempty"`

	// Status is the current state in the task lifecycle.
	Status constants.TaskStatus `json:"status"`

	// Created is when the task entered the store.
	Created time.Time `json:"created"`

	// Updated is when the task was last modified.
	Updated time.Time `json:"updated"`

	// CompletedAt is when the task reached a terminal state (nil otherwise).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Dependencies lists task ids that must reach completed before this
	// task may be assigned.
	Dependencies []string `json:"dependencies,omitempty"`

	// Error holds the failure message when Status is failed.
	Error string `json:"error,omitempty"`

	// Source records where the task came from ("bridge", "api", "cli").
	Source string `json:"source,omitempty"`

	// Metadata stores arbitrary key-value data associated with the task.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Eligible reports whether the task can be handed to an agent with the
// given capability set: it must be queued, its type must be in the set,
// and every dependency must be completed according to done.
func (t *Task) Eligible(capabilities map[string]bool, done func(id string) bool) bool {
	if t.Status != constants.TaskStatusQueued {
		return false
	}
	if !capabilities[t.Type] {
		return false
	}
	for _, dep := range t.Dependencies {
		if !done(dep) {
			return false
		}
	}
	return true
}

// DispatchResult is returned by task submission and assignment attempts.
//
// Status is "assigned" when an idle capability-matching agent accepted the
// task and "queued" when no agent was available. A queued result is normal
// backpressure, not an error.
type DispatchResult struct {
	// Status is "assigned" or "queued".
	Status string `json:"status"`

	// Task is a snapshot of the task after the attempt.
	Task *Task `json:"task"`

	// Agent is the name of the agent the task was assigned to, if any.
	Agent string `json:"agent,omitempty"`
}

// Dispatch result status values.
const (
	// DispatchAssigned indicates the task was handed to an agent.
	DispatchAssigned = "assigned"

	// DispatchQueued indicates no idle capability-matching agent was
	// available and the task remains queued.
	DispatchQueued = "queued"
)
