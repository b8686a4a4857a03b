// Package bridge ingests raw assignment records produced by static scans
// and converts them into normalized task-queue entries. Ingestion is
// idempotent: task ids are derived deterministically from the assignment
// id, so repeated runs over the same scan output never create duplicates.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/store"
)

// taskIDPrefix namespaces bridged tasks so ad-hoc submissions can never
// collide with scan-derived ones.
const taskIDPrefix = "todo_"

// defaultPriority applies when an assignment record carries none.
const defaultPriority = constants.DefaultTaskPriority

// agentTaskTypes maps scanner agent names to task types. Unknown agent
// names fall back to "debug" so no assignment is ever silently dropped.
var agentTaskTypes = map[string]string{
	"testing_agent":       "testing",
	"security_agent":      "security",
	"review_agent":        "review",
	"documentation_agent": "documentation",
	"debug_agent":         "debug",
}

// fallbackTaskType catches assignments from agents the table does not know.
const fallbackTaskType = "debug"

// Result summarizes one ingestion run.
type Result struct {
	Ingested int // tasks appended to the store
	Skipped  int // assignments already present (by id)
}

// Bridge converts assignment records into task store entries.
type Bridge struct {
	store  store.Store
	logger zerolog.Logger
}

// New creates a Bridge writing to the given store.
func New(s store.Store, logger zerolog.Logger) *Bridge {
	return &Bridge{store: s, logger: logger}
}

// TaskID derives the deterministic task id for an assignment.
func TaskID(assignmentID string) string {
	return taskIDPrefix + assignmentID
}

// TaskType resolves the task type for a scanner agent name.
func TaskType(agent string) string {
	if t, ok := agentTaskTypes[agent]; ok {
		return t
	}
	return fallbackTaskType
}

// Ingest converts the given assignments into tasks and appends the new
// ones to the store. Already-present ids are skipped and logged, not
// errors. A corrupt store aborts the whole run before any partial write.
func (b *Bridge) Ingest(ctx context.Context, assignments []domain.Assignment) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	for _, assignment := range assignments {
		if assignment.ID == "" {
			return result, fmt.Errorf("failed to ingest assignment for '%s': id %w", assignment.File, foremanerrors.ErrEmptyValue)
		}

		task := b.toTask(assignment)
		err := b.store.Append(ctx, task)
		switch {
		case err == nil:
			result.Ingested++
			b.logger.Debug().
				Str("task_id", task.ID).
				Str("type", task.Type).
				Msg("assignment ingested")
		case errors.Is(err, foremanerrors.ErrDuplicateTask):
			result.Skipped++
			b.logger.Debug().
				Str("task_id", task.ID).
				Msg("assignment already ingested, skipping")
		default:
			// Store corruption or I/O failure ends the run immediately so
			// a broken queue file is never papered over.
			return result, fmt.Errorf("failed to ingest assignment '%s': %w", assignment.ID, err)
		}
	}

	b.logger.Info().
		Int("ingested", result.Ingested).
		Int("skipped", result.Skipped).
		Msg("assignment bridge run complete")
	return result, nil
}

// toTask builds the normalized task for one assignment record.
func (b *Bridge) toTask(assignment domain.Assignment) *domain.Task {
	now := time.Now().UTC()
	priority := assignment.Priority
	if priority == 0 {
		priority = defaultPriority
	}
	description := assignment.Text
	if assignment.File != "" {
		description = fmt.Sprintf("%s (%s:%d)", assignment.Text, assignment.File, assignment.Line)
	}
	return &domain.Task{
		ID:          TaskID(assignment.ID),
		Type:        TaskType(assignment.Agent),
		Description: description,
		Priority:    priority,
		Status:      constants.TaskStatusQueued,
		Created:     now,
		Updated:     now,
		Source:      "bridge",
	}
}
