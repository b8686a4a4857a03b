// Package testutil provides shared helpers for foreman tests.
//
// It should only be imported by test files (*_test.go).
package testutil

import (
	"testing"
	"time"

	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/domain"
)

// TempHome points FOREMAN_HOME at a fresh temp directory for the duration
// of the test and returns its path.
func TempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(constants.EnvHome, home)
	return home
}

// NewTask builds a queued task fixture with sensible defaults.
func NewTask(id, taskType string) *domain.Task {
	now := time.Now().UTC()
	return &domain.Task{
		ID:          id,
		Type:        taskType,
		Description: "test task " + id,
		Priority:    5,
		Status:      constants.TaskStatusQueued,
		Created:     now,
		Updated:     now,
	}
}
