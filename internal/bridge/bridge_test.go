package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/store"
)

// setupTestBridge creates a bridge over a temp-dir store.
func setupTestBridge(t *testing.T) (*Bridge, *store.FileStore) {
	t.Helper()
	s, err := store.NewFileStore(filepath.Join(t.TempDir(), constants.TaskStoreFileName))
	require.NoError(t, err)
	return New(s, zerolog.Nop()), s
}

func TestTaskType(t *testing.T) {
	tests := []struct {
		agent string
		want  string
	}{
		{"testing_agent", "testing"},
		{"security_agent", "security"},
		{"review_agent", "review"},
		{"documentation_agent", "documentation"},
		{"debug_agent", "debug"},
		{"mystery_agent", "debug"},
		{"", "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.agent, func(t *testing.T) {
			assert.Equal(t, tt.want, TaskType(tt.agent))
		})
	}
}

func TestBridge_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("converts and appends", func(t *testing.T) {
		b, s := setupTestBridge(t)
		result, err := b.Ingest(ctx, []domain.Assignment{
			{ID: "41", File: "pkg/auth.go", Line: 120, Text: "add negative-path tests", Agent: "testing_agent", Priority: 2},
			{ID: "42", File: "pkg/auth.go", Line: 205, Text: "audit token handling", Agent: "security_agent"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Ingested)
		assert.Equal(t, 0, result.Skipped)

		task, err := s.Get(ctx, "todo_41")
		require.NoError(t, err)
		assert.Equal(t, "testing", task.Type)
		assert.Equal(t, 2, task.Priority)
		assert.Equal(t, constants.TaskStatusQueued, task.Status)
		assert.Contains(t, task.Description, "pkg/auth.go:120")

		// Missing priority falls back to the default.
		task, err = s.Get(ctx, "todo_42")
		require.NoError(t, err)
		assert.Equal(t, defaultPriority, task.Priority)
	})

	t.Run("repeated runs are idempotent", func(t *testing.T) {
		b, s := setupTestBridge(t)
		assignments := []domain.Assignment{
			{ID: "41", Text: "one", Agent: "testing_agent"},
			{ID: "42", Text: "two", Agent: "review_agent"},
		}

		first, err := b.Ingest(ctx, assignments)
		require.NoError(t, err)
		assert.Equal(t, 2, first.Ingested)

		second, err := b.Ingest(ctx, assignments)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Ingested)
		assert.Equal(t, 2, second.Skipped)

		tasks, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("unknown agent lands as debug, never dropped", func(t *testing.T) {
		b, s := setupTestBridge(t)
		result, err := b.Ingest(ctx, []domain.Assignment{
			{ID: "99", Text: "something odd", Agent: "quantum_agent"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Ingested)

		task, err := s.Get(ctx, "todo_99")
		require.NoError(t, err)
		assert.Equal(t, "debug", task.Type)
	})

	t.Run("empty assignment id aborts", func(t *testing.T) {
		b, _ := setupTestBridge(t)
		_, err := b.Ingest(ctx, []domain.Assignment{{Text: "no id", Agent: "testing_agent"}})
		require.ErrorIs(t, err, foremanerrors.ErrEmptyValue)
	})

	t.Run("corrupt store aborts the run", func(t *testing.T) {
		b, s := setupTestBridge(t)
		require.NoError(t, os.WriteFile(s.Path(), []byte("{broken"), 0o600))

		result, err := b.Ingest(ctx, []domain.Assignment{
			{ID: "41", Text: "one", Agent: "testing_agent"},
			{ID: "42", Text: "two", Agent: "testing_agent"},
		})
		require.ErrorIs(t, err, foremanerrors.ErrStoreCorrupt)
		assert.Equal(t, 0, result.Ingested)

		// The corrupt file is untouched.
		data, readErr := os.ReadFile(s.Path())
		require.NoError(t, readErr)
		assert.Equal(t, "{broken", string(data))
	})
}
