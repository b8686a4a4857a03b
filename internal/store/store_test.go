package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
)

// newTestTask creates a queued test task with the given id and type.
func newTestTask(id, taskType string) *domain.Task {
	now := time.Now().UTC()
	return &domain.Task{
		ID:          id,
		Type:        taskType,
		Description: "test task",
		Priority:    5,
		Status:      constants.TaskStatusQueued,
		Created:     now,
		Updated:     now,
		Source:      "test",
	}
}

// setupTestStore creates a store backed by a temp directory.
func setupTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), constants.TaskStoreFileName))
	require.NoError(t, err)
	return s
}

func TestNewFileStore(t *testing.T) {
	t.Run("creates parent directory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "tasks.json")
		s, err := NewFileStore(path)
		require.NoError(t, err)
		assert.Equal(t, path, s.Path())

		_, err = os.Stat(filepath.Join(dir, "nested"))
		require.NoError(t, err)
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := NewFileStore("")
		require.ErrorIs(t, err, foremanerrors.ErrEmptyValue)
	})
}

func TestFileStore_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("appends and persists", func(t *testing.T) {
		s := setupTestStore(t)
		require.NoError(t, s.Append(ctx, newTestTask("todo_1", "testing")))

		got, err := s.Get(ctx, "todo_1")
		require.NoError(t, err)
		assert.Equal(t, "testing", got.Type)

		// Durable: the file exists after the call returns.
		_, err = os.Stat(s.Path())
		require.NoError(t, err)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		s := setupTestStore(t)
		require.NoError(t, s.Append(ctx, newTestTask("todo_1", "testing")))
		err := s.Append(ctx, newTestTask("todo_1", "review"))
		require.ErrorIs(t, err, foremanerrors.ErrDuplicateTask)

		// A,B,A leaves exactly one A.
		require.NoError(t, s.Append(ctx, newTestTask("todo_2", "review")))
		_ = s.Append(ctx, newTestTask("todo_1", "testing"))
		tasks, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		s := setupTestStore(t)
		err := s.Append(ctx, newTestTask("", "testing"))
		require.ErrorIs(t, err, foremanerrors.ErrEmptyValue)
	})

	t.Run("rejects invalid status", func(t *testing.T) {
		s := setupTestStore(t)
		task := newTestTask("todo_1", "testing")
		task.Status = constants.TaskStatus("paused")
		err := s.Append(ctx, task)
		require.ErrorIs(t, err, foremanerrors.ErrInvalidStatus)
	})
}

func TestFileStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file reads as empty store", func(t *testing.T) {
		s := setupTestStore(t)
		_, err := s.Get(ctx, "todo_1")
		require.ErrorIs(t, err, foremanerrors.ErrTaskNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := setupTestStore(t)
		require.NoError(t, s.Append(ctx, newTestTask("todo_1", "testing")))
		_, err := s.Get(ctx, "todo_2")
		require.ErrorIs(t, err, foremanerrors.ErrTaskNotFound)
	})
}

func TestFileStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, err := s.List(ctx)
	require.ErrorIs(t, err, foremanerrors.ErrStoreCorrupt)

	// A corrupt store must never be overwritten by a mutation.
	err = s.Append(ctx, newTestTask("todo_1", "testing"))
	require.ErrorIs(t, err, foremanerrors.ErrStoreCorrupt)
	data, readErr := os.ReadFile(s.Path())
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(data))
}

func TestFileStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("transitions and sets fields", func(t *testing.T) {
		s := setupTestStore(t)
		require.NoError(t, s.Append(ctx, newTestTask("todo_1", "testing")))

		agent := "tester1"
		got, err := s.UpdateStatus(ctx, "todo_1", constants.TaskStatusAssigned, &StatusUpdate{AssignedAgent: &agent})
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusAssigned, got.Status)
		assert.Equal(t, "tester1", got.AssignedAgent)
		assert.Nil(t, got.CompletedAt)

		got, err = s.UpdateStatus(ctx, "todo_1", constants.TaskStatusFailed, &StatusUpdate{Error: "boom"})
		require.NoError(t, err)
		assert.Equal(t, "boom", got.Error)
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := setupTestStore(t)
		_, err := s.UpdateStatus(ctx, "todo_9", constants.TaskStatusRunning, nil)
		require.ErrorIs(t, err, foremanerrors.ErrTaskNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		s := setupTestStore(t)
		require.NoError(t, s.Append(ctx, newTestTask("todo_1", "testing")))
		_, err := s.UpdateStatus(ctx, "todo_1", constants.TaskStatus("done"), nil)
		require.ErrorIs(t, err, foremanerrors.ErrInvalidStatus)
	})
}

func TestFileStore_NextAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("orders by priority then age", func(t *testing.T) {
		s := setupTestStore(t)

		low := newTestTask("todo_low", "testing")
		low.Priority = 9
		urgent := newTestTask("todo_urgent", "testing")
		urgent.Priority = 1
		older := newTestTask("todo_older", "testing")
		older.Priority = 1
		older.Created = urgent.Created.Add(-time.Minute)

		require.NoError(t, s.Append(ctx, low))
		require.NoError(t, s.Append(ctx, urgent))
		require.NoError(t, s.Append(ctx, older))

		got, err := s.NextAvailable(ctx, []string{"testing"})
		require.NoError(t, err)
		assert.Equal(t, "todo_older", got.ID)
	})

	t.Run("filters by capability", func(t *testing.T) {
		s := setupTestStore(t)
		require.NoError(t, s.Append(ctx, newTestTask("todo_sec", "security")))

		_, err := s.NextAvailable(ctx, []string{"testing"})
		require.ErrorIs(t, err, foremanerrors.ErrNoEligibleTask)

		got, err := s.NextAvailable(ctx, []string{"testing", "security"})
		require.NoError(t, err)
		assert.Equal(t, "todo_sec", got.ID)
	})

	t.Run("holds back tasks with incomplete dependencies", func(t *testing.T) {
		s := setupTestStore(t)
		dep := newTestTask("todo_dep", "testing")
		blocked := newTestTask("todo_blocked", "testing")
		blocked.Dependencies = []string{"todo_dep"}
		blocked.Priority = 1
		require.NoError(t, s.Append(ctx, dep))
		require.NoError(t, s.Append(ctx, blocked))

		got, err := s.NextAvailable(ctx, []string{"testing"})
		require.NoError(t, err)
		assert.Equal(t, "todo_dep", got.ID, "blocked task must not be returned while its dependency is incomplete")

		_, err = s.UpdateStatus(ctx, "todo_dep", constants.TaskStatusCompleted, nil)
		require.NoError(t, err)

		got, err = s.NextAvailable(ctx, []string{"testing"})
		require.NoError(t, err)
		assert.Equal(t, "todo_blocked", got.ID)
	})

	t.Run("skips non-queued tasks", func(t *testing.T) {
		s := setupTestStore(t)
		require.NoError(t, s.Append(ctx, newTestTask("todo_1", "testing")))
		_, err := s.UpdateStatus(ctx, "todo_1", constants.TaskStatusAssigned, nil)
		require.NoError(t, err)

		_, err = s.NextAvailable(ctx, []string{"testing"})
		require.ErrorIs(t, err, foremanerrors.ErrNoEligibleTask)
	})
}

func TestFileStore_Prune(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	old := newTestTask("todo_old", "testing")
	require.NoError(t, s.Append(ctx, old))
	_, err := s.UpdateStatus(ctx, "todo_old", constants.TaskStatusCompleted, nil)
	require.NoError(t, err)

	fresh := newTestTask("todo_fresh", "testing")
	require.NoError(t, s.Append(ctx, fresh))

	// Zero TTL prunes every terminal task but never queued ones.
	removed, err := s.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "todo_fresh", tasks[0].ID)
}

func TestFileStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			task := newTestTask(taskID(n), "testing")
			errs[n] = s.Append(ctx, task)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, writers, "locked read-modify-write must not lose appends")
}

// taskID builds a distinct id per writer goroutine.
func taskID(n int) string {
	return "todo_c" + string(rune('a'+n))
}
