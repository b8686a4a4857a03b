// Package store provides durable task-queue persistence for foreman.
// The queue is a single JSON file guarded by an advisory file lock, with
// atomic writes for data integrity. Every mutating operation is a locked
// read-modify-write cycle and is durable before it returns: a crash never
// loses an acknowledged mutation.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/ctxutil"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/flock"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// Store defines the interface for task persistence operations.
// All mutating operations are serialized behind a single-writer lock, so
// multiple agent processes can share one store file safely.
type Store interface {
	// Append adds a new task to the queue.
	// Returns ErrDuplicateTask if a task with the same id exists.
	Append(ctx context.Context, task *domain.Task) error

	// Get retrieves a task by id.
	// Returns ErrTaskNotFound if the id is absent.
	Get(ctx context.Context, id string) (*domain.Task, error)

	// List returns all tasks ordered by priority, then creation time.
	List(ctx context.Context) ([]*domain.Task, error)

	// UpdateStatus atomically transitions a task and persists the result.
	// Returns the updated task, or ErrTaskNotFound if the id is absent.
	UpdateStatus(ctx context.Context, id string, status constants.TaskStatus, update *StatusUpdate) (*domain.Task, error)

	// NextAvailable returns the most urgent queued task whose type is in
	// the capability set and whose dependencies are all completed.
	// Returns ErrNoEligibleTask when nothing matches; that is backpressure,
	// not a failure.
	NextAvailable(ctx context.Context, capabilities []string) (*domain.Task, error)

	// Prune removes terminal tasks older than ttl and returns the count.
	Prune(ctx context.Context, ttl time.Duration) (int, error)
}

// StatusUpdate carries the optional extra fields of a status transition.
type StatusUpdate struct {
	// AssignedAgent sets task.assigned_agent when non-nil. An empty
	// string clears the assignment.
	AssignedAgent *string

	// Error records the failure message for failed transitions.
	Error string
}

// storeFile is the on-disk envelope of the task queue.
type storeFile struct {
	SchemaVersion int            `json:"schema_version"`
	Updated       time.Time      `json:"updated"`
	Tasks         []*domain.Task `json:"tasks"`
}

// FileStore implements Store using a single JSON file plus a lock file.
type FileStore struct {
	path     string
	lockPath string
}

// NewFileStore creates a FileStore persisting to the given file path.
// The parent directory is created if needed; the file itself is created
// lazily on first mutation, so a missing file reads as an empty store.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("failed to create store: path %w", foremanerrors.ErrEmptyValue)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{path: path, lockPath: path + ".lock"}, nil
}

// Path returns the store file location.
func (s *FileStore) Path() string { return s.path }

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)

// Append adds a new task to the queue.
func (s *FileStore) Append(ctx context.Context, task *domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("failed to append task: task %w", foremanerrors.ErrEmptyValue)
	}
	if task.ID == "" {
		return fmt.Errorf("failed to append task: task ID %w", foremanerrors.ErrEmptyValue)
	}
	if !task.Status.IsValid() {
		return fmt.Errorf("failed to append task '%s': status %q: %w", task.ID, task.Status, foremanerrors.ErrInvalidStatus)
	}

	return s.withLock(ctx, func(sf *storeFile) error {
		for _, existing := range sf.Tasks {
			if existing.ID == task.ID {
				return fmt.Errorf("failed to append task '%s': %w", task.ID, foremanerrors.ErrDuplicateTask)
			}
		}
		sf.Tasks = append(sf.Tasks, task)
		return nil
	})
}

// Get retrieves a task by id.
func (s *FileStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("failed to get task: task ID %w", foremanerrors.ErrEmptyValue)
	}

	sf, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	for _, task := range sf.Tasks {
		if task.ID == id {
			return task, nil
		}
	}
	return nil, fmt.Errorf("failed to get task '%s': %w", id, foremanerrors.ErrTaskNotFound)
}

// List returns all tasks ordered by priority (lower first), ties broken by
// creation time ascending.
func (s *FileStore) List(ctx context.Context) ([]*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sf, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	tasks := sf.Tasks
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		return tasks[i].Created.Before(tasks[j].Created)
	})
	return tasks, nil
}

// UpdateStatus atomically transitions a task and persists the result.
func (s *FileStore) UpdateStatus(ctx context.Context, id string, status constants.TaskStatus, update *StatusUpdate) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("failed to update task: task ID %w", foremanerrors.ErrEmptyValue)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("failed to update task '%s': status %q: %w", id, status, foremanerrors.ErrInvalidStatus)
	}

	var updated *domain.Task
	err := s.withLock(ctx, func(sf *storeFile) error {
		for _, task := range sf.Tasks {
			if task.ID != id {
				continue
			}
			now := time.Now().UTC()
			task.Status = status
			task.Updated = now
			if status.IsTerminal() {
				task.CompletedAt = &now
			}
			if update != nil {
				if update.AssignedAgent != nil {
					task.AssignedAgent = *update.AssignedAgent
				}
				if update.Error != "" {
					task.Error = update.Error
				}
			}
			updated = task
			return nil
		}
		return fmt.Errorf("failed to update task '%s': %w", id, foremanerrors.ErrTaskNotFound)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// NextAvailable returns the most urgent eligible queued task.
func (s *FileStore) NextAvailable(ctx context.Context, capabilities []string) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sf, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	capSet := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		capSet[c] = true
	}
	completed := make(map[string]bool)
	for _, task := range sf.Tasks {
		if task.Status == constants.TaskStatusCompleted {
			completed[task.ID] = true
		}
	}
	done := func(id string) bool { return completed[id] }

	var best *domain.Task
	for _, task := range sf.Tasks {
		if !task.Eligible(capSet, done) {
			continue
		}
		if best == nil || moreUrgent(task, best) {
			best = task
		}
	}
	if best == nil {
		return nil, foremanerrors.ErrNoEligibleTask
	}
	return best, nil
}

// Prune removes terminal tasks whose last update is older than ttl.
func (s *FileStore) Prune(ctx context.Context, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := s.withLock(ctx, func(sf *storeFile) error {
		cutoff := time.Now().UTC().Add(-ttl)
		kept := sf.Tasks[:0]
		for _, task := range sf.Tasks {
			if task.Status.IsTerminal() && task.Updated.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, task)
		}
		sf.Tasks = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// moreUrgent reports whether a should be dispatched before b.
// Lower priority value wins; ties go to the older task.
func moreUrgent(a, b *domain.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Created.Before(b.Created)
}

// withLock runs mutate inside the locked read-modify-persist cycle.
// The lock is released on every exit path, including mutation errors.
func (s *FileStore) withLock(ctx context.Context, mutate func(*storeFile) error) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	lockFile, err := flock.Acquire(ctx, s.lockPath, constants.LockTimeout, constants.LockRetryInterval)
	if err != nil {
		return err
	}
	defer func() { _ = flock.Release(lockFile) }()

	sf, err := s.load()
	if err != nil {
		return err
	}
	if err := mutate(sf); err != nil {
		return err
	}
	sf.Updated = time.Now().UTC()
	sf.SchemaVersion = constants.StoreSchemaVersion

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	return atomicWrite(s.path, data)
}

// read loads the store under the lock without mutating it.
func (s *FileStore) read(ctx context.Context) (*storeFile, error) {
	lockFile, err := flock.Acquire(ctx, s.lockPath, constants.LockTimeout, constants.LockRetryInterval)
	if err != nil {
		return nil, err
	}
	defer func() { _ = flock.Release(lockFile) }()

	return s.load()
}

// load parses the persisted representation. A missing file initializes an
// empty store; an unparsable file is ErrStoreCorrupt and is never repaired
// or overwritten here.
func (s *FileStore) load() (*storeFile, error) {
	data, err := os.ReadFile(s.path) //#nosec G304 -- path is constructed from trusted configuration
	if err != nil {
		if os.IsNotExist(err) {
			return &storeFile{SchemaVersion: constants.StoreSchemaVersion}, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var sf storeFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse store file '%s': %w", s.path, foremanerrors.ErrStoreCorrupt)
	}
	return &sf, nil
}

// atomicWrite writes data to a file atomically using write-then-rename.
// The temp file is synced to disk before the rename so an acknowledged
// mutation survives a crash.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
