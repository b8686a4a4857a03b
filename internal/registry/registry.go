// Package registry tracks which agents exist, their capabilities, and
// liveness. Entries are created on first registration, refreshed by
// heartbeats, and marked stopped when heartbeats go stale beyond the
// configured timeout.
//
// The registry persists to a single JSON file guarded by an advisory file
// lock, mirroring the task store's single-writer contract. Historical
// writers produced both a list-of-records and a map-of-name-to-record
// shape; both are accepted on read (see codec.go), and this package is the
// single canonical writer, always persisting the map shape.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mrz1836/foreman/internal/clock"
	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/ctxutil"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/flock"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Registry defines agent liveness and capability tracking.
type Registry interface {
	// Register performs an idempotent upsert and returns the entry.
	// Re-registering refreshes capabilities and liveness; stopped or
	// unhealthy agents come back idle.
	Register(ctx context.Context, name string, capabilities []string) (*domain.Agent, error)

	// Heartbeat updates last_heartbeat and status.
	// Returns ErrUnknownAgent if the agent never registered.
	Heartbeat(ctx context.Context, name string, status constants.AgentStatus) (*domain.Agent, error)

	// Get returns the entry for name, or ErrUnknownAgent.
	Get(ctx context.Context, name string) (*domain.Agent, error)

	// List returns all entries sorted by name.
	List(ctx context.Context) ([]*domain.Agent, error)

	// Update applies mutate to the named entry inside the write lock.
	Update(ctx context.Context, name string, mutate func(*domain.Agent) error) (*domain.Agent, error)

	// MarkStale marks agents whose heartbeat is older than timeout as
	// stopped and returns their names.
	MarkStale(ctx context.Context, timeout time.Duration) ([]string, error)
}

// FileRegistry implements Registry using a JSON file plus a lock file.
type FileRegistry struct {
	path     string
	lockPath string
	clk      clock.Clock
}

// NewFileRegistry creates a FileRegistry persisting to the given path.
// A missing file reads as an empty registry.
func NewFileRegistry(path string, clk clock.Clock) (*FileRegistry, error) {
	if path == "" {
		return nil, fmt.Errorf("failed to create registry: path %w", foremanerrors.ErrEmptyValue)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	return &FileRegistry{path: path, lockPath: path + ".lock", clk: clk}, nil
}

// Ensure FileRegistry implements Registry.
var _ Registry = (*FileRegistry)(nil)

// Register performs an idempotent upsert and returns the entry.
func (r *FileRegistry) Register(ctx context.Context, name string, capabilities []string) (*domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("failed to register: agent name %w", foremanerrors.ErrEmptyValue)
	}

	var out *domain.Agent
	err := r.withLock(ctx, func(rf *registryFile) error {
		now := r.clk.Now().UTC()
		agent, ok := rf.Agents[name]
		if !ok {
			agent = &domain.Agent{Name: name, Status: constants.AgentStatusIdle, Registered: now}
			rf.Agents[name] = agent
		}
		// Re-registration refreshes capabilities and liveness but keeps a
		// live assignment intact; orphan cleanup belongs to reconciliation.
		agent.Capabilities = capabilities
		agent.LastHeartbeat = now
		if agent.Status == constants.AgentStatusStopped || agent.Status == constants.AgentStatusUnhealthy {
			agent.Status = constants.AgentStatusIdle
			agent.CurrentTask = ""
		}
		out = agent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Heartbeat updates last_heartbeat and status for a registered agent.
// A heartbeat after the staleness timeout still lands: staleness is a
// point-in-time query, not a sticky state. A bare heartbeat (no status)
// from an agent the sweep marked stopped or unhealthy proves it is alive
// again and brings it back idle; otherwise the current status is kept.
func (r *FileRegistry) Heartbeat(ctx context.Context, name string, status constants.AgentStatus) (*domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("failed to heartbeat: agent name %w", foremanerrors.ErrEmptyValue)
	}
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("failed to heartbeat '%s': status %q: %w", name, status, foremanerrors.ErrInvalidStatus)
	}

	var out *domain.Agent
	err := r.withLock(ctx, func(rf *registryFile) error {
		agent, ok := rf.Agents[name]
		if !ok {
			return fmt.Errorf("failed to heartbeat '%s': %w", name, foremanerrors.ErrUnknownAgent)
		}
		agent.LastHeartbeat = r.clk.Now().UTC()
		switch {
		case status != "":
			agent.Status = status
		case agent.Status == constants.AgentStatusStopped || agent.Status == constants.AgentStatusUnhealthy:
			agent.Status = constants.AgentStatusIdle
			agent.CurrentTask = ""
		}
		out = agent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the entry for name.
func (r *FileRegistry) Get(ctx context.Context, name string) (*domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rf, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	agent, ok := rf.Agents[name]
	if !ok {
		return nil, fmt.Errorf("failed to get agent '%s': %w", name, foremanerrors.ErrUnknownAgent)
	}
	return agent, nil
}

// List returns all entries sorted by name for stable output.
func (r *FileRegistry) List(ctx context.Context) ([]*domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rf, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	agents := make([]*domain.Agent, 0, len(rf.Agents))
	for _, agent := range rf.Agents {
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

// Update applies mutate to the named entry inside the write lock.
func (r *FileRegistry) Update(ctx context.Context, name string, mutate func(*domain.Agent) error) (*domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *domain.Agent
	err := r.withLock(ctx, func(rf *registryFile) error {
		agent, ok := rf.Agents[name]
		if !ok {
			return fmt.Errorf("failed to update agent '%s': %w", name, foremanerrors.ErrUnknownAgent)
		}
		if err := mutate(agent); err != nil {
			return err
		}
		out = agent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkStale marks agents with heartbeats older than timeout as stopped
// and releases their current task, so reconciliation can requeue work
// pinned to a dead agent. Agents already stopped are left untouched.
func (r *FileRegistry) MarkStale(ctx context.Context, timeout time.Duration) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stale []string
	err := r.withLock(ctx, func(rf *registryFile) error {
		now := r.clk.Now()
		for _, agent := range rf.Agents {
			if agent.Status == constants.AgentStatusStopped {
				continue
			}
			if agent.IsStale(now, timeout) {
				agent.Status = constants.AgentStatusStopped
				agent.CurrentTask = ""
				stale = append(stale, agent.Name)
			}
		}
		sort.Strings(stale)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// withLock runs mutate inside the locked read-modify-persist cycle.
// The lock is released on every exit path, including mutation errors.
func (r *FileRegistry) withLock(ctx context.Context, mutate func(*registryFile) error) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	lockFile, err := flock.Acquire(ctx, r.lockPath, constants.LockTimeout, constants.LockRetryInterval)
	if err != nil {
		return err
	}
	defer func() { _ = flock.Release(lockFile) }()

	rf, err := r.load()
	if err != nil {
		return err
	}
	if err := mutate(rf); err != nil {
		return err
	}
	rf.LastUpdate = r.clk.Now().UTC()

	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	return atomicWrite(r.path, data)
}

// read loads the registry under the lock without mutating it.
func (r *FileRegistry) read(ctx context.Context) (*registryFile, error) {
	lockFile, err := flock.Acquire(ctx, r.lockPath, constants.LockTimeout, constants.LockRetryInterval)
	if err != nil {
		return nil, err
	}
	defer func() { _ = flock.Release(lockFile) }()

	return r.load()
}

// load parses the persisted representation, accepting both historical
// shapes. A missing file initializes an empty registry; an unparsable file
// is ErrStoreCorrupt.
func (r *FileRegistry) load() (*registryFile, error) {
	data, err := os.ReadFile(r.path) //#nosec G304 -- path is constructed from trusted configuration
	if err != nil {
		if os.IsNotExist(err) {
			return newRegistryFile(), nil
		}
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	rf, err := decodeRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry file '%s': %w", r.path, err)
	}
	return rf, nil
}

// atomicWrite writes data to a file atomically using write-then-rename.
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
