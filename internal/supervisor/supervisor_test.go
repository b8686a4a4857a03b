package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/foreman/internal/clock"
	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/registry"
	"github.com/mrz1836/foreman/internal/store"
	"github.com/mrz1836/foreman/internal/testutil"
)

// testFixture bundles a supervisor with its backing state files.
type testFixture struct {
	supervisor *Supervisor
	store      *store.FileStore
	registry   *registry.FileRegistry
	clk        *clock.FakeClock
	statusDir  string
}

func setupTestSupervisor(t *testing.T, work WorkFunc, gate GateFunc, cfg config.SupervisorConfig) *testFixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewFileStore(filepath.Join(dir, constants.TaskStoreFileName))
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	r, err := registry.NewFileRegistry(filepath.Join(dir, constants.RegistryFileName), clk)
	require.NoError(t, err)

	statusDir := filepath.Join(dir, constants.StatusDir)
	sup, err := New(Options{
		Name:         "tester1",
		Capabilities: []string{"testing"},
		Store:        s,
		Registry:     r,
		Config:       cfg,
		PollInterval: 100 * time.Millisecond,
		StatusDir:    statusDir,
		Work:         work,
		Gate:         gate,
		Clock:        clk,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return &testFixture{supervisor: sup, store: s, registry: r, clk: clk, statusDir: statusDir}
}

// defaultTestConfig keeps backoff short and deterministic.
func defaultTestConfig() config.SupervisorConfig {
	return config.SupervisorConfig{
		BackoffBase: time.Second,
		BackoffCap:  4 * time.Second,
		MaxRestarts: 5,
		TaskTimeout: time.Minute,
	}
}

// assignTask simulates the dispatcher pinning a task to the agent.
func (f *testFixture) assignTask(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, testutil.NewTask(id, "testing")))
	agent := "tester1"
	_, err := f.store.UpdateStatus(ctx, id, constants.TaskStatusAssigned, &store.StatusUpdate{AssignedAgent: &agent})
	require.NoError(t, err)
	_, err = f.registry.Register(ctx, "tester1", []string{"testing"})
	require.NoError(t, err)
	_, err = f.registry.Update(ctx, "tester1", func(a *domain.Agent) error {
		a.Status = constants.AgentStatusBusy
		a.CurrentTask = id
		return nil
	})
	require.NoError(t, err)
}

func (f *testFixture) readStatusFile(t *testing.T) statusSnapshot {
	t.Helper()
	data, err := os.ReadFile(f.supervisor.StatusFilePath())
	require.NoError(t, err)
	var snapshot statusSnapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))
	return snapshot
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	require.ErrorIs(t, err, foremanerrors.ErrEmptyValue)
}

func TestBackoffDelay(t *testing.T) {
	base, cap := time.Second, 8*time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 8 * time.Second},
		{10, 8 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(base, cap, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestSupervisor_Run_GateBlocksStartup(t *testing.T) {
	work := func(context.Context, *domain.Task) error { t.Fatal("work must never run"); return nil }
	gate := func() error { return errors.New("docker not found") }
	f := setupTestSupervisor(t, work, gate, defaultTestConfig())

	err := f.supervisor.Run(context.Background())
	require.ErrorIs(t, err, foremanerrors.ErrDependencyUnavailable)
	assert.Equal(t, constants.SupervisorStopped, f.supervisor.State())

	snapshot := f.readStatusFile(t)
	assert.Contains(t, snapshot.Reason, "docker not found")
	assert.False(t, snapshot.Exhausted)
}

func TestSupervisor_Run_CompletesTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	work := func(context.Context, *domain.Task) error {
		calls++
		cancel() // one cycle is enough for this test
		return nil
	}
	f := setupTestSupervisor(t, work, nil, defaultTestConfig())
	f.assignTask(t, "todo_1")

	err := f.supervisor.Run(ctx)
	require.NoError(t, err, "cancellation after a clean cycle is a graceful stop")
	assert.Equal(t, 1, calls)

	task, err := f.store.Get(context.Background(), "todo_1")
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusCompleted, task.Status)

	agent, err := f.registry.Get(context.Background(), "tester1")
	require.NoError(t, err)
	assert.Equal(t, constants.AgentStatusStopped, agent.Status, "graceful shutdown deregisters the agent")
	assert.Empty(t, agent.CurrentTask)

	snapshot := f.readStatusFile(t)
	assert.Equal(t, constants.SupervisorStopped, snapshot.State)
	assert.False(t, snapshot.Exhausted)
}

func TestSupervisor_RunTask_Failure(t *testing.T) {
	ctx := context.Background()
	work := func(context.Context, *domain.Task) error { return errors.New("exit status 1") }
	f := setupTestSupervisor(t, work, nil, defaultTestConfig())
	f.assignTask(t, "todo_1")

	task, err := f.store.Get(ctx, "todo_1")
	require.NoError(t, err)
	err = f.supervisor.runTask(ctx, task)
	require.ErrorIs(t, err, foremanerrors.ErrTaskFailed)

	got, err := f.store.Get(ctx, "todo_1")
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "exit status 1")

	agent, err := f.registry.Get(ctx, "tester1")
	require.NoError(t, err)
	assert.Equal(t, constants.AgentStatusIdle, agent.Status, "failure releases the agent")
}

func TestSupervisor_RunTask_Timeout(t *testing.T) {
	ctx := context.Background()
	cfg := defaultTestConfig()
	cfg.TaskTimeout = 20 * time.Millisecond
	work := func(taskCtx context.Context, _ *domain.Task) error {
		<-taskCtx.Done()
		return taskCtx.Err()
	}
	f := setupTestSupervisor(t, work, nil, cfg)
	f.assignTask(t, "todo_1")

	task, err := f.store.Get(ctx, "todo_1")
	require.NoError(t, err)
	err = f.supervisor.runTask(ctx, task)
	require.ErrorIs(t, err, foremanerrors.ErrTaskTimeout)

	got, err := f.store.Get(ctx, "todo_1")
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusFailed, got.Status)
}

func TestSupervisor_RunTask_HeartbeatsDuringWork(t *testing.T) {
	ctx := context.Background()
	var f *testFixture
	var observed *domain.Agent
	work := func(taskCtx context.Context, _ *domain.Task) error {
		// A stale sweep firing while work is in flight marks the agent
		// stopped; the next mid-task heartbeat must take it back so a
		// live agent is never treated as dead.
		_, err := f.registry.Update(taskCtx, "tester1", func(a *domain.Agent) error {
			a.Status = constants.AgentStatusStopped
			return nil
		})
		if err != nil {
			return err
		}
		time.Sleep(250 * time.Millisecond)
		observed, err = f.registry.Get(taskCtx, "tester1")
		return err
	}
	f = setupTestSupervisor(t, work, nil, defaultTestConfig())
	f.assignTask(t, "todo_1")

	task, err := f.store.Get(ctx, "todo_1")
	require.NoError(t, err)
	require.NoError(t, f.supervisor.runTask(ctx, task))

	require.NotNil(t, observed)
	assert.Equal(t, constants.AgentStatusBusy, observed.Status)
	assert.Equal(t, "todo_1", observed.CurrentTask)
}

func TestSupervisor_RunTask_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	work := func(taskCtx context.Context, _ *domain.Task) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	}
	f := setupTestSupervisor(t, work, nil, defaultTestConfig())
	f.assignTask(t, "todo_1")

	task, err := f.store.Get(context.Background(), "todo_1")
	require.NoError(t, err)
	err = f.supervisor.runTask(ctx, task)
	require.ErrorIs(t, err, foremanerrors.ErrTaskCancelled)

	// A cancelled task is recorded as failed, never silently dropped.
	got, err := f.store.Get(context.Background(), "todo_1")
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusFailed, got.Status)

	agent, err := f.registry.Get(context.Background(), "tester1")
	require.NoError(t, err)
	assert.Equal(t, constants.AgentStatusIdle, agent.Status)
}

func TestSupervisor_Failed_BackoffSequence(t *testing.T) {
	ctx := context.Background()
	cfg := defaultTestConfig()
	work := func(context.Context, *domain.Task) error { return errors.New("boom") }
	f := setupTestSupervisor(t, work, nil, cfg)
	_, err := f.registry.Register(ctx, "tester1", []string{"testing"})
	require.NoError(t, err)

	cause := errors.New("boom")
	for i := 1; i < cfg.MaxRestarts; i++ {
		require.NoError(t, f.supervisor.failed(ctx, cause))
		assert.Equal(t, i, f.supervisor.RestartCount())
	}

	// Delays double from base and stay clamped at the cap.
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second,
	}, f.clk.Sleeps())

	// The final failure crosses the ceiling: terminal, loud, no sleep.
	err = f.supervisor.failed(ctx, cause)
	require.ErrorIs(t, err, foremanerrors.ErrRestartsExhausted)
	assert.Equal(t, constants.SupervisorStopped, f.supervisor.State())
	assert.Len(t, f.clk.Sleeps(), cfg.MaxRestarts-1)

	snapshot := f.readStatusFile(t)
	assert.True(t, snapshot.Exhausted, "exhaustion must be distinguishable from a graceful stop")
	assert.Equal(t, cfg.MaxRestarts, snapshot.RestartCount)

	agent, err := f.registry.Get(ctx, "tester1")
	require.NoError(t, err)
	assert.Equal(t, constants.AgentStatusUnhealthy, agent.Status)
}

func TestSupervisor_CleanCycleResetsRestartCount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	work := func(context.Context, *domain.Task) error {
		cancel()
		return nil
	}
	f := setupTestSupervisor(t, work, nil, defaultTestConfig())
	f.assignTask(t, "todo_1")
	f.supervisor.restartCount = 3

	require.NoError(t, f.supervisor.Run(ctx))
	assert.Equal(t, 0, f.supervisor.RestartCount())
}
