// Package supervisor keeps one agent's work loop alive. Each cycle
// heartbeats the registry, picks up the task the dispatcher pinned to the
// agent, and runs it under a hard timeout. Failures feed bounded
// exponential backoff; a restart ceiling turns the supervisor off
// terminally rather than letting it thrash.
//
// State machine: Starting -> Running -> Completed loops back to Starting;
// Running -> Failed -> Backoff -> Starting until restarts are exhausted,
// then Stopped. An explicit shutdown signal moves any state to Stopped
// gracefully. Every transition is mirrored to a status file for external
// dashboards.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/foreman/internal/clock"
	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/registry"
	"github.com/mrz1836/foreman/internal/store"
)

// WorkFunc executes one task. The context carries the hard execution
// timeout; implementations must honor cancellation.
type WorkFunc func(ctx context.Context, task *domain.Task) error

// GateFunc reports whether the agent's external dependencies are
// currently satisfied. A non-nil error blocks startup and restart
// attempts so the loop does not thrash on a known-missing dependency.
type GateFunc func() error

// Options configures a Supervisor.
type Options struct {
	Name         string
	Capabilities []string
	Store        store.Store
	Registry     registry.Registry
	Config       config.SupervisorConfig
	PollInterval time.Duration
	StatusDir    string
	Work         WorkFunc
	Gate         GateFunc
	Clock        clock.Clock
	Logger       zerolog.Logger
}

// Supervisor drives a single agent's lifecycle.
type Supervisor struct {
	name         string
	capabilities []string
	store        store.Store
	registry     registry.Registry
	cfg          config.SupervisorConfig
	pollInterval time.Duration
	statusDir    string
	work         WorkFunc
	gate         GateFunc
	clk          clock.Clock
	logger       zerolog.Logger

	state        constants.SupervisorState
	restartCount int
	currentTask  string
}

// New creates a Supervisor from the given options.
func New(opts Options) (*Supervisor, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("failed to create supervisor: agent name %w", foremanerrors.ErrEmptyValue)
	}
	if opts.Store == nil || opts.Registry == nil || opts.Work == nil {
		return nil, fmt.Errorf("failed to create supervisor '%s': store, registry and work are required: %w", opts.Name, foremanerrors.ErrEmptyValue)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = constants.DefaultHeartbeatInterval
	}
	return &Supervisor{
		name:         opts.Name,
		capabilities: opts.Capabilities,
		store:        opts.Store,
		registry:     opts.Registry,
		cfg:          opts.Config,
		pollInterval: pollInterval,
		statusDir:    opts.StatusDir,
		work:         opts.Work,
		gate:         opts.Gate,
		clk:          clk,
		logger:       opts.Logger.With().Str("agent", opts.Name).Logger(),
	}, nil
}

// RestartCount returns the current consecutive-failure count.
func (s *Supervisor) RestartCount() int { return s.restartCount }

// State returns the last recorded lifecycle state.
func (s *Supervisor) State() constants.SupervisorState { return s.state }

// Run registers the agent and drives the work loop until the context is
// cancelled, restarts are exhausted, or a required dependency is missing.
// Graceful shutdown returns nil; terminal failures return a sentinel.
func (s *Supervisor) Run(ctx context.Context) error {
	if _, err := s.registry.Register(ctx, s.name, s.capabilities); err != nil {
		return err
	}

	for {
		if err := s.starting(ctx); err != nil {
			return err
		}

		worked, err := s.cycle(ctx)
		switch {
		case err == nil:
			// A clean work cycle clears the failure streak; idle polls
			// leave it untouched.
			if worked {
				s.restartCount = 0
			}
			s.setState(constants.SupervisorCompleted, "")
			if s.clk.Sleep(ctx, s.pollInterval) != nil {
				return s.shutdown(ctx)
			}
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			return s.shutdown(ctx)
		default:
			if halt := s.failed(ctx, err); halt != nil {
				return halt
			}
		}
	}
}

// starting records the Starting state and consults the dependency gate.
func (s *Supervisor) starting(ctx context.Context) error {
	s.setState(constants.SupervisorStarting, "")
	if s.gate == nil {
		return nil
	}
	if err := s.gate(); err != nil {
		reason := fmt.Sprintf("dependency check failed: %v", err)
		s.setState(constants.SupervisorStopped, reason)
		s.deregister(ctx)
		s.logger.Error().Err(err).Msg("startup blocked by missing dependency")
		return fmt.Errorf("failed to start agent '%s': %w", s.name, foremanerrors.ErrDependencyUnavailable)
	}
	return nil
}

// cycle heartbeats and executes the currently pinned task, if any. The
// bool reports whether a task actually ran.
func (s *Supervisor) cycle(ctx context.Context) (bool, error) {
	s.setState(constants.SupervisorRunning, "")

	agent, err := s.registry.Heartbeat(ctx, s.name, "")
	if err != nil {
		return false, err
	}
	if agent.CurrentTask == "" {
		return false, nil
	}

	task, err := s.store.Get(ctx, agent.CurrentTask)
	if err != nil {
		return false, err
	}
	return true, s.runTask(ctx, task)
}

// runTask executes one task under the configured hard timeout and writes
// the outcome back to the task store before releasing the agent.
func (s *Supervisor) runTask(ctx context.Context, task *domain.Task) error {
	s.currentTask = task.ID
	defer func() { s.currentTask = "" }()

	if _, err := s.store.UpdateStatus(ctx, task.ID, constants.TaskStatusRunning, nil); err != nil {
		return err
	}
	s.logger.Info().Str("task_id", task.ID).Str("type", task.Type).Msg("task started")

	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	// Work blocks this loop, so liveness is reported from the side: the
	// stale sweep must only ever catch agents that are actually dead.
	hbStop := make(chan struct{})
	go s.taskHeartbeats(ctx, hbStop)
	workErr := s.work(taskCtx, task)
	close(hbStop)
	timedOut := errors.Is(taskCtx.Err(), context.DeadlineExceeded)
	cancel()

	// Outcome writes must land even when the parent context was the
	// cause, so a cancelled task is recorded as failed, never dropped.
	writeCtx := context.WithoutCancel(ctx)

	switch {
	case workErr == nil && !timedOut:
		if _, err := s.store.UpdateStatus(writeCtx, task.ID, constants.TaskStatusCompleted, nil); err != nil {
			return err
		}
		if err := s.releaseAgent(writeCtx, constants.AgentStatusIdle); err != nil {
			return err
		}
		s.logger.Info().Str("task_id", task.ID).Msg("task completed")
		return nil
	case timedOut:
		s.failTask(writeCtx, task.ID, foremanerrors.ErrTaskTimeout.Error())
		return fmt.Errorf("task '%s' exceeded %s: %w", task.ID, s.cfg.TaskTimeout, foremanerrors.ErrTaskTimeout)
	case ctx.Err() != nil:
		s.failTask(writeCtx, task.ID, foremanerrors.ErrTaskCancelled.Error())
		return fmt.Errorf("task '%s': %w", task.ID, foremanerrors.ErrTaskCancelled)
	default:
		s.failTask(writeCtx, task.ID, workErr.Error())
		return fmt.Errorf("task '%s': %v: %w", task.ID, workErr, foremanerrors.ErrTaskFailed)
	}
}

// taskHeartbeats reports liveness while a task executes. The explicit
// busy status also recovers the entry when a sweep marked it stopped
// between ticks.
func (s *Supervisor) taskHeartbeats(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.registry.Heartbeat(ctx, s.name, constants.AgentStatusBusy); err != nil {
				s.logger.Warn().Err(err).Msg("mid-task heartbeat failed")
			}
		}
	}
}

// failed records a failure, applies backoff, and decides whether the loop
// may continue. A non-nil return halts the supervisor terminally.
func (s *Supervisor) failed(ctx context.Context, cause error) error {
	s.setState(constants.SupervisorFailed, cause.Error())
	s.restartCount++
	s.logger.Warn().Err(cause).Int("restart_count", s.restartCount).Msg("work cycle failed")

	if s.restartCount >= s.cfg.MaxRestarts {
		reason := fmt.Sprintf("restart limit of %d reached, manual intervention required", s.cfg.MaxRestarts)
		s.setState(constants.SupervisorStopped, reason)
		s.markAgent(ctx, constants.AgentStatusUnhealthy)
		s.logger.Error().Int("max_restarts", s.cfg.MaxRestarts).Msg("restarts exhausted, supervisor stopped")
		return fmt.Errorf("agent '%s': %w", s.name, foremanerrors.ErrRestartsExhausted)
	}

	delay := backoffDelay(s.cfg.BackoffBase, s.cfg.BackoffCap, s.restartCount)
	s.setState(constants.SupervisorBackoff, fmt.Sprintf("retrying in %s", delay))
	if s.clk.Sleep(ctx, delay) != nil {
		return s.shutdown(ctx)
	}
	return nil
}

// shutdown performs a graceful stop: mark the agent stopped, record the
// terminal state, exit clean.
func (s *Supervisor) shutdown(ctx context.Context) error {
	s.setState(constants.SupervisorStopped, "graceful shutdown")
	s.deregister(ctx)
	s.logger.Info().Msg("supervisor stopped")
	return nil
}

// deregister marks the registry entry stopped, best effort.
func (s *Supervisor) deregister(ctx context.Context) {
	s.markAgent(ctx, constants.AgentStatusStopped)
}

// markAgent updates the registry entry, best effort. Registry write
// failures during teardown are logged, not propagated.
func (s *Supervisor) markAgent(ctx context.Context, status constants.AgentStatus) {
	writeCtx := context.WithoutCancel(ctx)
	_, err := s.registry.Update(writeCtx, s.name, func(a *domain.Agent) error {
		a.Status = status
		a.CurrentTask = ""
		a.RestartCount = s.restartCount
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to update registry entry")
	}
}

// failTask records a failed outcome and frees the agent, best effort.
func (s *Supervisor) failTask(ctx context.Context, taskID, reason string) {
	if _, err := s.store.UpdateStatus(ctx, taskID, constants.TaskStatusFailed, &store.StatusUpdate{Error: reason}); err != nil {
		s.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to record task failure")
	}
	if err := s.releaseAgent(ctx, constants.AgentStatusIdle); err != nil {
		s.logger.Error().Err(err).Msg("failed to release agent")
	}
}

// releaseAgent clears the agent's current task and sets its status.
func (s *Supervisor) releaseAgent(ctx context.Context, status constants.AgentStatus) error {
	_, err := s.registry.Update(ctx, s.name, func(a *domain.Agent) error {
		a.Status = status
		a.CurrentTask = ""
		a.RestartCount = s.restartCount
		return nil
	})
	return err
}

// backoffDelay computes base * 2^(attempt-1) clamped to cap.
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = constants.DefaultBackoffBase
	}
	if cap <= 0 {
		cap = constants.DefaultBackoffCap
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}
