// Package dispatcher matches queued tasks to idle, capability-matching
// agents. Assignment can be driven synchronously per request (Submit,
// Assign) or by the periodic sweep in sweep.go. Both paths share one
// guarantee: a task is never assigned to more than one agent, and an idle
// agent never holds more than one task.
//
// Cross-store ordering: the task record is written before the agent
// record. A crash between the two writes leaves a task marked assigned
// with no busy agent, which Reconcile detects and requeues.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/registry"
	"github.com/mrz1836/foreman/internal/store"
)

// SubmitRequest is an ad-hoc task submission.
type SubmitRequest struct {
	ID           string   `json:"id,omitempty"`
	Type         string   `json:"type"`
	Description  string   `json:"description,omitempty"`
	Priority     int      `json:"priority,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Dispatcher owns queued-to-assigned task transitions.
type Dispatcher struct {
	store    store.Store
	registry registry.Registry
	cfg      config.DispatcherConfig
	logger   zerolog.Logger
}

// New creates a Dispatcher over the given store and registry.
func New(s store.Store, r registry.Registry, cfg config.DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: s, registry: r, cfg: cfg, logger: logger}
}

// Submit inserts an ad-hoc task and immediately attempts assignment.
// With no eligible agent the task stays queued; that is backpressure, not
// an error, and the result says so.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (*domain.DispatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, fmt.Errorf("failed to submit task: type %w", foremanerrors.ErrEmptyValue)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	// Omitted priority means default, not most urgent; bridged and
	// submitted tasks rank identically when unprioritized.
	priority := req.Priority
	if priority <= 0 {
		priority = constants.DefaultTaskPriority
	}
	now := time.Now().UTC()
	task := &domain.Task{
		ID:           id,
		Type:         req.Type,
		Description:  req.Description,
		Priority:     priority,
		Status:       constants.TaskStatusQueued,
		Created:      now,
		Updated:      now,
		Dependencies: req.Dependencies,
		Source:       "submit",
	}
	if err := d.store.Append(ctx, task); err != nil {
		return nil, err
	}

	return d.Assign(ctx, task.ID)
}

// Assign looks up the task and tries to hand it to an idle agent whose
// capabilities cover the task's type. Tasks with incomplete dependencies
// or no available agent remain queued.
func (d *Dispatcher) Assign(ctx context.Context, taskID string) (*domain.DispatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	task, err := d.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != constants.TaskStatusQueued {
		return nil, fmt.Errorf("failed to assign task '%s': status %q: %w", taskID, task.Status, foremanerrors.ErrInvalidStatus)
	}

	if blocked, err := d.hasIncompleteDependency(ctx, task); err != nil {
		return nil, err
	} else if blocked {
		return &domain.DispatchResult{Status: domain.DispatchQueued, Task: task}, nil
	}

	agent, err := d.pickAgent(ctx, task.Type)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		d.logger.Debug().Str("task_id", task.ID).Str("type", task.Type).Msg("no idle agent available, task stays queued")
		return &domain.DispatchResult{Status: domain.DispatchQueued, Task: task}, nil
	}

	assigned, err := d.assignTo(ctx, task, agent.Name)
	if err != nil {
		return nil, err
	}
	return &domain.DispatchResult{Status: domain.DispatchAssigned, Task: assigned, Agent: agent.Name}, nil
}

// Status returns the current state of a task.
func (d *Dispatcher) Status(ctx context.Context, taskID string) (*domain.Task, error) {
	return d.store.Get(ctx, taskID)
}

// assignTo performs the dual write, task first. A crash after the task
// write leaves a detectable, reconcilable state.
func (d *Dispatcher) assignTo(ctx context.Context, task *domain.Task, agentName string) (*domain.Task, error) {
	assigned, err := d.store.UpdateStatus(ctx, task.ID, constants.TaskStatusAssigned, &store.StatusUpdate{AssignedAgent: &agentName})
	if err != nil {
		return nil, err
	}

	_, err = d.registry.Update(ctx, agentName, func(a *domain.Agent) error {
		a.Status = constants.AgentStatusBusy
		a.CurrentTask = task.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark agent '%s' busy after assigning '%s': %w", agentName, task.ID, err)
	}

	d.logger.Info().Str("task_id", task.ID).Str("agent", agentName).Msg("task assigned")
	return assigned, nil
}

// pickAgent returns the least-loaded idle agent able to execute taskType,
// or nil when none qualifies. Load counts non-terminal tasks already
// pinned to the agent; ties break by name for deterministic selection.
func (d *Dispatcher) pickAgent(ctx context.Context, taskType string) (*domain.Agent, error) {
	agents, err := d.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := d.store.List(ctx)
	if err != nil {
		return nil, err
	}

	load := make(map[string]int)
	for _, task := range tasks {
		if task.AssignedAgent != "" && !task.Status.IsTerminal() {
			load[task.AssignedAgent]++
		}
	}

	var best *domain.Agent
	for _, agent := range agents {
		if agent.Status != constants.AgentStatusIdle || !agent.CanExecute(taskType) {
			continue
		}
		if best == nil || load[agent.Name] < load[best.Name] {
			best = agent
		}
	}
	return best, nil
}

// hasIncompleteDependency reports whether any dependency has not
// completed yet. A missing dependency id counts as incomplete.
func (d *Dispatcher) hasIncompleteDependency(ctx context.Context, task *domain.Task) (bool, error) {
	for _, depID := range task.Dependencies {
		dep, err := d.store.Get(ctx, depID)
		if err != nil {
			if errors.Is(err, foremanerrors.ErrTaskNotFound) {
				return true, nil
			}
			return false, err
		}
		if dep.Status != constants.TaskStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}
