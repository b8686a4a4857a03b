package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/store"
)

// Run drives the periodic dispatch sweep until ctx is cancelled. Each
// tick marks stale agents, reconciles half-finished assignments, and
// hands eligible tasks to idle agents.
func (d *Dispatcher) Run(ctx context.Context, staleTimeout time.Duration) error {
	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.cfg.SweepInterval).Msg("dispatch sweep started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatch sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.Sweep(ctx, staleTimeout); err != nil {
				// Environment errors halt the loop; everything else is
				// logged and retried next tick.
				if errors.Is(err, foremanerrors.ErrStoreCorrupt) {
					return err
				}
				d.logger.Warn().Err(err).Msg("dispatch sweep failed")
			}
		}
	}
}

// Sweep performs one dispatch pass.
func (d *Dispatcher) Sweep(ctx context.Context, staleTimeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stale, err := d.registry.MarkStale(ctx, staleTimeout)
	if err != nil {
		return err
	}
	for _, name := range stale {
		d.logger.Warn().Str("agent", name).Msg("agent heartbeat stale, marked stopped")
	}

	if err := d.Reconcile(ctx); err != nil {
		return err
	}

	return d.assignPending(ctx)
}

// assignPending offers each idle agent its most urgent eligible task.
func (d *Dispatcher) assignPending(ctx context.Context) error {
	agents, err := d.registry.List(ctx)
	if err != nil {
		return err
	}

	for _, agent := range agents {
		if agent.Status != constants.AgentStatusIdle {
			continue
		}
		task, err := d.store.NextAvailable(ctx, agent.Capabilities)
		if err != nil {
			if errors.Is(err, foremanerrors.ErrNoEligibleTask) {
				continue
			}
			return err
		}
		if _, err := d.assignTo(ctx, task, agent.Name); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile repairs the window between the task write and the agent write.
// A task marked assigned or running whose agent does not acknowledge it as
// current_task is returned to queued; an agent stuck busy on a task that
// has since reached a terminal state is released to idle.
func (d *Dispatcher) Reconcile(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tasks, err := d.store.List(ctx)
	if err != nil {
		return err
	}
	agents, err := d.registry.List(ctx)
	if err != nil {
		return err
	}

	currentTask := make(map[string]string, len(agents))
	for _, agent := range agents {
		currentTask[agent.Name] = agent.CurrentTask
	}

	for _, task := range tasks {
		inFlight := task.Status == constants.TaskStatusAssigned || task.Status == constants.TaskStatusRunning
		if !inFlight || task.AssignedAgent == "" {
			continue
		}
		if currentTask[task.AssignedAgent] == task.ID {
			continue
		}
		empty := ""
		if _, err := d.store.UpdateStatus(ctx, task.ID, constants.TaskStatusQueued, &store.StatusUpdate{AssignedAgent: &empty}); err != nil {
			return err
		}
		d.logger.Warn().
			Str("task_id", task.ID).
			Str("agent", task.AssignedAgent).
			Msg("orphaned assignment requeued")
	}

	taskByID := make(map[string]constants.TaskStatus, len(tasks))
	for _, task := range tasks {
		taskByID[task.ID] = task.Status
	}
	for _, agent := range agents {
		if agent.Status != constants.AgentStatusBusy || agent.CurrentTask == "" {
			continue
		}
		status, ok := taskByID[agent.CurrentTask]
		if ok && !status.IsTerminal() {
			continue
		}
		name := agent.Name
		_, err := d.registry.Update(ctx, name, func(a *domain.Agent) error {
			a.Status = constants.AgentStatusIdle
			a.CurrentTask = ""
			return nil
		})
		if err != nil {
			return err
		}
		d.logger.Warn().Str("agent", name).Msg("busy agent released, task already terminal")
	}
	return nil
}
