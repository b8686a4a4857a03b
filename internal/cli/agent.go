package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/deps"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/flock"
	"github.com/mrz1836/foreman/internal/signal"
	"github.com/mrz1836/foreman/internal/supervisor"
)

// agentFlags holds the agent command's flags.
type agentFlags struct {
	name         string
	capabilities []string
	execCommand  string
}

// AddAgentCommand adds the agent command to the root command.
func AddAgentCommand(parent *cobra.Command) {
	flags := &agentFlags{}
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run one supervised agent work loop in the foreground",
		Long: `Register an agent and run its supervised work loop: heartbeat, pick up
dispatched tasks, and execute the configured command once per task. The
command receives the task via TASK_ID, TASK_TYPE and TASK_DESCRIPTION
environment variables; a non-zero exit marks the task failed and feeds
restart backoff.

Exit codes:
  0  graceful stop
  1  restarts exhausted
  2  a required dependency check failed
  3  an agent with this name is already running`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.name, "name", "", "agent name (unique in the pool)")
	cmd.Flags().StringSliceVar(&flags.capabilities, "capabilities", nil, "task types this agent can execute")
	cmd.Flags().StringVar(&flags.execCommand, "exec", "", "shell command executed once per task")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("capabilities")
	_ = cmd.MarkFlagRequired("exec")
	parent.AddCommand(cmd)
}

// runAgent wires and runs one supervisor.
func runAgent(ctx context.Context, flags *agentFlags) error {
	logger := GetLogger()

	c, err := openCore(ctx)
	if err != nil {
		return err
	}

	// One process per agent name. stop --agent relies on this lock to
	// know when the loop has exited.
	pidPath := config.AgentPidFilePath(c.home, flags.name)
	if err := os.MkdirAll(filepath.Dir(pidPath), 0o750); err != nil {
		return foremanerrors.Wrap(err, "failed to create pid directory")
	}
	pidFile, err := acquirePidFile(pidPath)
	if err != nil {
		return err
	}
	defer func() { _ = flock.Release(pidFile) }()

	handler := signal.NewHandler(ctx)
	defer handler.Stop()
	ctx = handler.Context()

	// Pre-flight gate: a missing required dependency aborts before the
	// work loop ever starts, and the background monitor keeps the gate
	// fresh for restart decisions.
	var gate supervisor.GateFunc
	checks, err := deps.LoadManifest(config.ManifestPath(c.cfg, c.home))
	if err != nil {
		return err
	}
	if len(checks) > 0 {
		manager := deps.NewManager(checks, c.cfg.Deps, logger)
		if _, err := manager.Verify(ctx); err != nil {
			return err
		}
		go func() { _ = manager.Monitor(ctx) }()
		gate = manager.Gate
	}

	sup, err := supervisor.New(supervisor.Options{
		Name:         flags.name,
		Capabilities: flags.capabilities,
		Store:        c.store,
		Registry:     c.registry,
		Config:       c.cfg.Supervisor,
		PollInterval: c.cfg.Registry.HeartbeatInterval,
		StatusDir:    config.StatusDir(c.home),
		Work:         execWork(flags.execCommand),
		Gate:         gate,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	err = sup.Run(ctx)
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// execWork builds a WorkFunc that runs a shell command per task. The task
// context carries the hard timeout; the process is killed when it fires.
func execWork(command string) supervisor.WorkFunc {
	return func(ctx context.Context, task *domain.Task) error {
		cmd := exec.CommandContext(ctx, "sh", "-c", command) //#nosec G204 -- command is operator-provided by design
		cmd.Env = append(os.Environ(),
			"TASK_ID="+task.ID,
			"TASK_TYPE="+task.Type,
			"TASK_DESCRIPTION="+task.Description,
		)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%v: %w", err, foremanerrors.ErrTaskFailed)
		}
		return nil
	}
}
