package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/constants"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/flock"
)

// AddStartCommand adds the start command to the root command.
func AddStartCommand(parent *cobra.Command) {
	var agent string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the coordination daemon or one pool agent in the background",
		Long: `Spawn the foreman daemon as a detached background process. With --agent,
spawn one agent from the pool definition (<home>/agents.yaml) instead.

Exit codes:
  0  started
  3  already running
  4  --agent names an agent not in the pool definition`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if agent != "" {
				return runStartAgent(cmd.Context(), cmd, agent)
			}
			return runStart(cmd.Context(), cmd)
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "start a single pool agent instead of the daemon")
	parent.AddCommand(cmd)
}

// AddStopCommand adds the stop command to the root command.
func AddStopCommand(parent *cobra.Command) {
	var agent string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon or one background agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if agent != "" {
				return runStopAgent(cmd.Context(), cmd, agent)
			}
			return runStop(cmd.Context(), cmd)
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "stop a single background agent instead of the daemon")
	parent.AddCommand(cmd)
}

// AddRestartCommand adds the restart command to the root command.
func AddRestartCommand(parent *cobra.Command) {
	var agent string
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon or one background agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if agent != "" {
				if err := runStopAgent(cmd.Context(), cmd, agent); err != nil {
					return err
				}
				return runStartAgent(cmd.Context(), cmd, agent)
			}
			if err := runStop(cmd.Context(), cmd); err != nil {
				return err
			}
			return runStart(cmd.Context(), cmd)
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "restart a single background agent instead of the daemon")
	parent.AddCommand(cmd)
}

// runStart spawns a detached `foreman serve` process.
func runStart(ctx context.Context, cmd *cobra.Command) error {
	logger := GetLogger()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	home, err := config.HomeDir(cfg)
	if err != nil {
		return err
	}

	pidPath := config.PidFilePath(home)
	if pidLockHeld(pidPath) {
		return fmt.Errorf("daemon pid lock '%s' is held: %w", pidPath, foremanerrors.ErrAlreadyRunning)
	}

	pid, err := spawnDetached(home, "daemon.log", "serve")
	if err != nil {
		return err
	}
	logger.Info().Int("pid", pid).Msg("daemon started")
	cmd.Printf("foreman daemon started (pid %d)\n", pid)
	return nil
}

// runStartAgent spawns one pool-defined agent as a background process.
func runStartAgent(ctx context.Context, cmd *cobra.Command, name string) error {
	logger := GetLogger()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	home, err := config.HomeDir(cfg)
	if err != nil {
		return err
	}

	pool, err := loadAgentPool(config.PoolPath(home))
	if err != nil {
		return err
	}
	var entry *poolEntry
	for i := range pool {
		if pool[i].Name == name {
			entry = &pool[i]
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("agent '%s' is not in the pool definition: %w", name, foremanerrors.ErrUnknownAgent)
	}

	pidPath := config.AgentPidFilePath(home, name)
	if pidLockHeld(pidPath) {
		return fmt.Errorf("agent pid lock '%s' is held: %w", pidPath, foremanerrors.ErrAlreadyRunning)
	}

	pid, err := spawnDetached(home, "agent-"+name+".log", "agent",
		"--name", entry.Name,
		"--capabilities", strings.Join(entry.Capabilities, ","),
		"--exec", entry.Exec,
	)
	if err != nil {
		return err
	}
	logger.Info().Str("agent", name).Int("pid", pid).Msg("agent started")
	cmd.Printf("agent %s started (pid %d)\n", name, pid)
	return nil
}

// runStop signals the running daemon and waits for the pid lock to clear.
func runStop(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	home, err := config.HomeDir(cfg)
	if err != nil {
		return err
	}
	return stopByPidfile(cmd, config.PidFilePath(home), "foreman daemon")
}

// runStopAgent signals one background agent and waits for its pid lock.
func runStopAgent(ctx context.Context, cmd *cobra.Command, name string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	home, err := config.HomeDir(cfg)
	if err != nil {
		return err
	}
	return stopByPidfile(cmd, config.AgentPidFilePath(home, name), "agent "+name)
}

// spawnDetached re-invokes our own binary with args as a detached child,
// routing its output to <home>/logs/<logName>. Returns the child pid.
func spawnDetached(home, logName string, args ...string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, foremanerrors.Wrap(err, "failed to resolve executable path")
	}

	logDir := filepath.Join(home, constants.LogsDir)
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return 0, foremanerrors.Wrap(err, "failed to create log directory")
	}
	out, err := os.OpenFile(filepath.Join(logDir, logName), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600) //#nosec G304 -- path is constructed internally
	if err != nil {
		return 0, foremanerrors.Wrap(err, "failed to open background log")
	}
	defer func() { _ = out.Close() }()

	child := exec.Command(exe, args...) //#nosec G204 -- re-invokes our own binary
	child.Stdout = out
	child.Stderr = out
	child.SysProcAttr = daemonSysProcAttr()
	if err := child.Start(); err != nil {
		return 0, foremanerrors.Wrap(err, "failed to start background process")
	}
	// Detach: the child outlives this command.
	pid := child.Process.Pid
	_ = child.Process.Release()
	return pid, nil
}

// stopByPidfile terminates the process holding pidPath and waits for the
// lock to clear.
func stopByPidfile(cmd *cobra.Command, pidPath, label string) error {
	logger := GetLogger()

	if !pidLockHeld(pidPath) {
		return fmt.Errorf("no process holds the pid lock '%s': %w", pidPath, foremanerrors.ErrNotRunning)
	}

	pid, err := readPidFile(pidPath)
	if err != nil {
		return foremanerrors.Wrap(err, "failed to read pidfile")
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return foremanerrors.Wrapf(err, "failed to find process %d", pid)
	}
	if err := terminateProcess(process); err != nil {
		return foremanerrors.Wrapf(err, "failed to signal process %d", pid)
	}

	// Wait for the process to release the lock on its way out.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if !pidLockHeld(pidPath) {
			logger.Info().Int("pid", pid).Msg(label + " stopped")
			cmd.Printf("%s stopped (pid %d)\n", label, pid)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("process %d did not release the pid lock: %w", pid, foremanerrors.ErrLockTimeout)
}

// pidLockHeld reports whether another process currently holds the pid
// lock. A missing pidfile means no daemon.
func pidLockHeld(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	f, err := flock.TryAcquire(path)
	if err != nil {
		return true
	}
	_ = flock.Release(f)
	return false
}
