package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/deps"
	"github.com/mrz1836/foreman/internal/dispatcher"
	"github.com/mrz1836/foreman/internal/flock"
	"github.com/mrz1836/foreman/internal/registry"
	"github.com/mrz1836/foreman/internal/server"
	"github.com/mrz1836/foreman/internal/signal"
	"github.com/mrz1836/foreman/internal/store"
	"github.com/mrz1836/foreman/internal/supervisor"
)

// AddServeCommand adds the serve command to the root command.
func AddServeCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordination daemon in the foreground",
		Long: `Run the dispatcher, control server, dependency monitor, and task-store
cleanup in the foreground until interrupted. When <home>/agents.yaml
exists, a supervised work loop is also started for every agent it
defines.

Exit codes:
  0  clean shutdown
  2  a required dependency check failed
  3  another instance already holds the pid lock`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	parent.AddCommand(cmd)
}

// runServe wires and runs every daemon component.
func runServe(ctx context.Context) error {
	logger := GetLogger()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	home, err := config.HomeDir(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(home, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory '%s': %w", home, err)
	}

	// The pid lock enforces at most one daemon per state directory.
	pidFile, err := acquirePidFile(config.PidFilePath(home))
	if err != nil {
		return err
	}
	defer func() { _ = flock.Release(pidFile) }()

	taskStore, err := store.NewFileStore(config.TaskStorePath(home))
	if err != nil {
		return err
	}
	agentRegistry, err := registry.NewFileRegistry(config.RegistryPath(home), nil)
	if err != nil {
		return err
	}

	checks, err := deps.LoadManifest(config.ManifestPath(cfg, home))
	if err != nil {
		return err
	}
	depsManager := deps.NewManager(checks, cfg.Deps, logger)
	if len(checks) > 0 {
		if _, err := depsManager.Verify(ctx); err != nil {
			return err
		}
	}

	pool, err := loadAgentPool(config.PoolPath(home))
	if err != nil {
		return err
	}

	disp := dispatcher.New(taskStore, agentRegistry, cfg.Dispatcher, logger)
	controlServer := server.New(disp, taskStore, agentRegistry, depsManager, cfg.Server, logger)

	handler := signal.NewHandler(ctx)
	defer handler.Stop()

	g, gctx := errgroup.WithContext(handler.Context())
	g.Go(func() error { return controlServer.Run(gctx) })
	g.Go(func() error { return disp.Run(gctx, cfg.Registry.StaleTimeout()) })
	g.Go(func() error { return runCleanup(gctx, taskStore, cfg.Store) })
	if len(checks) > 0 {
		g.Go(func() error { return depsManager.Monitor(gctx) })
	}

	var gate supervisor.GateFunc
	if len(checks) > 0 {
		gate = depsManager.Gate
	}
	c := &core{cfg: cfg, home: home, store: taskStore, registry: agentRegistry}
	for _, entry := range pool {
		g.Go(func() error { return runPoolAgent(gctx, c, entry, gate) })
	}
	if len(pool) > 0 {
		logger.Info().Int("agents", len(pool)).Msg("agent pool started")
	}

	logger.Info().Str("home", home).Msg("foreman daemon started")
	err = g.Wait()
	if stderrors.Is(err, context.Canceled) {
		logger.Info().Msg("foreman daemon stopped")
		return nil
	}
	return err
}

// runCleanup prunes expired terminal tasks on the configured interval.
func runCleanup(ctx context.Context, s store.Store, cfg config.StoreConfig) error {
	logger := GetLogger()
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.Prune(ctx, cfg.TaskTTL)
			if err != nil {
				logger.Warn().Err(err).Msg("task store cleanup failed")
				continue
			}
			if removed > 0 {
				logger.Info().Int("removed", removed).Msg("expired tasks pruned")
			}
		}
	}
}

// acquirePidFile takes the exclusive pid lock and records our pid in it.
// Returns ErrAlreadyRunning when another process holds the lock.
func acquirePidFile(path string) (*os.File, error) {
	f, err := flock.TryAcquire(path)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire pid lock '%s': %w", path, err)
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
		_ = f.Sync()
	}
	return f, nil
}

// readPidFile returns the pid recorded in the daemon pidfile.
func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed from trusted configuration
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(trimNewline(string(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse pidfile '%s': %w", path, err)
	}
	return pid, nil
}

// trimNewline strips trailing newline characters.
func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
