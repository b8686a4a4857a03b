package cli

import (
	"context"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/registry"
	"github.com/mrz1836/foreman/internal/store"
)

// core bundles the shared state files most subcommands operate on.
// Commands talk to the files directly; the daemon's advisory locks keep
// concurrent access safe, so every command works with or without a
// running daemon.
type core struct {
	cfg      *config.Config
	home     string
	store    *store.FileStore
	registry *registry.FileRegistry
}

// openCore loads configuration and opens the task store and registry.
func openCore(ctx context.Context) (*core, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	home, err := config.HomeDir(cfg)
	if err != nil {
		return nil, err
	}
	taskStore, err := store.NewFileStore(config.TaskStorePath(home))
	if err != nil {
		return nil, err
	}
	agentRegistry, err := registry.NewFileRegistry(config.RegistryPath(home), nil)
	if err != nil {
		return nil, err
	}
	return &core{cfg: cfg, home: home, store: taskStore, registry: agentRegistry}, nil
}
