package cli

import (
	"context"
	stderrors "errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/foreman/internal/config"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/supervisor"
)

// poolEntry is one agent definition in the pool file.
type poolEntry struct {
	// Name uniquely identifies the agent in the pool.
	Name string `yaml:"name"`

	// Capabilities lists the task types this agent can execute.
	Capabilities []string `yaml:"capabilities"`

	// Exec is the shell command run once per dispatched task.
	Exec string `yaml:"exec"`
}

// poolFile is the on-disk shape of the agent pool definition.
type poolFile struct {
	Agents []poolEntry `yaml:"agents"`
}

// loadAgentPool reads the agent pool definition. A missing file means no
// pool and is not an error; the daemon then only serves externally run
// agents.
func loadAgentPool(path string) ([]poolEntry, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed from trusted configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, foremanerrors.Wrapf(err, "failed to read agent pool file '%s'", path)
	}

	var pf poolFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, foremanerrors.Wrapf(foremanerrors.ErrPoolInvalid, "failed to parse '%s': %v", path, err)
	}

	seen := make(map[string]bool, len(pf.Agents))
	for i, entry := range pf.Agents {
		if entry.Name == "" {
			return nil, foremanerrors.Wrapf(foremanerrors.ErrPoolInvalid, "agent %d has no name", i)
		}
		if seen[entry.Name] {
			return nil, foremanerrors.Wrapf(foremanerrors.ErrPoolInvalid, "duplicate agent name '%s'", entry.Name)
		}
		seen[entry.Name] = true
		if len(entry.Capabilities) == 0 {
			return nil, foremanerrors.Wrapf(foremanerrors.ErrPoolInvalid, "agent '%s' has no capabilities", entry.Name)
		}
		if entry.Exec == "" {
			return nil, foremanerrors.Wrapf(foremanerrors.ErrPoolInvalid, "agent '%s' has no exec command", entry.Name)
		}
	}
	return pf.Agents, nil
}

// runPoolAgent runs one pool-defined supervisor until shutdown. Restart
// exhaustion parks this agent but never takes the daemon down with it;
// the terminal state stays visible through the status file and registry.
func runPoolAgent(ctx context.Context, c *core, entry poolEntry, gate supervisor.GateFunc) error {
	logger := GetLogger().With().Str("agent", entry.Name).Logger()

	sup, err := supervisor.New(supervisor.Options{
		Name:         entry.Name,
		Capabilities: entry.Capabilities,
		Store:        c.store,
		Registry:     c.registry,
		Config:       c.cfg.Supervisor,
		PollInterval: c.cfg.Registry.HeartbeatInterval,
		StatusDir:    config.StatusDir(c.home),
		Work:         execWork(entry.Exec),
		Gate:         gate,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	err = sup.Run(ctx)
	switch {
	case err == nil, stderrors.Is(err, context.Canceled):
		return nil
	case stderrors.Is(err, foremanerrors.ErrRestartsExhausted):
		logger.Error().Err(err).Msg("pool agent stopped after exhausting restarts")
		return nil
	default:
		return err
	}
}
