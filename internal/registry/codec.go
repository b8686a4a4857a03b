package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
)

// registryFile is the canonical on-disk envelope of the agent registry.
// Agents are keyed by name; LastUpdate stamps the most recent write.
type registryFile struct {
	Agents     map[string]*domain.Agent `json:"agents"`
	LastUpdate time.Time                `json:"last_update"`
}

// newRegistryFile returns an empty registry envelope.
func newRegistryFile() *registryFile {
	return &registryFile{Agents: make(map[string]*domain.Agent)}
}

// decodeRegistry parses registry file contents, tolerating both on-disk
// shapes older writers produced:
//
//	{"agents": {"tester1": {...}}, "last_update": "..."}  (canonical map)
//	{"agents": [{"name": "tester1", ...}], ...}           (legacy list)
//
// Both normalize to the canonical map. Unparsable contents are
// ErrStoreCorrupt; corrupt files are surfaced, never repaired in place.
func decodeRegistry(data []byte) (*registryFile, error) {
	var envelope struct {
		Agents     json.RawMessage `json:"agents"`
		LastUpdate time.Time       `json:"last_update"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, foremanerrors.ErrStoreCorrupt
	}

	rf := newRegistryFile()
	rf.LastUpdate = envelope.LastUpdate
	if len(envelope.Agents) == 0 {
		return rf, nil
	}

	agents, err := decodeAgents(envelope.Agents)
	if err != nil {
		return nil, err
	}
	rf.Agents = agents
	return rf, nil
}

// decodeAgents sniffs the shape of the agents field by its first byte and
// decodes accordingly.
func decodeAgents(raw json.RawMessage) (map[string]*domain.Agent, error) {
	trimmed := firstNonSpace(raw)
	switch trimmed {
	case '{':
		agents := make(map[string]*domain.Agent)
		if err := json.Unmarshal(raw, &agents); err != nil {
			return nil, foremanerrors.ErrStoreCorrupt
		}
		// Map keys win over an embedded name field so a renamed key does
		// not leave a dangling alias.
		for name, agent := range agents {
			if agent == nil {
				return nil, foremanerrors.ErrStoreCorrupt
			}
			agent.Name = name
		}
		return agents, nil
	case '[':
		var list []*domain.Agent
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, foremanerrors.ErrStoreCorrupt
		}
		agents := make(map[string]*domain.Agent, len(list))
		for _, agent := range list {
			if agent == nil || agent.Name == "" {
				return nil, fmt.Errorf("agent record missing name: %w", foremanerrors.ErrStoreCorrupt)
			}
			agents[agent.Name] = agent
		}
		return agents, nil
	default:
		return nil, foremanerrors.ErrStoreCorrupt
	}
}

// firstNonSpace returns the first non-whitespace byte, or zero.
func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
