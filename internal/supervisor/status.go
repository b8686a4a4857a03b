package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/mrz1836/foreman/internal/constants"
)

// statusSnapshot is the per-agent liveness record written for external
// dashboards on every state transition. Exhausted distinguishes a
// restart-ceiling stop from a graceful one.
type statusSnapshot struct {
	Agent        string                    `json:"agent"`
	State        constants.SupervisorState `json:"state"`
	RestartCount int                       `json:"restart_count"`
	CurrentTask  string                    `json:"current_task,omitempty"`
	Reason       string                    `json:"reason,omitempty"`
	Exhausted    bool                      `json:"exhausted"`
	Updated      time.Time                 `json:"updated"`
}

// setState records a lifecycle transition and mirrors it to the status
// file. Status file write failures are logged and otherwise ignored; the
// dashboard feed must never take the work loop down.
func (s *Supervisor) setState(state constants.SupervisorState, reason string) {
	s.state = state
	if s.statusDir == "" {
		return
	}

	snapshot := statusSnapshot{
		Agent:        s.name,
		State:        state,
		RestartCount: s.restartCount,
		CurrentTask:  s.currentTask,
		Reason:       reason,
		Exhausted:    state == constants.SupervisorStopped && s.restartCount >= s.cfg.MaxRestarts,
		Updated:      s.clk.Now().UTC(),
	}

	if err := s.writeStatusFile(snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write status file")
	}
}

// writeStatusFile persists the snapshot to <statusDir>/<agent>.json.
func (s *Supervisor) writeStatusFile(snapshot statusSnapshot) error {
	if err := os.MkdirAll(s.statusDir, 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.StatusFilePath(), data, 0o600)
}

// StatusFilePath returns the location of this agent's status file.
func (s *Supervisor) StatusFilePath() string {
	return filepath.Join(s.statusDir, s.name+".json")
}
