package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/domain"
)

// supervisorStatus mirrors the per-agent status file shape.
type supervisorStatus struct {
	Agent        string    `json:"agent"`
	State        string    `json:"state"`
	RestartCount int       `json:"restart_count"`
	CurrentTask  string    `json:"current_task,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Exhausted    bool      `json:"exhausted"`
	Updated      time.Time `json:"updated"`
}

// statusSnapshot is the full pool snapshot printed by the status command.
type statusSnapshot struct {
	Tasks       map[string]int     `json:"tasks"`
	Agents      []*domain.Agent    `json:"agents"`
	Supervisors []supervisorStatus `json:"supervisors,omitempty"`
	Now         time.Time          `json:"now"`
}

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task queue and agent pool status",
		Long: `Display a snapshot of the task queue and agent pool: task counts per
status, every registered agent with its liveness, and supervisor states
including restart-exhausted agents that need manual intervention.

Examples:
  foreman status                # human-readable snapshot
  foreman status --output json  # machine-readable snapshot`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output := cmd.Flag("output").Value.String()
			return runStatus(cmd.Context(), os.Stdout, output)
		},
	}
	parent.AddCommand(cmd)
}

// runStatus collects and prints the pool snapshot.
func runStatus(ctx context.Context, w io.Writer, output string) error {
	c, err := openCore(ctx)
	if err != nil {
		return err
	}

	tasks, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	agents, err := c.registry.List(ctx)
	if err != nil {
		return err
	}

	snapshot := statusSnapshot{
		Tasks:       make(map[string]int),
		Agents:      agents,
		Supervisors: readSupervisorStatuses(config.StatusDir(c.home)),
		Now:         time.Now().UTC(),
	}
	for _, task := range tasks {
		snapshot.Tasks[string(task.Status)]++
	}

	if output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}
	printStatusText(w, snapshot)
	return nil
}

// readSupervisorStatuses loads every per-agent status file, skipping
// unreadable ones.
func readSupervisorStatuses(dir string) []supervisorStatus {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var statuses []supervisorStatus
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name())) //#nosec G304 -- reading our own status directory
		if err != nil {
			continue
		}
		var status supervisorStatus
		if err := json.Unmarshal(data, &status); err != nil {
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// printStatusText renders the snapshot for humans.
func printStatusText(w io.Writer, snapshot statusSnapshot) {
	_, _ = fmt.Fprintln(w, "Tasks:")
	if len(snapshot.Tasks) == 0 {
		_, _ = fmt.Fprintln(w, "  (none)")
	}
	for _, status := range []string{"queued", "assigned", "running", "completed", "failed"} {
		if count := snapshot.Tasks[status]; count > 0 {
			_, _ = fmt.Fprintf(w, "  %-10s %d\n", status, count)
		}
	}

	_, _ = fmt.Fprintln(w, "Agents:")
	if len(snapshot.Agents) == 0 {
		_, _ = fmt.Fprintln(w, "  (none registered)")
	}
	for _, agent := range snapshot.Agents {
		age := snapshot.Now.Sub(agent.LastHeartbeat).Round(time.Second)
		task := agent.CurrentTask
		if task == "" {
			task = "-"
		}
		_, _ = fmt.Fprintf(w, "  %-16s %-10s task=%-12s heartbeat=%s ago\n", agent.Name, agent.Status, task, age)
	}

	// Restart-exhausted supervisors must be loud, not buried in a log.
	for _, status := range snapshot.Supervisors {
		if status.Exhausted {
			_, _ = fmt.Fprintf(w, "ATTENTION: agent %s stopped after exhausting restarts: %s\n", status.Agent, status.Reason)
		}
	}
}
