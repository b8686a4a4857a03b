package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// AddAgentsCommand adds the agents command to the root command.
func AddAgentsCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			output := cmd.Flag("output").Value.String()
			return runAgents(cmd.Context(), os.Stdout, output)
		},
	}
	parent.AddCommand(cmd)
}

// runAgents prints the registry contents.
func runAgents(ctx context.Context, w io.Writer, output string) error {
	c, err := openCore(ctx)
	if err != nil {
		return err
	}
	agents, err := c.registry.List(ctx)
	if err != nil {
		return err
	}

	if output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(agents)
	}

	if len(agents) == 0 {
		_, _ = fmt.Fprintln(w, "no agents registered")
		return nil
	}
	now := time.Now().UTC()
	for _, agent := range agents {
		age := now.Sub(agent.LastHeartbeat).Round(time.Second)
		_, _ = fmt.Fprintf(w, "%-16s %-10s caps=[%s] restarts=%d heartbeat=%s ago\n",
			agent.Name, agent.Status, strings.Join(agent.Capabilities, ","), agent.RestartCount, age)
	}
	return nil
}
