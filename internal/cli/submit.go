package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/dispatcher"
	"github.com/mrz1836/foreman/internal/domain"
)

// submitFlags holds the submit command's flags.
type submitFlags struct {
	id           string
	taskType     string
	description  string
	priority     int
	dependencies []string
}

// AddSubmitCommand adds the submit command to the root command.
func AddSubmitCommand(parent *cobra.Command) {
	flags := &submitFlags{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a task to the queue",
		Long: `Submit an ad-hoc task and attempt immediate assignment. With no idle
capability-matching agent the task stays queued for the next sweep.

Examples:
  foreman submit --type security --priority 1
  foreman submit --type testing --id t42 --depends-on t41`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output := cmd.Flag("output").Value.String()
			return runSubmit(cmd.Context(), os.Stdout, output, flags)
		},
	}
	cmd.Flags().StringVar(&flags.id, "id", "", "task id (generated when omitted)")
	cmd.Flags().StringVar(&flags.taskType, "type", "", "task type (testing, review, security, documentation, debug)")
	cmd.Flags().StringVar(&flags.description, "description", "", "free-text description")
	cmd.Flags().IntVar(&flags.priority, "priority", constants.DefaultTaskPriority, "priority, lower is more urgent")
	cmd.Flags().StringSliceVar(&flags.dependencies, "depends-on", nil, "task ids that must complete first")
	_ = cmd.MarkFlagRequired("type")
	parent.AddCommand(cmd)
}

// runSubmit inserts the task and reports the dispatch result.
func runSubmit(ctx context.Context, w io.Writer, output string, flags *submitFlags) error {
	c, err := openCore(ctx)
	if err != nil {
		return err
	}

	disp := dispatcher.New(c.store, c.registry, c.cfg.Dispatcher, GetLogger())
	result, err := disp.Submit(ctx, dispatcher.SubmitRequest{
		ID:           flags.id,
		Type:         flags.taskType,
		Description:  flags.description,
		Priority:     flags.priority,
		Dependencies: flags.dependencies,
	})
	if err != nil {
		return err
	}

	if output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if result.Status == domain.DispatchAssigned {
		_, _ = fmt.Fprintf(w, "task %s assigned to %s\n", result.Task.ID, result.Agent)
	} else {
		_, _ = fmt.Fprintf(w, "task %s queued (no agent available)\n", result.Task.ID)
	}
	return nil
}
