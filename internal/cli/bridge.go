package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/foreman/internal/bridge"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
)

// AddBridgeCommand adds the bridge command to the root command.
func AddBridgeCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "bridge <assignments.json>",
		Short: "Ingest scanned assignments into the task queue",
		Long: `Convert assignment records produced by a static scan into task queue
entries. Ingestion is idempotent: re-running over the same file skips
already-ingested assignments instead of duplicating them.

The input is a JSON array of {id, file, line, text, agent, priority}
records.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(cmd.Context(), os.Stdout, args[0])
		},
	}
	parent.AddCommand(cmd)
}

// runBridge loads the assignment file and ingests it.
func runBridge(ctx context.Context, w io.Writer, path string) error {
	data, err := os.ReadFile(path) //#nosec G304 -- operator-provided input file
	if err != nil {
		return foremanerrors.Wrapf(err, "failed to read assignments file '%s'", path)
	}
	var assignments []domain.Assignment
	if err := json.Unmarshal(data, &assignments); err != nil {
		return fmt.Errorf("failed to parse assignments file '%s': %w", path, err)
	}

	c, err := openCore(ctx)
	if err != nil {
		return err
	}

	result, err := bridge.New(c.store, GetLogger()).Ingest(ctx, assignments)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "ingested %d, skipped %d\n", result.Ingested, result.Skipped)
	return nil
}
