package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/deps"
	"github.com/mrz1836/foreman/internal/domain"
)

// AddCheckCommand adds the check command to the root command.
func AddCheckCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run dependency pre-flight checks",
		Long: `Run every check in the dependency manifest and print the report.

Exit codes:
  0  all required checks passed
  2  a required check failed`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output := cmd.Flag("output").Value.String()
			return runCheck(cmd.Context(), os.Stdout, output)
		},
	}
	parent.AddCommand(cmd)
}

// runCheck executes the manifest checks and prints the full report.
func runCheck(ctx context.Context, w io.Writer, output string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	home, err := config.HomeDir(cfg)
	if err != nil {
		return err
	}

	checks, err := deps.LoadManifest(config.ManifestPath(cfg, home))
	if err != nil {
		return err
	}
	if len(checks) == 0 {
		_, _ = fmt.Fprintln(w, "no dependency manifest, nothing to check")
		return nil
	}

	manager := deps.NewManager(checks, cfg.Deps, GetLogger())
	report, verifyErr := manager.Verify(ctx)
	if report != nil {
		printReport(w, output, report)
	}
	return verifyErr
}

// printReport renders the check report in the requested format.
func printReport(w io.Writer, output string, report *domain.CheckReport) {
	if output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}
	for _, result := range report.Results {
		mark := "ok"
		if !result.Passed {
			mark = "FAIL"
			if !result.Check.Required {
				mark = "warn"
			}
		}
		_, _ = fmt.Fprintf(w, "%-4s %-20s %s\n", mark, result.Check.Name, result.Detail)
	}
}
