package commands

import (
	"fmt"
	"time"

	"github.com/dyluth/exofit/internal/filter"
	"github.com/dyluth/exofit/internal/printer"
	"github.com/dyluth/exofit/internal/report"
	"github.com/dyluth/exofit/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	runsOutputFormat string
	runsSince        string
	runsUntil        string
	runsSource       string
	runsMinObs       int
	runsConverged    bool
	runsDelete       bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [RUN_ID]",
	Short: "Inspect saved fits with filtering",
	Long: `Inspect saved runs in list or get mode.

List Mode (no RUN_ID):
  Displays runs matching filters as a table or JSONL stream.

Get Mode (with RUN_ID):
  Displays the complete run record as pretty-printed JSON.
  Supports short IDs (e.g., "3f2a1b" instead of the full UUID).
  With --delete the run and its draws are removed instead.

Output Formats (list mode only):
  default - Human-readable table with ID, source, size and convergence
  jsonl   - Line-delimited JSON, one run per line

Filters (list mode only):
  --since      - Show runs created after this time
  --until      - Show runs created before this time
  --source     - Glob over the run source ("archive", "*.csv")
  --min-obs    - Minimum number of observations
  --converged  - Only runs without convergence warnings

Examples:
  # Runs from the last day as JSONL
  exofit runs --since=24h --output=jsonl | jq .summary

  # Full record of one run
  exofit runs 3f2a1b`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVarP(&runsOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")

	runsCmd.Flags().StringVar(&runsSince, "since", "", "Show runs after time (duration, date or RFC3339)")
	runsCmd.Flags().StringVar(&runsUntil, "until", "", "Show runs before time (duration, date or RFC3339)")

	runsCmd.Flags().StringVar(&runsSource, "source", "", "Filter by source (glob pattern)")
	runsCmd.Flags().IntVar(&runsMinObs, "min-obs", 0, "Minimum number of observations")
	runsCmd.Flags().BoolVar(&runsConverged, "converged", false, "Only show runs without convergence warnings")

	runsCmd.Flags().BoolVar(&runsDelete, "delete", false, "Delete the run given by RUN_ID")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	isGetMode := len(args) > 0

	if runsDelete && !isGetMode {
		return printer.Error(
			"missing run ID",
			"--delete needs the ID of the run to remove.",
			[]string{"Delete one run:\n  exofit runs <RUN_ID> --delete"},
		)
	}
	if !isGetMode && runsOutputFormat != "default" && runsOutputFormat != "jsonl" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", runsOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	var window timespec.Range
	if !isGetMode {
		var err error
		window, err = timespec.ParseRange(runsSince, runsUntil, time.Now())
		if err != nil {
			return printer.Error(
				"invalid time filter",
				err.Error(),
				[]string{"Use duration format like '1h30m', a date like '2025-10-29' or RFC3339 like '2025-10-29T13:00:00Z'"},
			)
		}
	}

	client, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if isGetMode {
		fullID, err := resolveRun(ctx, client, args[0])
		if err != nil {
			return err
		}
		if runsDelete {
			if err := client.DeleteRun(ctx, fullID); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}
			printer.Success("Deleted run %s\n", fullID)
			return nil
		}
		run, err := loadRun(ctx, client, fullID)
		if err != nil {
			return err
		}
		return report.RunJSON(printer.Stdout(), run)
	}

	runs, err := client.ListRuns(ctx, window.SinceMs, window.UntilMs)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	criteria := &filter.Criteria{
		Window:          window,
		SourceGlob:      runsSource,
		MinObservations: runsMinObs,
		ConvergedOnly:   runsConverged,
	}
	runs = criteria.Apply(runs)

	if runsOutputFormat == "jsonl" {
		return report.RunsJSONL(printer.Stdout(), runs)
	}
	_, err = report.RunsTable(printer.Stdout(), runs, client.Namespace(), time.Now())
	return err
}
