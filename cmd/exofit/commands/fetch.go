package commands

import (
	"fmt"

	"github.com/dyluth/exofit/internal/catalog"
	"github.com/dyluth/exofit/internal/fit"
	"github.com/dyluth/exofit/internal/printer"
	"github.com/dyluth/exofit/internal/transform"
	"github.com/spf13/cobra"
)

var (
	fetchOutput string
	fetchRaw    bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the planet catalog and report how many rows are usable",
	Long: `Download the configured NASA Exoplanet Archive table, apply the radius
and error filter, and report the counts at each stage.

With --output the filtered rows are written as CSV, ready for:
  exofit fit --input <file>

Use --raw to write every downloaded row instead.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Write rows to this CSV file")
	fetchCmd.Flags().BoolVar(&fetchRaw, "raw", false, "Write unfiltered rows with --output")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	rows, err := fetchRows(cmd.Context())
	if err != nil {
		return err
	}

	opts := fit.OptionsFromConfig(cfg)
	kept := catalog.Filter(rows, opts.Bounds, logger)
	obs, skipped := transform.LogTransform(kept)

	printer.Step("Downloaded %d rows from %s\n", len(rows), cfg.Catalog.Table)
	printer.Step("%d rows between %g and %g Earth radii with complete errors\n",
		len(kept), opts.Bounds.MinRadius, opts.Bounds.MaxRadius)
	if skipped > 0 {
		printer.Warning("%d rows dropped by the log transform\n", skipped)
	}
	printer.Success("%d observations usable for fitting\n", len(obs))

	if fetchOutput == "" {
		return nil
	}
	out := kept
	if fetchRaw {
		out = rows
	}
	if err := writeRows(fetchOutput, out); err != nil {
		return err
	}
	printer.Info("Wrote %d rows to %s\n", len(out), fetchOutput)
	return nil
}

// fetchSummary is the one-line count shown after loading rows for a fit.
func fetchSummary(source string, rows []catalog.Row) string {
	return fmt.Sprintf("Loaded %d rows from %s", len(rows), source)
}
