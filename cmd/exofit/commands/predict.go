package commands

import (
	"fmt"

	"github.com/dyluth/exofit/internal/catalog"
	"github.com/dyluth/exofit/internal/fit"
	"github.com/dyluth/exofit/internal/predict"
	"github.com/dyluth/exofit/internal/printer"
	"github.com/dyluth/exofit/internal/report"
	"github.com/spf13/cobra"
)

var (
	predictGrid   int
	predictFormat string
	predictMin    float64
	predictMax    float64
)

var predictCmd = &cobra.Command{
	Use:   "predict RUN_ID",
	Short: "Evaluate the posterior-predictive band of a saved run",
	Long: `Evaluate the predictive mass band of a saved run on an evenly spaced
log10 radius grid. By default the grid spans the run's observed radii; use
--min-radius and --max-radius (Earth radii) to choose another range.

Formats:
  table - aligned table with log and linear columns
  csv   - log_radius,log_mass_lower,log_mass_median,log_mass_upper`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().IntVar(&predictGrid, "grid", 0, "Number of grid points (default predict.grid_points)")
	predictCmd.Flags().StringVar(&predictFormat, "format", "table", "Output format: table or csv")
	predictCmd.Flags().Float64Var(&predictMin, "min-radius", 0, "Lower grid radius in Earth radii")
	predictCmd.Flags().Float64Var(&predictMax, "max-radius", 0, "Upper grid radius in Earth radii")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if predictFormat != "table" && predictFormat != "csv" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", predictFormat),
			[]string{"Valid formats: table, csv"},
		)
	}
	n := cfg.Predict.GridPoints
	if cmd.Flags().Changed("grid") {
		n = predictGrid
	}

	client, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	runID, err := resolveRun(ctx, client, args[0])
	if err != nil {
		return err
	}
	trace, err := client.LoadTrace(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load draws: %w", err)
	}
	obs, err := client.LoadObservations(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load observations: %w", err)
	}

	bounds := catalog.Bounds{MinRadius: *cfg.Filter.MinRadius, MaxRadius: *cfg.Filter.MaxRadius}
	if cmd.Flags().Changed("min-radius") || cmd.Flags().Changed("max-radius") {
		if cmd.Flags().Changed("min-radius") {
			bounds.MinRadius = predictMin
		}
		if cmd.Flags().Changed("max-radius") {
			bounds.MaxRadius = predictMax
		}
		// Without observations BandGrid falls back to the bounds.
		obs = nil
	}

	grid, err := fit.BandGrid(obs, bounds, n)
	if err != nil {
		return printer.Error("invalid prediction grid", err.Error(), []string{"Use --grid >= 2 and --min-radius below --max-radius"})
	}
	band, err := predict.Band(trace, grid, predict.Quantiles{Lower: cfg.Predict.LowerQ, Upper: cfg.Predict.UpperQ})
	if err != nil {
		return fmt.Errorf("failed to compute band: %w", err)
	}

	if predictFormat == "csv" {
		return report.BandCSV(printer.Stdout(), band)
	}
	return report.BandTable(printer.Stdout(), band)
}
