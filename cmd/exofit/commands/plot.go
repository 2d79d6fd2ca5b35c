package commands

import (
	"fmt"

	"github.com/dyluth/exofit/internal/fit"
	"github.com/dyluth/exofit/internal/predict"
	"github.com/spf13/cobra"
)

var plotDir string

var plotCmd = &cobra.Command{
	Use:   "plot RUN_ID",
	Short: "Render trace, corner and band plots of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlot,
}

func init() {
	plotCmd.Flags().StringVarP(&plotDir, "dir", "d", "plots", "Directory to write PNG files into")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

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

	opts := fit.OptionsFromConfig(cfg)
	grid, err := fit.BandGrid(obs, opts.Bounds, opts.GridPoints)
	if err != nil {
		return err
	}
	band, err := predict.Band(trace, grid, opts.Quantiles)
	if err != nil {
		return fmt.Errorf("failed to compute band: %w", err)
	}

	return writePlots(plotDir, trace, obs, band)
}
