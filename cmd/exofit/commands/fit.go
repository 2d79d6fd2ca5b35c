package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dyluth/exofit/internal/fit"
	"github.com/dyluth/exofit/internal/model"
	"github.com/dyluth/exofit/internal/plot"
	"github.com/dyluth/exofit/internal/predict"
	"github.com/dyluth/exofit/internal/printer"
	"github.com/dyluth/exofit/internal/report"
	"github.com/dyluth/exofit/internal/sampler"
	"github.com/dyluth/exofit/internal/transform"
	"github.com/dyluth/exofit/pkg/runstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	fitInput  string
	fitSave   bool
	fitPlots  string
	fitChains int
	fitDraws  int
	fitTune   int
	fitSeed   uint64
	fitNoBand bool
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the mass-radius relation and summarize the posterior",
	Long: `Run the whole pipeline: load rows, filter them, transform to log space,
find the MAP starting point, sample the posterior with parallel chains and
report the diagnostics and the predictive band.

Rows come from --input when given, otherwise from the archive.

Sampler flags override exofit.yml for this run only.

Examples:
  # Fit the live archive and keep the result
  exofit fit --save

  # Fit a local file quickly and write plots
  exofit fit --input sim.csv --draws 500 --plots ./plots`,
	Args: cobra.NoArgs,
	RunE: runFit,
}

func init() {
	fitCmd.Flags().StringVarP(&fitInput, "input", "i", "", "Read rows from this CSV file instead of the archive")
	fitCmd.Flags().BoolVar(&fitSave, "save", false, "Save the run and its draws to the store")
	fitCmd.Flags().StringVar(&fitPlots, "plots", "", "Write trace, corner and band PNGs to this directory")
	fitCmd.Flags().IntVar(&fitChains, "chains", 0, "Number of chains (overrides sampler.chains)")
	fitCmd.Flags().IntVar(&fitDraws, "draws", 0, "Draws per chain (overrides sampler.draws)")
	fitCmd.Flags().IntVar(&fitTune, "tune", 0, "Tuning steps per chain (overrides sampler.tune)")
	fitCmd.Flags().Uint64Var(&fitSeed, "seed", 0, "Random seed (overrides sampler.seed)")
	fitCmd.Flags().BoolVar(&fitNoBand, "no-band", false, "Do not print the predictive band table")
	rootCmd.AddCommand(fitCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts := fit.OptionsFromConfig(cfg)
	if cmd.Flags().Changed("chains") {
		opts.Sampler.Chains = fitChains
	}
	if cmd.Flags().Changed("draws") {
		opts.Sampler.Draws = fitDraws
	}
	if cmd.Flags().Changed("tune") {
		opts.Sampler.Tune = fitTune
	}
	if cmd.Flags().Changed("seed") {
		opts.Sampler.Seed = fitSeed
	}
	if err := opts.Sampler.Validate(); err != nil {
		return printer.Error("invalid sampler settings", err.Error(), []string{"See: exofit fit --help"})
	}

	rows, source, err := loadRows(ctx, fitInput)
	if err != nil {
		return err
	}
	printer.Step("%s\n", fetchSummary(source, rows))

	printer.Step("Sampling %d chains x %d draws (tune %d)\n",
		opts.Sampler.Chains, opts.Sampler.Draws, opts.Sampler.Tune)
	res, err := fit.NewPipeline(logger).Run(ctx, rows, opts)
	if err != nil {
		return fitError(err, source)
	}

	out := printer.Stdout()
	printer.Info("\n%d observations (%d rows kept, %d dropped by the log transform)\n",
		len(res.Observations), res.NumFiltered, res.NumSkipped)
	if len(res.Observations) >= 2 {
		report.Baseline(out, res.Baseline)
	}
	printer.Info("\nPosterior summary:\n")
	if err := report.SummaryTable(out, res.Summary); err != nil {
		return err
	}
	printer.Info("\nCorrelations:\n")
	if err := report.CorrelationTable(out, res.Trace.ParamNames, res.Correlations); err != nil {
		return err
	}

	if len(res.Problems) == 0 {
		printer.Success("Chains converged (r_hat <= %.2f, ess >= %.0f)\n", opts.Thresholds.MaxRHat, opts.Thresholds.MinESS)
	}
	for _, p := range res.Problems {
		printer.Warning("%s\n", p)
	}

	if !fitNoBand {
		printer.Info("\nPredictive band (%.0f%%-%.0f%%):\n", 100*opts.Quantiles.Lower, 100*opts.Quantiles.Upper)
		if err := report.BandTable(out, res.Band); err != nil {
			return err
		}
	}

	if fitPlots != "" {
		if err := writePlots(fitPlots, res.Trace, res.Observations, res.Band); err != nil {
			return err
		}
	}

	if fitSave {
		if err := saveRun(cmd, source, res); err != nil {
			return err
		}
	}

	printer.Info("\nFinished in %s\n", res.Elapsed.Round(time.Millisecond))
	return nil
}

func fitError(err error, source string) error {
	if errors.Is(err, model.ErrNoObservations) {
		return printer.Error(
			"no usable observations",
			err.Error(),
			[]string{
				fmt.Sprintf("Inspect %s with:\n  exofit fetch", source),
				"Widen filter.min_radius / filter.max_radius in exofit.yml",
			},
		)
	}
	return fmt.Errorf("fit failed: %w", err)
}

func saveRun(cmd *cobra.Command, source string, res *fit.Result) error {
	ctx := cmd.Context()
	client, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	settings, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	run := runstore.NewRun(source, res)
	run.Config = string(settings)
	if err := client.SaveRun(ctx, run, res.Trace, res.Observations); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("run saved", zap.String("run_id", run.ID), zap.String("namespace", client.Namespace()))
	printer.Success("Saved run %s\n", run.ID)
	printer.Info("  exofit runs %s\n", run.ID[:8])
	return nil
}

// writePlots renders the trace, corner and band figures into dir.
func writePlots(dir string, trace *sampler.Trace, obs []transform.Observation, band []predict.BandPoint) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}

	paths := map[string]string{
		"trace":  filepath.Join(dir, "trace.png"),
		"corner": filepath.Join(dir, "corner.png"),
		"band":   filepath.Join(dir, "band.png"),
	}
	if err := plot.Trace(trace, paths["trace"]); err != nil {
		return fmt.Errorf("trace plot failed: %w", err)
	}
	if err := plot.Corner(trace, paths["corner"]); err != nil {
		return fmt.Errorf("corner plot failed: %w", err)
	}
	if err := plot.Band(obs, band, paths["band"]); err != nil {
		return fmt.Errorf("band plot failed: %w", err)
	}

	printer.Success("Wrote plots to %s\n", dir)
	for _, name := range []string{"trace", "corner", "band"} {
		printer.Info("  %s\n", paths[name])
	}
	return nil
}
