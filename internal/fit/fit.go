// Package fit runs the mass-radius pipeline end to end: filter, log
// transform, model, sampling, diagnostics and the predictive band.
package fit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dyluth/exofit/internal/catalog"
	"github.com/dyluth/exofit/internal/config"
	"github.com/dyluth/exofit/internal/diagnostics"
	"github.com/dyluth/exofit/internal/model"
	"github.com/dyluth/exofit/internal/predict"
	"github.com/dyluth/exofit/internal/sampler"
	"github.com/dyluth/exofit/internal/transform"
	"go.uber.org/zap"
)

// minGridRadius replaces a zero lower filter bound on the log grid.
const minGridRadius = 0.1

// Options collects everything a pipeline run needs besides the rows.
type Options struct {
	Bounds     catalog.Bounds
	Priors     model.Priors
	Sampler    sampler.Config
	UseMAP     bool
	GridPoints int
	Quantiles  predict.Quantiles
	Thresholds diagnostics.Thresholds
}

// DefaultOptions matches config.Default.
func DefaultOptions() Options {
	return Options{
		Bounds:     catalog.DefaultBounds,
		Priors:     model.DefaultPriors(),
		Sampler:    sampler.DefaultConfig(),
		UseMAP:     true,
		GridPoints: 50,
		Quantiles:  predict.OneSigma,
		Thresholds: diagnostics.DefaultThresholds,
	}
}

// OptionsFromConfig converts a validated configuration into pipeline options.
func OptionsFromConfig(c *config.ExofitConfig) Options {
	bounds := func(b *config.BoundsConfig) [2]float64 { return [2]float64{b.Min, b.Max} }
	return Options{
		Bounds: catalog.Bounds{MinRadius: *c.Filter.MinRadius, MaxRadius: *c.Filter.MaxRadius},
		Priors: model.UniformPriors(bounds(c.Priors.A), bounds(c.Priors.B), bounds(c.Priors.LogS)),
		Sampler: sampler.Config{
			Chains:       c.Sampler.Chains,
			Draws:        c.Sampler.Draws,
			Tune:         *c.Sampler.Tune,
			TargetAccept: c.Sampler.TargetAccept,
			Seed:         *c.Sampler.Seed,
			InitJitter:   *c.Sampler.InitJitter,
		},
		UseMAP:     *c.Sampler.UseMAP,
		GridPoints: c.Predict.GridPoints,
		Quantiles:  predict.Quantiles{Lower: c.Predict.LowerQ, Upper: c.Predict.UpperQ},
		Thresholds: diagnostics.DefaultThresholds,
	}
}

// ColumnsFromConfig converts the configured header names for the catalog reader.
func ColumnsFromConfig(c *config.ExofitConfig) catalog.Columns {
	cc := c.Catalog.Columns
	return catalog.Columns{
		Name:           cc.Name,
		Radius:         cc.Radius,
		RadiusErrUpper: cc.RadiusErrUpper,
		RadiusErrLower: cc.RadiusErrLower,
		Mass:           cc.Mass,
		MassErrUpper:   cc.MassErrUpper,
		MassErrLower:   cc.MassErrLower,
	}
}

// Result is everything a pipeline run produces.
type Result struct {
	NumRows      int
	NumFiltered  int
	NumSkipped   int
	Observations []transform.Observation
	Baseline     model.LeastSquaresFit
	Start        []float64
	Trace        *sampler.Trace
	Summary      []diagnostics.ParamSummary
	Correlations [][]float64
	Problems     []string
	Band         []predict.BandPoint
	Elapsed      time.Duration
}

// Pipeline runs fits with a shared logger.
type Pipeline struct {
	logger  *zap.Logger
	sampler *sampler.Sampler
}

// NewPipeline creates a pipeline. A nil logger discards logs.
func NewPipeline(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger, sampler: sampler.New(logger)}
}

// Run filters rows, fits the model and summarizes the posterior.
func (p *Pipeline) Run(ctx context.Context, rows []catalog.Row, opts Options) (*Result, error) {
	started := time.Now()
	res := &Result{NumRows: len(rows)}

	kept := catalog.Filter(rows, opts.Bounds, p.logger)
	res.NumFiltered = len(kept)

	obs, skipped := transform.LogTransform(kept)
	res.NumSkipped = skipped
	res.Observations = obs
	if len(obs) == 0 {
		return nil, fmt.Errorf("%d of %d rows survived the filter: %w", len(kept), len(rows), model.ErrNoObservations)
	}
	p.logger.Info("observations ready",
		zap.Int("rows", len(rows)),
		zap.Int("kept", len(kept)),
		zap.Int("skipped", skipped))

	if len(obs) >= 2 {
		baseline, err := model.LeastSquares(obs)
		if err != nil {
			return nil, err
		}
		res.Baseline = baseline
		p.logger.Debug("least squares baseline",
			zap.Float64("slope", baseline.Slope),
			zap.Float64("intercept", baseline.Intercept),
			zap.Float64("r_squared", baseline.RSquared))
	}

	m, err := model.New(obs, opts.Priors)
	if err != nil {
		return nil, err
	}

	res.Start = m.Midpoint()
	if opts.UseMAP {
		start, err := model.MAP(ctx, m, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// Sampling can still proceed from the prior midpoint.
			p.logger.Warn("MAP estimate failed, starting from prior midpoint", zap.Error(err))
		} else {
			res.Start = start
			p.logger.Debug("MAP estimate", zap.Float64s("theta", start))
		}
	}

	trace, err := p.sampler.Sample(ctx, m, res.Start, model.ParamNames, opts.Sampler)
	if err != nil {
		return nil, fmt.Errorf("sampling failed: %w", err)
	}
	res.Trace = trace

	if err := Summarize(res, opts); err != nil {
		return nil, err
	}
	for _, problem := range res.Problems {
		p.logger.Warn("convergence check", zap.String("problem", problem))
	}

	res.Elapsed = time.Since(started)
	p.logger.Info("fit complete",
		zap.Int("chains", trace.NumChains()),
		zap.Int("draws", trace.NumDraws()),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// Summarize fills the diagnostics and band of res from res.Trace. The band
// spans the observed log-radius range, or the filter bounds without observations.
func Summarize(res *Result, opts Options) error {
	summary, err := diagnostics.Summarize(res.Trace)
	if err != nil {
		return fmt.Errorf("failed to summarize trace: %w", err)
	}
	corr, err := diagnostics.Correlations(res.Trace)
	if err != nil {
		return fmt.Errorf("failed to compute correlations: %w", err)
	}
	res.Summary = summary
	res.Correlations = corr
	res.Problems = diagnostics.Problems(summary, opts.Thresholds)

	grid, err := BandGrid(res.Observations, opts.Bounds, opts.GridPoints)
	if err != nil {
		return err
	}
	band, err := predict.Band(res.Trace, grid, opts.Quantiles)
	if err != nil {
		return fmt.Errorf("failed to compute predictive band: %w", err)
	}
	res.Band = band
	return nil
}

// BandGrid spans the observations' log radius, falling back to the filter
// bounds when there are fewer than two distinct radii.
func BandGrid(obs []transform.Observation, b catalog.Bounds, n int) ([]float64, error) {
	lo, hi, ok := transform.Extent(obs)
	if !ok || !(lo < hi) {
		lo, hi = math.Log10(math.Max(b.MinRadius, minGridRadius)), math.Log10(b.MaxRadius)
	}
	return predict.Grid(lo, hi, n)
}
