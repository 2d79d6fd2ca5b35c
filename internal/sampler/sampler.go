// Package sampler draws posterior samples with adaptive random-walk Metropolis.
//
// Each chain runs two phases. During tuning the proposal is a multivariate
// normal whose scale is nudged toward the target acceptance rate every block,
// and whose covariance is replaced by the empirical covariance of the first
// half of tuning. The draw phase freezes the proposal and hands it to gonum's
// Metropolis-Hastings sampler.
package sampler

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/samplemv"
)

const (
	// adaptBlock is the number of tuning steps between scale updates.
	adaptBlock = 50
	// drawBlock is the number of draws taken between context checks.
	drawBlock = 250
	// maxInitAttempts bounds the search for a finite starting point.
	maxInitAttempts = 100
	// covJitter keeps the empirical covariance positive definite.
	covJitter = 1e-10
	// minVariance is the smallest per-axis tuning variance worth adopting.
	minVariance = 1e-12
	// initialStep is the proposal standard deviation before adaptation.
	initialStep = 0.1
)

// Config holds the sampler settings.
type Config struct {
	Chains       int
	Draws        int
	Tune         int
	TargetAccept float64
	Seed         uint64
	InitJitter   float64
}

// DefaultConfig returns 4 chains of 2000 draws after 1000 tuning steps.
func DefaultConfig() Config {
	return Config{Chains: 4, Draws: 2000, Tune: 1000, TargetAccept: 0.3, Seed: 42, InitJitter: 0.1}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Chains < 1 {
		return fmt.Errorf("chains must be >= 1, got %d", c.Chains)
	}
	if c.Draws < 1 {
		return fmt.Errorf("draws must be >= 1, got %d", c.Draws)
	}
	if c.Tune < 0 {
		return fmt.Errorf("tune must be >= 0, got %d", c.Tune)
	}
	if !(c.TargetAccept > 0 && c.TargetAccept < 1) {
		return fmt.Errorf("target acceptance must be in (0, 1), got %g", c.TargetAccept)
	}
	if c.InitJitter < 0 || math.IsNaN(c.InitJitter) {
		return fmt.Errorf("init jitter must be >= 0, got %g", c.InitJitter)
	}
	return nil
}

// Sampler runs Metropolis chains against a log-density target.
type Sampler struct {
	logger *zap.Logger
}

// New creates a sampler. A nil logger discards logs.
func New(logger *zap.Logger) *Sampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{logger: logger}
}

// Sample runs cfg.Chains chains concurrently from init and returns the draws.
// names labels the parameters and must match len(init).
func (s *Sampler) Sample(ctx context.Context, target distmv.LogProber, init []float64, names []string, cfg Config) (*Trace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sampler config: %w", err)
	}
	if len(init) == 0 || len(init) != len(names) {
		return nil, fmt.Errorf("init has %d values for %d parameter names", len(init), len(names))
	}

	trace := &Trace{
		ParamNames: append([]string(nil), names...),
		Chains:     make([][][]float64, cfg.Chains),
		Acceptance: make([]float64, cfg.Chains),
		StepScale:  make([]float64, cfg.Chains),
	}

	s.logger.Info("Sampling posterior",
		zap.Int("chains", cfg.Chains),
		zap.Int("draws", cfg.Draws),
		zap.Int("tune", cfg.Tune),
		zap.Float64("target_accept", cfg.TargetAccept))

	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < cfg.Chains; c++ {
		g.Go(func() error {
			ch := &chain{
				id:     c,
				target: target,
				src:    rand.NewPCG(cfg.Seed, uint64(c)+1),
				cfg:    cfg,
			}
			ch.rng = rand.New(ch.src)

			draws, err := ch.run(gctx, init)
			if err != nil {
				return fmt.Errorf("chain %d: %w", c, err)
			}

			trace.Chains[c] = draws
			trace.Acceptance[c] = ch.acceptance
			trace.StepScale[c] = ch.scale
			s.logger.Debug("Chain finished",
				zap.Int("chain", c),
				zap.Float64("acceptance", ch.acceptance),
				zap.Float64("step_scale", ch.scale))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trace, nil
}

// chain is the per-goroutine sampling state.
type chain struct {
	id     int
	target distmv.LogProber
	src    rand.Source
	rng    *rand.Rand
	cfg    Config

	cov        *mat.SymDense
	scale      float64
	acceptance float64
}

func (ch *chain) run(ctx context.Context, init []float64) ([][]float64, error) {
	d := len(init)
	x, err := ch.start(init)
	if err != nil {
		return nil, err
	}

	ch.cov = mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		ch.cov.SetSym(i, i, initialStep*initialStep)
	}
	ch.scale = optimalScale(d)

	x, err = ch.tune(ctx, x)
	if err != nil {
		return nil, err
	}
	return ch.draw(ctx, x)
}

// start jitters init until the target has finite log density there.
func (ch *chain) start(init []float64) ([]float64, error) {
	x := make([]float64, len(init))
	for attempt := 0; attempt < maxInitAttempts; attempt++ {
		for i, v := range init {
			x[i] = v
			if ch.cfg.InitJitter > 0 {
				x[i] += ch.cfg.InitJitter * (2*ch.rng.Float64() - 1)
			}
		}
		if lp := ch.target.LogProb(x); !math.IsInf(lp, 0) && !math.IsNaN(lp) {
			return x, nil
		}
		if ch.cfg.InitJitter == 0 {
			break
		}
	}
	return nil, fmt.Errorf("no starting point with finite log probability near %v", init)
}

// proposal returns a zero-mean normal with covariance scale*cov.
func (ch *chain) proposal() (*distmv.Normal, bool) {
	d := ch.cov.SymmetricDim()
	sigma := mat.NewSymDense(d, nil)
	sigma.ScaleSym(ch.scale, ch.cov)
	return distmv.NewNormal(make([]float64, d), sigma, ch.src)
}

func (ch *chain) tune(ctx context.Context, x []float64) ([]float64, error) {
	if ch.cfg.Tune == 0 {
		return x, nil
	}
	d := len(x)
	lp := ch.target.LogProb(x)
	history := mat.NewDense(ch.cfg.Tune, d, nil)
	half := ch.cfg.Tune / 2

	prop, ok := ch.proposal()
	if !ok {
		return nil, fmt.Errorf("initial proposal covariance is not positive definite")
	}

	y := make([]float64, d)
	z := make([]float64, d)
	accepted, inBlock, block := 0, 0, 0
	for step := 0; step < ch.cfg.Tune; step++ {
		prop.Rand(z)
		for i := range y {
			y[i] = x[i] + z[i]
		}
		lpy := ch.target.LogProb(y)
		if math.Log(ch.rng.Float64()) < lpy-lp {
			copy(x, y)
			lp = lpy
			accepted++
		}
		history.SetRow(step, x)
		inBlock++

		if (step+1)%adaptBlock == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			block++
			rate := float64(accepted) / float64(inBlock)
			ch.scale *= math.Exp((rate - ch.cfg.TargetAccept) / math.Sqrt(float64(block)))
			accepted, inBlock = 0, 0
		}
		if step+1 == half && half >= 2*d && ch.adoptCovariance(history.Slice(0, half, 0, d)) {
			// Scale adaptation restarts against the new proposal shape.
			accepted, inBlock, block = 0, 0, 0
		}
		if (step+1)%adaptBlock == 0 || step+1 == half {
			if next, ok := ch.proposal(); ok {
				prop = next
			}
		}
	}
	return x, nil
}

// adoptCovariance replaces the proposal shape with the covariance of past
// draws and resets the step scale to the optimal value for a Gaussian target.
// It reports whether the covariance was adopted.
func (ch *chain) adoptCovariance(past mat.Matrix) bool {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, past, nil)
	d := cov.SymmetricDim()
	for i := 0; i < d; i++ {
		// A chain that never moved along an axis has nothing to teach.
		if cov.At(i, i) < minVariance {
			return false
		}
		cov.SetSym(i, i, cov.At(i, i)+covJitter)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(&cov); !ok {
		return false
	}
	ch.cov = &cov
	ch.scale = optimalScale(d)
	return true
}

// optimalScale is the random-walk scale 2.38^2/d for a d-dimensional Gaussian.
func optimalScale(d int) float64 {
	return 2.38 * 2.38 / float64(d)
}

func (ch *chain) draw(ctx context.Context, x []float64) ([][]float64, error) {
	d := len(x)
	sigma := mat.NewSymDense(d, nil)
	sigma.ScaleSym(ch.scale, ch.cov)
	prop, ok := samplemv.NewProposalNormal(sigma, ch.src)
	if !ok {
		return nil, fmt.Errorf("tuned proposal covariance is not positive definite")
	}

	mh := samplemv.MetropolisHastingser{
		Initial:  x,
		Target:   ch.target,
		Proposal: prop,
		Src:      ch.src,
		BurnIn:   0,
		Rate:     1,
	}

	out := make([][]float64, 0, ch.cfg.Draws)
	prev := append([]float64(nil), x...)
	moves := 0
	for len(out) < ch.cfg.Draws {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := min(drawBlock, ch.cfg.Draws-len(out))
		batch := mat.NewDense(n, d, nil)
		mh.Sample(batch)

		for i := 0; i < n; i++ {
			row := mat.Row(nil, i, batch)
			if !equal(row, prev) {
				moves++
			}
			prev = row
			out = append(out, row)
		}
		mh.Initial = prev
	}

	ch.acceptance = float64(moves) / float64(ch.cfg.Draws)
	return out, nil
}

func equal(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
