package model

import (
	"context"
	"fmt"
	"math"

	"github.com/dyluth/exofit/internal/transform"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// outsideSupport stands in for -log p where the posterior is zero.
// Nelder-Mead only compares values, so any large finite number works.
const outsideSupport = 1e300

// MAP finds the maximum a-posteriori parameter vector with Nelder-Mead,
// starting from start (the prior midpoint when nil). The search stops with
// the context's error once ctx is done.
func MAP(ctx context.Context, m *Model, start []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if start == nil {
		start = m.Midpoint()
	}
	if lp := m.LogProb(start); math.IsInf(lp, -1) || math.IsNaN(lp) {
		return nil, fmt.Errorf("MAP start %v lies outside the prior support", start)
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			lp := m.LogProb(theta)
			if math.IsInf(lp, -1) || math.IsNaN(lp) {
				return outsideSupport
			}
			return -lp
		},
	}
	settings := &optimize.Settings{MajorIterations: 5000, Recorder: ctxRecorder{ctx}}

	result, err := optimize.Minimize(problem, start, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("MAP optimization failed: %w", err)
	}
	if result.F >= outsideSupport {
		return nil, fmt.Errorf("MAP optimization left the prior support")
	}
	return result.X, nil
}

// ctxRecorder aborts an optimization when its context is done.
type ctxRecorder struct{ ctx context.Context }

func (r ctxRecorder) Init() error { return r.ctx.Err() }

func (r ctxRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}

// LeastSquaresFit is the inverse-variance weighted straight line through the data.
type LeastSquaresFit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
}

// LeastSquares fits log mass against log radius with weights 1/LogMassErr^2.
// It ignores intrinsic scatter and serves as a sanity baseline for the posterior.
func LeastSquares(obs []transform.Observation) (LeastSquaresFit, error) {
	if len(obs) < 2 {
		return LeastSquaresFit{}, fmt.Errorf("least squares needs at least 2 observations, got %d", len(obs))
	}

	x, y, yerr := transform.Columns(obs)
	weights := make([]float64, len(yerr))
	for i, e := range yerr {
		weights[i] = 1 / (e * e)
	}

	alpha, beta := stat.LinearRegression(x, y, weights, false)
	return LeastSquaresFit{
		Slope:     beta,
		Intercept: alpha,
		RSquared:  stat.RSquared(x, y, weights, alpha, beta),
	}, nil
}
