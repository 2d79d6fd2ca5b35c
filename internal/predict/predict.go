// Package predict builds the posterior-predictive band of the mass-radius relation.
package predict

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/dyluth/exofit/internal/model"
	"github.com/dyluth/exofit/internal/sampler"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyGrid is returned when no x values are requested.
var ErrEmptyGrid = errors.New("prediction grid is empty")

// Quantiles are the band edges. The centre is always the median.
type Quantiles struct {
	Lower float64
	Upper float64
}

// OneSigma gives the 16th/84th percentile band.
var OneSigma = Quantiles{Lower: 0.16, Upper: 0.84}

// BandPoint is the predictive band at one log-radius value.
type BandPoint struct {
	X      float64 `json:"x"`
	Median float64 `json:"median"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// Linear converts the point from log10 space to radius and mass.
func (p BandPoint) Linear() BandPoint {
	return BandPoint{
		X:      math.Pow(10, p.X),
		Median: math.Pow(10, p.Median),
		Lower:  math.Pow(10, p.Lower),
		Upper:  math.Pow(10, p.Upper),
	}
}

// Grid returns n evenly spaced values from lo to hi inclusive.
func Grid(lo, hi float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("grid needs at least 2 points, got %d", n)
	}
	if !(lo < hi) {
		return nil, fmt.Errorf("grid bounds must satisfy lo < hi (got %g, %g)", lo, hi)
	}
	return floats.Span(make([]float64, n), lo, hi), nil
}

// Band evaluates the predictive band over grid. For each x every draw gives
// a line A*x+B; the centre is the median line value, and the edges are the
// q.Lower quantile of line-exp(logS) and the q.Upper quantile of line+exp(logS).
// The edges therefore always bracket the median.
func Band(trace *sampler.Trace, grid []float64, q Quantiles) ([]BandPoint, error) {
	if err := trace.Validate(); err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, ErrEmptyGrid
	}
	if !(0 < q.Lower && q.Lower <= 0.5 && 0.5 <= q.Upper && q.Upper < 1) {
		return nil, fmt.Errorf("band quantiles must satisfy 0 < lower <= 0.5 <= upper < 1 (got %g, %g)", q.Lower, q.Upper)
	}

	a, err := trace.Flatten(model.ParamNames[model.IndexA])
	if err != nil {
		return nil, err
	}
	b, err := trace.Flatten(model.ParamNames[model.IndexB])
	if err != nil {
		return nil, err
	}
	logS, err := trace.Flatten(model.ParamNames[model.IndexLogS])
	if err != nil {
		return nil, err
	}

	scatter := make([]float64, len(logS))
	for i, v := range logS {
		scatter[i] = math.Exp(v)
	}

	line := make([]float64, len(a))
	low := make([]float64, len(a))
	high := make([]float64, len(a))

	out := make([]BandPoint, len(grid))
	for k, x := range grid {
		for i := range a {
			line[i] = a[i]*x + b[i]
			low[i] = line[i] - scatter[i]
			high[i] = line[i] + scatter[i]
		}
		slices.Sort(line)
		slices.Sort(low)
		slices.Sort(high)

		out[k] = BandPoint{
			X:      x,
			Median: median(line),
			Lower:  quantile(q.Lower, low),
			Upper:  quantile(q.Upper, high),
		}
	}
	return out, nil
}

// quantile reads the empirical p-quantile of sorted values. The 0.5 quantile
// is the median so an edge set at 0.5 never crosses it.
func quantile(p float64, sorted []float64) float64 {
	if p == 0.5 {
		return median(sorted)
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// median of sorted values, averaging the middle pair for even lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return 0.5 * (sorted[n/2-1] + sorted[n/2])
}
