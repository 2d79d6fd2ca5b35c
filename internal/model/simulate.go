package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/dyluth/exofit/internal/catalog"
	"gonum.org/v1/gonum/stat/distuv"
)

// Truth is a known parameter vector used to generate synthetic catalogs.
type Truth struct {
	A    float64 `json:"a"`
	B    float64 `json:"b"`
	LogS float64 `json:"log_s"`
}

// Vector returns the truth in parameter index order.
func (t Truth) Vector() []float64 { return []float64{t.A, t.B, t.LogS} }

// SimulationConfig controls Simulate.
type SimulationConfig struct {
	Truth     Truth
	N         int
	MinRadius float64
	MaxRadius float64
	// Fractional 1-sigma errors. Mass errors are drawn uniformly in
	// [MassErrMin, MassErrMax] per planet; radius errors are fixed.
	RadiusErr  float64
	MassErrMin float64
	MassErrMax float64
}

// DefaultSimulation mirrors a small super-Earth/sub-Neptune sample.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		Truth:      Truth{A: 1.3, B: math.Log10(2.7), LogS: math.Log(0.1)},
		N:          100,
		MinRadius:  1,
		MaxRadius:  4,
		RadiusErr:  0.05,
		MassErrMin: 0.1,
		MassErrMax: 0.3,
	}
}

// Simulate draws a synthetic catalog from the model with known parameters.
// Radii are uniform in (MinRadius, MaxRadius). Log masses scatter around the
// true line by exp(LogS) plus their own measurement noise.
func Simulate(cfg SimulationConfig, src rand.Source) ([]catalog.Row, error) {
	if cfg.N < 1 {
		return nil, fmt.Errorf("simulation needs N >= 1, got %d", cfg.N)
	}
	if !(0 < cfg.MinRadius && cfg.MinRadius < cfg.MaxRadius) {
		return nil, fmt.Errorf("simulation radius range must satisfy 0 < min < max (got %g, %g)", cfg.MinRadius, cfg.MaxRadius)
	}
	if !(0 < cfg.MassErrMin && cfg.MassErrMin <= cfg.MassErrMax && cfg.MassErrMax < 1) || !(0 < cfg.RadiusErr && cfg.RadiusErr < 1) {
		return nil, fmt.Errorf("simulation fractional errors must lie in (0, 1)")
	}

	radius := distuv.Uniform{Min: cfg.MinRadius, Max: cfg.MaxRadius, Src: src}
	fracErr := distuv.Uniform{Min: cfg.MassErrMin, Max: cfg.MassErrMax, Src: src}
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	scatter := math.Exp(cfg.Truth.LogS)

	rows := make([]catalog.Row, cfg.N)
	for i := range rows {
		r := radius.Rand()
		f := fracErr.Rand()
		logErr := 0.5 * (math.Log10(1+f) - math.Log10(1-f))

		logM := cfg.Truth.A*math.Log10(r) + cfg.Truth.B +
			scatter*unit.Rand() +
			logErr*unit.Rand()
		m := math.Pow(10, logM)

		rows[i] = catalog.Row{
			Name:           fmt.Sprintf("sim-%04d", i+1),
			Radius:         r,
			RadiusErrUpper: cfg.RadiusErr * r,
			RadiusErrLower: -cfg.RadiusErr * r,
			Mass:           m,
			MassErrUpper:   f * m,
			MassErrLower:   -f * m,
		}
	}
	return rows, nil
}
