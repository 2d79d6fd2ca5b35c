// Package transform converts filtered catalog rows into log10-space observations.
package transform

import (
	"math"

	"github.com/dyluth/exofit/internal/catalog"
)

// Observation is one planet in log10 space. LogRadiusErr is carried for
// plotting only; the likelihood uses LogMassErr.
type Observation struct {
	Name         string  `json:"name,omitempty"`
	LogRadius    float64 `json:"log_radius"`
	LogRadiusErr float64 `json:"log_radius_err"`
	LogMass      float64 `json:"log_mass"`
	LogMassErr   float64 `json:"log_mass_err"`
}

// Symmetrize approximates an asymmetric error bar in log10 space as half the
// distance between log10(value+upper) and log10(value+lower).
func Symmetrize(value, upper, lower float64) float64 {
	return 0.5 * (math.Log10(value+upper) - math.Log10(value+lower))
}

// Observe transforms a single row. ok is false when a derived quantity is
// not finite or an error collapses to zero.
func Observe(r catalog.Row) (obs Observation, ok bool) {
	obs = Observation{
		Name:         r.Name,
		LogRadius:    math.Log10(r.Radius),
		LogRadiusErr: Symmetrize(r.Radius, r.RadiusErrUpper, r.RadiusErrLower),
		LogMass:      math.Log10(r.Mass),
		LogMassErr:   Symmetrize(r.Mass, r.MassErrUpper, r.MassErrLower),
	}
	for _, v := range []float64{obs.LogRadius, obs.LogRadiusErr, obs.LogMass, obs.LogMassErr} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return obs, false
		}
	}
	if obs.LogRadiusErr == 0 || obs.LogMassErr == 0 {
		return obs, false
	}
	return obs, true
}

// LogTransform maps rows to observations in input order. Rows whose derived
// values are unusable are skipped; the number skipped is returned.
func LogTransform(rows []catalog.Row) ([]Observation, int) {
	out := make([]Observation, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		obs, ok := Observe(r)
		if !ok {
			skipped++
			continue
		}
		out = append(out, obs)
	}
	return out, skipped
}

// Columns splits observations into x (log radius), y (log mass) and y error slices.
func Columns(obs []Observation) (x, y, yerr []float64) {
	x = make([]float64, len(obs))
	y = make([]float64, len(obs))
	yerr = make([]float64, len(obs))
	for i, o := range obs {
		x[i] = o.LogRadius
		y[i] = o.LogMass
		yerr[i] = o.LogMassErr
	}
	return x, y, yerr
}

// Extent returns the smallest and largest log radius. ok is false for no observations.
func Extent(obs []Observation) (lo, hi float64, ok bool) {
	if len(obs) == 0 {
		return 0, 0, false
	}
	lo, hi = obs[0].LogRadius, obs[0].LogRadius
	for _, o := range obs[1:] {
		lo = math.Min(lo, o.LogRadius)
		hi = math.Max(hi, o.LogRadius)
	}
	return lo, hi, true
}
