package catalog

import (
	"math"

	"go.uber.org/zap"
)

// Bounds is the open radius interval (Earth radii) a row must fall in.
type Bounds struct {
	MinRadius float64
	MaxRadius float64
}

// DefaultBounds keeps planets between one and four Earth radii.
var DefaultBounds = Bounds{MinRadius: 1, MaxRadius: 4}

// Keep reports whether a row is usable for the fit:
//   - radius strictly inside the bounds
//   - mass and radius stay positive after subtracting the lower error
//   - all six numeric fields are finite and nonzero
//   - the central mass is positive
func (b Bounds) Keep(r Row) bool {
	if !(r.Radius > b.MinRadius && r.Radius < b.MaxRadius) {
		return false
	}
	if !(r.Mass+r.MassErrLower > 0) || !(r.Radius+r.RadiusErrLower > 0) {
		return false
	}
	for _, v := range r.numeric() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
			return false
		}
	}
	return r.Mass > 0
}

// Filter returns the rows that pass Keep, in input order.
// Rejected rows are dropped silently; the logger only records counts.
func Filter(rows []Row, b Bounds, logger *zap.Logger) []Row {
	kept := make([]Row, 0, len(rows))
	for _, r := range rows {
		if b.Keep(r) {
			kept = append(kept, r)
		}
	}

	if logger != nil {
		logger.Debug("Filtered catalog",
			zap.Int("input", len(rows)),
			zap.Int("kept", len(kept)),
			zap.Float64("min_radius", b.MinRadius),
			zap.Float64("max_radius", b.MaxRadius))
	}
	return kept
}
