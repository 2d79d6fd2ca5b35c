// Package filter selects stored runs for the runs listing.
package filter

import (
	"path/filepath"

	"github.com/dyluth/exofit/internal/timespec"
	"github.com/dyluth/exofit/pkg/runstore"
)

// Criteria defines filtering criteria for runs.
// All filters are ANDed together; a run must match every one to pass.
type Criteria struct {
	Window          timespec.Range // creation time window
	SourceGlob      string         // glob over Run.Source or its base name, empty = no filter
	MinObservations int            // 0 = no filter
	ConvergedOnly   bool
}

// Matches returns true if the run matches all filter criteria.
func (c *Criteria) Matches(r *runstore.Run) bool {
	if !c.Window.Contains(r.CreatedAtMs) {
		return false
	}

	if c.SourceGlob != "" && !matchSource(c.SourceGlob, r.Source) {
		return false
	}

	if r.NumObservations < c.MinObservations {
		return false
	}

	if c.ConvergedOnly && !r.Converged() {
		return false
	}

	return true
}

// matchSource matches the glob against the whole source or, for file
// sources, just the base name.
func matchSource(glob, source string) bool {
	if matched, err := filepath.Match(glob, source); err == nil && matched {
		return true
	}
	matched, err := filepath.Match(glob, filepath.Base(source))
	return err == nil && matched
}

// Apply returns the runs that match, preserving order.
func (c *Criteria) Apply(runs []*runstore.Run) []*runstore.Run {
	out := make([]*runstore.Run, 0, len(runs))
	for _, r := range runs {
		if c.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}
