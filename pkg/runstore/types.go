package runstore

import (
	"fmt"
	"time"

	"github.com/dyluth/exofit/internal/diagnostics"
	"github.com/dyluth/exofit/internal/fit"
	"github.com/dyluth/exofit/internal/model"
	"github.com/google/uuid"
)

// Run is the persisted record of one fit. The draws themselves live under
// separate chain keys and are loaded with LoadTrace.
type Run struct {
	ID              string                     `json:"id"`               // UUID
	CreatedAtMs     int64                      `json:"created_at_ms"`    // Unix milliseconds
	Source          string                     `json:"source"`           // "archive", "simulated" or an input path
	NumRows         int                        `json:"num_rows"`         // rows before filtering
	NumObservations int                        `json:"num_observations"` // observations entering the likelihood
	ParamNames      []string                   `json:"param_names"`
	NumChains       int                        `json:"num_chains"`
	NumDraws        int                        `json:"num_draws"`
	Acceptance      []float64                  `json:"acceptance"`
	StepScale       []float64                  `json:"step_scale"`
	Start           []float64                  `json:"start"`
	Baseline        model.LeastSquaresFit      `json:"baseline"`
	Summary         []diagnostics.ParamSummary `json:"summary"`
	Problems        []string                   `json:"problems"`
	Config          string                     `json:"config,omitempty"` // YAML of the settings used
}

// EventType distinguishes run events.
type EventType string

const (
	// EventSaved is published after a run and its draws are written.
	EventSaved EventType = "saved"
	// EventDeleted is published after a run is removed.
	EventDeleted EventType = "deleted"
)

// RunEvent is the payload published on the run events channel.
type RunEvent struct {
	Type  EventType `json:"type"`
	RunID string    `json:"run_id"`
}

// NewRun builds a Run with a fresh ID from a pipeline result.
func NewRun(source string, res *fit.Result) *Run {
	return &Run{
		ID:              uuid.New().String(),
		CreatedAtMs:     time.Now().UnixMilli(),
		Source:          source,
		NumRows:         res.NumRows,
		NumObservations: len(res.Observations),
		ParamNames:      append([]string(nil), res.Trace.ParamNames...),
		NumChains:       res.Trace.NumChains(),
		NumDraws:        res.Trace.NumDraws(),
		Acceptance:      append([]float64(nil), res.Trace.Acceptance...),
		StepScale:       append([]float64(nil), res.Trace.StepScale...),
		Start:           append([]float64(nil), res.Start...),
		Baseline:        res.Baseline,
		Summary:         res.Summary,
		Problems:        res.Problems,
	}
}

// Validate checks the fields needed to store and reload the run.
func (r *Run) Validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("invalid run ID %q: %w", r.ID, err)
	}
	if r.CreatedAtMs <= 0 {
		return fmt.Errorf("created_at_ms must be positive")
	}
	if len(r.ParamNames) == 0 {
		return fmt.Errorf("param_names cannot be empty")
	}
	if r.NumChains < 1 || r.NumDraws < 1 {
		return fmt.Errorf("run must have at least one chain and one draw (got %d chains, %d draws)", r.NumChains, r.NumDraws)
	}
	return nil
}

// CreatedAt returns the creation time.
func (r *Run) CreatedAt() time.Time {
	return time.UnixMilli(r.CreatedAtMs)
}

// Converged reports whether the stored summaries passed every convergence check.
func (r *Run) Converged() bool {
	return len(r.Problems) == 0
}
