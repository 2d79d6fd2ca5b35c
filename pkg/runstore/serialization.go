package runstore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Redis hashes are flat string maps. Scalar fields get their own hash field so
// they stay readable with redis-cli; slices and nested structs are JSON-encoded.

// RunToHash converts a Run into Redis hash fields.
func RunToHash(r *Run) (map[string]interface{}, error) {
	hash := map[string]interface{}{
		"id":               r.ID,
		"created_at_ms":    r.CreatedAtMs,
		"source":           r.Source,
		"num_rows":         r.NumRows,
		"num_observations": r.NumObservations,
		"num_chains":       r.NumChains,
		"num_draws":        r.NumDraws,
		"config":           r.Config,
	}

	encoded := map[string]interface{}{
		"param_names": r.ParamNames,
		"acceptance":  r.Acceptance,
		"step_scale":  r.StepScale,
		"start":       r.Start,
		"baseline":    r.Baseline,
		"summary":     r.Summary,
		"problems":    r.Problems,
	}
	for field, v := range encoded {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", field, err)
		}
		hash[field] = string(data)
	}
	return hash, nil
}

// HashToRun converts Redis hash fields back into a Run.
func HashToRun(hash map[string]string) (*Run, error) {
	r := &Run{
		ID:     hash["id"],
		Source: hash["source"],
		Config: hash["config"],
	}

	ints := map[string]*int{
		"num_rows":         &r.NumRows,
		"num_observations": &r.NumObservations,
		"num_chains":       &r.NumChains,
		"num_draws":        &r.NumDraws,
	}
	for field, dst := range ints {
		v, err := strconv.Atoi(hash[field])
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", field, err)
		}
		*dst = v
	}

	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}
	r.CreatedAtMs = createdAtMs

	decoded := map[string]interface{}{
		"param_names": &r.ParamNames,
		"acceptance":  &r.Acceptance,
		"step_scale":  &r.StepScale,
		"start":       &r.Start,
		"baseline":    &r.Baseline,
		"summary":     &r.Summary,
		"problems":    &r.Problems,
	}
	for field, dst := range decoded {
		data := hash[field]
		if data == "" {
			continue
		}
		if err := json.Unmarshal([]byte(data), dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", field, err)
		}
	}

	// Ensure empty slices instead of nil for consistency
	if r.Problems == nil {
		r.Problems = []string{}
	}
	return r, nil
}
