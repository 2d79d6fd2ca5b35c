package sampler

import (
	"errors"
	"fmt"
)

// ErrEmptyTrace is returned when a trace holds no draws.
var ErrEmptyTrace = errors.New("trace contains no draws")

// Trace is the posterior sample collection: draws grouped by originating chain.
// Chains[c][i] is the i-th parameter vector of chain c. A Trace is never
// mutated after Sample returns it.
type Trace struct {
	ParamNames []string      `json:"param_names"`
	Chains     [][][]float64 `json:"chains"`
	Acceptance []float64     `json:"acceptance"` // per chain, draw phase
	StepScale  []float64     `json:"step_scale"` // per chain, tuned proposal scale
}

// NumChains returns the number of chains.
func (t *Trace) NumChains() int { return len(t.Chains) }

// NumDraws returns the number of draws per chain.
func (t *Trace) NumDraws() int {
	if len(t.Chains) == 0 {
		return 0
	}
	return len(t.Chains[0])
}

// Validate checks the trace is non-empty and rectangular.
func (t *Trace) Validate() error {
	if t == nil || t.NumChains() == 0 || t.NumDraws() == 0 {
		return ErrEmptyTrace
	}
	n, d := t.NumDraws(), len(t.ParamNames)
	for c, chain := range t.Chains {
		if len(chain) != n {
			return fmt.Errorf("chain %d has %d draws, want %d", c, len(chain), n)
		}
		for i, draw := range chain {
			if len(draw) != d {
				return fmt.Errorf("chain %d draw %d has %d parameters, want %d", c, i, len(draw), d)
			}
		}
	}
	return nil
}

// Index returns the position of a named parameter.
func (t *Trace) Index(name string) (int, error) {
	for i, n := range t.ParamNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter %q", name)
}

// Column returns the draws of parameter i, grouped by chain.
func (t *Trace) Column(i int) [][]float64 {
	out := make([][]float64, len(t.Chains))
	for c, chain := range t.Chains {
		col := make([]float64, len(chain))
		for j, draw := range chain {
			col[j] = draw[i]
		}
		out[c] = col
	}
	return out
}

// Param returns the draws of a named parameter, grouped by chain.
func (t *Trace) Param(name string) ([][]float64, error) {
	i, err := t.Index(name)
	if err != nil {
		return nil, err
	}
	return t.Column(i), nil
}

// Flatten returns all draws of a named parameter with chains concatenated.
func (t *Trace) Flatten(name string) ([]float64, error) {
	i, err := t.Index(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, t.NumChains()*t.NumDraws())
	for _, col := range t.Column(i) {
		out = append(out, col...)
	}
	return out, nil
}

// Draws returns every parameter vector with chains concatenated.
func (t *Trace) Draws() [][]float64 {
	out := make([][]float64, 0, t.NumChains()*t.NumDraws())
	for _, chain := range t.Chains {
		out = append(out, chain...)
	}
	return out
}
