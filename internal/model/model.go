// Package model defines the mass-radius regression with intrinsic scatter.
//
// The parameter vector is (A, B, logS): log10 mass is normally distributed
// around A*log10(radius)+B with variance exp(logS)^2 plus the reported
// log-mass measurement variance. Each parameter has an independent uniform prior.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/dyluth/exofit/internal/transform"
	"gonum.org/v1/gonum/stat/distuv"
)

// Parameter indices into a parameter vector.
const (
	IndexA = iota
	IndexB
	IndexLogS
	NumParams
)

// ParamNames lists parameter names in index order.
var ParamNames = []string{"A", "B", "logS"}

// ErrNoObservations is returned when a model is built without data.
var ErrNoObservations = errors.New("model requires at least one observation")

// Priors holds the independent uniform priors of A, B and logS.
type Priors struct {
	A    distuv.Uniform
	B    distuv.Uniform
	LogS distuv.Uniform
}

// DefaultPriors are uniform on [-5, 5] for every parameter.
func DefaultPriors() Priors {
	return UniformPriors([2]float64{-5, 5}, [2]float64{-5, 5}, [2]float64{-5, 5})
}

// UniformPriors builds priors from [min, max] pairs.
func UniformPriors(a, b, logS [2]float64) Priors {
	return Priors{
		A:    distuv.Uniform{Min: a[0], Max: a[1]},
		B:    distuv.Uniform{Min: b[0], Max: b[1]},
		LogS: distuv.Uniform{Min: logS[0], Max: logS[1]},
	}
}

func (p Priors) list() [NumParams]distuv.Uniform {
	return [NumParams]distuv.Uniform{p.A, p.B, p.LogS}
}

// Validate checks every prior has a finite, non-empty support.
func (p Priors) Validate() error {
	for i, u := range p.list() {
		if !(u.Min < u.Max) || math.IsInf(u.Min, 0) || math.IsInf(u.Max, 0) {
			return fmt.Errorf("prior for %s must have finite min < max (got [%g, %g])", ParamNames[i], u.Min, u.Max)
		}
	}
	return nil
}

// Model is the posterior target. It is read-only after New and safe for
// concurrent use by several chains.
type Model struct {
	x      []float64
	y      []float64
	yvar   []float64
	priors [NumParams]distuv.Uniform
}

// New builds the model over a fixed observation set.
func New(obs []transform.Observation, priors Priors) (*Model, error) {
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}
	if err := priors.Validate(); err != nil {
		return nil, err
	}

	x, y, yerr := transform.Columns(obs)
	yvar := make([]float64, len(yerr))
	for i, e := range yerr {
		yvar[i] = e * e
	}

	return &Model{x: x, y: y, yvar: yvar, priors: priors.list()}, nil
}

// Dim returns the number of parameters.
func (m *Model) Dim() int { return NumParams }

// NumObservations returns the size of the data set.
func (m *Model) NumObservations() int { return len(m.x) }

// Bounds returns the prior support of each parameter.
func (m *Model) Bounds() (lo, hi []float64) {
	lo = make([]float64, NumParams)
	hi = make([]float64, NumParams)
	for i, u := range m.priors {
		lo[i], hi[i] = u.Min, u.Max
	}
	return lo, hi
}

// Midpoint returns the centre of the prior box.
func (m *Model) Midpoint() []float64 {
	mid := make([]float64, NumParams)
	for i, u := range m.priors {
		mid[i] = 0.5 * (u.Min + u.Max)
	}
	return mid
}

// LogPrior is the summed log density of the uniform priors, -Inf outside the box.
func (m *Model) LogPrior(theta []float64) float64 {
	lp := 0.0
	for i, u := range m.priors {
		if theta[i] < u.Min || theta[i] > u.Max {
			return math.Inf(-1)
		}
		lp += u.LogProb(theta[i])
	}
	return lp
}

// LogLikelihood is the Gaussian log likelihood of all observations.
func (m *Model) LogLikelihood(theta []float64) float64 {
	a, b := theta[IndexA], theta[IndexB]
	scatter := math.Exp(theta[IndexLogS])
	s2 := scatter * scatter

	ll := 0.0
	for i, xi := range m.x {
		n := distuv.Normal{Mu: a*xi + b, Sigma: math.Sqrt(s2 + m.yvar[i])}
		ll += n.LogProb(m.y[i])
	}
	return ll
}

// LogProb returns the unnormalized log posterior. It satisfies gonum's
// distmv.LogProber so it can be handed to the samplers directly.
func (m *Model) LogProb(theta []float64) float64 {
	if len(theta) != NumParams {
		panic(fmt.Sprintf("model: parameter vector has length %d, want %d", len(theta), NumParams))
	}
	lp := m.LogPrior(theta)
	if math.IsInf(lp, -1) {
		return lp
	}
	return lp + m.LogLikelihood(theta)
}
