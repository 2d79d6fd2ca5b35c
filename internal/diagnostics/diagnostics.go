// Package diagnostics reduces a posterior trace to summary statistics:
// moments, highest-density intervals, effective sample sizes and the
// rank-normalized split R-hat convergence statistic.
package diagnostics

import (
	"fmt"
	"math"
	"slices"

	"github.com/dyluth/exofit/internal/sampler"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultHDIProb is the mass covered by the reported highest-density interval.
const DefaultHDIProb = 0.94

// ParamSummary describes the marginal posterior of one parameter.
type ParamSummary struct {
	Name     string  `json:"name"`
	Mean     float64 `json:"mean"`
	SD       float64 `json:"sd"`
	HDILow   float64 `json:"hdi_low"`
	HDIHigh  float64 `json:"hdi_high"`
	MCSEMean float64 `json:"mcse_mean"`
	ESSBulk  float64 `json:"ess_bulk"`
	ESSTail  float64 `json:"ess_tail"`
	RHat     float64 `json:"r_hat"`
}

// Summarize computes a ParamSummary for every parameter in the trace.
func Summarize(trace *sampler.Trace) ([]ParamSummary, error) {
	if err := trace.Validate(); err != nil {
		return nil, err
	}

	out := make([]ParamSummary, len(trace.ParamNames))
	for i, name := range trace.ParamNames {
		chains := trace.Column(i)
		flat := concat(chains)

		mean, sd := stat.MeanStdDev(flat, nil)
		lo, hi := HDI(flat, DefaultHDIProb)

		essMean := ESSMean(chains)
		mcse := math.NaN()
		if essMean > 0 {
			mcse = sd / math.Sqrt(essMean)
		}

		out[i] = ParamSummary{
			Name:     name,
			Mean:     mean,
			SD:       sd,
			HDILow:   lo,
			HDIHigh:  hi,
			MCSEMean: mcse,
			ESSBulk:  ESSBulk(chains),
			ESSTail:  ESSTail(chains),
			RHat:     RHat(chains),
		}
	}
	return out, nil
}

// HDI returns the narrowest interval containing prob of the samples.
func HDI(samples []float64, prob float64) (lo, hi float64) {
	n := len(samples)
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	width := int(math.Floor(prob * float64(n)))
	if width >= n {
		return sorted[0], sorted[n-1]
	}
	if width < 1 {
		return sorted[0], sorted[0]
	}

	best := 0
	for i := 1; i < n-width; i++ {
		if sorted[i+width]-sorted[i] < sorted[best+width]-sorted[best] {
			best = i
		}
	}
	return sorted[best], sorted[best+width]
}

// Correlations returns the Pearson correlation matrix of the parameters over
// all draws, in trace.ParamNames order.
func Correlations(trace *sampler.Trace) ([][]float64, error) {
	if err := trace.Validate(); err != nil {
		return nil, err
	}
	draws := trace.Draws()
	d := len(trace.ParamNames)

	data := mat.NewDense(len(draws), d, nil)
	for i, draw := range draws {
		data.SetRow(i, draw)
	}

	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, data, nil)

	out := make([][]float64, d)
	for i := range out {
		out[i] = make([]float64, d)
		for j := range out[i] {
			out[i][j] = corr.At(i, j)
		}
	}
	return out, nil
}

// Thresholds flag parameters whose chains have not mixed.
type Thresholds struct {
	MaxRHat float64
	MinESS  float64
}

// DefaultThresholds follow the usual R-hat < 1.01 and bulk/tail ESS >= 400 advice.
var DefaultThresholds = Thresholds{MaxRHat: 1.01, MinESS: 400}

// Problems returns a human-readable line for each threshold violation.
func Problems(summaries []ParamSummary, th Thresholds) []string {
	var problems []string
	for _, s := range summaries {
		if math.IsNaN(s.RHat) || s.RHat > th.MaxRHat {
			problems = append(problems, fmt.Sprintf("%s: r_hat %.3f exceeds %.2f", s.Name, s.RHat, th.MaxRHat))
		}
		if math.IsNaN(s.ESSBulk) || s.ESSBulk < th.MinESS {
			problems = append(problems, fmt.Sprintf("%s: ess_bulk %.0f below %.0f", s.Name, s.ESSBulk, th.MinESS))
		}
		if math.IsNaN(s.ESSTail) || s.ESSTail < th.MinESS {
			problems = append(problems, fmt.Sprintf("%s: ess_tail %.0f below %.0f", s.Name, s.ESSTail, th.MinESS))
		}
	}
	return problems
}

func concat(chains [][]float64) []float64 {
	var out []float64
	for _, c := range chains {
		out = append(out, c...)
	}
	return out
}
