package diagnostics

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RHat is the rank-normalized split R-hat: the larger of the bulk statistic
// and the statistic of the folded draws. NaN when chains are shorter than 4.
func RHat(chains [][]float64) float64 {
	split, ok := splitChains(chains)
	if !ok {
		return math.NaN()
	}
	bulk := rhat(zScale(split))
	tail := rhat(zScale(fold(split)))
	return math.Max(bulk, tail)
}

// ESSBulk is the effective sample size of the rank-normalized split chains.
func ESSBulk(chains [][]float64) float64 {
	split, ok := splitChains(chains)
	if !ok {
		return math.NaN()
	}
	return ess(zScale(split))
}

// ESSTail is the smaller effective sample size of the 5% and 95% quantile indicators.
func ESSTail(chains [][]float64) float64 {
	split, ok := splitChains(chains)
	if !ok {
		return math.NaN()
	}
	sorted := concat(split)
	slices.Sort(sorted)
	q05 := stat.Quantile(0.05, stat.Empirical, sorted, nil)
	q95 := stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return math.Min(ess(indicator(split, q05)), ess(indicator(split, q95)))
}

// ESSMean is the effective sample size of the raw split chains, used for the
// Monte Carlo standard error of the mean.
func ESSMean(chains [][]float64) float64 {
	split, ok := splitChains(chains)
	if !ok {
		return math.NaN()
	}
	return ess(split)
}

// splitChains halves every chain, dropping the middle draw of odd lengths.
func splitChains(chains [][]float64) ([][]float64, bool) {
	if len(chains) == 0 || len(chains[0]) < 4 {
		return nil, false
	}
	half := len(chains[0]) / 2
	out := make([][]float64, 0, 2*len(chains))
	for _, c := range chains {
		if len(c) != len(chains[0]) {
			return nil, false
		}
		out = append(out, c[:half], c[len(c)-half:])
	}
	return out, true
}

// zScale replaces draws by normal scores of their pooled fractional ranks.
func zScale(chains [][]float64) [][]float64 {
	flat := concat(chains)
	ranks := averageRanks(flat)
	s := float64(len(flat))

	out := make([][]float64, len(chains))
	k := 0
	for i, c := range chains {
		out[i] = make([]float64, len(c))
		for j := range c {
			out[i][j] = distuv.UnitNormal.Quantile((ranks[k] - 0.375) / (s + 0.25))
			k++
		}
	}
	return out
}

// averageRanks returns 1-based ranks with ties sharing their mean rank.
func averageRanks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	ranks := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = r
		}
		i = j + 1
	}
	return ranks
}

// fold maps draws to their absolute deviation from the pooled median.
func fold(chains [][]float64) [][]float64 {
	sorted := concat(chains)
	slices.Sort(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	out := make([][]float64, len(chains))
	for i, c := range chains {
		out[i] = make([]float64, len(c))
		for j, v := range c {
			out[i][j] = math.Abs(v - median)
		}
	}
	return out
}

func indicator(chains [][]float64, q float64) [][]float64 {
	out := make([][]float64, len(chains))
	for i, c := range chains {
		out[i] = make([]float64, len(c))
		for j, v := range c {
			if v <= q {
				out[i][j] = 1
			}
		}
	}
	return out
}

// rhat is the classic potential scale reduction factor over equal-length chains.
func rhat(chains [][]float64) float64 {
	n := float64(len(chains[0]))
	means := make([]float64, len(chains))
	vars := make([]float64, len(chains))
	for i, c := range chains {
		means[i], vars[i] = stat.MeanVariance(c, nil)
	}
	between := n * stat.Variance(means, nil)
	within := stat.Mean(vars, nil)
	if within == 0 {
		return math.NaN()
	}
	varHat := (n-1)/n*within + between/n
	return math.Sqrt(varHat / within)
}

// ess estimates the effective sample size with Geyer's initial monotone
// sequence over the multi-chain autocorrelation.
func ess(chains [][]float64) float64 {
	m := len(chains)
	n := len(chains[0])
	nf := float64(n)

	acov := make([][]float64, m)
	means := make([]float64, m)
	for i, c := range chains {
		acov[i] = autocovariance(c)
		means[i] = stat.Mean(c, nil)
	}
	meanAcov := func(t int) float64 {
		s := 0.0
		for i := range acov {
			s += acov[i][t]
		}
		return s / float64(m)
	}

	meanVar := meanAcov(0) * nf / (nf - 1)
	varPlus := meanVar * (nf - 1) / nf
	if m > 1 {
		varPlus += stat.Variance(means, nil)
	}
	if varPlus == 0 {
		return math.NaN()
	}

	rho := make([]float64, n)
	rho[0] = 1
	rhoEven := 1.0
	rhoOdd := 1 - (meanVar-meanAcov(1))/varPlus
	rho[1] = rhoOdd

	t := 1
	for t < n-3 && rhoEven+rhoOdd > 0 {
		rhoEven = 1 - (meanVar-meanAcov(t+1))/varPlus
		rhoOdd = 1 - (meanVar-meanAcov(t+2))/varPlus
		if rhoEven+rhoOdd >= 0 {
			rho[t+1] = rhoEven
			rho[t+2] = rhoOdd
		}
		t += 2
	}
	maxT := t - 2
	if rhoEven > 0 {
		rho[maxT+1] = rhoEven
	}

	// Geyer's initial monotone sequence
	for t = 1; t <= maxT-2; t += 2 {
		if rho[t+1]+rho[t+2] > rho[t-1]+rho[t] {
			rho[t+1] = (rho[t-1] + rho[t]) / 2
			rho[t+2] = rho[t+1]
		}
	}

	total := float64(m * n)
	sum := 0.0
	for k := 0; k <= maxT; k++ {
		sum += rho[k]
	}
	tau := -1 + 2*sum + rho[maxT+1]
	tau = math.Max(tau, 1/math.Log10(total))
	return total / tau
}

// autocovariance returns the biased autocovariance of x at every lag,
// computed through a zero-padded real FFT.
func autocovariance(x []float64) []float64 {
	n := len(x)
	mean := stat.Mean(x, nil)

	size := 1
	for size < 2*n {
		size <<= 1
	}
	padded := make([]float64, size)
	sumSq := 0.0
	for i, v := range x {
		padded[i] = v - mean
		sumSq += padded[i] * padded[i]
	}

	fft := fourier.NewFFT(size)
	coeff := fft.Coefficients(nil, padded)
	for i, c := range coeff {
		coeff[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	seq := fft.Sequence(nil, coeff)

	acov := make([]float64, n)
	if seq[0] == 0 {
		return acov
	}
	// Rescale so lag 0 equals the biased variance whatever the transform's normalization.
	scale := sumSq / float64(n) / seq[0]
	for i := range acov {
		acov[i] = seq[i] * scale
	}
	return acov
}
