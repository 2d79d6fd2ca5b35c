package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/exofit/internal/diagnostics"
	"github.com/dyluth/exofit/internal/model"
	"github.com/dyluth/exofit/internal/predict"
	"github.com/dyluth/exofit/pkg/runstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var summaries = []diagnostics.ParamSummary{
	{Name: "A", Mean: 1.2987, SD: 0.0512, HDILow: 1.2, HDIHigh: 1.39, MCSEMean: 0.0011, ESSBulk: 2104.4, ESSTail: 1999.6, RHat: 1.0012},
	{Name: "B", Mean: 0.4312, SD: 0.02, HDILow: 0.39, HDIHigh: 0.47, MCSEMean: math.NaN(), ESSBulk: 1800, ESSTail: 1700, RHat: math.NaN()},
}

func TestSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SummaryTable(&buf, summaries))
	out := buf.String()

	assert.Contains(t, out, "1.299")
	assert.Contains(t, out, "2104")
	assert.Contains(t, out, "1.001")
	// Non-finite statistics render as a dash rather than NaN.
	assert.NotContains(t, out, "NaN")
}

func TestCorrelationTable(t *testing.T) {
	var buf bytes.Buffer
	corr := [][]float64{{1, -0.93}, {-0.93, 1}}
	require.NoError(t, CorrelationTable(&buf, []string{"A", "B"}, corr))
	assert.Contains(t, buf.String(), "-0.93")
	assert.Contains(t, buf.String(), "1.00")
}

func TestBaseline(t *testing.T) {
	var buf bytes.Buffer
	Baseline(&buf, model.LeastSquaresFit{Slope: 1.31, Intercept: 0.42, RSquared: 0.77})
	assert.Equal(t, "Least squares: log10 M = 1.310 * log10 R + 0.420 (R^2 = 0.770)\n", buf.String())
}

func TestBandOutputs(t *testing.T) {
	band := []predict.BandPoint{
		{X: 0, Lower: 0.2, Median: 0.43, Upper: 0.66},
		{X: 0.5, Lower: 0.85, Median: 1.08, Upper: 1.31},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, BandTable(&buf, band))
		out := buf.String()
		assert.Contains(t, out, "0.430")
		// 10^0.43 Earth masses at 1 Earth radius.
		assert.Contains(t, out, "2.69")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, BandCSV(&buf, band))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"log_radius", "log_mass_lower", "log_mass_median", "log_mass_upper"}, records[0])
		assert.Equal(t, []string{"0.5", "0.85", "1.08", "1.31"}, records[2])
	})
}

func TestRunsTable(t *testing.T) {
	now := time.Date(2025, 10, 29, 12, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := RunsTable(&buf, nil, "default", now)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, "No runs found in namespace 'default'\n", buf.String())
	})

	t.Run("rows", func(t *testing.T) {
		runs := []*runstore.Run{
			{
				ID:              "3f2b8c1a-1111-4a4a-9b9b-000000000001",
				CreatedAtMs:     now.Add(-5 * time.Minute).UnixMilli(),
				Source:          "archive",
				NumObservations: 312,
				NumChains:       4,
				NumDraws:        2000,
				Summary:         summaries,
			},
			{
				ID:          "7d00aa00-3333-4a4a-9b9b-000000000003",
				CreatedAtMs: now.Add(-50 * time.Hour).UnixMilli(),
				Source:      "/very/long/path/to/some/catalog/planets.csv",
				Problems:    []string{"A: r_hat"},
			},
		}
		var buf bytes.Buffer
		n, err := RunsTable(&buf, runs, "default", now)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		out := buf.String()
		assert.Contains(t, out, "3f2b8c1a")
		assert.NotContains(t, out, "3f2b8c1a-1111")
		assert.Contains(t, out, "5m ago")
		assert.Contains(t, out, "2d ago")
		assert.Contains(t, out, "4 x 2000")
		assert.Contains(t, out, "1.299")
		assert.Contains(t, out, "1 warning(s)")
		assert.Contains(t, out, "...")
		assert.True(t, strings.HasSuffix(out, "2 runs found\n"))
	})
}

func TestRunsJSONL(t *testing.T) {
	runs := []*runstore.Run{{ID: "a", Summary: summaries}, {ID: "b"}}
	var buf bytes.Buffer
	require.NoError(t, RunsJSONL(&buf, runs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var got runstore.Run
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "a", got.ID)
	assert.True(t, math.IsNaN(got.Summary[1].RHat))
}

func TestRunJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RunJSON(&buf, &runstore.Run{ID: "abc", Source: "simulated"}))
	assert.Contains(t, buf.String(), "\n  \"id\": \"abc\"")
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
}

func TestFormatAge(t *testing.T) {
	now := time.Unix(100000, 0)
	assert.Equal(t, "-", formatAge(0, now))
	assert.Equal(t, "30s ago", formatAge(now.Add(-30*time.Second).UnixMilli(), now))
	assert.Equal(t, "3h ago", formatAge(now.Add(-3*time.Hour).UnixMilli(), now))
}
