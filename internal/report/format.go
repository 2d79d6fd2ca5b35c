// Package report formats fit summaries, saved runs and predictive bands for
// the terminal and for machine consumption.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/dyluth/exofit/internal/diagnostics"
	"github.com/dyluth/exofit/internal/model"
	"github.com/dyluth/exofit/internal/predict"
	"github.com/dyluth/exofit/pkg/runstore"
	"github.com/olekukonko/tablewriter"
)

// SummaryTable writes one row per parameter with its posterior moments,
// 94% HDI and convergence statistics.
func SummaryTable(w io.Writer, summaries []diagnostics.ParamSummary) error {
	table := tablewriter.NewWriter(w)
	table.Header("Param", "Mean", "SD", "HDI 3%", "HDI 97%", "MCSE", "ESS bulk", "ESS tail", "R-hat")
	for _, s := range summaries {
		if err := table.Append([]string{
			s.Name,
			formatFloat(s.Mean, 3),
			formatFloat(s.SD, 3),
			formatFloat(s.HDILow, 3),
			formatFloat(s.HDIHigh, 3),
			formatFloat(s.MCSEMean, 4),
			formatFloat(s.ESSBulk, 0),
			formatFloat(s.ESSTail, 0),
			formatFloat(s.RHat, 3),
		}); err != nil {
			return fmt.Errorf("failed to append summary row: %w", err)
		}
	}
	return table.Render()
}

// CorrelationTable writes the posterior correlation matrix.
func CorrelationTable(w io.Writer, names []string, corr [][]float64) error {
	table := tablewriter.NewWriter(w)
	header := []any{""}
	for _, n := range names {
		header = append(header, n)
	}
	table.Header(header...)
	for i, row := range corr {
		cells := []string{names[i]}
		for _, v := range row {
			cells = append(cells, formatFloat(v, 2))
		}
		if err := table.Append(cells); err != nil {
			return fmt.Errorf("failed to append correlation row: %w", err)
		}
	}
	return table.Render()
}

// Baseline writes the weighted least-squares fit as one line.
func Baseline(w io.Writer, fit model.LeastSquaresFit) {
	fmt.Fprintf(w, "Least squares: log10 M = %s * log10 R + %s (R^2 = %s)\n",
		formatFloat(fit.Slope, 3), formatFloat(fit.Intercept, 3), formatFloat(fit.RSquared, 3))
}

// BandTable writes the predictive band in log space alongside the
// corresponding radius and mass in Earth units.
func BandTable(w io.Writer, band []predict.BandPoint) error {
	table := tablewriter.NewWriter(w)
	table.Header("log10 R", "Lower", "Median", "Upper", "R", "M lower", "M median", "M upper")
	for _, b := range band {
		lin := b.Linear()
		if err := table.Append([]string{
			formatFloat(b.X, 3),
			formatFloat(b.Lower, 3),
			formatFloat(b.Median, 3),
			formatFloat(b.Upper, 3),
			formatFloat(lin.X, 2),
			formatFloat(lin.Lower, 2),
			formatFloat(lin.Median, 2),
			formatFloat(lin.Upper, 2),
		}); err != nil {
			return fmt.Errorf("failed to append band row: %w", err)
		}
	}
	return table.Render()
}

// BandCSV writes the predictive band as CSV with full precision.
func BandCSV(w io.Writer, band []predict.BandPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"log_radius", "log_mass_lower", "log_mass_median", "log_mass_upper"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, b := range band {
		if err := cw.Write([]string{
			strconv.FormatFloat(b.X, 'g', -1, 64),
			strconv.FormatFloat(b.Lower, 'g', -1, 64),
			strconv.FormatFloat(b.Median, 'g', -1, 64),
			strconv.FormatFloat(b.Upper, 'g', -1, 64),
		}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RunsTable writes saved runs as a table. Returns the number of runs written.
func RunsTable(w io.Writer, runs []*runstore.Run, namespace string, now time.Time) (int, error) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs found in namespace '%s'\n", namespace)
		return 0, nil
	}

	fmt.Fprintf(w, "Runs in namespace '%s':\n\n", namespace)

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Age", "Source", "Obs", "Chains x Draws", "A", "B", "logS", "Status")
	for _, r := range runs {
		row := []string{
			formatID(r.ID),
			formatAge(r.CreatedAtMs, now),
			formatSource(r.Source),
			strconv.Itoa(r.NumObservations),
			fmt.Sprintf("%d x %d", r.NumChains, r.NumDraws),
		}
		for _, name := range model.ParamNames {
			row = append(row, meanOf(r.Summary, name))
		}
		row = append(row, formatStatus(r))
		if err := table.Append(row); err != nil {
			return 0, fmt.Errorf("failed to append run row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return 0, err
	}

	noun := "run"
	if len(runs) != 1 {
		noun = "runs"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(runs), noun)
	return len(runs), nil
}

// RunsJSONL writes runs as line-delimited JSON, one run per line.
func RunsJSONL(w io.Writer, runs []*runstore.Run) error {
	for _, r := range runs {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal run to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// RunJSON writes a single run as pretty-printed JSON.
func RunJSON(w io.Writer, r *runstore.Run) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// formatFloat renders v with prec decimals, or "-" when v is not finite.
func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// formatID truncates a run ID to its first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatSource shortens long input paths from the left.
func formatSource(source string) string {
	if source == "" {
		return "-"
	}
	if len(source) > 24 {
		return "..." + source[len(source)-21:]
	}
	return source
}

func formatStatus(r *runstore.Run) string {
	if r.Converged() {
		return "ok"
	}
	return fmt.Sprintf("%d warning(s)", len(r.Problems))
}

func meanOf(summaries []diagnostics.ParamSummary, name string) string {
	for _, s := range summaries {
		if s.Name == name {
			return formatFloat(s.Mean, 3)
		}
	}
	return "-"
}

// formatAge renders a Unix millisecond timestamp relative to now, e.g. "5m ago".
func formatAge(timestampMs int64, now time.Time) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(timestampMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
