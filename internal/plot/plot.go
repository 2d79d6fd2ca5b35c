// Package plot renders trace, corner and predictive-band figures as PNG files.
package plot

import (
	"fmt"
	"image/color"
	"os"

	"github.com/dyluth/exofit/internal/predict"
	"github.com/dyluth/exofit/internal/sampler"
	"github.com/dyluth/exofit/internal/transform"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	histBins = 40
	// maxScatter caps the points drawn per corner panel.
	maxScatter = 3000
	panelSize  = 3 * vg.Inch
)

var (
	bandFill   = color.RGBA{R: 70, G: 130, B: 180, A: 90}
	medianLine = color.RGBA{R: 25, G: 60, B: 120, A: 255}
	histFill   = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// Trace writes one row per parameter: the chain traces on the left and the
// pooled marginal histogram on the right.
func Trace(trace *sampler.Trace, path string) error {
	if err := trace.Validate(); err != nil {
		return err
	}

	d := len(trace.ParamNames)
	tiles := draw.Tiles{Rows: d, Cols: 2, PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Millimeter, PadBottom: vg.Millimeter, PadLeft: vg.Millimeter, PadRight: vg.Millimeter}
	img := vgimg.New(2*panelSize, vg.Length(d)*panelSize*0.6)
	dc := draw.New(img)

	for i, name := range trace.ParamNames {
		chains := trace.Column(i)

		lines := plot.New()
		lines.Title.Text = name
		lines.X.Label.Text = "draw"
		for c, values := range chains {
			xys := make(plotter.XYs, len(values))
			for j, v := range values {
				xys[j].X = float64(j)
				xys[j].Y = v
			}
			l, err := plotter.NewLine(xys)
			if err != nil {
				return fmt.Errorf("failed to build trace line for %s: %w", name, err)
			}
			l.Color = plotutil.Color(c)
			l.Width = vg.Points(0.4)
			lines.Add(l)
		}

		hist, err := histogram(name, concat(chains))
		if err != nil {
			return err
		}

		lines.Draw(tiles.At(dc, 0, i))
		hist.Draw(tiles.At(dc, 1, i))
	}

	return writePNG(img, path)
}

// Corner writes a lower-triangular grid: marginal histograms on the diagonal
// and pairwise scatter plots below it.
func Corner(trace *sampler.Trace, path string) error {
	if err := trace.Validate(); err != nil {
		return err
	}

	d := len(trace.ParamNames)
	tiles := draw.Tiles{Rows: d, Cols: d, PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Millimeter, PadBottom: vg.Millimeter, PadLeft: vg.Millimeter, PadRight: vg.Millimeter}
	img := vgimg.New(vg.Length(d)*panelSize*0.8, vg.Length(d)*panelSize*0.8)
	dc := draw.New(img)

	cols := make([][]float64, d)
	for i := range cols {
		cols[i] = concat(trace.Column(i))
	}
	stride := max(1, len(cols[0])/maxScatter)

	for row := 0; row < d; row++ {
		for col := 0; col <= row; col++ {
			var p *plot.Plot
			if row == col {
				hist, err := histogram(trace.ParamNames[row], cols[row])
				if err != nil {
					return err
				}
				p = hist
			} else {
				p = plot.New()
				xys := make(plotter.XYs, 0, len(cols[col])/stride+1)
				for k := 0; k < len(cols[col]); k += stride {
					xys = append(xys, plotter.XY{X: cols[col][k], Y: cols[row][k]})
				}
				s, err := plotter.NewScatter(xys)
				if err != nil {
					return fmt.Errorf("failed to build corner scatter: %w", err)
				}
				s.GlyphStyle.Radius = vg.Points(0.8)
				s.GlyphStyle.Color = color.RGBA{A: 60}
				p.Add(s)
			}
			if row == d-1 {
				p.X.Label.Text = trace.ParamNames[col]
			}
			if col == 0 && row > 0 {
				p.Y.Label.Text = trace.ParamNames[row]
			}
			p.Draw(tiles.At(dc, col, row))
		}
	}

	return writePNG(img, path)
}

// errorPoints pairs observations with their vertical error bars.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// Band writes the data with log-mass error bars, the median prediction and
// the shaded predictive band, all in log10 space.
func Band(obs []transform.Observation, band []predict.BandPoint, path string) error {
	if len(band) == 0 {
		return predict.ErrEmptyGrid
	}

	p := plot.New()
	p.Title.Text = "Posterior predictive mass-radius relation"
	p.X.Label.Text = "log10 radius [Earth radii]"
	p.Y.Label.Text = "log10 mass [Earth masses]"

	outline := make(plotter.XYs, 0, 2*len(band))
	for _, b := range band {
		outline = append(outline, plotter.XY{X: b.X, Y: b.Upper})
	}
	for i := len(band) - 1; i >= 0; i-- {
		outline = append(outline, plotter.XY{X: band[i].X, Y: band[i].Lower})
	}
	poly, err := plotter.NewPolygon(outline)
	if err != nil {
		return fmt.Errorf("failed to build band polygon: %w", err)
	}
	poly.Color = bandFill
	poly.LineStyle.Width = 0
	p.Add(poly)

	if len(obs) > 0 {
		pts := errorPoints{XYs: make(plotter.XYs, len(obs)), YErrors: make(plotter.YErrors, len(obs))}
		for i, o := range obs {
			pts.XYs[i] = plotter.XY{X: o.LogRadius, Y: o.LogMass}
			pts.YErrors[i].Low = o.LogMassErr
			pts.YErrors[i].High = o.LogMassErr
		}
		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return fmt.Errorf("failed to build error bars: %w", err)
		}
		bars.LineStyle.Color = color.Gray{Y: 150}
		scatter, err := plotter.NewScatter(pts.XYs)
		if err != nil {
			return fmt.Errorf("failed to build data scatter: %w", err)
		}
		scatter.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(bars, scatter)
		p.Legend.Add("data", scatter)
	}

	median := make(plotter.XYs, len(band))
	for i, b := range band {
		median[i] = plotter.XY{X: b.X, Y: b.Median}
	}
	line, err := plotter.NewLine(median)
	if err != nil {
		return fmt.Errorf("failed to build median line: %w", err)
	}
	line.Color = medianLine
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("median", line)
	p.Legend.Add("predictive band", poly)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(6*vg.Inch, 4.5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save band plot: %w", err)
	}
	return nil
}

func histogram(name string, values []float64) (*plot.Plot, error) {
	p := plot.New()
	h, err := plotter.NewHist(plotter.Values(values), histBins)
	if err != nil {
		return nil, fmt.Errorf("failed to build histogram for %s: %w", name, err)
	}
	h.FillColor = histFill
	h.Normalize(1)
	p.Add(h)
	p.Y.Tick.Marker = plot.ConstantTicks(nil)
	return p, nil
}

func writePNG(img *vgimg.Canvas, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func concat(chains [][]float64) []float64 {
	var out []float64
	for _, c := range chains {
		out = append(out, c...)
	}
	return out
}
