// Package plots renders the diagnostic charts of a regression run as PNG files.
package plots

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/KaramelBytes/ndviloom-cli/internal/analysis"
	"github.com/KaramelBytes/ndviloom-cli/internal/dataset"
	"github.com/KaramelBytes/ndviloom-cli/internal/regression"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// File names written by RenderAll.
const (
	CoefficientsFile      = "coefficients.png"
	CorrelationFile       = "correlation.png"
	TimeSeriesFile        = "timeseries.png"
	ActualVsPredictedFile = "actual_vs_predicted.png"
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("nothing to plot")

// Options sets the canvas size in inches.
type Options struct {
	WidthIn  float64
	HeightIn float64
}

// DefaultOptions matches the config defaults.
func DefaultOptions() Options { return Options{WidthIn: 8, HeightIn: 6} }

func (o Options) save(p *plot.Plot, path string) error {
	w, h := o.WidthIn, o.HeightIn
	if w <= 0 || h <= 0 {
		d := DefaultOptions()
		w, h = d.WidthIn, d.HeightIn
	}
	if err := p.Save(vg.Length(w)*vg.Inch, vg.Length(h)*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	log.WithField("file", path).Debug("plot written")
	return nil
}

var (
	skyBlue   = color.RGBA{R: 135, G: 206, B: 235, A: 255}
	ndviGreen = color.RGBA{R: 0, G: 100, B: 0, A: 255}
	predicted = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	fitRed    = color.RGBA{R: 200, G: 0, B: 0, A: 255}
	pointBlue = color.NRGBA{R: 31, G: 119, B: 180, A: 128}
)

// Coefficients draws a horizontal bar per coefficient, the first one on top.
// Pass regression.ByMagnitude output to get the largest |value| first.
func Coefficients(coefs []regression.Coefficient, path string, opt Options) error {
	if len(coefs) == 0 {
		return fmt.Errorf("coefficients: %w", ErrNoData)
	}

	// bars are laid out bottom-up
	n := len(coefs)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i, c := range coefs {
		values[n-1-i] = c.Value
		labels[n-1-i] = c.Name
	}

	p := plot.New()
	p.Title.Text = "Linear Regression Coefficients"
	p.X.Label.Text = "Coefficient Value"

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return fmt.Errorf("coefficients: %w", err)
	}
	bars.Horizontal = true
	bars.Color = skyBlue
	bars.LineStyle.Width = vg.Length(0)
	p.Add(plotter.NewGrid(), bars)
	p.NominalY(labels...)
	return opt.save(p, path)
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ with the first
// column drawn at the top row.
type corrGrid struct{ m *analysis.CorrMatrix }

func (g corrGrid) Dims() (c, r int) {
	n := len(g.m.Columns)
	return n, n
}

func (g corrGrid) Z(c, r int) float64 {
	n := len(g.m.Columns)
	v := g.m.Values[n-1-r][c]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }

// CorrelationHeatmap draws an annotated heatmap on a blue-red scale fixed to [-1, 1].
// Undefined correlations (constant columns) are drawn as 0 and labelled "nan".
func CorrelationHeatmap(m *analysis.CorrMatrix, path string, opt Options) error {
	if m == nil || len(m.Columns) < 2 {
		return fmt.Errorf("correlation heatmap: %w", ErrNoData)
	}
	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)

	g := corrGrid{m}
	h := plotter.NewHeatMap(g, cm.Palette(255))
	h.Min, h.Max = -1, 1

	n := len(m.Columns)
	xys := make(plotter.XYs, 0, n*n)
	text := make([]string, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := m.Values[n-1-r][c]
			xys = append(xys, plotter.XY{X: float64(c), Y: float64(r)})
			if math.IsNaN(v) {
				text = append(text, "nan")
			} else {
				text = append(text, fmt.Sprintf("%.2f", v))
			}
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: text})
	if err != nil {
		return fmt.Errorf("correlation heatmap: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Font.Size = vg.Points(7)
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
	}

	p := plot.New()
	p.Title.Text = "Correlation Matrix"
	p.Add(h, labels)

	yNames := make([]string, n)
	for i, c := range m.Columns {
		yNames[n-1-i] = c
	}
	p.NominalX(m.Columns...)
	p.NominalY(yNames...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	return opt.save(p, path)
}

// DatePoint is one (date, actual, predicted) triple.
type DatePoint struct {
	Date      string
	Actual    float64
	Predicted float64
}

// TimeSeries overlays mean actual and mean predicted NDVI per date.
// Units sharing a date are averaged.
func TimeSeries(points []DatePoint, path string, opt Options) error {
	actual, pred, err := meanByDate(points)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "NDVI Time Series"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "NDVI"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Legend.Top = true

	la, err := plotter.NewLine(actual)
	if err != nil {
		return fmt.Errorf("time series: %w", err)
	}
	la.Color = ndviGreen
	la.Width = vg.Points(1.5)

	lp, err := plotter.NewLine(pred)
	if err != nil {
		return fmt.Errorf("time series: %w", err)
	}
	lp.Color = predicted
	lp.Width = vg.Points(1.5)
	lp.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(plotter.NewGrid(), la, lp)
	p.Legend.Add("Actual NDVI", la)
	p.Legend.Add("Predicted NDVI", lp)
	return opt.save(p, path)
}

func meanByDate(points []DatePoint) (actual, pred plotter.XYs, err error) {
	type acc struct {
		x    float64
		a, p float64
		n    int
	}
	byDate := map[string]*acc{}
	for _, pt := range points {
		a, ok := byDate[pt.Date]
		if !ok {
			t, err := dataset.ParseDate(pt.Date)
			if err != nil {
				return nil, nil, fmt.Errorf("time series: %w", err)
			}
			a = &acc{x: float64(t.Unix())}
			byDate[pt.Date] = a
		}
		a.a += pt.Actual
		a.p += pt.Predicted
		a.n++
	}
	if len(byDate) == 0 {
		return nil, nil, fmt.Errorf("time series: %w", ErrNoData)
	}
	all := make([]*acc, 0, len(byDate))
	for _, a := range byDate {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].x < all[j].x })
	actual = make(plotter.XYs, len(all))
	pred = make(plotter.XYs, len(all))
	for i, a := range all {
		actual[i] = plotter.XY{X: a.x, Y: a.a / float64(a.n)}
		pred[i] = plotter.XY{X: a.x, Y: a.p / float64(a.n)}
	}
	return actual, pred, nil
}

// ActualVsPredicted scatters predictions against actual values with a dashed
// y=x reference spanning the observed range.
func ActualVsPredicted(actual, pred []float64, path string, opt Options) error {
	if len(actual) == 0 || len(actual) != len(pred) {
		return fmt.Errorf("actual vs predicted: %w", ErrNoData)
	}
	pts := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		pts[i] = plotter.XY{X: actual[i], Y: pred[i]}
		lo = math.Min(lo, actual[i])
		hi = math.Max(hi, actual[i])
	}

	p := plot.New()
	p.Title.Text = "Actual vs Predicted NDVI"
	p.X.Label.Text = "Actual NDVI"
	p.Y.Label.Text = "Predicted NDVI"
	p.Legend.Top = true
	p.Legend.Left = true

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("actual vs predicted: %w", err)
	}
	sc.GlyphStyle.Color = pointBlue
	sc.GlyphStyle.Radius = vg.Points(2.5)
	sc.GlyphStyle.Shape = draw.CircleGlyph{}

	ideal, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return fmt.Errorf("actual vs predicted: %w", err)
	}
	ideal.Color = fitRed
	ideal.Width = vg.Points(1.5)
	ideal.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}

	p.Add(plotter.NewGrid(), sc, ideal)
	p.Legend.Add("Data Points", sc)
	p.Legend.Add("Ideal Fit", ideal)
	return opt.save(p, path)
}

// Input carries everything RenderAll draws.
type Input struct {
	Coefficients []regression.Coefficient
	Corr         *analysis.CorrMatrix
	Points       []DatePoint
}

// RenderAll writes the four charts into dir and returns their paths.
func RenderAll(dir string, in Input, opt Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plots dir: %w", err)
	}
	actual := make([]float64, len(in.Points))
	pred := make([]float64, len(in.Points))
	for i, pt := range in.Points {
		actual[i], pred[i] = pt.Actual, pt.Predicted
	}
	jobs := []struct {
		name string
		draw func(string) error
	}{
		{CoefficientsFile, func(p string) error { return Coefficients(in.Coefficients, p, opt) }},
		{CorrelationFile, func(p string) error { return CorrelationHeatmap(in.Corr, p, opt) }},
		{TimeSeriesFile, func(p string) error { return TimeSeries(in.Points, p, opt) }},
		{ActualVsPredictedFile, func(p string) error { return ActualVsPredicted(actual, pred, p, opt) }},
	}
	var out []string
	for _, j := range jobs {
		p := filepath.Join(dir, j.name)
		if err := j.draw(p); err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
