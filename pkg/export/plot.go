package export

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"
)

var (
	plotValid   = color.RGBA{0x2e, 0x7d, 0x32, 0xff}
	plotInvalid = color.RGBA{0xc6, 0x28, 0x28, 0xff}
	plotLimit   = color.RGBA{0x44, 0x44, 0x44, 0xff}
)

// metricPlot builds the bar plot of one metric. Valid and invalid objects are
// separate bar series so each gets its own colour and legend entry.
func metricPlot(res polycount.Result, m model.MetricKind) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (limit %d)", m.Header(), res.Limits[m])
	p.Y.Label.Text = "Count"

	n := len(res.Rows)
	valid := make(plotter.Values, n)
	invalid := make(plotter.Values, n)
	names := make([]string, n)
	for i, row := range res.Rows {
		names[i] = truncate(string(row.Entity), 14)
		v := float64(row.Counts.Of(m))
		if invalidFor(res, m, row.Entity) {
			invalid[i] = v
		} else {
			valid[i] = v
		}
	}

	width := vg.Points(14)
	validBars, err := plotter.NewBarChart(valid, width)
	if err != nil {
		return nil, err
	}
	validBars.Color = plotValid
	validBars.LineStyle.Width = 0
	invalidBars, err := plotter.NewBarChart(invalid, width)
	if err != nil {
		return nil, err
	}
	invalidBars.Color = plotInvalid
	invalidBars.LineStyle.Width = 0

	limit := float64(res.Limits[m])
	limitLine, err := plotter.NewLine(plotter.XYs{{X: -0.5, Y: limit}, {X: float64(n) - 0.5, Y: limit}})
	if err != nil {
		return nil, err
	}
	limitLine.Color = plotLimit
	limitLine.Width = vg.Points(1)
	limitLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(validBars, invalidBars, limitLine)
	p.Legend.Add("valid", validBars)
	p.Legend.Add("invalid", invalidBars)
	p.Legend.Add("limit", limitLine)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.NominalX(names...)
	p.Y.Min = 0
	return p, nil
}

// SaveChartPNG writes the four metric plots as a 2x2 grid PNG.
func SaveChartPNG(path string, res polycount.Result) error {
	defer metrics.Timer(metrics.Export)()

	if len(res.Rows) == 0 {
		return fmt.Errorf("no measurements to chart")
	}

	const rows, cols = 2, 2
	plots := make([][]*plot.Plot, rows)
	for j := range plots {
		plots[j] = make([]*plot.Plot, cols)
		for i := range plots[j] {
			p, err := metricPlot(res, model.MetricKind(j*cols+i))
			if err != nil {
				return fmt.Errorf("plot %s: %w", model.MetricKind(j*cols+i), err)
			}
			plots[j][i] = p
		}
	}

	img := vgimg.New(14*vg.Inch, 10*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 6,
		PadY:      vg.Millimeter * 6,
		PadTop:    vg.Millimeter * 4,
		PadBottom: vg.Millimeter * 4,
		PadLeft:   vg.Millimeter * 4,
		PadRight:  vg.Millimeter * 4,
	}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return f.Close()
}
