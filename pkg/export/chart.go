package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"
)

// Bar colours for chart exports.
const (
	chartValidColor   = "#2e7d32"
	chartInvalidColor = "#c62828"
	chartLimitColor   = "#444444"
)

// metricBar builds one bar chart: a bar per object coloured by its side of
// the limit, plus a mark line at the limit.
func metricBar(res polycount.Result, m model.MetricKind) *charts.Bar {
	names := make([]string, len(res.Rows))
	data := make([]opts.BarData, len(res.Rows))
	for i, row := range res.Rows {
		names[i] = string(row.Entity)
		fill := chartValidColor
		if invalidFor(res, m, row.Entity) {
			fill = chartInvalidColor
		}
		data[i] = opts.BarData{
			Name:      string(row.Entity),
			Value:     row.Counts.Of(m),
			ItemStyle: &opts.ItemStyle{Color: fill},
		}
	}

	limit := res.Limits[m]
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    m.Header(),
			Subtitle: fmt.Sprintf("limit=%d invalid=%d", limit, res.InvalidCount(m)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).AddSeries(m.Label(), data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "limit", YAxis: limit}),
		charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
			LineStyle: &opts.LineStyle{Color: chartLimitColor, Type: "dashed"},
		}),
	)
	return bar
}

// RenderChartHTML renders one bar chart per metric onto a single HTML page.
func RenderChartHTML(res polycount.Result, title string) ([]byte, error) {
	if title == "" {
		title = "Poly Count"
	}
	page := components.NewPage()
	page.SetPageTitle(title)
	for _, m := range model.AllMetrics() {
		page.AddCharts(metricBar(res, m))
	}
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render chart page: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveChartHTML writes the chart page to path.
func SaveChartHTML(path string, res polycount.Result, title string) error {
	defer metrics.Timer(metrics.Export)()

	if len(res.Rows) == 0 {
		return fmt.Errorf("no measurements to chart")
	}
	html, err := RenderChartHTML(res, title)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	return os.WriteFile(path, html, 0o644)
}
