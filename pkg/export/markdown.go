// Package export writes classification results and bound visualization
// layers to files: layer snapshots (SVG, PNG), override scenes (OBJ+MTL),
// Markdown reports, SQLite run history, charts and robot JSON.
package export

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"
)

// MetricSummary describes the distribution of one metric over the table.
type MetricSummary struct {
	Metric  model.MetricKind `json:"metric"`
	Limit   int              `json:"limit"`
	Invalid int              `json:"invalid"`
	Mean    float64          `json:"mean"`
	Median  float64          `json:"median"`
	StdDev  float64          `json:"stddev"`
	Max     float64          `json:"max"`
}

// Summarize computes per-metric statistics for a result. An empty table
// yields zero statistics.
func Summarize(res polycount.Result) []MetricSummary {
	out := make([]MetricSummary, 0, model.NumMetrics)
	for _, m := range model.AllMetrics() {
		s := MetricSummary{Metric: m, Limit: res.Limits[m], Invalid: res.InvalidCount(m)}
		if len(res.Rows) > 0 {
			xs := make([]float64, len(res.Rows))
			for i, row := range res.Rows {
				xs[i] = float64(row.Counts.Of(m))
			}
			slices.Sort(xs)
			s.Mean = stat.Mean(xs, nil)
			s.Median = stat.Quantile(0.5, stat.Empirical, xs, nil)
			if len(xs) > 1 {
				s.StdDev = stat.StdDev(xs, nil)
			}
			s.Max = floats.Max(xs)
		}
		out = append(out, s)
	}
	return out
}

// GenerateMarkdown creates a Markdown report of a classification result.
func GenerateMarkdown(res polycount.Result, title string) (string, error) {
	defer metrics.Timer(metrics.Export)()

	if title == "" {
		title = "Poly Count Report"
	}
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	generated := res.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", generated.Format(time.RFC1123)))

	// Limits and statistics
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("%d objects measured.\n\n", len(res.Rows)))
	sb.WriteString("| Metric | Limit | Invalid | Mean | Median | Std Dev | Max |\n")
	sb.WriteString("|--------|-------|---------|------|--------|---------|-----|\n")
	for _, s := range Summarize(res) {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.1f | %.1f | %.1f | %.0f |\n",
			s.Metric.Header(), s.Limit, s.Invalid, s.Mean, s.Median, s.StdDev, s.Max))
	}
	sb.WriteString("\n")

	// Measurements
	sb.WriteString("## Measurements\n\n")
	if len(res.Rows) == 0 {
		sb.WriteString("_No objects measured._\n\n")
	} else {
		sb.WriteString("Counts at or over their limit are marked with ⚠.\n\n")
		sb.WriteString("| Object |")
		for _, m := range model.AllMetrics() {
			sb.WriteString(fmt.Sprintf(" %s |", m.Header()))
		}
		sb.WriteString("\n|--------|")
		for range model.AllMetrics() {
			sb.WriteString("------:|")
		}
		sb.WriteString("\n")
		for _, row := range res.Rows {
			sb.WriteString(fmt.Sprintf("| %s |", escapeCell(string(row.Entity))))
			for _, m := range model.AllMetrics() {
				cell := fmt.Sprintf("%d", row.Counts.Of(m))
				if invalidFor(res, m, row.Entity) {
					cell = "⚠ **" + cell + "**"
				}
				sb.WriteString(" " + cell + " |")
			}
			sb.WriteString("\n")
		}
		t := res.Totals
		sb.WriteString(fmt.Sprintf("| **Total** | %d | %d | %d | %d |\n\n", t.Vertices, t.Edges, t.Triangles, t.Quads))
	}

	// Over-limit lists
	if bad := res.InvalidAny(); len(bad) > 0 {
		sb.WriteString("## Over Limit\n\n")
		for _, p := range res.Partitions {
			if len(p.Invalid) == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("- **%s** (limit %d): %s\n", p.Metric.Label(), p.Limit,
				strings.Join(model.EntityStrings(p.Invalid), ", ")))
		}
		sb.WriteString("\n")
	}

	// Load warnings
	if len(res.Report.Skipped) > 0 {
		sb.WriteString("## Skipped\n\n")
		for _, s := range res.Report.Skipped {
			sb.WriteString(fmt.Sprintf("- `%s`: %s\n", s.Entity, s.Reason))
		}
		sb.WriteString("\n")
	}
	if len(res.Report.Duplicates) > 0 {
		sb.WriteString("## Duplicates\n\n")
		sb.WriteString("Listed more than once in the selection; measured once.\n\n")
		for _, e := range res.Report.Duplicates {
			sb.WriteString(fmt.Sprintf("- `%s`\n", e))
		}
		sb.WriteString("\n")
	}

	if timings := metrics.AllTimingStats(); len(timings) > 0 {
		sb.WriteString("## Timings\n\n")
		sb.WriteString("| Operation | Count | Avg (ms) | Max (ms) |\n|-----------|-------|----------|----------|\n")
		for _, s := range timings {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f |\n", s.Name, s.Count, s.AvgMs, s.MaxMs))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func invalidFor(res polycount.Result, m model.MetricKind, e model.Entity) bool {
	for _, p := range res.Partitions {
		if p.Metric == m {
			return p.IsInvalid(e)
		}
	}
	return false
}

// escapeCell keeps a value from breaking a Markdown table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "|", "\\|")
}
