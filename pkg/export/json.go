package export

import (
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"
)

// RobotPartition is a partition keyed by metric name for robot output.
type RobotPartition struct {
	Metric  string   `json:"metric"`
	Limit   int      `json:"limit"`
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// RobotSkipped is an entity the load could not measure.
type RobotSkipped struct {
	Entity string `json:"entity"`
	Reason string `json:"reason"`
}

// RobotOutput is the --robot-json document.
type RobotOutput struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Version     string              `json:"version,omitempty"`
	Scene       string              `json:"scene,omitempty"`
	Generation  uint64              `json:"generation"`
	Limits      map[string]int      `json:"limits"`
	Rows        []model.Measurement `json:"rows"`
	Totals      model.Counts        `json:"totals"`
	Partitions  []RobotPartition    `json:"partitions"`
	Summary     []MetricSummary     `json:"summary"`
	Skipped     []RobotSkipped      `json:"skipped"`
	Duplicates  []string            `json:"duplicates"`
	Warnings    []string            `json:"warnings,omitempty"`
	InvalidAny  []string            `json:"invalid_any"`
	Visualized  string              `json:"visualized,omitempty"`
}

// NewRobotOutput converts a result to its robot document. Slices are never
// nil so consumers always see arrays.
func NewRobotOutput(res polycount.Result) RobotOutput {
	out := RobotOutput{
		GeneratedAt: res.GeneratedAt,
		Generation:  res.Generation,
		Limits:      make(map[string]int, len(res.Limits)),
		Rows:        res.Rows,
		Totals:      res.Totals,
		Summary:     Summarize(res),
		Skipped:     make([]RobotSkipped, 0, len(res.Report.Skipped)),
		Duplicates:  model.EntityStrings(res.Report.Duplicates),
		InvalidAny:  model.EntityStrings(res.InvalidAny()),
	}
	if out.Rows == nil {
		out.Rows = []model.Measurement{}
	}
	for m, v := range res.Limits {
		out.Limits[m.String()] = v
	}
	for _, p := range res.Partitions {
		out.Partitions = append(out.Partitions, RobotPartition{
			Metric:  p.Metric.String(),
			Limit:   p.Limit,
			Valid:   model.EntityStrings(p.Valid),
			Invalid: model.EntityStrings(p.Invalid),
		})
	}
	for _, s := range res.Report.Skipped {
		out.Skipped = append(out.Skipped, RobotSkipped{Entity: string(s.Entity), Reason: s.Reason})
	}
	return out
}

// WriteRobotJSON writes v as indented JSON.
func WriteRobotJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
