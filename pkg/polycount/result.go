package polycount

import (
	"time"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

// Result is a point-in-time copy of the controller state, used by the
// exporters and the robot output.
type Result struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Generation  uint64                   `json:"generation"`
	Rows        []model.Measurement      `json:"rows"`
	Limits      map[model.MetricKind]int `json:"limits"`
	Partitions  []model.Partition        `json:"partitions"`
	Report      LoadReport               `json:"report"`
	Totals      model.Counts             `json:"totals"`
}

// Result snapshots the controller.
func (c *Controller) Result() Result {
	rows := make([]model.Measurement, 0, c.table.Len())
	for m := range c.table.Rows() {
		rows = append(rows, m)
	}
	return Result{
		GeneratedAt: time.Now().UTC(),
		Generation:  c.table.Generation(),
		Rows:        rows,
		Limits:      c.classifier.Thresholds().Map(),
		Partitions:  c.Partitions(),
		Report:      c.report,
		Totals:      c.table.Totals(),
	}
}

// InvalidCount returns how many rows are invalid for m.
func (r Result) InvalidCount(m model.MetricKind) int {
	for _, p := range r.Partitions {
		if p.Metric == m {
			return len(p.Invalid)
		}
	}
	return 0
}

// InvalidAny returns the entities invalid for at least one metric, in row
// order.
func (r Result) InvalidAny() []model.Entity {
	var out []model.Entity
	for _, row := range r.Rows {
		for _, p := range r.Partitions {
			if p.IsInvalid(row.Entity) {
				out = append(out, row.Entity)
				break
			}
		}
	}
	return out
}
