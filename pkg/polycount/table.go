package polycount

import (
	"errors"
	"iter"

	"github.com/vanderheijden86/polycheck/pkg/debug"
	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
)

// SkippedEntity is an entity that could not be measured during a load.
type SkippedEntity struct {
	Entity   model.Entity `json:"entity"`
	Reason   string       `json:"reason"`
	NotFound bool         `json:"not_found"`
}

// LoadReport lists what a load left out. A load never fails as a whole.
type LoadReport struct {
	Requested  int             `json:"requested"`
	Loaded     int             `json:"loaded"`
	Skipped    []SkippedEntity `json:"skipped,omitempty"`
	Duplicates []model.Entity  `json:"duplicates,omitempty"`
}

// HasWarnings reports whether anything was skipped or collapsed.
func (r LoadReport) HasWarnings() bool {
	return len(r.Skipped) > 0 || len(r.Duplicates) > 0
}

// SkippedEntities returns the identifiers of the skipped entities.
func (r LoadReport) SkippedEntities() []model.Entity {
	out := make([]model.Entity, len(r.Skipped))
	for i, s := range r.Skipped {
		out[i] = s.Entity
	}
	return out
}

// Table holds the measurements of the current load in insertion order.
// Every Load and Clear bumps the generation, so partitions computed from an
// older generation can be recognised as stale.
type Table struct {
	rows       []model.Measurement
	index      map[model.Entity]int
	generation uint64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[model.Entity]int)}
}

// Load replaces the table with fresh measurements of entities, queried from
// provider in order. An entity whose query fails is skipped and reported; a
// repeated entity keeps its first measurement and is reported as a duplicate.
func (t *Table) Load(provider MetricsProvider, entities []model.Entity) LoadReport {
	defer metrics.Timer(metrics.TableLoad)()

	t.reset()
	report := LoadReport{Requested: len(entities)}

	for _, e := range entities {
		if _, seen := t.index[e]; seen {
			report.Duplicates = append(report.Duplicates, e)
			continue
		}
		counts, err := provider.Counts(e)
		if err != nil {
			debug.Log("table: skipping %s: %v", e, err)
			report.Skipped = append(report.Skipped, SkippedEntity{
				Entity:   e,
				Reason:   err.Error(),
				NotFound: errors.Is(err, model.ErrEntityNotFound),
			})
			continue
		}
		t.index[e] = len(t.rows)
		t.rows = append(t.rows, model.Measurement{Entity: e, Counts: counts})
	}

	report.Loaded = len(t.rows)
	return report
}

// Clear empties the table.
func (t *Table) Clear() {
	t.reset()
}

func (t *Table) reset() {
	t.rows = nil
	clear(t.index)
	t.generation++
}

// Rows yields the measurements in load order. The sequence can be ranged
// over any number of times.
func (t *Table) Rows() iter.Seq[model.Measurement] {
	return func(yield func(model.Measurement) bool) {
		for _, m := range t.rows {
			if !yield(m) {
				return
			}
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Measurement returns the row for e.
func (t *Table) Measurement(e model.Entity) (model.Measurement, bool) {
	i, ok := t.index[e]
	if !ok {
		return model.Measurement{}, false
	}
	return t.rows[i], true
}

// Entities returns the entities in load order.
func (t *Table) Entities() []model.Entity {
	out := make([]model.Entity, len(t.rows))
	for i, m := range t.rows {
		out[i] = m.Entity
	}
	return out
}

// Totals returns the sum of all rows.
func (t *Table) Totals() model.Counts {
	var sum model.Counts
	for _, m := range t.rows {
		sum = sum.Add(m.Counts)
	}
	return sum
}

// Generation identifies the current contents. It changes on every Load and
// Clear.
func (t *Table) Generation() uint64 {
	return t.generation
}
