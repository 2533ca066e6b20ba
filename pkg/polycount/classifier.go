package polycount

import (
	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
)

// Classifier owns the threshold set and derives partitions from a table.
// Setting a threshold never reclassifies on its own.
type Classifier struct {
	thresholds ThresholdSet
}

// NewClassifier returns a classifier with every limit at 0.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// SetThreshold updates m's limit. A negative limit is rejected with an
// *model.InvalidThresholdError and the previous value is kept.
func (c *Classifier) SetThreshold(m model.MetricKind, limit int) error {
	next, err := c.thresholds.With(m, limit)
	if err != nil {
		return err
	}
	c.thresholds = next
	return nil
}

// SetThresholdString parses input and updates m's limit.
func (c *Classifier) SetThresholdString(m model.MetricKind, input string) error {
	v, err := ParseLimit(m, input)
	if err != nil {
		return err
	}
	return c.SetThreshold(m, v)
}

// Threshold returns m's limit.
func (c *Classifier) Threshold(m model.MetricKind) int {
	return c.thresholds.Get(m)
}

// Thresholds returns a copy of all limits.
func (c *Classifier) Thresholds() ThresholdSet {
	return c.thresholds
}

// Classify splits the table's rows for metric m: a count strictly below the
// limit is valid, anything else (the limit itself included) is invalid.
func (c *Classifier) Classify(m model.MetricKind, table *Table) model.Partition {
	defer metrics.Timer(metrics.Classify)()
	return classify(m, c.thresholds.Get(m), table)
}

func classify(m model.MetricKind, limit int, table *Table) model.Partition {
	p := model.Partition{
		Metric:     m,
		Limit:      limit,
		Generation: table.Generation(),
		Valid:      []model.Entity{},
		Invalid:    []model.Entity{},
	}
	for row := range table.Rows() {
		if row.Counts.Of(m) < limit {
			p.Valid = append(p.Valid, row.Entity)
		} else {
			p.Invalid = append(p.Invalid, row.Entity)
		}
	}
	return p
}
