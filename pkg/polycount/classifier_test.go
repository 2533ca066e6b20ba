package polycount

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

func loadedTable(t *testing.T, vertices map[model.Entity]int, order ...string) *Table {
	t.Helper()
	table := NewTable()
	report := table.Load(vertexProvider(vertices), entities(order...))
	require.False(t, report.HasWarnings())
	return table
}

func TestClassifyLimitBetweenCounts(t *testing.T) {
	table := loadedTable(t, map[model.Entity]int{"A": 10, "B": 20, "C": 30}, "A", "B", "C")
	c := NewClassifier()
	require.NoError(t, c.SetThreshold(model.MetricVertex, 20))

	p := c.Classify(model.MetricVertex, table)

	assert.Equal(t, entities("A"), p.Valid)
	assert.Equal(t, entities("B", "C"), p.Invalid)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, table.Generation(), p.Generation)
}

func TestClassifyZeroLimitMarksAllInvalid(t *testing.T) {
	table := loadedTable(t, map[model.Entity]int{"A": 10, "B": 20, "C": 30}, "A", "B", "C")
	c := NewClassifier()

	p := c.Classify(model.MetricVertex, table)

	assert.Empty(t, p.Valid)
	assert.Equal(t, entities("A", "B", "C"), p.Invalid)
}

func TestClassifyBoundaryIsInvalid(t *testing.T) {
	table := loadedTable(t, map[model.Entity]int{"A": 19, "B": 20, "C": 21}, "A", "B", "C")
	c := NewClassifier()
	require.NoError(t, c.SetThreshold(model.MetricVertex, 20))

	p := c.Classify(model.MetricVertex, table)

	assert.True(t, p.IsValid("A"))
	assert.True(t, p.IsInvalid("B"), "count equal to the limit is invalid")
	assert.True(t, p.IsInvalid("C"))
}

func TestSetThresholdRejectsNegative(t *testing.T) {
	table := loadedTable(t, map[model.Entity]int{"A": 10, "B": 20, "C": 30}, "A", "B", "C")
	c := NewClassifier()
	require.NoError(t, c.SetThreshold(model.MetricVertex, 25))

	err := c.SetThreshold(model.MetricVertex, -5)

	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidThreshold))
	var te *model.InvalidThresholdError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "-5", te.Input)
	assert.Equal(t, 25, c.Threshold(model.MetricVertex))

	p := c.Classify(model.MetricVertex, table)
	assert.Equal(t, entities("A", "B"), p.Valid)
	assert.Equal(t, entities("C"), p.Invalid)
}

func TestSetThresholdString(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"100", 100, false},
		{"  42 ", 42, false},
		{"abc", 42, true},
		{"", 42, true},
		{"-1", 42, true},
		{"12.5", 42, true},
		{fmt.Sprint(MaxLimit + 1), 42, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := c.SetThresholdString(model.MetricEdge, tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidThreshold)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, c.Threshold(model.MetricEdge))
		})
	}
}

func TestSetThresholdUnknownMetric(t *testing.T) {
	c := NewClassifier()
	err := c.SetThreshold(model.MetricKind(7), 10)
	assert.ErrorIs(t, err, model.ErrInvalidThreshold)
}

func TestClassifyMetricsAreIndependent(t *testing.T) {
	table := NewTable()
	table.Load(newFakeProvider(map[model.Entity]model.Counts{
		"cube": {Vertices: 8, Edges: 12, Triangles: 12, Quads: 6},
	}), entities("cube"))
	c := NewClassifier()
	require.NoError(t, c.SetThreshold(model.MetricVertex, 100))
	require.NoError(t, c.SetThreshold(model.MetricQuad, 6))

	assert.True(t, c.Classify(model.MetricVertex, table).IsValid("cube"))
	assert.True(t, c.Classify(model.MetricQuad, table).IsInvalid("cube"))
	assert.True(t, c.Classify(model.MetricEdge, table).IsInvalid("cube"))
}

func TestClassifyEmptyTable(t *testing.T) {
	p := NewClassifier().Classify(model.MetricTriangle, NewTable())
	assert.Equal(t, 0, p.Len())
	assert.NotNil(t, p.Valid)
	assert.NotNil(t, p.Invalid)
}

// genScene draws distinct entities with random counts.
func genScene(t *rapid.T) (map[model.Entity]model.Counts, []model.Entity) {
	names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 0, 20, func(s string) string { return s }).Draw(t, "names")
	counts := make(map[model.Entity]model.Counts, len(names))
	order := make([]model.Entity, len(names))
	for i, n := range names {
		e := model.Entity(n)
		order[i] = e
		counts[e] = model.Counts{
			Vertices:  rapid.IntRange(0, 500).Draw(t, "v"),
			Edges:     rapid.IntRange(0, 500).Draw(t, "e"),
			Triangles: rapid.IntRange(0, 500).Draw(t, "t"),
			Quads:     rapid.IntRange(0, 500).Draw(t, "q"),
		}
	}
	return counts, order
}

func TestClassifyPartitionProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		counts, order := genScene(t)
		table := NewTable()
		table.Load(newFakeProvider(counts), order)

		c := NewClassifier()
		for _, m := range model.AllMetrics() {
			if err := c.SetThreshold(m, rapid.IntRange(0, 600).Draw(t, "limit")); err != nil {
				t.Fatalf("SetThreshold: %v", err)
			}
		}

		for _, m := range model.AllMetrics() {
			p := c.Classify(m, table)
			limit := c.Threshold(m)

			if p.Len() != len(order) {
				t.Fatalf("%v: partition covers %d entities, table has %d", m, p.Len(), len(order))
			}
			for _, e := range order {
				if p.IsValid(e) == p.IsInvalid(e) {
					t.Fatalf("%v: %s must be on exactly one side", m, e)
				}
				want := counts[e].Of(m) < limit
				if p.IsValid(e) != want {
					t.Fatalf("%v: %s count %d limit %d valid=%v", m, e, counts[e].Of(m), limit, p.IsValid(e))
				}
			}

			again := c.Classify(m, table)
			if diff := cmp.Diff(p, again); diff != "" {
				t.Fatalf("%v: classify is not idempotent:\n%s", m, diff)
			}
		}
	})
}

func TestClassifyPreservesTableOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		counts, order := genScene(t)
		table := NewTable()
		table.Load(newFakeProvider(counts), order)
		c := NewClassifier()
		_ = c.SetThreshold(model.MetricEdge, rapid.IntRange(0, 600).Draw(t, "limit"))

		p := c.Classify(model.MetricEdge, table)
		pos := make(map[model.Entity]int, len(order))
		for i, e := range order {
			pos[e] = i
		}
		for _, side := range [][]model.Entity{p.Valid, p.Invalid} {
			for i := 1; i < len(side); i++ {
				if pos[side[i-1]] > pos[side[i]] {
					t.Fatalf("side out of table order: %v", side)
				}
			}
		}
	})
}
