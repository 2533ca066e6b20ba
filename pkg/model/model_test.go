package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseMetricKind(t *testing.T) {
	tests := []struct {
		in   string
		want MetricKind
	}{
		{"vertex", MetricVertex},
		{"Vertices", MetricVertex},
		{" v ", MetricVertex},
		{"edges", MetricEdge},
		{"tris", MetricTriangle},
		{"Triangles", MetricTriangle},
		{"quads", MetricQuad},
		{"faces", MetricQuad},
	}
	for _, tt := range tests {
		got, err := ParseMetricKind(tt.in)
		if err != nil {
			t.Errorf("ParseMetricKind(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMetricKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseMetricKind("normals"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestMetricDescriptors(t *testing.T) {
	wantKeys := map[MetricKind]string{
		MetricVertex:   "polyCountChecker_Vertex_Limit",
		MetricEdge:     "polyCountChecker_Edge_Limit",
		MetricTriangle: "polyCountChecker_Tri_Limit",
		MetricQuad:     "polyCountChecker_Quad_Limit",
	}
	for _, m := range AllMetrics() {
		if m.PrefKey() != wantKeys[m] {
			t.Errorf("%v: expected pref key %q, got %q", m, wantKeys[m], m.PrefKey())
		}
		if m.Header() == "?" || m.Label() == "?" {
			t.Errorf("%v: missing header or label", m)
		}
	}

	bad := MetricKind(9)
	if bad.Valid() {
		t.Error("metric 9 should be invalid")
	}
	if bad.PrefKey() != "" {
		t.Errorf("expected empty pref key for invalid metric, got %q", bad.PrefKey())
	}
}

func TestMetricKindText(t *testing.T) {
	b, err := MetricTriangle.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var m MetricKind
	if err := m.UnmarshalText(b); err != nil {
		t.Fatal(err)
	}
	if m != MetricTriangle {
		t.Errorf("expected triangle, got %v", m)
	}
}

func TestCountsOf(t *testing.T) {
	c := Counts{Vertices: 8, Edges: 12, Triangles: 12, Quads: 6}
	if c.Of(MetricVertex) != 8 || c.Of(MetricEdge) != 12 || c.Of(MetricTriangle) != 12 || c.Of(MetricQuad) != 6 {
		t.Errorf("unexpected counts lookup: %+v", c)
	}
	sum := c.Add(c)
	if sum.Quads != 12 {
		t.Errorf("expected 12 quads after Add, got %d", sum.Quads)
	}
}

func TestPartitionMembership(t *testing.T) {
	p := Partition{Metric: MetricVertex, Limit: 20, Valid: []Entity{"A"}, Invalid: []Entity{"B", "C"}}
	if !p.IsValid("A") || p.IsInvalid("A") {
		t.Error("A should be valid only")
	}
	if !p.IsInvalid("C") {
		t.Error("C should be invalid")
	}
	if p.Contains("D") {
		t.Error("D was never classified")
	}
	if p.Len() != 3 {
		t.Errorf("expected 3 entities, got %d", p.Len())
	}

	q := p
	q.Invalid = []Entity{"C", "B"}
	if p.Equal(q) {
		t.Error("partitions with different side order should not be equal")
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("load: %w", &EntityNotFoundError{Entity: "pCube1"})
	if !errors.Is(err, ErrEntityNotFound) {
		t.Error("expected EntityNotFoundError to match ErrEntityNotFound")
	}
	var nf *EntityNotFoundError
	if !errors.As(err, &nf) || nf.Entity != "pCube1" {
		t.Errorf("expected errors.As to recover entity, got %v", nf)
	}

	terr := &InvalidThresholdError{Metric: MetricEdge, Input: "-5", Reason: "must not be negative"}
	if !errors.Is(terr, ErrInvalidThreshold) {
		t.Error("expected InvalidThresholdError to match ErrInvalidThreshold")
	}
	if terr.Error() != `invalid edge limit "-5": must not be negative` {
		t.Errorf("unexpected message: %s", terr.Error())
	}
}
