// Package model defines the measurement types shared by the poly-count
// table, the threshold classifier and their collaborators.
package model

import (
	"fmt"
	"strings"
)

// MetricKind identifies one of the four topology counts measured per entity.
type MetricKind int

const (
	MetricVertex MetricKind = iota
	MetricEdge
	MetricTriangle
	MetricQuad

	metricCount
)

// NumMetrics is the number of metric kinds.
const NumMetrics = int(metricCount)

// metricDescriptor is the single place that maps a metric to its names.
type metricDescriptor struct {
	name    string   // canonical lower-case name
	header  string   // table column header
	button  string   // visualise button label
	prefKey string   // preference store key
	aliases []string // accepted spellings for ParseMetricKind
}

var metricDescriptors = [metricCount]metricDescriptor{
	MetricVertex: {
		name:    "vertex",
		header:  "Vertices",
		button:  "Vertex",
		prefKey: "polyCountChecker_Vertex_Limit",
		aliases: []string{"vertex", "vertices", "verts", "v"},
	},
	MetricEdge: {
		name:    "edge",
		header:  "Edges",
		button:  "Edge",
		prefKey: "polyCountChecker_Edge_Limit",
		aliases: []string{"edge", "edges", "e"},
	},
	MetricTriangle: {
		name:    "triangle",
		header:  "Tris",
		button:  "Triangles",
		prefKey: "polyCountChecker_Tri_Limit",
		aliases: []string{"triangle", "triangles", "tri", "tris", "t"},
	},
	MetricQuad: {
		name:    "quad",
		header:  "Quads",
		button:  "Quads",
		prefKey: "polyCountChecker_Quad_Limit",
		aliases: []string{"quad", "quads", "face", "faces", "q"},
	},
}

// AllMetrics returns every metric in column order.
func AllMetrics() []MetricKind {
	return []MetricKind{MetricVertex, MetricEdge, MetricTriangle, MetricQuad}
}

// Valid reports whether m is one of the four known metrics.
func (m MetricKind) Valid() bool {
	return m >= 0 && m < metricCount
}

// String returns the canonical name ("vertex", "edge", ...).
func (m MetricKind) String() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricDescriptors[m].name
}

// Header returns the table column header for the metric.
func (m MetricKind) Header() string {
	if !m.Valid() {
		return "?"
	}
	return metricDescriptors[m].header
}

// Label returns the visualise button label for the metric.
func (m MetricKind) Label() string {
	if !m.Valid() {
		return "?"
	}
	return metricDescriptors[m].button
}

// PrefKey returns the preference store key holding the metric's limit.
func (m MetricKind) PrefKey() string {
	if !m.Valid() {
		return ""
	}
	return metricDescriptors[m].prefKey
}

// MarshalText implements encoding.TextMarshaler.
func (m MetricKind) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MetricKind) UnmarshalText(text []byte) error {
	parsed, err := ParseMetricKind(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMetricKind resolves a metric name or alias, case-insensitively.
func ParseMetricKind(s string) (MetricKind, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for i, d := range metricDescriptors {
		for _, alias := range d.aliases {
			if alias == needle {
				return MetricKind(i), nil
			}
		}
	}
	return 0, fmt.Errorf("unknown metric %q (want vertex, edge, triangle or quad)", s)
}
