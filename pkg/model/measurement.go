package model

// Entity is an opaque identifier for a measurable geometric object.
type Entity string

// Counts holds the four topology counts of one entity.
type Counts struct {
	Vertices  int `json:"vertices" yaml:"vertices"`
	Edges     int `json:"edges" yaml:"edges"`
	Triangles int `json:"triangles" yaml:"triangles"`
	Quads     int `json:"quads" yaml:"quads"`
}

// Of returns the count for metric m, or 0 for an unknown metric.
func (c Counts) Of(m MetricKind) int {
	switch m {
	case MetricVertex:
		return c.Vertices
	case MetricEdge:
		return c.Edges
	case MetricTriangle:
		return c.Triangles
	case MetricQuad:
		return c.Quads
	default:
		return 0
	}
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Vertices:  c.Vertices + o.Vertices,
		Edges:     c.Edges + o.Edges,
		Triangles: c.Triangles + o.Triangles,
		Quads:     c.Quads + o.Quads,
	}
}

// Measurement is one table row: an entity and its counts at load time.
type Measurement struct {
	Entity Entity `json:"entity"`
	Counts Counts `json:"counts"`
}

// Partition splits the entities of one table generation into the ones under
// the metric's limit (Valid) and the ones at or over it (Invalid). Both sides
// keep table order.
type Partition struct {
	Metric     MetricKind `json:"metric"`
	Limit      int        `json:"limit"`
	Generation uint64     `json:"generation"`
	Valid      []Entity   `json:"valid"`
	Invalid    []Entity   `json:"invalid"`
}

// Len returns the number of classified entities.
func (p Partition) Len() int {
	return len(p.Valid) + len(p.Invalid)
}

// IsValid reports whether e is on the valid side.
func (p Partition) IsValid(e Entity) bool {
	for _, v := range p.Valid {
		if v == e {
			return true
		}
	}
	return false
}

// IsInvalid reports whether e is on the invalid side.
func (p Partition) IsInvalid(e Entity) bool {
	for _, v := range p.Invalid {
		if v == e {
			return true
		}
	}
	return false
}

// Contains reports whether e was classified at all.
func (p Partition) Contains(e Entity) bool {
	return p.IsValid(e) || p.IsInvalid(e)
}

// Equal reports value equality, including side order.
func (p Partition) Equal(o Partition) bool {
	if p.Metric != o.Metric || p.Limit != o.Limit || p.Generation != o.Generation {
		return false
	}
	return entitiesEqual(p.Valid, o.Valid) && entitiesEqual(p.Invalid, o.Invalid)
}

func entitiesEqual(a, b []Entity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EntityStrings converts entities to plain strings.
func EntityStrings(es []Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = string(e)
	}
	return out
}
