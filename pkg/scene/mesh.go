// Package scene is polycheck's stand-in for a DCC scene graph: it holds the
// polygon meshes loaded from OBJ and STL files, measures their topology and
// keeps the user's selection.
package scene

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

// Mesh is one polygonal object. Faces index into Positions and may have any
// number of corners from three up.
type Mesh struct {
	Name      string
	Source    string // file the mesh was read from
	Material  string // last usemtl seen, if any
	Positions []r3.Vector
	Faces     [][]int
}

// Counts measures the mesh topology. Vertices counts every position, edges
// counts unique undirected edges, triangles counts the triangles a fan
// triangulation yields and quads counts polygon faces.
func (m *Mesh) Counts() model.Counts {
	type edge struct{ a, b int }
	edges := make(map[edge]struct{}, len(m.Faces)*2)
	tris := 0
	for _, f := range m.Faces {
		n := len(f)
		if n < 3 {
			continue
		}
		tris += n - 2
		for i := range n {
			a, b := f[i], f[(i+1)%n]
			if a > b {
				a, b = b, a
			}
			edges[edge{a, b}] = struct{}{}
		}
	}
	return model.Counts{
		Vertices:  len(m.Positions),
		Edges:     len(edges),
		Triangles: tris,
		Quads:     m.faceCount(),
	}
}

func (m *Mesh) faceCount() int {
	n := 0
	for _, f := range m.Faces {
		if len(f) >= 3 {
			n++
		}
	}
	return n
}

// Bounds returns the axis-aligned bounding box. An empty mesh returns two
// zero vectors.
func (m *Mesh) Bounds() (lo, hi r3.Vector) {
	if len(m.Positions) == 0 {
		return r3.Vector{}, r3.Vector{}
	}
	lo = r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi = r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range m.Positions {
		lo = r3.Vector{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vector{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}

// Centroid returns the mean vertex position.
func (m *Mesh) Centroid() r3.Vector {
	if len(m.Positions) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range m.Positions {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(m.Positions)))
}

// SurfaceArea sums the area of every face, triangulated as a fan.
func (m *Mesh) SurfaceArea() float64 {
	area := 0.0
	for _, f := range m.Faces {
		if len(f) < 3 {
			continue
		}
		p0 := m.Positions[f[0]]
		for i := 1; i+1 < len(f); i++ {
			a := m.Positions[f[i]].Sub(p0)
			b := m.Positions[f[i+1]].Sub(p0)
			area += a.Cross(b).Norm() / 2
		}
	}
	return area
}
