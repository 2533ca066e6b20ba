// Package testutil provides mesh fixture generators and assertions for
// polycheck tests. All generators produce deterministic output for
// reproducible tests.
package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/scene"
)

// GeneratorConfig controls random scene generation.
type GeneratorConfig struct {
	Seed     int64  // Random seed for determinism (0 = use 42)
	Prefix   string // Mesh name prefix (default: "mesh")
	MaxGrid  int    // Largest grid side of a random mesh (default: 8)
	FanRatio int    // One mesh in FanRatio is an n-gon fan instead of a grid (0 = never)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:     42,
		Prefix:   "mesh",
		MaxGrid:  8,
		FanRatio: 4,
	}
}

// Generator creates random but reproducible scenes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "mesh"
	}
	if cfg.MaxGrid <= 0 {
		cfg.MaxGrid = 8
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Meshes returns n meshes named <prefix>_0 .. <prefix>_<n-1>.
func (g *Generator) Meshes(n int) []*scene.Mesh {
	out := make([]*scene.Mesh, n)
	for i := range out {
		name := fmt.Sprintf("%s_%d", g.cfg.Prefix, i)
		if g.cfg.FanRatio > 0 && g.rng.Intn(g.cfg.FanRatio) == 0 {
			out[i] = Fan(name, 3+g.rng.Intn(6))
			continue
		}
		out[i] = Grid(name, 1+g.rng.Intn(g.cfg.MaxGrid), 1+g.rng.Intn(g.cfg.MaxGrid))
	}
	return out
}

// Scene returns a scene holding n generated meshes.
func (g *Generator) Scene(n int) *scene.Scene {
	sc := scene.New()
	sc.Add(g.Meshes(n)...)
	return sc
}

// Triangle returns a single triangle: 3 vertices, 3 edges, 1 triangle, 1 face.
func Triangle(name string) *scene.Mesh {
	return Fan(name, 3)
}

// Fan returns one convex n-gon face: n vertices, n edges, n-2 triangles,
// 1 face. n below 3 is raised to 3.
func Fan(name string, n int) *scene.Mesh {
	n = max(n, 3)
	m := &scene.Mesh{Name: name, Faces: [][]int{make([]int, n)}}
	for i := range n {
		a := float64(i) / float64(n) * 2 * math.Pi
		m.Positions = append(m.Positions, r3.Vector{X: math.Cos(a), Y: math.Sin(a)})
		m.Faces[0][i] = i
	}
	return m
}

// Cube returns a unit cube of six quads: 8 vertices, 12 edges, 12
// triangles, 6 faces.
func Cube(name string) *scene.Mesh {
	m := &scene.Mesh{Name: name}
	for i := range 8 {
		m.Positions = append(m.Positions, r3.Vector{
			X: float64(i & 1),
			Y: float64(i >> 1 & 1),
			Z: float64(i >> 2 & 1),
		})
	}
	m.Faces = [][]int{
		{0, 2, 3, 1}, {4, 5, 7, 6}, // -Z, +Z
		{0, 1, 5, 4}, {2, 6, 7, 3}, // -Y, +Y
		{0, 4, 6, 2}, {1, 3, 7, 5}, // -X, +X
	}
	return m
}

// Grid returns a flat w by h grid of quads.
func Grid(name string, w, h int) *scene.Mesh {
	w, h = max(w, 1), max(h, 1)
	m := &scene.Mesh{Name: name}
	for y := 0; y <= h; y++ {
		for x := 0; x <= w; x++ {
			m.Positions = append(m.Positions, r3.Vector{X: float64(x), Y: float64(y)})
		}
	}
	idx := func(x, y int) int { return y*(w+1) + x }
	for y := range h {
		for x := range w {
			m.Faces = append(m.Faces, []int{idx(x, y), idx(x+1, y), idx(x+1, y+1), idx(x, y+1)})
		}
	}
	return m
}

// GridCounts returns the counts Grid(w, h) measures to.
func GridCounts(w, h int) model.Counts {
	w, h = max(w, 1), max(h, 1)
	return model.Counts{
		Vertices:  (w + 1) * (h + 1),
		Edges:     w*(h+1) + h*(w+1),
		Triangles: 2 * w * h,
		Quads:     w * h,
	}
}

// Material sets m's material and returns m.
func Material(m *scene.Mesh, name string) *scene.Mesh {
	m.Material = name
	return m
}

// ToOBJ writes meshes as one Wavefront OBJ document with an o line per
// mesh and 1-based face indices.
func ToOBJ(meshes ...*scene.Mesh) string {
	var b strings.Builder
	base := 1
	for _, m := range meshes {
		fmt.Fprintf(&b, "o %s\n", m.Name)
		if m.Material != "" {
			fmt.Fprintf(&b, "usemtl %s\n", m.Material)
		}
		for _, p := range m.Positions {
			fmt.Fprintf(&b, "v %g %g %g\n", p.X, p.Y, p.Z)
		}
		for _, f := range m.Faces {
			b.WriteString("f")
			for _, i := range f {
				fmt.Fprintf(&b, " %d", base+i)
			}
			b.WriteByte('\n')
		}
		base += len(m.Positions)
	}
	return b.String()
}
