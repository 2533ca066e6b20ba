package export

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/polycheck/pkg/layer"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"
	"github.com/vanderheijden86/polycheck/pkg/scene"
)

// cubeMesh: 8 vertices, 12 edges, 6 quad faces.
func cubeMesh(name string) *scene.Mesh {
	return &scene.Mesh{
		Name: name,
		Positions: []r3.Vector{
			{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
		},
		Faces: [][]int{
			{0, 3, 2, 1}, {4, 5, 6, 7},
			{0, 1, 5, 4}, {2, 3, 7, 6},
			{1, 2, 6, 5}, {0, 4, 7, 3},
		},
	}
}

// triMesh: 3 vertices, 3 edges, 1 face.
func triMesh(name string) *scene.Mesh {
	return &scene.Mesh{
		Name:      name,
		Positions: []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
		Faces:     [][]int{{0, 1, 2}},
	}
}

type fixture struct {
	scene      *scene.Scene
	setup      *layer.RenderSetup
	binder     *layer.Binder
	controller *polycount.Controller
}

// newFixture loads a cube and a triangle and sets the vertex limit to 6, so
// the cube is invalid and the triangle valid for vertices.
func newFixture(t *testing.T, sinks ...layer.Sink) *fixture {
	t.Helper()
	sc := scene.New()
	sc.Add(cubeMesh("cube"), triMesh("tri"))

	setup := layer.NewRenderSetup()
	binder, err := layer.NewBinder(setup, layer.WithSinks(sinks...))
	require.NoError(t, err)

	c := polycount.NewController(sc,
		polycount.WithSelectionSource(sc),
		polycount.WithBinder(binder),
	)
	_, err = c.Refresh(nil)
	require.NoError(t, err)
	require.NoError(t, c.SetLimit(model.MetricVertex, 6))
	require.NoError(t, c.SetLimit(model.MetricEdge, 100))
	require.NoError(t, c.SetLimit(model.MetricTriangle, 2))
	require.NoError(t, c.SetLimit(model.MetricQuad, 6))

	return &fixture{scene: sc, setup: setup, binder: binder, controller: c}
}
