package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/polycheck/pkg/layer"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/scene"
)

func TestWriteOverrideOBJ(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Visualize(model.MetricVertex))
	l, _ := f.binder.Layer()

	out := filepath.Join(t.TempDir(), "override.obj")
	err := WriteOverrideOBJ(OverrideOptions{
		Path:     out,
		Meshes:   f.scene,
		Entities: f.scene.Entities(),
		Layer:    l,
	})
	require.NoError(t, err)

	obj, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(obj)
	assert.Contains(t, text, "mtllib override.mtl")
	assert.Contains(t, text, "o cube\n")
	assert.Contains(t, text, "usemtl "+layer.InvalidShaderName)
	assert.Contains(t, text, "o tri\n")
	assert.Contains(t, text, "usemtl "+layer.ValidShaderName)
	// The triangle follows the cube's 8 vertices.
	assert.Contains(t, text, "f 9 10 11\n")

	mtl, err := os.ReadFile(filepath.Join(filepath.Dir(out), "override.mtl"))
	require.NoError(t, err)
	assert.Contains(t, string(mtl), "newmtl "+layer.ValidShaderName+"\nKa 0 0 0\nKd 0 1 0")
	assert.Contains(t, string(mtl), "newmtl "+layer.InvalidShaderName+"\nKa 0 0 0\nKd 1 0 0")
}

func TestWriteOverrideOBJ_RoundTripsThroughParser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Visualize(model.MetricTriangle))
	l, _ := f.binder.Layer()

	out := filepath.Join(t.TempDir(), "scene.obj")
	require.NoError(t, WriteOverrideOBJ(OverrideOptions{
		Path: out, Meshes: f.scene, Entities: f.scene.Entities(), Layer: l,
	}))

	meshes, err := scene.LoadOBJ(out, scene.ParseOptions{WarningHandler: func(string) {}})
	require.NoError(t, err)
	require.Len(t, meshes, 2)
	for _, m := range meshes {
		orig, ok := f.scene.Mesh(model.Entity(m.Name))
		require.True(t, ok, "mesh %s", m.Name)
		assert.Equal(t, orig.Counts(), m.Counts())
	}
	assert.Equal(t, layer.InvalidShaderName, meshes[0].Material)
	assert.Equal(t, layer.ValidShaderName, meshes[1].Material)
}

func TestWriteOverrideOBJ_UntaggedUsesDefault(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "plain.obj")

	require.NoError(t, WriteOverrideOBJ(OverrideOptions{Path: out, Meshes: f.scene, Entities: []model.Entity{"tri", "ghost"}}))

	obj, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(obj), "usemtl "+DefaultMaterialName))
	assert.NotContains(t, string(obj), "ghost")
}

func TestOverrideSink_WritesWholeScene(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sink.obj")
	f := newFixture(t)
	f.binder.AddSink(OverrideSink(out, f.scene))

	require.NoError(t, f.controller.Visualize(model.MetricEdge))

	obj, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(obj), "usemtl "+layer.ValidShaderName))
}
