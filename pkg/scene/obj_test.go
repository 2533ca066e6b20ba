package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectWarnings() (*[]string, ParseOptions) {
	var warnings []string
	return &warnings, ParseOptions{WarningHandler: func(msg string) {
		warnings = append(warnings, msg)
	}}
}

func TestParseOBJMultipleObjects(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
o left
f 1 2 3
o right
usemtl steel
f 2/1/1 4/2/1 3/3/1
o empty
`
	warnings, opts := collectWarnings()
	meshes, err := ParseOBJ(strings.NewReader(src), "file", opts)
	require.NoError(t, err)
	assert.Empty(t, *warnings)

	require.Len(t, meshes, 2, "objects without faces are dropped")
	assert.Equal(t, "left", meshes[0].Name)
	assert.Equal(t, "right", meshes[1].Name)
	assert.Equal(t, "steel", meshes[1].Material)
	assert.Len(t, meshes[0].Positions, 3)
	assert.Len(t, meshes[1].Positions, 3, "only referenced vertices are kept")
}

func TestParseOBJWithoutObjectUsesName(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n"
	_, opts := collectWarnings()
	meshes, err := ParseOBJ(strings.NewReader(src), "tri", opts)
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, "tri", meshes[0].Name)
	assert.Equal(t, [][]int{{0, 1, 2}}, meshes[0].Faces)
}

func TestParseOBJWarnsOnBadLines(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
v nope 0 0
f 1 2
f 1 2 9
f 1 2 3
`
	warnings, opts := collectWarnings()
	meshes, err := ParseOBJ(strings.NewReader(src), "bad", opts)
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Len(t, meshes[0].Faces, 1)
	assert.Len(t, *warnings, 3)
	assert.Contains(t, (*warnings)[0], "line 4")
}

func TestParseFace(t *testing.T) {
	tests := []struct {
		name    string
		corners []string
		want    []int
		wantErr bool
	}{
		{"plain", []string{"1", "2", "3"}, []int{0, 1, 2}, false},
		{"with texcoords", []string{"1/1", "2/2", "3/3"}, []int{0, 1, 2}, false},
		{"normals only", []string{"1//1", "2//1", "3//1"}, []int{0, 1, 2}, false},
		{"relative", []string{"-1", "-2", "-3"}, []int{3, 2, 1}, false},
		{"zero", []string{"0", "1", "2"}, nil, true},
		{"out of range", []string{"1", "2", "5"}, nil, true},
		{"too few", []string{"1", "2"}, nil, true},
		{"garbage", []string{"a", "b", "c"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFace(tt.corners, 4)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadOBJSetsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate.obj")
	require.NoError(t, os.WriteFile(path, []byte(cubeOBJ), 0o644))

	meshes, err := LoadFile(path, ParseOptions{WarningHandler: func(string) {}})
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, path, meshes[0].Source)
	assert.Equal(t, "cube", meshes[0].Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.obj"), ParseOptions{})
	assert.Error(t, err)
	_, err = LoadFile("scene.fbx", ParseOptions{})
	assert.ErrorContains(t, err, "unsupported")
}
