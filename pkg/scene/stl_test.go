package scene

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

func binarySTL(t *testing.T, header string, tris [][3][3]float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	h := make([]byte, stlHeaderSize)
	copy(h, header)
	buf.Write(h)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(tris))))
	for _, tri := range tris {
		rec := make([]byte, stlTriangleSize)
		for k, v := range tri {
			for j, c := range v {
				binary.LittleEndian.PutUint32(rec[12+k*12+j*4:], math.Float32bits(c))
			}
		}
		buf.Write(rec)
	}
	return buf.Bytes()
}

var tetrahedron = [][3][3]float32{
	{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, 0}, {0, 0, 1}, {1, 0, 0}},
	{{0, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	{{1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
}

func TestParseBinarySTLWeldsVertices(t *testing.T) {
	// A header starting with "solid" must still be read as binary.
	data := binarySTL(t, "solid exported by a binary writer", tetrahedron)

	meshes, err := ParseSTL(data, "tetra", ParseOptions{})
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, "tetra", meshes[0].Name)
	assert.Equal(t, model.Counts{Vertices: 4, Edges: 6, Triangles: 4, Quads: 4}, meshes[0].Counts())
}

func TestParseBinarySTLDropsDegenerateTriangles(t *testing.T) {
	tris := append([][3][3]float32{{{0, 0, 0}, {0, 0, 0}, {1, 1, 1}}}, tetrahedron...)
	meshes, err := ParseSTL(binarySTL(t, "", tris), "tetra", ParseOptions{})
	require.NoError(t, err)
	assert.Len(t, meshes[0].Faces, 4)
}

const squareSTL = `solid square
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 1 1 0
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 1 0
      vertex 0 1 0
    endloop
  endfacet
endsolid square
solid empty
endsolid empty
`

func TestParseASCIISTL(t *testing.T) {
	warnings, opts := collectWarnings()
	meshes, err := ParseSTL([]byte(squareSTL), "file", opts)
	require.NoError(t, err)
	assert.Empty(t, *warnings)
	require.Len(t, meshes, 1)
	assert.Equal(t, "square", meshes[0].Name)
	assert.Equal(t, model.Counts{Vertices: 4, Edges: 5, Triangles: 2, Quads: 2}, meshes[0].Counts())
}

func TestParseASCIISTLMissingEndsolid(t *testing.T) {
	src := "solid\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex 1 0 0\nvertex 0 1 0\nendloop\nendfacet\n"
	warnings, opts := collectWarnings()
	meshes, err := ParseSTL([]byte(src), "part", opts)
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, "part", meshes[0].Name)
	assert.Len(t, *warnings, 1)
}

func TestLoadSTLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bracket.stl")
	require.NoError(t, os.WriteFile(path, binarySTL(t, "", tetrahedron), 0o644))

	meshes, err := LoadFile(path, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, "bracket", meshes[0].Name)
	assert.Equal(t, path, meshes[0].Source)
	assert.True(t, Supported(path))
	assert.True(t, Supported("PART.STL"))
	assert.False(t, Supported("part.fbx"))
}
