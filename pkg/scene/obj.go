package scene

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// DefaultMaxLineSize is the longest line the OBJ reader accepts (1MB).
const DefaultMaxLineSize = 1024 * 1024

// ParseOptions configures the mesh readers.
type ParseOptions struct {
	// WarningHandler receives recoverable problems such as malformed lines.
	// If nil, warnings go to os.Stderr unless POLYCHECK_ROBOT=1.
	WarningHandler func(string)

	// MaxLineSize bounds OBJ line length. If 0, DefaultMaxLineSize is used.
	MaxLineSize int
}

func (o ParseOptions) warnFunc() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv("POLYCHECK_ROBOT") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// objBuilder collects the faces of one object and remaps global vertex
// indices to a compact local range.
type objBuilder struct {
	mesh  *Mesh
	local map[int]int
}

func newObjBuilder(name, source string) *objBuilder {
	return &objBuilder{
		mesh:  &Mesh{Name: name, Source: source},
		local: make(map[int]int),
	}
}

func (b *objBuilder) addFace(global []r3.Vector, idx []int) {
	face := make([]int, len(idx))
	for i, g := range idx {
		l, ok := b.local[g]
		if !ok {
			l = len(b.mesh.Positions)
			b.local[g] = l
			b.mesh.Positions = append(b.mesh.Positions, global[g])
		}
		face[i] = l
	}
	b.mesh.Faces = append(b.mesh.Faces, face)
}

// ParseOBJ reads a Wavefront OBJ stream. Each "o" or "g" statement starts a
// new mesh; a file without one yields a single mesh called name. Vertex
// indices may be absolute or negative (relative). Objects without faces are
// dropped.
func ParseOBJ(r io.Reader, name string, opts ParseOptions) ([]*Mesh, error) {
	warn := opts.warnFunc()
	maxLine := opts.MaxLineSize
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var (
		positions []r3.Vector
		meshes    []*Mesh
		material  string
	)
	current := newObjBuilder(name, "")
	flush := func() {
		if len(current.mesh.Faces) > 0 {
			meshes = append(meshes, current.mesh)
		}
	}

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if lineNum == 1 {
			line = bytes.TrimPrefix(line, []byte{0xEF, 0xBB, 0xBF})
		}
		fields := strings.Fields(string(line))
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				warn(fmt.Sprintf("%s: line %d: vertex needs 3 coordinates", name, lineNum))
				positions = append(positions, r3.Vector{})
				continue
			}
			p, err := parseVector(fields[1:4])
			if err != nil {
				warn(fmt.Sprintf("%s: line %d: %v", name, lineNum, err))
			}
			positions = append(positions, p)
		case "o", "g":
			objName := strings.TrimSpace(strings.Join(fields[1:], " "))
			if objName == "" {
				continue
			}
			if fields[0] == "g" && current.mesh.Name == objName {
				continue
			}
			flush()
			current = newObjBuilder(objName, "")
			current.mesh.Material = material
		case "usemtl":
			if len(fields) > 1 {
				material = fields[1]
				current.mesh.Material = material
			}
		case "f":
			idx, err := parseFace(fields[1:], len(positions))
			if err != nil {
				warn(fmt.Sprintf("%s: line %d: %v", name, lineNum, err))
				continue
			}
			current.addFace(positions, idx)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s at line %d: %w", name, lineNum+1, err)
	}
	flush()
	return meshes, nil
}

func parseVector(fields []string) (r3.Vector, error) {
	var xyz [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vector{}, fmt.Errorf("bad coordinate %q", f)
		}
		xyz[i] = v
	}
	return r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// parseFace resolves "v", "v/vt", "v//vn" and "v/vt/vn" corners to zero-based
// indices into the n positions read so far.
func parseFace(corners []string, n int) ([]int, error) {
	if len(corners) < 3 {
		return nil, fmt.Errorf("face needs at least 3 corners, got %d", len(corners))
	}
	idx := make([]int, len(corners))
	for i, c := range corners {
		head, _, _ := strings.Cut(c, "/")
		v, err := strconv.Atoi(head)
		if err != nil {
			return nil, fmt.Errorf("bad face index %q", c)
		}
		switch {
		case v > 0:
			v--
		case v < 0:
			v += n
		default:
			return nil, fmt.Errorf("face index 0 is not allowed")
		}
		if v < 0 || v >= n {
			return nil, fmt.Errorf("face index %s out of range (%d vertices)", head, n)
		}
		idx[i] = v
	}
	return idx, nil
}

// LoadOBJ reads an OBJ file.
func LoadOBJ(path string, opts ParseOptions) ([]*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	meshes, err := ParseOBJ(f, baseName(path), opts)
	if err != nil {
		return nil, err
	}
	for _, m := range meshes {
		m.Source = path
	}
	return meshes, nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
