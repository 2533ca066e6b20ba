package scene

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/golang/geo/r3"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// welder merges triangle corners that share an exact position, so that STL
// triangle soups measure like indexed meshes.
type welder struct {
	mesh  *Mesh
	index map[r3.Vector]int
}

func newWelder(name string) *welder {
	return &welder{mesh: &Mesh{Name: name}, index: make(map[r3.Vector]int)}
}

func (w *welder) vertex(p r3.Vector) int {
	if i, ok := w.index[p]; ok {
		return i
	}
	i := len(w.mesh.Positions)
	w.index[p] = i
	w.mesh.Positions = append(w.mesh.Positions, p)
	return i
}

func (w *welder) triangle(a, b, c r3.Vector) {
	ia, ib, ic := w.vertex(a), w.vertex(b), w.vertex(c)
	if ia == ib || ib == ic || ia == ic {
		return
	}
	w.mesh.Faces = append(w.mesh.Faces, []int{ia, ib, ic})
}

// ParseSTL reads binary or ASCII STL data. Binary files yield one mesh
// called name; ASCII files yield one mesh per solid.
func ParseSTL(data []byte, name string, opts ParseOptions) ([]*Mesh, error) {
	if isBinarySTL(data) {
		m, err := parseBinarySTL(data, name)
		if err != nil {
			return nil, err
		}
		return []*Mesh{m}, nil
	}
	return parseASCIISTL(data, name, opts)
}

// isBinarySTL checks the size implied by the triangle count. ASCII detection
// by the "solid" prefix is unreliable because binary headers often start
// with it too.
func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize+4 {
		return false
	}
	n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	return uint64(len(data)) == uint64(stlHeaderSize+4)+uint64(n)*stlTriangleSize
}

func parseBinarySTL(data []byte, name string) (*Mesh, error) {
	n := int(binary.LittleEndian.Uint32(data[stlHeaderSize:]))
	w := newWelder(name)
	off := stlHeaderSize + 4
	for i := range n {
		rec := data[off : off+stlTriangleSize]
		// Skip the 12-byte normal.
		var v [3]r3.Vector
		for k := range 3 {
			base := 12 + k*12
			v[k] = r3.Vector{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[base:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[base+4:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[base+8:]))),
			}
		}
		for k := range 3 {
			if math.IsNaN(v[k].X) || math.IsNaN(v[k].Y) || math.IsNaN(v[k].Z) {
				return nil, fmt.Errorf("%s: triangle %d has a NaN coordinate", name, i)
			}
		}
		w.triangle(v[0], v[1], v[2])
		off += stlTriangleSize
	}
	return w.mesh, nil
}

func parseASCIISTL(data []byte, name string, opts ParseOptions) ([]*Mesh, error) {
	warn := opts.warnFunc()
	scanner := bufio.NewScanner(bytes.NewReader(data))

	var (
		meshes  []*Mesh
		current *welder
		corners []r3.Vector
	)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "solid":
			solid := name
			if len(fields) > 1 {
				solid = strings.Join(fields[1:], " ")
			}
			current = newWelder(solid)
		case "endsolid":
			if current != nil && len(current.mesh.Faces) > 0 {
				meshes = append(meshes, current.mesh)
			}
			current = nil
		case "outer":
			corners = corners[:0]
		case "vertex":
			if len(fields) < 4 {
				warn(fmt.Sprintf("%s: line %d: vertex needs 3 coordinates", name, lineNum))
				continue
			}
			p, err := parseVector(fields[1:4])
			if err != nil {
				warn(fmt.Sprintf("%s: line %d: %v", name, lineNum, err))
				continue
			}
			corners = append(corners, p)
		case "endloop":
			if current == nil {
				return nil, fmt.Errorf("%s: line %d: facet outside solid", name, lineNum)
			}
			if len(corners) != 3 {
				warn(fmt.Sprintf("%s: line %d: facet has %d vertices, want 3", name, lineNum, len(corners)))
				continue
			}
			current.triangle(corners[0], corners[1], corners[2])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if current != nil && len(current.mesh.Faces) > 0 {
		warn(fmt.Sprintf("%s: missing endsolid", name))
		meshes = append(meshes, current.mesh)
	}
	return meshes, nil
}

// LoadSTL reads an STL file.
func LoadSTL(path string, opts ParseOptions) ([]*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	meshes, err := ParseSTL(data, baseName(path), opts)
	if err != nil {
		return nil, err
	}
	for _, m := range meshes {
		m.Source = path
	}
	return meshes, nil
}
