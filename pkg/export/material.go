package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vanderheijden86/polycheck/pkg/layer"
	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
)

// DefaultMaterialName is assigned to meshes no collection overrides.
const DefaultMaterialName = "default_mat"

// OverrideOptions controls the override scene export.
type OverrideOptions struct {
	Path     string         // .obj output; the .mtl library is written next to it
	Meshes   MeshLookup     // Geometry source
	Entities []model.Entity // Objects to write, in order
	Layer    *layer.Layer   // Layer whose material overrides are applied
}

// WriteOverrideOBJ writes the entities as one OBJ file whose objects use the
// material their collection override assigns, plus the matching MTL library.
// Entities missing from the lookup are skipped.
func WriteOverrideOBJ(opts OverrideOptions) error {
	defer metrics.Timer(metrics.Export)()

	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.Meshes == nil {
		return fmt.Errorf("mesh lookup is required for override export")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	mtlPath := strings.TrimSuffix(opts.Path, filepath.Ext(opts.Path)) + ".mtl"
	shaders := map[string]*layer.Shader{}
	var order []string

	f, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "# polycheck override scene\n")
	fmt.Fprintf(w, "mtllib %s\n", filepath.Base(mtlPath))

	offset := 0
	for _, e := range opts.Entities {
		mesh, ok := opts.Meshes.Mesh(e)
		if !ok {
			continue
		}
		mat := DefaultMaterialName
		if opts.Layer != nil {
			if sh := opts.Layer.ShaderFor(e); sh != nil {
				mat = sh.Name
				if _, seen := shaders[sh.Name]; !seen {
					shaders[sh.Name] = sh
					order = append(order, sh.Name)
				}
			}
		}

		fmt.Fprintf(w, "o %s\n", e)
		for _, p := range mesh.Positions {
			fmt.Fprintf(w, "v %s %s %s\n", ftoa(p.X), ftoa(p.Y), ftoa(p.Z))
		}
		fmt.Fprintf(w, "usemtl %s\n", mat)
		for _, face := range mesh.Faces {
			w.WriteString("f")
			for _, idx := range face {
				w.WriteString(" ")
				w.WriteString(strconv.Itoa(offset + idx + 1))
			}
			w.WriteString("\n")
		}
		offset += len(mesh.Positions)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", opts.Path, err)
	}

	return writeMTL(mtlPath, order, shaders)
}

func writeMTL(path string, order []string, shaders map[string]*layer.Shader) error {
	var sb strings.Builder
	sb.WriteString("# polycheck material overrides\n")
	sb.WriteString(mtlEntry(DefaultMaterialName, [3]float64{0.7, 0.7, 0.7}))
	for _, name := range order {
		sb.WriteString(mtlEntry(name, shaders[name].Color))
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func mtlEntry(name string, kd [3]float64) string {
	return fmt.Sprintf("\nnewmtl %s\nKa 0 0 0\nKd %s %s %s\nd 1\nillum 1\n",
		name, ftoa(kd[0]), ftoa(kd[1]), ftoa(kd[2]))
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
