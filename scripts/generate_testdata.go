//go:build ignore

// generate_testdata.go creates benchmark scenes for the loader and TUI.
// Usage: go run scripts/generate_testdata.go [output-dir]
//
// Creates one directory per dataset under testdata/benchmark (default):
//
//	small/   10 files, 100 meshes
//	medium/  50 files, 1000 meshes
//	large/   200 files, 5000 meshes
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/polycheck/pkg/testutil"
)

type datasetSpec struct {
	name   string
	files  int
	meshes int
}

var datasets = []datasetSpec{
	{"small", 10, 100},
	{"medium", 50, 1000},
	{"large", 200, 5000},
}

func main() {
	outputDir := filepath.Join("testdata", "benchmark")
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d meshes in %d files)...\n", ds.name, ds.meshes, ds.files)
		dir := filepath.Join(outputDir, ds.name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dir, err)
			os.Exit(1)
		}

		gen := testutil.New(testutil.GeneratorConfig{
			Seed:     int64(ds.meshes), // Reproducible per size
			Prefix:   ds.name,
			MaxGrid:  32,
			FanRatio: 5,
		})
		meshes := gen.Meshes(ds.meshes)
		perFile := ds.meshes / ds.files
		for i := range ds.files {
			chunk := meshes[i*perFile : (i+1)*perFile]
			path := filepath.Join(dir, fmt.Sprintf("part_%03d.obj", i))
			if err := os.WriteFile(path, []byte(testutil.ToOBJ(chunk...)), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
				os.Exit(1)
			}
		}
		fmt.Printf("  Wrote %s\n", dir)
	}
}
