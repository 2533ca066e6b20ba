package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/scene"
)

// WriteOBJ writes meshes to dir/name and returns the path.
func WriteOBJ(t testing.TB, dir, name string, meshes ...*scene.Mesh) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(ToOBJ(meshes...)), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// WriteScene writes each mesh to its own <name>.obj in a temp directory
// and returns the directory.
func WriteScene(t testing.TB, meshes ...*scene.Mesh) string {
	t.Helper()
	dir := t.TempDir()
	for _, m := range meshes {
		WriteOBJ(t, dir, m.Name+".obj", m)
	}
	return dir
}

// AssertCounts fails when e is missing from sc or measures differently.
func AssertCounts(t testing.TB, sc *scene.Scene, e model.Entity, want model.Counts) {
	t.Helper()
	got, err := sc.Counts(e)
	if err != nil {
		t.Fatalf("counts of %s: %v", e, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("counts of %s mismatch (-want +got):\n%s", e, diff)
	}
}

// AssertPartition checks that p covers rows exactly once, keeps row order
// on both sides and puts every count at or over the limit on the invalid
// side.
func AssertPartition(t testing.TB, p model.Partition, rows []model.Measurement) {
	t.Helper()
	var wantValid, wantInvalid []model.Entity
	for _, r := range rows {
		if r.Counts.Of(p.Metric) < p.Limit {
			wantValid = append(wantValid, r.Entity)
		} else {
			wantInvalid = append(wantInvalid, r.Entity)
		}
	}
	if !slices.Equal(wantValid, p.Valid) {
		t.Errorf("%s valid = %v, want %v", p.Metric, p.Valid, wantValid)
	}
	if !slices.Equal(wantInvalid, p.Invalid) {
		t.Errorf("%s invalid = %v, want %v", p.Metric, p.Invalid, wantInvalid)
	}
}

// AssertJSONEqual compares two values by their JSON encoding.
func AssertJSONEqual(t testing.TB, expected, actual any) {
	t.Helper()
	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// GoldenFile compares output against a file under testdata. Setting
// POLYCHECK_UPDATE_GOLDEN rewrites the file instead.
type GoldenFile struct {
	t      testing.TB
	path   string
	update bool
}

// NewGoldenFile creates a golden file helper for dir/name.
func NewGoldenFile(t testing.TB, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		path:   filepath.Join(dir, name),
		update: os.Getenv("POLYCHECK_UPDATE_GOLDEN") != "",
	}
}

// Path returns the golden file path.
func (g *GoldenFile) Path() string {
	return g.path
}

// Assert compares actual against the golden file and reports the first
// differing line.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()

	if g.update {
		if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(g.path, []byte(actual), 0o644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", g.path)
		return
	}

	expected, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with POLYCHECK_UPDATE_GOLDEN=1 to create it", g.path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}
	if string(expected) == actual {
		return
	}

	want := strings.Split(string(expected), "\n")
	got := strings.Split(actual, "\n")
	for i := 0; i < len(want) || i < len(got); i++ {
		var w, a string
		if i < len(want) {
			w = want[i]
		}
		if i < len(got) {
			a = got[i]
		}
		if w != a {
			g.t.Errorf("golden file %s mismatch at line %d:\nexpected: %s\nactual:   %s", g.path, i+1, w, a)
			return
		}
	}
	g.t.Errorf("golden file %s mismatch (length differs)", g.path)
}
