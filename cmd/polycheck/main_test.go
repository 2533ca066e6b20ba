package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/polycheck/pkg/export"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/prefs"
	"github.com/vanderheijden86/polycheck/pkg/testutil"
)

// isolate points config and state at temp dirs so tests never read or
// write the user's preferences.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
}

// writeScene writes cube.obj (8/12/12/6) and tri.obj (3/3/1/1).
func writeScene(t *testing.T) string {
	t.Helper()
	return testutil.WriteScene(t, testutil.Cube("cube"), testutil.Triangle("tri"))
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(t *testing.T, o options)
	}{
		{
			name: "defaults",
			args: nil,
			check: func(t *testing.T, o options) {
				assert.Empty(t, o.scenePath)
				assert.Empty(t, o.selection)
				assert.False(t, o.nonInteractive())
				for _, lf := range o.limits {
					assert.False(t, lf.set)
				}
			},
		},
		{
			name: "scene and selection",
			args: []string{"--select", "a, b", "--select", "c,,", "scene.obj"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, "scene.obj", o.scenePath)
				assert.Equal(t, []model.Entity{"a", "b", "c"}, o.selection)
			},
		},
		{
			name: "limits",
			args: []string{"--limit-vertex", "100", "--limit-quad", " 7 "},
			check: func(t *testing.T, o options) {
				assert.True(t, o.limits[model.MetricVertex].set)
				assert.Equal(t, 100, o.limits[model.MetricVertex].value)
				assert.Equal(t, 7, o.limits[model.MetricQuad].value)
				assert.False(t, o.limits[model.MetricEdge].set)
			},
		},
		{
			name:    "negative limit",
			args:    []string{"--limit-edge", "-1"},
			wantErr: "limit-edge",
		},
		{
			name:    "non-numeric limit",
			args:    []string{"--limit-tris", "lots"},
			wantErr: "limit-tris",
		},
		{
			name: "visualize alias",
			args: []string{"--visualize", "tris"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, model.MetricTriangle, o.visualizeMk)
				assert.True(t, o.nonInteractive())
			},
		},
		{
			name:    "unknown metric",
			args:    []string{"--visualize", "normals"},
			wantErr: "--visualize",
		},
		{
			name:    "unknown view",
			args:    []string{"--view", "iso"},
			wantErr: "--view",
		},
		{
			name:    "unknown prefs backend",
			args:    []string{"--prefs", "registry"},
			wantErr: "--prefs",
		},
		{
			name:    "override without visualize",
			args:    []string{"--override-obj", "out.obj"},
			wantErr: "--override-obj",
		},
		{
			name:    "two robot modes",
			args:    []string{"--robot-json", "--robot-report"},
			wantErr: "mutually exclusive",
		},
		{
			name:    "two scenes",
			args:    []string{"a.obj", "b.obj"},
			wantErr: "at most one scene",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

func TestRunVersionAndHelp(t *testing.T) {
	code, out, _ := runCLI(t, "--version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "polycheck "), out)

	code, out, _ = runCLI(t, "--help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "Usage: polycheck")
	assert.Contains(t, out, "-limit-vertex")

	code, _, errOut := runCLI(t, "--limit-vertex", "-5")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "must not be negative")
}

func decodeRobot(t *testing.T, out string) export.RobotOutput {
	t.Helper()
	var doc export.RobotOutput
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	return doc
}

func TestRunRobotJSON(t *testing.T) {
	isolate(t)
	dir := writeScene(t)

	code, out, errOut := runCLI(t, "--prefs", "memory", "--robot-json",
		"--limit-vertex", "8", "--limit-edge", "100", "--limit-tris", "100", "--limit-quad", "6",
		dir)
	require.Equal(t, exitOK, code, errOut)

	doc := decodeRobot(t, out)
	assert.Equal(t, dir, doc.Scene)
	assert.NotEmpty(t, doc.Version)
	assert.Equal(t, map[string]int{"vertex": 8, "edge": 100, "triangle": 100, "quad": 6}, doc.Limits)
	require.Len(t, doc.Rows, 2)
	assert.Equal(t, model.Entity("cube"), doc.Rows[0].Entity)
	assert.Equal(t, model.Counts{Vertices: 8, Edges: 12, Triangles: 12, Quads: 6}, doc.Rows[0].Counts)
	assert.Equal(t, model.Counts{Vertices: 11, Edges: 15, Triangles: 13, Quads: 7}, doc.Totals)

	byMetric := map[string]export.RobotPartition{}
	for _, p := range doc.Partitions {
		byMetric[p.Metric] = p
	}
	// A count equal to its limit is invalid.
	assert.Equal(t, []string{"tri"}, byMetric["vertex"].Valid)
	assert.Equal(t, []string{"cube"}, byMetric["vertex"].Invalid)
	assert.Equal(t, []string{"cube"}, byMetric["quad"].Invalid)
	assert.Empty(t, byMetric["edge"].Invalid)
	assert.Equal(t, []string{"cube"}, doc.InvalidAny)
	assert.Empty(t, doc.Skipped)
}

func TestRunRobotJSON_SelectionReportsUnknownNames(t *testing.T) {
	isolate(t)
	dir := writeScene(t)

	code, out, errOut := runCLI(t, "--prefs", "memory", "--robot-json",
		"--select", "tri,ghost,tri", dir)
	require.Equal(t, exitOK, code, errOut)

	doc := decodeRobot(t, out)
	require.Len(t, doc.Rows, 1)
	assert.Equal(t, model.Entity("tri"), doc.Rows[0].Entity)
	require.Len(t, doc.Skipped, 1)
	assert.Equal(t, "ghost", doc.Skipped[0].Entity)
	assert.Equal(t, []string{"tri"}, doc.Duplicates)
	assert.Contains(t, errOut, "ghost")
}

func TestRunLimitsPersistAcrossRuns(t *testing.T) {
	isolate(t)
	dir := writeScene(t)
	prefsPath := filepath.Join(t.TempDir(), "prefs.yaml")

	code, _, errOut := runCLI(t, "--prefs", "yaml", "--prefs-path", prefsPath, "--robot-json",
		"--limit-tris", "5", dir)
	require.Equal(t, exitOK, code, errOut)

	store, err := prefs.OpenFileStore(prefsPath)
	require.NoError(t, err)
	v, ok, err := store.GetInt(model.MetricTriangle.PrefKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, v)
	require.NoError(t, store.Close())

	code, out, errOut := runCLI(t, "--prefs", "yaml", "--prefs-path", prefsPath, "--robot-json", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, 5, decodeRobot(t, out).Limits["triangle"])
}

func TestRunRobotReport(t *testing.T) {
	isolate(t)
	dir := writeScene(t)

	code, out, errOut := runCLI(t, "--prefs", "memory", "--robot-report",
		"--title", "Props", "--limit-vertex", "4", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "Props")
	assert.Contains(t, out, "cube")
}

func TestRunVisualizeWritesSnapshotAndOverrides(t *testing.T) {
	isolate(t)
	dir := writeScene(t)
	outDir := t.TempDir()
	svgPath := filepath.Join(outDir, "quads.svg")
	objPath := filepath.Join(outDir, "scene.obj")

	code, out, errOut := runCLI(t, "--prefs", "memory", "--robot-json",
		"--limit-quad", "2", "--visualize", "quad",
		"--snapshot", svgPath, "--override-obj", objPath, dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, errOut, "Quads (limit 2): 1 valid, 1 invalid")
	assert.Equal(t, "quad", decodeRobot(t, out).Visualized)

	svg, err := os.ReadFile(svgPath)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")

	obj, err := os.ReadFile(objPath)
	require.NoError(t, err)
	assert.Contains(t, string(obj), "usemtl")
	assert.FileExists(t, strings.TrimSuffix(objPath, ".obj")+".mtl")
}

func TestRunExports(t *testing.T) {
	isolate(t)
	dir := writeScene(t)
	outDir := t.TempDir()
	dbPath := filepath.Join(outDir, "history.db")
	htmlPath := filepath.Join(outDir, "charts.html")
	pngPath := filepath.Join(outDir, "charts.png")

	for i := 0; i < 2; i++ {
		code, _, errOut := runCLI(t, "--prefs", "memory",
			"--export-sqlite", dbPath, "--chart-html", htmlPath, "--chart-png", pngPath, dir)
		require.Equal(t, exitOK, code, errOut)
		assert.Contains(t, errOut, "Recorded run")
	}

	runs, err := export.ReadRuns(dbPath)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, dir, runs[0].Scene)

	assert.FileExists(t, htmlPath)
	png, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestRunMissingScene(t *testing.T) {
	isolate(t)
	code, _, errOut := runCLI(t, "--prefs", "memory", "--robot-json",
		filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "Error:")
}

func TestRunBrokenConfigFallsBackToDefaults(t *testing.T) {
	isolate(t)
	dir := writeScene(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("scene: [not, a, map"), 0o644))

	code, out, errOut := runCLI(t, "--config", cfgPath, "--prefs", "memory", "--robot-json", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, errOut, "using defaults")
	assert.Len(t, decodeRobot(t, out).Rows, 2)
}

func TestRunExportHooks(t *testing.T) {
	isolate(t)
	dir := writeScene(t)
	marker := filepath.Join(t.TempDir(), "hook.out")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".polycheck"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".polycheck", "hooks.yaml"), []byte(`
hooks:
  post-export:
    - name: record
      command: echo "$POLYCHECK_EXPORT_FORMAT $POLYCHECK_OBJECT_COUNT $POLYCHECK_INVALID_COUNT" > "$MARKER"
      env:
        MARKER: `+marker+`
`), 0o644))

	code, out, errOut := runCLI(t, "--prefs", "memory", "--robot-json", "--limit-vertex", "4", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, errOut, "Hooks: 1 succeeded, 0 failed")
	assert.NotContains(t, out, "Hooks:")

	got, err := os.ReadFile(marker)
	require.NoError(t, err)
	// Unset limits are 0, so tri is invalid for edges.
	assert.Equal(t, "json 2 2\n", string(got))

	require.NoError(t, os.Remove(marker))
	code, _, errOut = runCLI(t, "--prefs", "memory", "--robot-json", "--no-hooks", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.NoFileExists(t, marker)
}

func TestRunFailingPreExportHookCancelsExports(t *testing.T) {
	isolate(t)
	dir := writeScene(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".polycheck"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".polycheck", "hooks.yaml"),
		[]byte("hooks:\n  pre-export:\n    - name: gate\n      command: exit 1\n"), 0o644))
	htmlPath := filepath.Join(t.TempDir(), "charts.html")

	code, _, errOut := runCLI(t, "--prefs", "memory", "--chart-html", htmlPath, dir)
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, `pre-export hook "gate" failed`)
	assert.NoFileExists(t, htmlPath)
}
