package export

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

func TestAppendRunAndReadRuns(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "history", "runs.sqlite3")

	first, err := AppendRun(path, f.controller.Result(), RunInfo{Scene: "/props", Version: "test"})
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err, "run id is a uuid")

	require.NoError(t, f.controller.SetLimit(model.MetricVertex, 100))
	second, err := AppendRun(path, f.controller.Result(), RunInfo{Scene: "/props"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	runs, err := ReadRuns(path)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, "/props", runs[0].Scene)
	assert.Equal(t, 2, runs[0].ObjectCount)
	assert.Equal(t, 6, runs[0].Limits[model.MetricVertex])
	assert.Equal(t, 1, runs[0].Invalid[model.MetricVertex])
	assert.Equal(t, 0, runs[0].Invalid[model.MetricEdge])
	assert.Equal(t, 1, runs[0].Invalid[model.MetricQuad])

	assert.Equal(t, second, runs[1].ID)
	assert.Equal(t, 100, runs[1].Limits[model.MetricVertex])
	assert.Equal(t, 0, runs[1].Invalid[model.MetricVertex])
}

func TestAppendRun_StoresRowsAndSkipped(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.Refresh([]model.Entity{"tri", "ghost"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "runs.sqlite3")
	id, err := AppendRun(path, f.controller.Result(), RunInfo{})
	require.NoError(t, err)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var verts, quads int
	require.NoError(t, db.QueryRow(
		`SELECT vertices, quads FROM measurements WHERE run_id = ? AND entity = 'tri'`, id,
	).Scan(&verts, &quads))
	assert.Equal(t, 3, verts)
	assert.Equal(t, 1, quads)

	var skipped string
	require.NoError(t, db.QueryRow(`SELECT entity FROM skipped WHERE run_id = ?`, id).Scan(&skipped))
	assert.Equal(t, "ghost", skipped)

	var version string
	require.NoError(t, db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version))
	assert.Equal(t, "1", version)
}

func TestReadRuns_MissingFile(t *testing.T) {
	_, err := ReadRuns(filepath.Join(t.TempDir(), "none.sqlite3"))
	assert.Error(t, err)
}
