package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"

	_ "modernc.org/sqlite"
)

// HistorySchemaVersion is stored in the meta table of every history database.
const HistorySchemaVersion = 1

// Fixed width so created_at sorts as text.
const historyTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// RunInfo describes where a run came from.
type RunInfo struct {
	Scene   string // Scene path the run measured
	Version string // polycheck version
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID          string                   `json:"id"`
	CreatedAt   time.Time                `json:"created_at"`
	Scene       string                   `json:"scene"`
	ObjectCount int                      `json:"object_count"`
	Limits      map[model.MetricKind]int `json:"limits"`
	Invalid     map[model.MetricKind]int `json:"invalid"`
}

// CreateHistorySchema creates the history tables if they do not exist.
func CreateHistorySchema(db *sql.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"runs", `
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				created_at TEXT NOT NULL,
				scene TEXT,
				version TEXT,
				generation INTEGER NOT NULL,
				object_count INTEGER NOT NULL
			)`},
		{"limits", `
			CREATE TABLE IF NOT EXISTS limits (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				metric TEXT NOT NULL,
				value INTEGER NOT NULL,
				PRIMARY KEY (run_id, metric)
			)`},
		{"measurements", `
			CREATE TABLE IF NOT EXISTS measurements (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				entity TEXT NOT NULL,
				vertices INTEGER NOT NULL,
				edges INTEGER NOT NULL,
				triangles INTEGER NOT NULL,
				quads INTEGER NOT NULL,
				PRIMARY KEY (run_id, entity)
			)`},
		{"classifications", `
			CREATE TABLE IF NOT EXISTS classifications (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				metric TEXT NOT NULL,
				entity TEXT NOT NULL,
				valid INTEGER NOT NULL,
				PRIMARY KEY (run_id, metric, entity)
			)`},
		{"skipped", `
			CREATE TABLE IF NOT EXISTS skipped (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				entity TEXT NOT NULL,
				reason TEXT
			)`},
		{"meta", `
			CREATE TABLE IF NOT EXISTS meta (
				key TEXT PRIMARY KEY,
				value TEXT
			)`},
		{"index", `CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`},
	}
	for _, s := range stmts {
		if _, err := db.Exec(s.sql); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprintf("%d", HistorySchemaVersion))
	return err
}

func openHistory(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := CreateHistorySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// AppendRun records a result in the history database at path, creating it
// if needed, and returns the new run ID.
func AppendRun(path string, res polycount.Result, info RunInfo) (string, error) {
	defer metrics.Timer(metrics.Export)()

	db, err := openHistory(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	created := res.GeneratedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if _, err := tx.Exec(
		`INSERT INTO runs (id, created_at, scene, version, generation, object_count) VALUES (?, ?, ?, ?, ?, ?)`,
		id, created.UTC().Format(historyTimeFormat), info.Scene, info.Version, int64(res.Generation), len(res.Rows),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, m := range model.AllMetrics() {
		if _, err := tx.Exec(`INSERT INTO limits (run_id, metric, value) VALUES (?, ?, ?)`,
			id, m.String(), res.Limits[m]); err != nil {
			return "", fmt.Errorf("insert limit %s: %w", m, err)
		}
	}

	for i, row := range res.Rows {
		c := row.Counts
		if _, err := tx.Exec(
			`INSERT INTO measurements (run_id, position, entity, vertices, edges, triangles, quads) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, string(row.Entity), c.Vertices, c.Edges, c.Triangles, c.Quads,
		); err != nil {
			return "", fmt.Errorf("insert measurement %s: %w", row.Entity, err)
		}
	}

	for _, p := range res.Partitions {
		for _, side := range []struct {
			entities []model.Entity
			valid    int
		}{{p.Valid, 1}, {p.Invalid, 0}} {
			for _, e := range side.entities {
				if _, err := tx.Exec(
					`INSERT INTO classifications (run_id, metric, entity, valid) VALUES (?, ?, ?, ?)`,
					id, p.Metric.String(), string(e), side.valid,
				); err != nil {
					return "", fmt.Errorf("insert classification %s/%s: %w", p.Metric, e, err)
				}
			}
		}
	}

	for _, s := range res.Report.Skipped {
		if _, err := tx.Exec(`INSERT INTO skipped (run_id, entity, reason) VALUES (?, ?, ?)`,
			id, string(s.Entity), s.Reason); err != nil {
			return "", fmt.Errorf("insert skipped %s: %w", s.Entity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ReadRuns returns the recorded runs, oldest first.
func ReadRuns(path string) ([]RunSummary, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := openHistory(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, created_at, COALESCE(scene, ''), object_count FROM runs ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var created string
		if err := rows.Scan(&r.ID, &created, &r.Scene, &r.ObjectCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(historyTimeFormat, created)
		r.Limits = make(map[model.MetricKind]int, model.NumMetrics)
		r.Invalid = make(map[model.MetricKind]int, model.NumMetrics)
		runs = append(runs, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for i := range runs {
		if err := readRunDetail(db, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func readRunDetail(db *sql.DB, r *RunSummary) error {
	rows, err := db.Query(`SELECT metric, value FROM limits WHERE run_id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("query limits: %w", err)
	}
	for rows.Next() {
		var name string
		var value int
		if err := rows.Scan(&name, &value); err != nil {
			rows.Close()
			return fmt.Errorf("scan limit: %w", err)
		}
		if m, err := model.ParseMetricKind(name); err == nil {
			r.Limits[m] = value
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = db.Query(`SELECT metric, COUNT(*) FROM classifications WHERE run_id = ? AND valid = 0 GROUP BY metric`, r.ID)
	if err != nil {
		return fmt.Errorf("query classifications: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return fmt.Errorf("scan classification: %w", err)
		}
		if m, err := model.ParseMetricKind(name); err == nil {
			r.Invalid[m] = n
		}
	}
	return rows.Err()
}
