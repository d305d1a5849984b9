// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores runs in a local SQLite database.
type SQLite struct {
	db         *sql.DB
	experiment string
}

// OpenSQLite opens or creates the tracking database at path and creates the
// schema if it does not exist.
func OpenSQLite(path, experiment string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating tracking directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening tracking database: %w", err)
	}
	if experiment == "" {
		experiment = "0"
	}
	s := &SQLite{db: db, experiment: experiment}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			experiment TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			tags TEXT,
			started_at TEXT NOT NULL,
			ended_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS metrics (
			run_id TEXT NOT NULL REFERENCES runs(id),
			key TEXT NOT NULL,
			value REAL NOT NULL,
			logged_at TEXT NOT NULL,
			PRIMARY KEY (run_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS params (
			run_id TEXT NOT NULL REFERENCES runs(id),
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (run_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS models (
			run_id TEXT NOT NULL REFERENCES runs(id),
			name TEXT NOT NULL,
			registered_name TEXT NOT NULL,
			kind TEXT,
			artifact_path TEXT,
			features TEXT,
			input_example TEXT,
			PRIMARY KEY (run_id, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_models_registered ON models(registered_name)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// StartRun inserts a new run in the RUNNING state.
func (s *SQLite) StartRun(ctx context.Context, name string, tags map[string]string) (Run, error) {
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, experiment, name, status, tags, started_at) VALUES (?, ?, ?, 'RUNNING', ?, ?)`,
		id, s.experiment, name, string(tagJSON), now())
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return &sqliteRun{db: s.db, id: id}, nil
}

// RunSummary is one stored run with its metrics.
type RunSummary struct {
	ID        string
	Name      string
	Status    string
	StartedAt time.Time
	Metrics   map[string]float64
	Models    []string
}

// ListRuns returns runs newest first, at most limit when limit > 0.
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT id, name, status, started_at FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		if err := rows.Scan(&r.ID, &r.Name, &r.Status, &started); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Metrics, err = s.metrics(ctx, out[i].ID); err != nil {
			return nil, err
		}
		if out[i].Models, err = s.models(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLite) metrics(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM metrics WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying metrics: %w", err)
	}
	defer rows.Close()
	out := make(map[string]float64)
	for rows.Next() {
		var k string
		var v float64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning metric: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *SQLite) models(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT registered_name FROM models WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying models: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning model: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type sqliteRun struct {
	db *sql.DB
	id string
}

func (r *sqliteRun) ID() string { return r.id }

func (r *sqliteRun) LogMetric(ctx context.Context, key string, value float64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO metrics (run_id, key, value, logged_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value, logged_at = excluded.logged_at`,
		r.id, key, value, now())
	if err != nil {
		return fmt.Errorf("logging metric %s: %w", key, err)
	}
	return nil
}

func (r *sqliteRun) LogParam(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO params (run_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value`,
		r.id, key, value)
	if err != nil {
		return fmt.Errorf("logging param %s: %w", key, err)
	}
	return nil
}

func (r *sqliteRun) LogModel(ctx context.Context, m ModelInfo) error {
	features, err := json.Marshal(m.Features)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}
	example, err := json.Marshal(m.InputExample)
	if err != nil {
		return fmt.Errorf("encoding input example: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO models (run_id, name, registered_name, kind, artifact_path, features, input_example)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET
			registered_name = excluded.registered_name,
			kind = excluded.kind,
			artifact_path = excluded.artifact_path,
			features = excluded.features,
			input_example = excluded.input_example`,
		r.id, m.Name, m.RegisteredName, m.Kind, m.ArtifactPath, string(features), string(example))
	if err != nil {
		return fmt.Errorf("logging model %s: %w", m.Name, err)
	}
	return nil
}

func (r *sqliteRun) End(ctx context.Context, status Status) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ? WHERE id = ?`, string(status), now(), r.id)
	if err != nil {
		return fmt.Errorf("ending run: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
