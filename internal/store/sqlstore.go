package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flightcheck/internal/failures"

	_ "modernc.org/sqlite"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV2

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

var _ Store = (*SqlStore)(nil)

// Open opens or creates a SQLite DB at path and runs migrations. The parent
// directory is created if needed.
func Open(path string) (*SqlStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Workers write concurrently; one connection serializes them.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	switch v {
	case currentSchemaVersion:
		return nil
	case schemaVersionV1:
		return s.migrateV1ToV2()
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV2); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

func (s *SqlStore) migrateV1ToV2() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(migrationV1ToV2); err != nil {
		return fmt.Errorf("v1→v2 migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SqlStore) Close() error { return s.db.Close() }

func (s *SqlStore) CreateRun(r *Run) error {
	_, err := s.db.Exec(
		`INSERT INTO runs(id, suite, browser, tester, workers, started_at) VALUES(?,?,?,?,?,?)`,
		r.ID, r.Suite, r.Browser, r.Tester, r.Workers, formatTime(r.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

func (s *SqlStore) FinishRun(id string, finished time.Time, passed, failed, skipped int) error {
	res, err := s.db.Exec(
		`UPDATE runs SET finished_at=?, passed=?, failed=?, skipped=? WHERE id=?`,
		formatTime(finished), passed, failed, skipped, id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

const runColumns = `id, suite, browser, tester, workers, started_at, finished_at, passed, failed, skipped`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r        Run
		tester   sql.NullString
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Suite, &r.Browser, &tester, &r.Workers, &started, &finished, &r.Passed, &r.Failed, &r.Skipped); err != nil {
		return nil, err
	}
	r.Tester = nullStr(tester)
	r.StartedAt = parseTime(started)
	if finished.Valid {
		r.FinishedAt = parseTime(finished.String)
	}
	return &r, nil
}

// GetRun returns nil, nil when no run has the id.
func (s *SqlStore) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the newest runs first. limit <= 0 means all.
func (s *SqlStore) ListRuns(limit int) ([]*Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SqlStore) SaveCaseResult(c *CaseResult) error {
	setup := 0
	if c.Setup {
		setup = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO case_results(run_id, name, kind, status, worker, attempts, retries, setup, cause, screenshot, started_at, duration_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.RunID, c.Name, c.Kind, c.Status, c.Worker, c.Attempts, c.Retries, setup,
		c.Cause, c.Screenshot, formatTime(c.StartedAt), c.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert case result %s/%s: %w", c.RunID, c.Name, err)
	}
	return nil
}

// ListCaseResults returns a run's results ordered by start time.
func (s *SqlStore) ListCaseResults(runID string) ([]*CaseResult, error) {
	rows, err := s.db.Query(
		`SELECT run_id, name, kind, status, worker, attempts, retries, setup, cause, screenshot, started_at, duration_ms
		 FROM case_results WHERE run_id=? ORDER BY started_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list case results: %w", err)
	}
	defer rows.Close()
	var out []*CaseResult
	for rows.Next() {
		var (
			c          CaseResult
			setup      int
			cause, img sql.NullString
			started    string
			ms         int64
		)
		if err := rows.Scan(&c.RunID, &c.Name, &c.Kind, &c.Status, &c.Worker, &c.Attempts, &c.Retries, &setup, &cause, &img, &started, &ms); err != nil {
			return nil, fmt.Errorf("scan case result: %w", err)
		}
		c.Setup = setup != 0
		c.Cause = nullStr(cause)
		c.Screenshot = nullStr(img)
		c.StartedAt = parseTime(started)
		c.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, &c)
	}
	return out, rows.Err()
}

// SaveFailures stores the run's failure summary in order.
func (s *SqlStore) SaveFailures(runID string, recs []failures.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin failures tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for i, r := range recs {
		if _, err := tx.Exec(`INSERT INTO failures(run_id, seq, test_name, message) VALUES(?,?,?,?)`,
			runID, i, r.TestName, r.Message); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SqlStore) ListFailures(runID string) ([]failures.Record, error) {
	rows, err := s.db.Query(`SELECT test_name, message FROM failures WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()
	var out []failures.Record
	for rows.Next() {
		var r failures.Record
		if err := rows.Scan(&r.TestName, &r.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
