package store

// schemaVersionV1 has runs and case results only.
const schemaVersionV1 = 1

// schemaVersionV2 adds the failure summary table and case screenshots.
const schemaVersionV2 = 2

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	suite       TEXT NOT NULL,
	browser     TEXT NOT NULL,
	tester      TEXT,
	workers     INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	passed      INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS case_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	worker      INTEGER NOT NULL,
	attempts    INTEGER NOT NULL,
	retries     INTEGER NOT NULL,
	setup       INTEGER NOT NULL DEFAULT 0,
	cause       TEXT,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	UNIQUE(run_id, name)
);
`

var schemaV2 = schemaV1 + `
ALTER TABLE case_results ADD COLUMN screenshot TEXT;
CREATE TABLE IF NOT EXISTS failures (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL REFERENCES runs(id),
	seq       INTEGER NOT NULL,
	test_name TEXT NOT NULL,
	message   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_case_results_run ON case_results(run_id);
CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id, seq);
`

var migrationV1ToV2 = `
ALTER TABLE case_results ADD COLUMN screenshot TEXT;
CREATE TABLE IF NOT EXISTS failures (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL REFERENCES runs(id),
	seq       INTEGER NOT NULL,
	test_name TEXT NOT NULL,
	message   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_case_results_run ON case_results(run_id);
CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id, seq);
UPDATE schema_version SET version = 2;
`
