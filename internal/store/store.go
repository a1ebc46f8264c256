// Package store keeps a ledger of runs and per-case results so history can
// be queried after the report files are gone.
package store

import (
	"time"

	"flightcheck/internal/failures"
)

// DefaultDBPath is relative to the reports directory.
const DefaultDBPath = "flightcheck.db"

// Run is one invocation of the harness.
type Run struct {
	ID         string
	Suite      string
	Browser    string
	Tester     string
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Passed     int
	Failed     int
	Skipped    int
}

// CaseResult is the terminal outcome of one case in a run.
type CaseResult struct {
	RunID      string
	Name       string
	Kind       string
	Status     string
	Worker     int
	Attempts   int
	Retries    int
	Setup      bool
	Cause      string
	Screenshot string
	StartedAt  time.Time
	Duration   time.Duration
}

// Store is the ledger facade. Implementations are SQLite or in-memory and
// are safe for concurrent use.
type Store interface {
	CreateRun(r *Run) error
	FinishRun(id string, finished time.Time, passed, failed, skipped int) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	SaveCaseResult(c *CaseResult) error
	ListCaseResults(runID string) ([]*CaseResult, error)

	SaveFailures(runID string, recs []failures.Record) error
	ListFailures(runID string) ([]failures.Record, error)

	Close() error
}
