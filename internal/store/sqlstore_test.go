package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"flightcheck/internal/config"
	"flightcheck/internal/failures"
	"flightcheck/internal/harness"
	"flightcheck/internal/report"
	"flightcheck/internal/session"
)

func openTemp(t *testing.T) *SqlStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", DefaultDBPath))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b"} {
		if err := s.CreateRun(&Run{ID: id, Suite: "smoke", Browser: "chrome", Workers: 2, StartedAt: t0.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
	if err := s.FinishRun("run-a", t0.Add(time.Minute), 1, 1, 0); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := s.FinishRun("missing", t0, 0, 0, 0); err == nil {
		t.Error("FinishRun on unknown id should fail")
	}

	run, err := s.GetRun("run-a")
	if err != nil || run == nil {
		t.Fatalf("GetRun: %+v, %v", run, err)
	}
	want := &Run{ID: "run-a", Suite: "smoke", Browser: "chrome", Workers: 2, StartedAt: t0, FinishedAt: t0.Add(time.Minute), Passed: 1, Failed: 1}
	if diff := cmp.Diff(want, run); diff != "" {
		t.Errorf("run (-want +got):\n%s", diff)
	}
	if r, err := s.GetRun("nope"); r != nil || err != nil {
		t.Errorf("GetRun(nope) = %+v, %v", r, err)
	}

	runs, err := s.ListRuns(1)
	if err != nil || len(runs) != 1 || runs[0].ID != "run-b" {
		t.Fatalf("ListRuns(1) = %+v, %v", runs, err)
	}

	results := []*CaseResult{
		{RunID: "run-a", Name: "booking-json-01", Kind: "chrome", Status: "passed", Worker: 1, Attempts: 1, StartedAt: t0, Duration: 1500 * time.Millisecond},
		{RunID: "run-a", Name: "booking-json-02", Kind: "chrome", Status: "failed", Worker: 2, Attempts: 2, Retries: 1,
			Cause: "Did not navigate to reserve page!", Screenshot: "screenshots/b.png", StartedAt: t0.Add(time.Second), Duration: 3 * time.Second},
	}
	for _, c := range results {
		if err := s.SaveCaseResult(c); err != nil {
			t.Fatalf("SaveCaseResult: %v", err)
		}
	}
	if err := s.SaveCaseResult(results[0]); err == nil {
		t.Error("duplicate case result accepted")
	}
	got, err := s.ListCaseResults("run-a")
	if err != nil {
		t.Fatalf("ListCaseResults: %v", err)
	}
	if diff := cmp.Diff(results, got); diff != "" {
		t.Errorf("case results (-want +got):\n%s", diff)
	}

	recs := []failures.Record{{TestName: "booking-json-02", Message: "Did not navigate to reserve page!"}}
	if err := s.SaveFailures("run-a", recs); err != nil {
		t.Fatalf("SaveFailures: %v", err)
	}
	gotRecs, err := s.ListFailures("run-a")
	if err != nil {
		t.Fatalf("ListFailures: %v", err)
	}
	if diff := cmp.Diff(recs, gotRecs); diff != "" {
		t.Errorf("failures (-want +got):\n%s", diff)
	}
}

func TestSqlStore_RoundTrip(t *testing.T) { exerciseStore(t, openTemp(t)) }

func TestMemStore_RoundTrip(t *testing.T) { exerciseStore(t, NewMemStore()) }

func TestSqlStore_MigratesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		t.Fatalf("create v1: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version(version) VALUES(1)"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open v1 db: %v", err)
	}
	defer s.Close()
	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version").Scan(&v); err != nil || v != schemaVersionV2 {
		t.Fatalf("schema version = %d, %v", v, err)
	}
	if err := s.CreateRun(&Run{ID: "r", Suite: "s", Browser: "chrome", Workers: 1, StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCaseResult(&CaseResult{RunID: "r", Name: "c", Kind: "chrome", Status: "failed", Screenshot: "x.png", StartedAt: time.Now()}); err != nil {
		t.Fatalf("SaveCaseResult after migration: %v", err)
	}
}

func TestLedger_ConcurrentCaseFinished(t *testing.T) {
	s := openTemp(t)
	if err := s.CreateRun(&Run{ID: "run", Suite: "s", Browser: "chrome", Workers: 8, StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	l := NewLedger(s, "run")
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.CaseFinished(harness.Outcome{Name: fmt.Sprintf("c%02d", i), Kind: "chrome", Status: harness.StatusPassed, Attempts: 1, Started: time.Now()})
		}(i)
	}
	wg.Wait()
	got, err := s.ListCaseResults("run")
	if err != nil || len(got) != 40 {
		t.Fatalf("ListCaseResults = %d, %v", len(got), err)
	}
}

type stubLauncher struct{}

func (stubLauncher) Launch(_ context.Context, spec session.Spec) (*session.Handle, error) {
	return session.NewHandle(context.Background(), spec, false, func() error { return nil }), nil
}

func TestLedger_RecordsRunDurations(t *testing.T) {
	s := openTemp(t)
	const runID = "timed"
	if err := s.CreateRun(&Run{ID: runID, Suite: "s", Browser: "chrome", Workers: 1, StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	sink, err := report.NewHTMLSink(filepath.Join(t.TempDir(), report.ReportFileName("s")), report.SystemInfo{Suite: "s"})
	if err != nil {
		t.Fatal(err)
	}
	orch := harness.New(config.Settings{Browser: "chrome", Parallel: 1, Timeout: time.Second},
		session.NewRegistry(stubLauncher{}), report.NewContexts(sink), failures.NewAggregator(),
		harness.WithObserver(NewLedger(s, runID)), harness.WithRunID(runID))

	const work = 30 * time.Millisecond
	if _, err := orch.Run(context.Background(), []harness.Case{{
		Name: "sleeps",
		Body: func(*harness.T) error {
			time.Sleep(work)
			return nil
		},
	}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := s.ListCaseResults(runID)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListCaseResults = %d, %v", len(got), err)
	}
	if got[0].Duration < work {
		t.Errorf("stored duration = %s, want >= %s", got[0].Duration, work)
	}
	if got[0].StartedAt.IsZero() {
		t.Error("stored start time is zero")
	}
}
