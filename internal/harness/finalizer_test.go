package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"flightcheck/internal/failures"
	"flightcheck/internal/report"
)

func TestFinalize_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	sink, err := report.NewHTMLSink(filepath.Join(dir, report.ReportFileName("smoke")), report.SystemInfo{Suite: "smoke"})
	if err != nil {
		t.Fatal(err)
	}
	sink.CreateEntry("testBooking").Fail("Test failed", errors.New("Did not navigate to reserve page!"))
	agg := failures.NewAggregator()
	agg.Record("testBooking", "Did not navigate to reserve page!\nstack...")
	agg.Record("testCsv", "timeout")

	art, err := NewFinalizer(sink, agg, dir, "smoke").Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	summary, err := os.ReadFile(filepath.Join(dir, "smoke-failure-summary.txt"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	want := "===== FAILED TEST SUMMARY =====\n" +
		"❌ testBooking FAILED: Did not navigate to reserve page!\n" +
		"❌ testCsv FAILED: timeout\n"
	if string(summary) != want {
		t.Errorf("summary =\n%s\nwant\n%s", summary, want)
	}

	rep, _ := os.ReadFile(art.Report)
	idx, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	if err != nil || string(idx) != string(rep) || len(rep) == 0 {
		t.Errorf("index.html should be a copy of the report (err=%v)", err)
	}
	if art.Summary == "" || art.Index == "" {
		t.Errorf("artifacts = %+v", art)
	}
}

func TestFinalize_NoFailuresNoSummary(t *testing.T) {
	dir := t.TempDir()
	sink, _ := report.NewHTMLSink(filepath.Join(dir, report.ReportFileName("smoke")), report.SystemInfo{Suite: "smoke"})
	sink.CreateEntry("ok").Pass("Test passed")

	art, err := NewFinalizer(sink, failures.NewAggregator(), dir, "smoke").Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, SummaryFileName("smoke"))); !os.IsNotExist(err) {
		t.Errorf("summary written with no failures: %v", err)
	}
	if art.Summary != "" {
		t.Errorf("artifacts = %+v", art)
	}
}

type noopSink struct{ err error }

func (noopSink) CreateEntry(string) report.Entry { return nil }
func (s noopSink) Flush() error                  { return s.err }

// A report that was never written is logged, not returned as an error.
func TestFinalize_MissingReportCopyFailsSoft(t *testing.T) {
	dir := t.TempDir()
	art, err := NewFinalizer(noopSink{}, failures.NewAggregator(), dir, "smoke").Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if art.Index != "" {
		t.Errorf("index reported without a source: %+v", art)
	}
	if _, err := os.Stat(filepath.Join(dir, IndexFileName)); !os.IsNotExist(err) {
		t.Errorf("index.html exists: %v", err)
	}
}

func TestFinalize_FlushErrorStillWritesSummary(t *testing.T) {
	dir := t.TempDir()
	agg := failures.NewAggregator()
	agg.Record("x", "boom")
	_, err := NewFinalizer(noopSink{err: errors.New("disk full")}, agg, dir, "smoke").Finalize()
	if err == nil {
		t.Fatal("flush error swallowed")
	}
	if _, statErr := os.Stat(filepath.Join(dir, SummaryFileName("smoke"))); statErr != nil {
		t.Errorf("summary not written: %v", statErr)
	}
}
