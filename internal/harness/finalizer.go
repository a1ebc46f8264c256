package harness

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"flightcheck/internal/failures"
	"flightcheck/internal/logging"
	"flightcheck/internal/report"
)

const (
	// SummaryHeader is the first line of the failure summary file.
	SummaryHeader = "===== FAILED TEST SUMMARY ====="
	// IndexFileName is the stable copy of the latest report.
	IndexFileName = "index.html"
)

// SummaryFileName is the per-suite failure summary file name.
func SummaryFileName(suite string) string {
	return suite + "-failure-summary.txt"
}

// Failures is the read side of the failure aggregator.
type Failures interface {
	Snapshot() []failures.Record
}

// Artifacts lists the files a Finalize call wrote. Empty fields were not
// written.
type Artifacts struct {
	Report  string
	Summary string
	Index   string
}

// Finalizer writes run artifacts once every worker has joined.
type Finalizer struct {
	Sink       report.Sink
	Failures   Failures
	ReportsDir string
	Suite      string

	logger *slog.Logger
}

// NewFinalizer returns a Finalizer writing into reportsDir.
func NewFinalizer(sink report.Sink, f Failures, reportsDir, suite string) *Finalizer {
	return &Finalizer{Sink: sink, Failures: f, ReportsDir: reportsDir, Suite: suite, logger: logging.New("finalizer")}
}

// Finalize flushes the report, writes the failure summary when there were
// failures and copies the report to index.html. A missing report is not an
// error for the copy step.
func (f *Finalizer) Finalize() (Artifacts, error) {
	if f.logger == nil {
		f.logger = logging.New("finalizer")
	}
	var art Artifacts
	var errs []error

	reportPath := filepath.Join(f.ReportsDir, report.ReportFileName(f.Suite))
	if err := f.Sink.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush report: %w", err))
	} else {
		art.Report = reportPath
		f.logger.Info("report written", "path", reportPath)
	}

	records := f.Failures.Snapshot()
	if len(records) > 0 {
		path := filepath.Join(f.ReportsDir, SummaryFileName(f.Suite))
		if err := WriteSummary(path, records); err != nil {
			errs = append(errs, err)
		} else {
			art.Summary = path
			f.logger.Info("failure summary written", "path", path, "failures", len(records))
		}
	}

	index := filepath.Join(f.ReportsDir, IndexFileName)
	switch err := copyFile(reportPath, index); {
	case err == nil:
		art.Index = index
	case errors.Is(err, os.ErrNotExist):
		f.logger.Warn("report missing, index not updated", "path", reportPath)
	default:
		f.logger.Warn("index copy failed", "error", err)
	}
	return art, errors.Join(errs...)
}

// FormatSummary renders the failure summary body.
func FormatSummary(records []failures.Record) string {
	var b strings.Builder
	b.WriteString(SummaryHeader)
	b.WriteByte('\n')
	for _, r := range records {
		fmt.Fprintf(&b, "❌ %s FAILED: %s\n", r.TestName, r.Message)
	}
	return b.String()
}

// WriteSummary writes FormatSummary(records) to path.
func WriteSummary(path string, records []failures.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(FormatSummary(records)), 0o644); err != nil {
		return fmt.Errorf("write failure summary: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
