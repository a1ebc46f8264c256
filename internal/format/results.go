package format

import (
	"fmt"
	"time"

	"flightcheck/internal/failures"
	"flightcheck/internal/harness"
	"flightcheck/internal/store"
)

// Duration renders d as "1m 5s", "3.2s" or "850ms".
func Duration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		s := int(d.Seconds())
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// Truncate shortens s to maxLen runes, ending in "..." when cut.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// StatusMark prefixes a status with a glyph.
func StatusMark(status string) string {
	switch status {
	case string(harness.StatusPassed):
		return "✓ passed"
	case string(harness.StatusFailed):
		return "✗ failed"
	case string(harness.StatusSkipped):
		return "- skipped"
	}
	return status
}

// Outcomes renders one row per case plus a totals footer.
func Outcomes(m Mode, res *harness.Result) string {
	t := NewTable(m)
	t.Header("Case", "Browser", "Worker", "Status", "Attempts", "Duration", "Cause")
	for _, o := range res.Outcomes {
		worker := "-"
		if o.Worker > 0 {
			worker = o.Worker.String()
		}
		t.Row(o.Name, o.Kind, worker, StatusMark(string(o.Status)), o.Attempts, Duration(o.Duration), Truncate(o.Cause, 60))
	}
	t.Footer("TOTAL", "", "",
		fmt.Sprintf("%d/%d/%d", res.Count(harness.StatusPassed), res.Count(harness.StatusFailed), res.Count(harness.StatusSkipped)),
		"", Duration(res.Finished.Sub(res.Started)), "passed/failed/skipped")
	t.Columns(Column{Number: 5, Align: AlignRight}, Column{Number: 6, Align: AlignRight})
	return t.String()
}

// Runs renders the run history, newest first.
func Runs(m Mode, runs []*store.Run) string {
	t := NewTable(m)
	t.Header("Run", "Suite", "Browser", "Started", "Duration", "Passed", "Failed", "Skipped")
	for _, r := range runs {
		dur := "running"
		if !r.FinishedAt.IsZero() {
			dur = Duration(r.FinishedAt.Sub(r.StartedAt))
		}
		t.Row(r.ID, r.Suite, r.Browser, r.StartedAt.Local().Format("2006-01-02 15:04:05"), dur, r.Passed, r.Failed, r.Skipped)
	}
	t.Columns(Column{Number: 6, Align: AlignRight}, Column{Number: 7, Align: AlignRight}, Column{Number: 8, Align: AlignRight})
	return t.String()
}

// CaseResults renders stored results of one run.
func CaseResults(m Mode, results []*store.CaseResult) string {
	t := NewTable(m)
	t.Header("Case", "Browser", "Status", "Attempts", "Duration", "Cause")
	for _, c := range results {
		t.Row(c.Name, c.Kind, StatusMark(c.Status), c.Attempts, Duration(c.Duration), Truncate(c.Cause, 60))
	}
	return t.String()
}

// Failures renders failure records.
func Failures(m Mode, recs []failures.Record) string {
	t := NewTable(m)
	t.Header("Case", "Message")
	for _, r := range recs {
		t.Row(r.TestName, r.Message)
	}
	t.Columns(Column{Number: 2, MaxWidth: 80})
	return t.String()
}
