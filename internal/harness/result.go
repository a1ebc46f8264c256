package harness

import (
	"time"

	"flightcheck/internal/session"
	"flightcheck/internal/worker"
)

// Status is a case or attempt result.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	// StatusRetried is only reported per attempt.
	StatusRetried Status = "retried"
)

// Outcome is the terminal result of one case.
type Outcome struct {
	Name       string
	Kind       session.Kind
	Worker     worker.ID
	Status     Status
	Attempts   int
	Retries    int
	Setup      bool
	Cause      string
	Screenshot string
	Started    time.Time
	Duration   time.Duration
}

// Result is the outcome of a run, in case input order.
type Result struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Count returns how many cases ended with s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Failed reports whether any case failed.
func (r *Result) Failed() bool { return r.Count(StatusFailed) > 0 }

// Outcome looks up a case by name.
func (r *Result) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Observer is notified as attempts and cases finish. Calls arrive from
// worker goroutines concurrently.
type Observer interface {
	AttemptFinished(name string, kind session.Kind, status Status, d time.Duration)
	CaseFinished(o Outcome)
}
