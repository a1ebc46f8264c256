package store

import (
	"log/slog"
	"time"

	"flightcheck/internal/harness"
	"flightcheck/internal/logging"
	"flightcheck/internal/session"
)

// Ledger records finished cases of one run. It implements harness.Observer;
// write errors are logged and never fail the run.
type Ledger struct {
	store  Store
	runID  string
	logger *slog.Logger
}

var _ harness.Observer = (*Ledger)(nil)

func NewLedger(s Store, runID string) *Ledger {
	return &Ledger{store: s, runID: runID, logger: logging.New("ledger")}
}

func (l *Ledger) AttemptFinished(string, session.Kind, harness.Status, time.Duration) {}

func (l *Ledger) CaseFinished(o harness.Outcome) {
	err := l.store.SaveCaseResult(&CaseResult{
		RunID:      l.runID,
		Name:       o.Name,
		Kind:       string(o.Kind),
		Status:     string(o.Status),
		Worker:     int(o.Worker),
		Attempts:   o.Attempts,
		Retries:    o.Retries,
		Setup:      o.Setup,
		Cause:      o.Cause,
		Screenshot: o.Screenshot,
		StartedAt:  o.Started,
		Duration:   o.Duration,
	})
	if err != nil {
		l.logger.Warn("case result not saved", "run", l.runID, "case", o.Name, "error", err)
	}
}
