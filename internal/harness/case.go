package harness

import (
	"context"
	"fmt"
	"log/slog"

	"flightcheck/internal/config"
	"flightcheck/internal/page"
	"flightcheck/internal/report"
	"flightcheck/internal/session"
	"flightcheck/internal/worker"
)

// Case is one independently runnable test.
type Case struct {
	Name string
	// Kind overrides the run's browser kind when set.
	Kind session.Kind
	// DependsOn names cases that must pass before this one runs.
	DependsOn []string
	Body      func(t *T) error
}

// T is handed to a case body for one attempt.
type T struct {
	Name     string
	Attempt  int
	Worker   worker.ID
	Session  *session.Handle
	Entry    report.Entry
	Logger   *slog.Logger
	Settings config.Settings

	ctx context.Context
}

// Context is the session's tab context, cancelled when the case deadline
// passes or the run is aborted.
func (t *T) Context() context.Context { return t.ctx }

// Page returns a page layer bound to this attempt's session.
func (t *T) Page() *page.Page {
	return page.New(t.ctx, t.Settings.Timeout)
}

// Log writes an info line to both the report entry and the logger. Lines
// from a body abandoned at its deadline are dropped.
func (t *T) Log(msg string, args ...any) {
	if t.ctx.Err() != nil {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	t.Entry.Info(msg)
	t.Logger.Info(msg)
}

// Require fails the attempt with msg when cond is false.
func (t *T) Require(cond bool, msg string) {
	if !cond {
		panic(failNow{err: &AssertionError{Msg: msg}})
	}
}

// Fatalf fails the attempt immediately.
func (t *T) Fatalf(format string, args ...any) {
	panic(failNow{err: &AssertionError{Msg: fmt.Sprintf(format, args...)}})
}

// Check fails the attempt if err is non-nil.
func (t *T) Check(err error) {
	if err != nil {
		panic(failNow{err: err})
	}
}

// Skip stops the attempt and marks the case skipped.
func (t *T) Skip(reason string) {
	panic(failNow{err: Skip(reason)})
}

// attemptEntry drops writes once its attempt has ended, so a body still
// running past its deadline cannot add lines after the final status.
type attemptEntry struct {
	report.Entry
	ctx context.Context
}

func (e *attemptEntry) open() bool { return e.ctx.Err() == nil }

func (e *attemptEntry) Info(msg string) {
	if e.open() {
		e.Entry.Info(msg)
	}
}

func (e *attemptEntry) Pass(msg string) {
	if e.open() {
		e.Entry.Pass(msg)
	}
}

func (e *attemptEntry) Fail(msg string, cause error) {
	if e.open() {
		e.Entry.Fail(msg, cause)
	}
}

func (e *attemptEntry) Skip(msg string) {
	if e.open() {
		e.Entry.Skip(msg)
	}
}

func (e *attemptEntry) Warn(msg string) {
	if e.open() {
		e.Entry.Warn(msg)
	}
}

func (e *attemptEntry) AttachImage(path, caption string) {
	if e.open() {
		e.Entry.AttachImage(path, caption)
	}
}
