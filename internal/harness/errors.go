package harness

import (
	"errors"
	"fmt"
)

// ErrSkipped marks a case the body or the scheduler decided not to run.
var ErrSkipped = errors.New("skipped")

// ErrCaseDeadline is the cause of an attempt that outlived the case timeout.
var ErrCaseDeadline = errors.New("case deadline exceeded")

// SetupError wraps a failure to obtain a session or required configuration.
// Setup failures are never retried.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return "setup: " + e.Err.Error() }

func (e *SetupError) Unwrap() error { return e.Err }

// AssertionError is raised by T.Require and T.Fatalf.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return e.Msg }

// PanicError is a recovered panic from a case body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", e.Value, e.Stack)
}

type skipError struct {
	reason string
}

func (e *skipError) Error() string { return "skipped: " + e.reason }

func (e *skipError) Is(target error) bool { return target == ErrSkipped }

// Skip returns an error that, returned from a body, skips the case.
func Skip(reason string) error { return &skipError{reason: reason} }

func skipReason(err error) string {
	var se *skipError
	if errors.As(err, &se) {
		return se.reason
	}
	return err.Error()
}

// failNow carries an error out of a body through panic, the way
// testing.T.FailNow unwinds a test.
type failNow struct {
	err error
}
