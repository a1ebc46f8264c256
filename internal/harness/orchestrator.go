// Package harness runs test cases concurrently on a fixed pool of workers.
// Each worker owns its own browser session and report entry for the length
// of one attempt; failed attempts are retried in place on a fresh session.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"flightcheck/internal/config"
	"flightcheck/internal/failures"
	"flightcheck/internal/logging"
	"flightcheck/internal/report"
	"flightcheck/internal/retry"
	"flightcheck/internal/screenshot"
	"flightcheck/internal/session"
	"flightcheck/internal/worker"
)

// Sessions is the session registry as seen by the orchestrator.
type Sessions interface {
	Acquire(ctx context.Context, id worker.ID, kind session.Kind, headless bool) (*session.Handle, error)
	Release(id worker.ID) error
}

// Reports is the report context registry as seen by the orchestrator.
type Reports interface {
	Bind(id worker.ID, label string) report.Entry
	Unbind(id worker.ID)
}

// Orchestrator drives every case through acquire, run, retry and teardown.
type Orchestrator struct {
	settings  config.Settings
	sessions  Sessions
	reports   Reports
	failures  failures.Recorder
	capturer  screenshot.Capturer
	observers []Observer
	runID     string
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCapturer enables failure screenshots.
func WithCapturer(c screenshot.Capturer) Option {
	return func(o *Orchestrator) { o.capturer = c }
}

// WithObserver adds a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// WithRunID tags the result and log lines.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

// New returns an orchestrator. Parallelism, retry bound, browser kind,
// visibility and the case deadline come from settings.
func New(settings config.Settings, sessions Sessions, reports Reports, rec failures.Recorder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		settings: settings,
		sessions: sessions,
		reports:  reports,
		failures: rec,
		logger:   logging.New("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runID != "" {
		o.logger = o.logger.With("run", o.runID)
	}
	return o
}

// Validate rejects unnamed, duplicate or bodiless cases, unknown
// dependencies and dependency cycles.
func Validate(cases []Case) error {
	index := make(map[string]int, len(cases))
	for i, c := range cases {
		if c.Name == "" {
			return fmt.Errorf("case %d: empty name", i)
		}
		if c.Body == nil {
			return fmt.Errorf("case %q: nil body", c.Name)
		}
		if _, dup := index[c.Name]; dup {
			return fmt.Errorf("case %q: duplicate name", c.Name)
		}
		index[c.Name] = i
	}
	for _, c := range cases {
		for _, d := range c.DependsOn {
			if _, ok := index[d]; !ok {
				return fmt.Errorf("case %q: unknown dependency %q", c.Name, d)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(cases))
	var visit func(i int, path []string) error
	visit = func(i int, path []string) error {
		switch state[i] {
		case visiting:
			return fmt.Errorf("dependency cycle: %s", strings.Join(append(path, cases[i].Name), " -> "))
		case visited:
			return nil
		}
		state[i] = visiting
		for _, d := range cases[i].DependsOn {
			if err := visit(index[d], append(path, cases[i].Name)); err != nil {
				return err
			}
		}
		state[i] = visited
		return nil
	}
	for i := range cases {
		if err := visit(i, nil); err != nil {
			return err
		}
	}
	return nil
}

// Run executes cases on Settings.Parallel workers and blocks until all have
// finished. Cancelling ctx stops new cases from starting; they are reported
// skipped and ctx's error is returned with the partial result.
func (o *Orchestrator) Run(ctx context.Context, cases []Case) (*Result, error) {
	if err := Validate(cases); err != nil {
		return nil, err
	}
	res := &Result{RunID: o.runID, Started: time.Now(), Outcomes: make([]Outcome, len(cases))}

	index := make(map[string]int, len(cases))
	for i, c := range cases {
		index[c.Name] = i
	}
	kinds := make(map[session.Kind]bool)
	for _, c := range cases {
		kinds[o.kindFor(c)] = true
	}
	multi := len(kinds) > 1

	pool := worker.NewPool(o.settings.Parallel)
	done := make([]chan struct{}, len(cases))
	for i := range done {
		done[i] = make(chan struct{})
	}

	o.logger.Info("run started", "cases", len(cases), "workers", pool.Size(), "max_retries", o.settings.MaxRetryCount)
	var g errgroup.Group
	for i := range cases {
		deps := make([]int, len(cases[i].DependsOn))
		for k, d := range cases[i].DependsOn {
			deps[k] = index[d]
		}
		g.Go(func() error {
			defer close(done[i])
			out := o.schedule(ctx, pool, cases[i], multi, func() string {
				return o.awaitDeps(ctx, cases, deps, res.Outcomes, done)
			})
			res.Outcomes[i] = out
			for _, obs := range o.observers {
				obs.CaseFinished(out)
			}
			return nil
		})
	}
	_ = g.Wait()
	res.Finished = time.Now()
	o.logger.Info("run finished",
		"passed", res.Count(StatusPassed),
		"failed", res.Count(StatusFailed),
		"skipped", res.Count(StatusSkipped),
		"elapsed", res.Finished.Sub(res.Started).Round(time.Millisecond))
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run aborted: %w", err)
	}
	return res, nil
}

// awaitDeps blocks until every dependency has finished and returns a skip
// reason when one did not pass. No worker slot is held while waiting.
func (o *Orchestrator) awaitDeps(ctx context.Context, cases []Case, deps []int, outcomes []Outcome, done []chan struct{}) string {
	for _, j := range deps {
		select {
		case <-done[j]:
		case <-ctx.Done():
			return "run cancelled"
		}
		if st := outcomes[j].Status; st != StatusPassed {
			return fmt.Sprintf("dependency %q %s", cases[j].Name, st)
		}
	}
	return ""
}

func (o *Orchestrator) kindFor(c Case) session.Kind {
	if c.Kind != "" {
		return c.Kind
	}
	if o.settings.Browser == "" {
		return session.KindChrome
	}
	return session.Kind(strings.ToLower(o.settings.Browser))
}

func (o *Orchestrator) schedule(ctx context.Context, pool *worker.Pool, c Case, multi bool, wait func() string) (out Outcome) {
	kind := o.kindFor(c)
	out = Outcome{Name: c.Name, Kind: kind, Started: time.Now()}
	defer func() { out.Duration = time.Since(out.Started) }()

	reason := wait()
	if ctx.Err() != nil {
		out.Status = StatusSkipped
		out.Cause = "run cancelled before start"
		o.logger.Warn("case not started", "case", c.Name, "reason", out.Cause)
		return out
	}
	id, err := pool.Acquire(ctx)
	if err != nil {
		out.Status = StatusSkipped
		out.Cause = "run cancelled before start"
		return out
	}
	defer pool.Release(id)
	out.Worker = id
	label := report.Label(c.Name, string(kind), multi)

	if reason != "" {
		o.logger.Info("case skipped", "worker", id.String(), "case", c.Name, "reason", reason)
		entry := o.reports.Bind(id, label)
		entry.Skip("Test skipped: " + reason)
		o.reports.Unbind(id)
		out.Status = StatusSkipped
		out.Cause = reason
		return out
	}

	policy := retry.New(o.settings.MaxRetryCount)
	for attempt := 1; ; attempt++ {
		start := time.Now()
		a := o.attempt(ctx, id, c, kind, label, attempt, policy)
		for _, obs := range o.observers {
			obs.AttemptFinished(c.Name, kind, a.status, time.Since(start))
		}
		if a.status == StatusRetried {
			continue
		}
		out.Status = a.status
		out.Attempts = attempt
		out.Retries = policy.Retries()
		out.Setup = a.setup
		out.Screenshot = a.screenshot
		if a.err != nil {
			if a.status == StatusSkipped {
				out.Cause = skipReason(a.err)
			} else {
				out.Cause = failures.FirstLine(a.err.Error())
			}
		}
		return out
	}
}

type attemptResult struct {
	status     Status
	err        error
	setup      bool
	screenshot string
}

// attempt runs one pass of the state machine. Release and Unbind run on
// every exit path.
func (o *Orchestrator) attempt(ctx context.Context, id worker.ID, c Case, kind session.Kind, label string, n int, policy *retry.Policy) attemptResult {
	log := logging.ForCase(o.logger, id, c.Name, n)
	defer o.teardown(id, log)

	h, err := o.sessions.Acquire(ctx, id, kind, o.settings.Headless)
	entry := o.reports.Bind(id, label)
	if n == 1 {
		entry.Info("Test Started")
	} else {
		entry.Info(fmt.Sprintf("Retry attempt %d of %d", n-1, policy.Max()))
	}
	if err != nil {
		serr := &SetupError{Err: err}
		log.Error("session setup failed", "kind", kind, "error", err)
		entry.Fail("Session setup failed", serr)
		o.failures.Record(c.Name, serr.Error())
		return attemptResult{status: StatusFailed, err: serr, setup: true}
	}

	err = o.runBody(ctx, id, h, entry, c, n, log)
	switch {
	case err == nil:
		log.Info("test passed")
		entry.Pass("Test passed")
		return attemptResult{status: StatusPassed}
	case errors.Is(err, ErrSkipped):
		reason := skipReason(err)
		log.Info("test skipped", "reason", reason)
		if policy.Retries() > 0 {
			entry.Skip("Test retried then skipped: " + reason)
		} else {
			entry.Skip("Test skipped: " + reason)
		}
		return attemptResult{status: StatusSkipped, err: err}
	}

	msg := failures.FirstLine(err.Error())
	if ctx.Err() == nil && policy.ShouldRetry(retry.Outcome{Failed: true, Err: err}) {
		log.Warn("test failed, retrying", "retry", policy.Retries(), "max", policy.Max(), "error", msg)
		entry.Warn(fmt.Sprintf("Test retried (%d/%d): %s", policy.Retries(), policy.Max(), msg))
		return attemptResult{status: StatusRetried, err: err}
	}

	log.Error("test failed", "error", msg)
	o.failures.Record(c.Name, err.Error())
	res := attemptResult{status: StatusFailed, err: err}
	entry.Fail("Test failed", err)
	if !errors.Is(err, ErrCaseDeadline) {
		res.screenshot = o.screenshot(ctx, h, entry, label, log)
	}
	return res
}

func (o *Orchestrator) teardown(id worker.ID, log *slog.Logger) {
	if err := o.sessions.Release(id); err != nil {
		log.Warn("session release failed", "error", err)
	}
	o.reports.Unbind(id)
}

// screenshot is best effort: a capture error is logged and never replaces
// the test failure.
func (o *Orchestrator) screenshot(ctx context.Context, h *session.Handle, entry report.Entry, label string, log *slog.Logger) string {
	if o.capturer == nil {
		return ""
	}
	path, err := o.capturer.Capture(ctx, h, label)
	if err != nil {
		log.Warn("failure screenshot not captured", "error", err)
		return ""
	}
	entry.AttachImage(path, "Failure Screenshot")
	log.Info("failure screenshot saved", "path", path)
	return path
}

// runBody runs the body in its own goroutine so a hung body can be
// abandoned at the case deadline. The session is released first, which
// makes any browser call still in flight fail.
func (o *Orchestrator) runBody(ctx context.Context, id worker.ID, h *session.Handle, entry report.Entry, c Case, n int, log *slog.Logger) error {
	caseCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.settings.CaseTimeout > 0 {
		caseCtx, cancel = context.WithTimeout(ctx, o.settings.CaseTimeout)
	}
	defer cancel()

	tabCtx, cancelTab := context.WithCancel(h.Context())
	defer cancelTab()
	stop := context.AfterFunc(caseCtx, cancelTab)
	defer stop()

	t := &T{
		Name:     c.Name,
		Attempt:  n,
		Worker:   id,
		Session:  h,
		Entry:    &attemptEntry{Entry: entry, ctx: tabCtx},
		Logger:   log,
		Settings: o.settings,
		ctx:      tabCtx,
	}
	errc := make(chan error, 1)
	go func() { errc <- invoke(c.Body, t) }()

	select {
	case err := <-errc:
		if err != nil && errors.Is(caseCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s: %v", ErrCaseDeadline, o.settings.CaseTimeout, err)
		}
		return err
	case <-caseCtx.Done():
	}
	select {
	case err := <-errc:
		if err == nil {
			return nil
		}
	default:
	}
	if err := o.sessions.Release(id); err != nil {
		log.Warn("forced session release failed", "error", err)
	}
	if ctx.Err() != nil {
		log.Warn("run aborted while case running")
		return fmt.Errorf("run aborted: %w", ctx.Err())
	}
	log.Error("case deadline exceeded, session torn down", "timeout", o.settings.CaseTimeout)
	return fmt.Errorf("%w after %s", ErrCaseDeadline, o.settings.CaseTimeout)
}

func invoke(body func(*T) error, t *T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if fn, ok := r.(failNow); ok {
				err = fn.err
				return
			}
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return body(t)
}
