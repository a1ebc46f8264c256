// Package metrics exports session and case counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flightcheck/internal/harness"
	"flightcheck/internal/logging"
	"flightcheck/internal/session"
)

const Namespace = "flightcheck"

// Metrics implements session.Observer and harness.Observer.
type Metrics struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	sessionsStarted *prometheus.CounterVec
	sessionFailures *prometheus.CounterVec
	sessionsActive  *prometheus.GaugeVec
	sessionStartup  *prometheus.HistogramVec
	sessionLifetime *prometheus.HistogramVec
	attempts        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	caseDuration    *prometheus.HistogramVec
}

var (
	_ session.Observer = (*Metrics)(nil)
	_ harness.Observer = (*Metrics)(nil)
)

// New registers collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		logger:   logging.New("metrics"),
		sessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_started_total",
			Help:      "Browser sessions started",
		}, []string{"kind"}),
		sessionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_failures_total",
			Help:      "Browser sessions that failed to start",
		}, []string{"kind", "reason"}),
		sessionsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_active",
			Help:      "Live browser sessions",
		}, []string{"kind"}),
		sessionStartup: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "session_startup_seconds",
			Help:      "Time to launch a browser session",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
		}, []string{"kind"}),
		sessionLifetime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "session_lifetime_seconds",
			Help:      "Time from launch to release",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"kind"}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "attempts_total",
			Help:      "Case attempts by result",
		}, []string{"kind", "status"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retries_total",
			Help:      "Attempts that were retried",
		}, []string{"kind"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cases_total",
			Help:      "Finished cases by terminal status",
		}, []string{"status"}),
		caseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "case_duration_seconds",
			Help:      "Wall time per case including retries",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"status"}),
	}
}

// Registry is the registry collectors were registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) SessionStarted(kind session.Kind, startup time.Duration) {
	m.sessionsStarted.WithLabelValues(string(kind)).Inc()
	m.sessionsActive.WithLabelValues(string(kind)).Inc()
	m.sessionStartup.WithLabelValues(string(kind)).Observe(startup.Seconds())
}

func (m *Metrics) SessionFailed(kind session.Kind, err error) {
	m.sessionFailures.WithLabelValues(string(kind), FailureReason(err)).Inc()
}

func (m *Metrics) SessionStopped(kind session.Kind, lifetime time.Duration) {
	m.sessionsActive.WithLabelValues(string(kind)).Dec()
	m.sessionLifetime.WithLabelValues(string(kind)).Observe(lifetime.Seconds())
}

func (m *Metrics) AttemptFinished(_ string, kind session.Kind, status harness.Status, _ time.Duration) {
	m.attempts.WithLabelValues(string(kind), string(status)).Inc()
	if status == harness.StatusRetried {
		m.retries.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) CaseFinished(o harness.Outcome) {
	m.outcomes.WithLabelValues(string(o.Status)).Inc()
	m.caseDuration.WithLabelValues(string(o.Status)).Observe(o.Duration.Seconds())
}

// FailureReason maps a session error to a bounded label value.
func FailureReason(err error) string {
	var (
		uk *session.UnsupportedKindError
		ce *session.ConnectionError
		le *session.LaunchError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &uk):
		return "unsupported_kind"
	case errors.As(err, &ce):
		return "connection"
	case errors.As(err, &le):
		return "launch"
	default:
		return "other"
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	m.logger.Info("metrics listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
