// Package logging configures the process slog default and hands out
// component, worker and case scoped loggers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by Init.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Attribute keys shared by every harness log line.
const (
	KeyComponent = "component"
	KeyWorker    = "worker"
	KeyCase      = "case"
	KeyAttempt   = "attempt"
)

// Init configures the global slog default with the given level and format.
// Output goes to os.Stderr unless w is given. Unknown formats fall back to text.
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// New returns a logger tagged with component.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String(KeyComponent, component))
}

// ForWorker tags base with the owning worker slot.
func ForWorker(base *slog.Logger, worker fmt.Stringer) *slog.Logger {
	return base.With(slog.String(KeyWorker, worker.String()))
}

// ForCase tags base with the worker, case name and attempt number so
// interleaved output from parallel workers can be told apart.
func ForCase(base *slog.Logger, worker fmt.Stringer, name string, attempt int) *slog.Logger {
	return base.With(
		slog.String(KeyWorker, worker.String()),
		slog.String(KeyCase, name),
		slog.Int(KeyAttempt, attempt),
	)
}

// ParseLevel maps a CLI level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
