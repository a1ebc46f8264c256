package session

import (
	"fmt"
	"strings"
)

// UnsupportedKindError is returned for a browser kind outside Kinds.
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return fmt.Sprintf("unsupported browser kind %q (supported: %s)", e.Kind, strings.Join(names, ", "))
}

// ConnectionError is returned when the remote grid is misconfigured or
// unreachable. No browser process is started when it is returned.
type ConnectionError struct {
	Endpoint string
	Reason   string
	Err      error
}

func (e *ConnectionError) Error() string {
	msg := "grid connection"
	if e.Endpoint != "" {
		msg += " to " + e.Endpoint
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// LaunchError is returned when a local browser fails to start.
type LaunchError struct {
	Kind Kind
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Kind, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
