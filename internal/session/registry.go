// Package session owns browser sessions: one live handle per worker,
// created lazily and torn down explicitly.
package session

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"flightcheck/internal/logging"
	"flightcheck/internal/worker"
)

// Spec describes the session a worker asks for.
type Spec struct {
	Worker   worker.ID
	Kind     Kind
	Headless bool
}

// Launcher starts a browser for spec. Implementations must not leave a
// process running when they return an error.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (*Handle, error)
}

// Observer receives session lifecycle events. Used for metrics.
type Observer interface {
	SessionStarted(kind Kind, startup time.Duration)
	SessionFailed(kind Kind, err error)
	SessionStopped(kind Kind, lifetime time.Duration)
}

// Registry maps worker IDs to live handles.
type Registry struct {
	launcher Launcher
	observer Observer
	handles  *worker.Map[*Handle]
	group    singleflight.Group
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver attaches lifecycle callbacks.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// NewRegistry returns an empty registry that starts browsers with l.
func NewRegistry(l Launcher, opts ...Option) *Registry {
	r := &Registry{
		launcher: l,
		handles:  worker.NewMap[*Handle](),
		logger:   logging.New("session-registry"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Acquire returns the worker's handle, launching one if none exists. Calls
// for the same worker without an intervening Release return the same handle;
// concurrent calls share one launch.
func (r *Registry) Acquire(ctx context.Context, id worker.ID, kind Kind, headless bool) (*Handle, error) {
	if !kind.Valid() {
		return nil, &UnsupportedKindError{Kind: string(kind)}
	}
	if h, ok := r.handles.Load(id); ok {
		return h, nil
	}

	v, err, _ := r.group.Do(id.String(), func() (any, error) {
		if h, ok := r.handles.Load(id); ok {
			return h, nil
		}
		r.logger.Info("starting session", "worker", id, "kind", kind, "headless", headless)
		start := time.Now()
		// The browser outlives the acquiring call; Release cancels it.
		h, err := r.launcher.Launch(context.WithoutCancel(ctx), Spec{Worker: id, Kind: kind, Headless: headless})
		if err != nil {
			r.logger.Error("session start failed", "worker", id, "kind", kind, "error", err)
			if r.observer != nil {
				r.observer.SessionFailed(kind, err)
			}
			return nil, err
		}
		r.handles.Store(id, h)
		if r.observer != nil {
			r.observer.SessionStarted(kind, time.Since(start))
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Release terminates the worker's session and forgets it. It is a no-op when
// the worker holds none.
func (r *Registry) Release(id worker.ID) error {
	h, ok := r.handles.LoadAndDelete(id)
	if !ok {
		return nil
	}
	r.logger.Info("stopping session", "worker", id, "kind", h.Kind)
	err := h.Close()
	if err != nil {
		r.logger.Warn("session close reported error", "worker", id, "error", err)
	}
	if r.observer != nil {
		r.observer.SessionStopped(h.Kind, time.Since(h.Started))
	}
	return err
}

// Current returns the worker's handle without launching.
func (r *Registry) Current(id worker.ID) (*Handle, bool) {
	return r.handles.Load(id)
}

// Len is the number of live sessions.
func (r *Registry) Len() int { return r.handles.Len() }

// Close releases every live session.
func (r *Registry) Close() {
	for _, id := range r.handles.Keys() {
		_ = r.Release(id)
	}
}
