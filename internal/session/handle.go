package session

import (
	"context"
	"sync"
	"time"

	"flightcheck/internal/worker"
)

// Handle is one live browser session owned by a single worker.
type Handle struct {
	Worker   worker.ID
	Kind     Kind
	Headless bool
	Remote   bool
	Started  time.Time

	ctx     context.Context
	closeFn func() error

	once     sync.Once
	closeErr error
}

// NewHandle wraps a browser context. closeFn terminates the browser; it is
// called at most once.
func NewHandle(ctx context.Context, spec Spec, remote bool, closeFn func() error) *Handle {
	return &Handle{
		Worker:   spec.Worker,
		Kind:     spec.Kind,
		Headless: spec.Headless,
		Remote:   remote,
		Started:  time.Now(),
		ctx:      ctx,
		closeFn:  closeFn,
	}
}

// Context is the browser tab context used for chromedp actions.
func (h *Handle) Context() context.Context { return h.ctx }

// Close terminates the browser. Repeated calls return the first result.
func (h *Handle) Close() error {
	h.once.Do(func() {
		if h.closeFn != nil {
			h.closeErr = h.closeFn()
		}
	})
	return h.closeErr
}
