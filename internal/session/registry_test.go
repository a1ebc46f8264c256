package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flightcheck/internal/worker"
)

// fakeLauncher counts launches and closes without starting a browser.
type fakeLauncher struct {
	mu       sync.Mutex
	launched int
	closed   int
	live     map[worker.ID]int
	delay    time.Duration
	err      error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{live: map[worker.ID]int{}}
}

func (f *fakeLauncher) Launch(ctx context.Context, spec Spec) (*Handle, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.launched++
	f.live[spec.Worker]++
	f.mu.Unlock()
	return NewHandle(ctx, spec, false, func() error {
		f.mu.Lock()
		f.closed++
		f.live[spec.Worker]--
		f.mu.Unlock()
		return nil
	}), nil
}

func TestAcquire_Idempotent(t *testing.T) {
	fl := newFakeLauncher()
	r := NewRegistry(fl)
	ctx := context.Background()

	h1, err := r.Acquire(ctx, 1, KindChrome, false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	h2, err := r.Acquire(ctx, 1, KindChrome, false)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if h1 != h2 {
		t.Fatal("second Acquire returned a different handle")
	}
	if fl.launched != 1 {
		t.Errorf("launched = %d, want 1", fl.launched)
	}
	if h1.Kind != KindChrome || h1.Headless || h1.Worker != 1 {
		t.Errorf("handle = %+v", h1)
	}
}

func TestAcquire_ConcurrentSameWorkerLaunchesOnce(t *testing.T) {
	fl := newFakeLauncher()
	fl.delay = 20 * time.Millisecond
	r := NewRegistry(fl)

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := r.Acquire(context.Background(), 7, KindEdge, true)
			if err != nil {
				t.Errorf("Acquire: %v", err)
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	for _, h := range handles[1:] {
		if h != handles[0] {
			t.Fatal("concurrent acquires returned different handles")
		}
	}
	if fl.live[7] != 1 {
		t.Errorf("live sessions for worker 7 = %d, want 1", fl.live[7])
	}
}

func TestAcquire_DistinctWorkers(t *testing.T) {
	fl := newFakeLauncher()
	r := NewRegistry(fl)
	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(id worker.ID) {
			defer wg.Done()
			if _, err := r.Acquire(context.Background(), id, KindChrome, true); err != nil {
				t.Errorf("Acquire(%s): %v", id, err)
			}
		}(worker.ID(i))
	}
	wg.Wait()
	if r.Len() != 10 {
		t.Errorf("Len() = %d, want 10", r.Len())
	}
	r.Close()
	if r.Len() != 0 || fl.closed != 10 {
		t.Errorf("after Close: Len=%d closed=%d", r.Len(), fl.closed)
	}
}

func TestAcquire_UnsupportedKind(t *testing.T) {
	fl := newFakeLauncher()
	r := NewRegistry(fl)
	_, err := r.Acquire(context.Background(), 1, Kind("opera"), false)
	var uk *UnsupportedKindError
	if !errors.As(err, &uk) {
		t.Fatalf("want UnsupportedKindError, got %v", err)
	}
	if uk.Kind != "opera" {
		t.Errorf("Kind = %q", uk.Kind)
	}
	if fl.launched != 0 {
		t.Error("launcher should not be called for unsupported kind")
	}
}

func TestAcquire_LaunchErrorNotStored(t *testing.T) {
	fl := newFakeLauncher()
	fl.err = &ConnectionError{Reason: "missing selenium.hubHost"}
	r := NewRegistry(fl)
	_, err := r.Acquire(context.Background(), 1, KindChrome, false)
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConnectionError, got %v", err)
	}
	if _, ok := r.Current(1); ok {
		t.Error("failed launch must not leave a handle")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	fl := newFakeLauncher()
	r := NewRegistry(fl)
	if err := r.Release(3); err != nil {
		t.Fatalf("Release without handle: %v", err)
	}
	if _, err := r.Acquire(context.Background(), 3, KindFirefox, true); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := r.Release(3); err != nil {
			t.Fatalf("Release #%d: %v", i, err)
		}
	}
	if fl.closed != 1 {
		t.Errorf("closed = %d, want 1", fl.closed)
	}

	h, err := r.Acquire(context.Background(), 3, KindFirefox, true)
	if err != nil {
		t.Fatal(err)
	}
	if fl.launched != 2 || h == nil {
		t.Errorf("reacquire after release: launched=%d", fl.launched)
	}
}

type countingObserver struct {
	started, failed, stopped atomic.Int32
}

func (o *countingObserver) SessionStarted(Kind, time.Duration) { o.started.Add(1) }
func (o *countingObserver) SessionFailed(Kind, error)          { o.failed.Add(1) }
func (o *countingObserver) SessionStopped(Kind, time.Duration) { o.stopped.Add(1) }

func TestRegistry_Observer(t *testing.T) {
	fl := newFakeLauncher()
	obs := &countingObserver{}
	r := NewRegistry(fl, WithObserver(obs))
	_, _ = r.Acquire(context.Background(), 1, KindChrome, true)
	_ = r.Release(1)
	fl.err = errors.New("boom")
	_, _ = r.Acquire(context.Background(), 1, KindChrome, true)

	if obs.started.Load() != 1 || obs.stopped.Load() != 1 || obs.failed.Load() != 1 {
		t.Errorf("observer counts started=%d stopped=%d failed=%d",
			obs.started.Load(), obs.stopped.Load(), obs.failed.Load())
	}
}

func TestHandle_CloseOnce(t *testing.T) {
	calls := 0
	h := NewHandle(context.Background(), Spec{Worker: 1, Kind: KindChrome}, false, func() error {
		calls++
		return errors.New("closed")
	})
	e1 := h.Close()
	e2 := h.Close()
	if calls != 1 || e1 == nil || e1 != e2 {
		t.Errorf("calls=%d e1=%v e2=%v", calls, e1, e2)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Chrome ")
	if err != nil || k != KindChrome {
		t.Errorf("ParseKind(Chrome) = %q, %v", k, err)
	}
	if _, err := ParseKind("opera"); err == nil {
		t.Error("expected error for opera")
	}
}
