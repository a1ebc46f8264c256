// Package worker provides worker identities, a fixed-size pool that hands
// them out, and a keyed map for per-worker state.
package worker

import (
	"context"
	"fmt"
	"sync"
)

// ID identifies one worker slot. An ID is held by at most one test case at a
// time and is returned to the pool only after that case's teardown.
type ID int

func (id ID) String() string { return fmt.Sprintf("worker-%d", int(id)) }

// Pool hands out a fixed set of IDs.
type Pool struct {
	ids  chan ID
	size int
}

// NewPool creates a pool of size IDs numbered 1..size. size < 1 is treated as 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{ids: make(chan ID, size), size: size}
	for i := 1; i <= size; i++ {
		p.ids <- ID(i)
	}
	return p
}

// Size returns the number of IDs the pool owns.
func (p *Pool) Size() int { return p.size }

// Acquire blocks until an ID is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (ID, error) {
	select {
	case id := <-p.ids:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Release returns id to the pool.
func (p *Pool) Release(id ID) {
	p.ids <- id
}

// Map is a per-worker keyed map. The lock guards insert, remove and lookup
// only; each value belongs to one worker and is not synchronized.
type Map[V any] struct {
	mu sync.RWMutex
	m  map[ID]V
}

// NewMap returns an empty Map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{m: make(map[ID]V)}
}

// Load returns the value stored for id.
func (m *Map[V]) Load(id ID) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[id]
	return v, ok
}

// Store sets the value for id, replacing any previous one.
func (m *Map[V]) Store(id ID, v V) {
	m.mu.Lock()
	m.m[id] = v
	m.mu.Unlock()
}

// LoadAndDelete removes id and returns the value it held.
func (m *Map[V]) LoadAndDelete(id ID) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[id]
	if ok {
		delete(m.m, id)
	}
	return v, ok
}

// Len is the number of workers with a stored value.
func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// Keys returns a snapshot of the IDs currently present.
func (m *Map[V]) Keys() []ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]ID, 0, len(m.m))
	for id := range m.m {
		ids = append(ids, id)
	}
	return ids
}
