package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"flightcheck/internal/failures"
)

// ErrNotFound is returned when updating a run that does not exist.
var ErrNotFound = errors.New("not found")

// MemStore implements Store in memory. Used when no database is configured
// and in tests.
type MemStore struct {
	mu       sync.Mutex
	runs     map[string]*Run
	results  map[string][]*CaseResult
	failures map[string][]failures.Record
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		runs:     make(map[string]*Run),
		results:  make(map[string][]*CaseResult),
		failures: make(map[string][]failures.Record),
	}
}

func (s *MemStore) CreateRun(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("insert run %s: duplicate id", r.ID)
	}
	cp := *r
	s.runs[r.ID] = &cp
	return nil
}

func (s *MemStore) FinishRun(id string, finished time.Time, passed, failed, skipped int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	r.FinishedAt, r.Passed, r.Failed, r.Skipped = finished, passed, failed, skipped
	return nil
}

func (s *MemStore) GetRun(id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) ListRuns(limit int) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) SaveCaseResult(c *CaseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.results[c.RunID] {
		if existing.Name == c.Name {
			return fmt.Errorf("insert case result %s/%s: duplicate", c.RunID, c.Name)
		}
	}
	cp := *c
	s.results[c.RunID] = append(s.results[c.RunID], &cp)
	return nil
}

func (s *MemStore) ListCaseResults(runID string) ([]*CaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*CaseResult, 0, len(s.results[runID]))
	for _, c := range s.results[runID] {
		cp := *c
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *MemStore) SaveFailures(runID string, recs []failures.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[runID] = append(s.failures[runID], recs...)
	return nil
}

func (s *MemStore) ListFailures(runID string) ([]failures.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]failures.Record(nil), s.failures[runID]...), nil
}

func (s *MemStore) Close() error { return nil }
