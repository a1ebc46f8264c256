// Package failures collects failure summaries from concurrent workers.
package failures

import (
	"strings"
	"sync"
)

// Record is one failed test case. Message holds only the first line of the
// cause.
type Record struct {
	TestName string `json:"test_name"`
	Message  string `json:"message"`
}

// Recorder accepts failures. The orchestrator depends on this so tests can
// substitute a stub.
type Recorder interface {
	Record(testName, cause string)
}

// Aggregator is an append-only, mutex-protected list of Records.
type Aggregator struct {
	mu      sync.Mutex
	records []Record
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record appends a failure. Safe for concurrent use.
func (a *Aggregator) Record(testName, cause string) {
	r := Record{TestName: testName, Message: FirstLine(cause)}
	a.mu.Lock()
	a.records = append(a.records, r)
	a.mu.Unlock()
}

// Snapshot returns a copy of the records in insertion order. Callers that need
// a final view must join all workers first.
func (a *Aggregator) Snapshot() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// Len is the number of records appended so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// FirstLine returns msg up to its first line break, trimmed.
func FirstLine(msg string) string {
	if i := strings.IndexAny(msg, "\r\n"); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}
