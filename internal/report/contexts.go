package report

import (
	"flightcheck/internal/worker"
)

// Contexts binds one report entry to each worker for the duration of a test
// attempt. A worker only ever sees its own entry.
type Contexts struct {
	sink    Sink
	entries *worker.Map[Entry]
}

// NewContexts returns a registry creating entries on sink.
func NewContexts(sink Sink) *Contexts {
	return &Contexts{sink: sink, entries: worker.NewMap[Entry]()}
}

// Bind creates a new entry labelled label and associates it with id,
// replacing any stale association.
func (c *Contexts) Bind(id worker.ID, label string) Entry {
	e := c.sink.CreateEntry(label)
	c.entries.Store(id, e)
	return e
}

// Current looks up the worker's entry without creating one.
func (c *Contexts) Current(id worker.ID) (Entry, bool) {
	return c.entries.Load(id)
}

// Unbind removes the worker's association. Safe to call repeatedly.
func (c *Contexts) Unbind(id worker.ID) {
	c.entries.LoadAndDelete(id)
}

// Len is the number of bound workers.
func (c *Contexts) Len() int { return c.entries.Len() }
