// Package report records per-test log entries and renders them to a single
// offline HTML file.
package report

import (
	"fmt"
	"sync"
	"time"
)

// Status of a log line or an entry.
type Status string

const (
	StatusInfo    Status = "info"
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusSkip    Status = "skip"
	StatusWarning Status = "warning"
)

// rank orders statuses for an entry's overall status.
var rank = map[Status]int{
	StatusInfo:    0,
	StatusPass:    1,
	StatusWarning: 2,
	StatusSkip:    3,
	StatusFail:    4,
}

// Entry is the log sink for one test attempt.
type Entry interface {
	Label() string
	Info(msg string)
	Pass(msg string)
	Fail(msg string, cause error)
	Skip(msg string)
	Warn(msg string)
	AttachImage(path, caption string)
}

// Sink creates entries and writes them out.
type Sink interface {
	CreateEntry(label string) Entry
	Flush() error
}

// Line is one logged event.
type Line struct {
	Time    time.Time
	Status  Status
	Message string
	Detail  string
}

// Image is an attached screenshot.
type Image struct {
	Path    string
	Caption string
}

// EntryView is a read-only copy of an entry.
type EntryView struct {
	Label   string
	Status  Status
	Started time.Time
	Lines   []Line
	Images  []Image
}

// entry is the Sink-agnostic Entry implementation.
type entry struct {
	label   string
	started time.Time

	mu     sync.Mutex
	lines  []Line
	images []Image
}

func newEntry(label string) *entry {
	return &entry{label: label, started: time.Now()}
}

func (e *entry) Label() string { return e.label }

func (e *entry) log(s Status, msg, detail string) {
	e.mu.Lock()
	e.lines = append(e.lines, Line{Time: time.Now(), Status: s, Message: msg, Detail: detail})
	e.mu.Unlock()
}

func (e *entry) Info(msg string) { e.log(StatusInfo, msg, "") }
func (e *entry) Pass(msg string) { e.log(StatusPass, msg, "") }
func (e *entry) Skip(msg string) { e.log(StatusSkip, msg, "") }
func (e *entry) Warn(msg string) { e.log(StatusWarning, msg, "") }

func (e *entry) Fail(msg string, cause error) {
	detail := ""
	if cause != nil {
		detail = fmt.Sprintf("%+v", cause)
	}
	e.log(StatusFail, msg, detail)
}

func (e *entry) AttachImage(path, caption string) {
	e.mu.Lock()
	e.images = append(e.images, Image{Path: path, Caption: caption})
	e.mu.Unlock()
}

func (e *entry) view() EntryView {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := EntryView{
		Label:   e.label,
		Status:  StatusInfo,
		Started: e.started,
		Lines:   append([]Line(nil), e.lines...),
		Images:  append([]Image(nil), e.images...),
	}
	for _, l := range e.lines {
		if rank[l.Status] > rank[v.Status] {
			v.Status = l.Status
		}
	}
	return v
}

// Label formats an entry label. When more than one browser kind runs in the
// same process the kind is appended so concurrent entries stay distinct.
func Label(testName, kind string, multiKind bool) string {
	if multiKind && kind != "" {
		return fmt.Sprintf("%s [%s]", testName, kind)
	}
	return testName
}
