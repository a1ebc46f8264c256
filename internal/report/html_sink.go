package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// SystemInfo is shown in the report header.
type SystemInfo struct {
	Suite   string
	Tester  string
	Browser string
	OS      string
	RunID   string
}

// HTMLSink collects entries from any worker and renders a single
// self-contained HTML file on Flush.
type HTMLSink struct {
	path    string
	info    SystemInfo
	tmpl    *template.Template
	started time.Time

	mu      sync.Mutex
	entries []*entry
}

// ReportFileName is the per-suite report file name.
func ReportFileName(suite string) string {
	return suite + "-report.html"
}

// NewHTMLSink returns a sink that writes to path.
func NewHTMLSink(path string, info SystemInfo) (*HTMLSink, error) {
	tmpl, err := template.New("report").Funcs(templateFuncs()).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &HTMLSink{path: path, info: info, tmpl: tmpl, started: time.Now()}, nil
}

// Path is the report file location.
func (s *HTMLSink) Path() string { return s.path }

// CreateEntry implements Sink. Safe for concurrent use.
func (s *HTMLSink) CreateEntry(label string) Entry {
	e := newEntry(label)
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return e
}

// Entries returns views of all entries in creation order.
func (s *HTMLSink) Entries() []EntryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryView, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.view()
	}
	return out
}

type reportData struct {
	Info     SystemInfo
	Started  time.Time
	Finished time.Time
	Counts   map[string]int
	Entries  []EntryView
}

// Flush renders every entry to the report file, replacing it atomically.
func (s *HTMLSink) Flush() error {
	entries := s.Entries()
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Started.Before(entries[j].Started) })
	data := reportData{
		Info:     s.info,
		Started:  s.started,
		Finished: time.Now(),
		Counts:   map[string]int{},
		Entries:  entries,
	}
	for _, e := range entries {
		data.Counts[string(e.Status)]++
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("move report into place: %w", err)
	}
	return nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"clock": func(t time.Time) string { return t.Format("15:04:05") },
		"stamp": func(t time.Time) string { return t.Format(time.RFC3339) },
		"since": func(a, b time.Time) string { return b.Sub(a).Truncate(time.Millisecond).String() },
	}
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Test Report: {{upper .Info.Suite}}</title>
<style>
body{font-family:sans-serif;margin:2em;color:#222}
table{border-collapse:collapse;width:100%}
td,th{border:1px solid #ccc;padding:4px 8px;text-align:left;vertical-align:top}
.pass{color:#1a7f37}.fail{color:#cf222e}.skip{color:#9a6700}.warning{color:#bc4c00}.info{color:#555}
pre{white-space:pre-wrap;margin:0}
img{max-width:480px;border:1px solid #ccc}
</style>
</head>
<body>
<h1>Test Execution Report</h1>
<table>
<tr><th>Suite</th><td>{{.Info.Suite}}</td><th>Run</th><td>{{.Info.RunID}}</td></tr>
<tr><th>Tester</th><td>{{.Info.Tester}}</td><th>Browser</th><td>{{.Info.Browser}}</td></tr>
<tr><th>OS</th><td>{{.Info.OS}}</td><th>Duration</th><td>{{since .Started .Finished}}</td></tr>
<tr><th>Started</th><td>{{stamp .Started}}</td><th>Results</th><td>
<span class="pass">{{index .Counts "pass"}} passed</span>,
<span class="fail">{{index .Counts "fail"}} failed</span>,
<span class="skip">{{index .Counts "skip"}} skipped</span>,
<span class="warning">{{index .Counts "warning"}} retried</span></td></tr>
</table>
{{range .Entries}}
<h2 class="{{.Status}}">{{.Label}} <small>[{{.Status}}]</small></h2>
<table>
{{range .Lines}}<tr><td>{{clock .Time}}</td><td class="{{.Status}}">{{.Status}}</td><td>{{.Message}}{{if .Detail}}<pre>{{.Detail}}</pre>{{end}}</td></tr>
{{end}}</table>
{{range .Images}}<figure><img src="{{.Path}}" alt="{{.Caption}}"><figcaption>{{.Caption}}</figcaption></figure>
{{end}}{{end}}
</body>
</html>
`
