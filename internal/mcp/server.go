// Package mcp exposes the run ledger as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"flightcheck/internal/failures"
	"flightcheck/internal/logging"
	"flightcheck/internal/store"
)

// DefaultListLimit caps list_runs when the caller gives no limit.
var DefaultListLimit = 20

// Server wraps the SDK server around a ledger store.
type Server struct {
	MCPServer *sdkmcp.Server

	store  store.Store
	logger *slog.Logger
}

// NewServer registers the history tools over st.
func NewServer(st store.Store, version string) *Server {
	s := &Server{store: st, logger: logging.New("mcp")}
	s.MCPServer = sdkmcp.NewServer(&sdkmcp.Implementation{Name: "flightcheck", Version: version}, nil)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List recorded test runs, newest first, with pass/fail/skip counts.",
	}, s.handleListRuns)
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_run",
		Description: "Get one run with per-case results and its failure summary.",
	}, s.handleGetRun)
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_failures",
		Description: "Get the failure summary lines of a run (latest run when run_id is empty).",
	}, s.handleGetFailures)
	return s
}

type runView struct {
	ID         string `json:"id"`
	Suite      string `json:"suite"`
	Browser    string `json:"browser"`
	Tester     string `json:"tester,omitempty"`
	Workers    int    `json:"workers"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}

func viewRun(r *store.Run) runView {
	v := runView{
		ID: r.ID, Suite: r.Suite, Browser: r.Browser, Tester: r.Tester, Workers: r.Workers,
		StartedAt: r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Passed:    r.Passed, Failed: r.Failed, Skipped: r.Skipped,
	}
	if !r.FinishedAt.IsZero() {
		v.FinishedAt = r.FinishedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return v
}

type caseView struct {
	Name       string `json:"name"`
	Browser    string `json:"browser"`
	Status     string `json:"status"`
	Worker     int    `json:"worker"`
	Attempts   int    `json:"attempts"`
	Retries    int    `json:"retries"`
	Setup      bool   `json:"setup,omitempty"`
	Cause      string `json:"cause,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type listRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum runs to return (default 20)"`
}

type listRunsOutput struct {
	Runs []runView `json:"runs"`
}

type getRunInput struct {
	RunID string `json:"run_id" jsonschema:"run ID as printed by flightcheck run"`
}

type getRunOutput struct {
	Run      runView           `json:"run"`
	Cases    []caseView        `json:"cases"`
	Failures []failures.Record `json:"failures"`
}

type getFailuresInput struct {
	RunID string `json:"run_id,omitempty" jsonschema:"run ID; latest run when empty"`
}

type getFailuresOutput struct {
	RunID    string            `json:"run_id"`
	Failures []failures.Record `json:"failures"`
}

func (s *Server) handleListRuns(_ context.Context, _ *sdkmcp.CallToolRequest, in listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		return nil, listRunsOutput{}, fmt.Errorf("list_runs: %w", err)
	}
	out := listRunsOutput{Runs: make([]runView, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, viewRun(r))
	}
	return nil, out, nil
}

func (s *Server) handleGetRun(_ context.Context, _ *sdkmcp.CallToolRequest, in getRunInput) (*sdkmcp.CallToolResult, getRunOutput, error) {
	run, err := s.store.GetRun(in.RunID)
	if err != nil {
		return nil, getRunOutput{}, fmt.Errorf("get_run: %w", err)
	}
	if run == nil {
		return nil, getRunOutput{}, fmt.Errorf("get_run: no run %q", in.RunID)
	}
	results, err := s.store.ListCaseResults(run.ID)
	if err != nil {
		return nil, getRunOutput{}, fmt.Errorf("get_run: %w", err)
	}
	recs, err := s.store.ListFailures(run.ID)
	if err != nil {
		return nil, getRunOutput{}, fmt.Errorf("get_run: %w", err)
	}
	out := getRunOutput{Run: viewRun(run), Cases: make([]caseView, 0, len(results)), Failures: recs}
	if out.Failures == nil {
		out.Failures = []failures.Record{}
	}
	for _, c := range results {
		out.Cases = append(out.Cases, caseView{
			Name: c.Name, Browser: c.Kind, Status: c.Status, Worker: c.Worker,
			Attempts: c.Attempts, Retries: c.Retries, Setup: c.Setup,
			Cause: c.Cause, Screenshot: c.Screenshot, DurationMS: c.Duration.Milliseconds(),
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetFailures(_ context.Context, _ *sdkmcp.CallToolRequest, in getFailuresInput) (*sdkmcp.CallToolResult, getFailuresOutput, error) {
	id := in.RunID
	if id == "" {
		runs, err := s.store.ListRuns(1)
		if err != nil {
			return nil, getFailuresOutput{}, fmt.Errorf("get_failures: %w", err)
		}
		if len(runs) == 0 {
			return nil, getFailuresOutput{}, fmt.Errorf("get_failures: no runs recorded")
		}
		id = runs[0].ID
	}
	recs, err := s.store.ListFailures(id)
	if err != nil {
		return nil, getFailuresOutput{}, fmt.Errorf("get_failures: %w", err)
	}
	if recs == nil {
		recs = []failures.Record{}
	}
	return nil, getFailuresOutput{RunID: id, Failures: recs}, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving run history over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
