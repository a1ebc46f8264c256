package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"flightcheck/internal/failures"
	mcpserver "flightcheck/internal/mcp"
	"flightcheck/internal/store"
)

func seededStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemStore()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-old", "run-new"} {
		if err := st.CreateRun(&store.Run{ID: id, Suite: "smoke", Browser: "chrome", Workers: 2, StartedAt: t0.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}
	_ = st.FinishRun("run-new", t0.Add(61*time.Minute), 1, 1, 0)
	_ = st.SaveCaseResult(&store.CaseResult{RunID: "run-new", Name: "booking-json-01", Kind: "chrome", Status: "passed", Worker: 1, Attempts: 1, StartedAt: t0})
	_ = st.SaveCaseResult(&store.CaseResult{RunID: "run-new", Name: "booking-json-02", Kind: "chrome", Status: "failed", Worker: 2, Attempts: 2, Retries: 1, Cause: "Did not navigate to reserve page!", StartedAt: t0})
	_ = st.SaveFailures("run-new", []failures.Record{{TestName: "booking-json-02", Message: "Did not navigate to reserve page!"}})
	return st
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) (map[string]any, bool) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		return nil, false
	}
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			result := make(map[string]any)
			if err := json.Unmarshal([]byte(tc.Text), &result); err != nil {
				t.Fatalf("unmarshal tool result: %v (text: %s)", err, tc.Text)
			}
			return result, true
		}
	}
	t.Fatalf("no text content in tool result")
	return nil, false
}

func TestListRuns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, mcpserver.NewServer(seededStore(t), "test"))

	out, ok := callTool(t, ctx, session, "list_runs", map[string]any{"limit": 5})
	if !ok {
		t.Fatal("list_runs returned error")
	}
	runs, _ := out["runs"].([]any)
	if len(runs) != 2 {
		t.Fatalf("runs = %v", out["runs"])
	}
	first := runs[0].(map[string]any)
	if first["id"] != "run-new" || first["failed"] != float64(1) {
		t.Errorf("first run = %v", first)
	}
}

func TestGetRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, mcpserver.NewServer(seededStore(t), "test"))

	out, ok := callTool(t, ctx, session, "get_run", map[string]any{"run_id": "run-new"})
	if !ok {
		t.Fatal("get_run returned error")
	}
	cases, _ := out["cases"].([]any)
	fails, _ := out["failures"].([]any)
	if len(cases) != 2 || len(fails) != 1 {
		t.Fatalf("get_run = %v", out)
	}
	if msg := fails[0].(map[string]any)["message"]; msg != "Did not navigate to reserve page!" {
		t.Errorf("failure message = %v", msg)
	}

	if _, ok := callTool(t, ctx, session, "get_run", map[string]any{"run_id": "missing"}); ok {
		t.Error("get_run on unknown id should be a tool error")
	}
}

func TestGetFailures_DefaultsToLatest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, mcpserver.NewServer(seededStore(t), "test"))

	out, ok := callTool(t, ctx, session, "get_failures", map[string]any{})
	if !ok {
		t.Fatal("get_failures returned error")
	}
	if out["run_id"] != "run-new" {
		t.Errorf("run_id = %v", out["run_id"])
	}
}

func TestWatchParent_StopsOnCancel(t *testing.T) {
	mcpserver.ParentPollInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	mcpserver.WatchParent(ctx, cancel)
	time.Sleep(20 * time.Millisecond)
	if ctx.Err() != nil {
		t.Fatal("watchdog cancelled while parent is alive")
	}
	cancel()
}
