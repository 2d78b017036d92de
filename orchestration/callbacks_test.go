package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/richinex/datagent/agent"
	"github.com/richinex/datagent/telemetry"
	"github.com/richinex/datagent/tools"
)

func TestRootBeforeAgent(t *testing.T) {
	state := agent.NewState(nil)
	cb := &agent.CallbackContext{AgentName: "root", UserContent: "List tables", State: state}
	if err := RootBeforeAgent(context.Background(), cb); err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	if state.GetString(StateOriginalQuery) != "List tables" || state.GetString(StateCurrentQuery) != "List tables" {
		t.Errorf("expected query stored, got %v", state.Snapshot())
	}

	empty := agent.NewState(nil)
	_ = RootBeforeAgent(context.Background(), &agent.CallbackContext{State: empty})
	if empty.GetString(StateOriginalQuery) != unknownQuery {
		t.Errorf("expected %q, got %q", unknownQuery, empty.GetString(StateOriginalQuery))
	}
}

func TestRetrievalBeforeAgent(t *testing.T) {
	state := agent.NewState(map[string]any{StateOriginalQuery: "original"})
	_ = RetrievalBeforeAgent(context.Background(), &agent.CallbackContext{UserContent: "task", State: state})
	if got := state.GetString(StateRetrievalQuery); got != "original" {
		t.Errorf("expected original query, got %q", got)
	}

	fallback := agent.NewState(nil)
	_ = RetrievalBeforeAgent(context.Background(), &agent.CallbackContext{UserContent: "task", State: fallback})
	if got := fallback.GetString(StateRetrievalQuery); got != "task" {
		t.Errorf("expected task text fallback, got %q", got)
	}
}

func TestRetrievalAfterToolStoresNormalizedResult(t *testing.T) {
	state := agent.NewState(map[string]any{StateOriginalQuery: "Plot sales by region"})
	tc := &agent.ToolContext{
		ToolName: "run_query",
		Response: map[string]any{
			"columns": []any{"region", "total"},
			"rows":    []any{[]any{"north", 1}},
		},
		State: state,
	}

	if err := RetrievalAfterTool(telemetry.NewMetrics())(context.Background(), tc); err != nil {
		t.Fatalf("callback failed: %v", err)
	}

	raw := state.GetString(StateRetrievedRaw)
	if !strings.HasPrefix(raw, "Retrieved 1 rows with 2 columns") {
		t.Errorf("unexpected raw text %q", raw)
	}

	data, ok := state.Get(StateRetrievedData)
	if !ok {
		t.Fatal("expected retrieved_data in state")
	}
	view := data.(map[string]any)
	if view["needs_chart"] != true {
		t.Errorf("expected needs_chart true, got %v", view["needs_chart"])
	}
	structured, ok := view["structured"].(tools.Structured)
	if !ok || structured.Kind != tools.StructuredTable || structured.Table.RowCount != 1 {
		t.Errorf("unexpected structured view %#v", view["structured"])
	}
	if v, _ := state.Get(StateNeedsChart); v != true {
		t.Errorf("expected needs_chart key, got %v", v)
	}
}

func TestRetrievalAfterToolSkipsFailures(t *testing.T) {
	state := agent.NewState(nil)
	tc := &agent.ToolContext{ToolName: "run_query", Err: errors.New("denied"), State: state}

	if err := RetrievalAfterTool(nil)(context.Background(), tc); err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	if _, ok := state.Get(StateRetrievedRaw); ok {
		t.Error("expected nothing stored for a failed tool call")
	}
}
