package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/tools"
)

// scriptedProvider replies with canned responses in order and records what it was sent.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []string
	err      error
	received [][]llm.ChatMessage
	options  []llm.Options
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-model" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, messages)
	p.options = append(p.options, opts)
	if p.err != nil {
		return llm.Response{}, p.err
	}
	if len(p.replies) == 0 {
		return llm.Response{}, errors.New("script exhausted")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return llm.Response{Content: reply, Usage: &llm.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}}, nil
}

// queryTool returns a fixed table for any query.
type queryTool struct {
	tools.BaseTool
	output string
	fail   bool
}

func (q *queryTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "run_query",
		Description: "Runs a query",
		Parameters:  []tools.ToolParameter{{Name: "sql", ParamType: "string", Required: true}},
	}
}

func (q *queryTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	if q.fail {
		return tools.FailureResultf("permission denied"), nil
	}
	return tools.SuccessResult(q.output), nil
}

func TestReactLoopWithToolAndCallbacks(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"thought": "query it", "action": {"tool": "run_query", "input": {"sql": "select 1"}}, "is_final": false}`,
		`{"thought": "done", "is_final": true, "final_answer": "one row"}`,
	}}

	var seen *ToolContext
	cfg := NewBuilder("data_retrieval_agent").
		Instruction("Answer for {original_user_query}.").
		Tool(&queryTool{output: `{"columns": ["n"], "rows": [[1]]}`}).
		OutputKey("retrieved_data").
		Generation(llm.Options{Temperature: llm.Float32(0.1)}).
		BeforeAgent(func(ctx context.Context, cb *CallbackContext) error {
			cb.State.Set("retrieval_query", cb.UserContent)
			return nil
		}).
		AfterTool(func(ctx context.Context, tc *ToolContext) error {
			seen = tc
			tc.State.Set("tool_seen", tc.ToolName)
			return nil
		}).
		Build()

	state := NewState(map[string]any{"original_user_query": "count rows"})
	resp := New(cfg, provider).Run(context.Background(), state, "count rows", 5)

	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %v: %s", resp.Type, resp.ResultText())
	}
	if resp.Result != "one row" {
		t.Errorf("expected 'one row', got %q", resp.Result)
	}
	if got := state.GetString("retrieved_data"); got != "one row" {
		t.Errorf("expected output key to hold final answer, got %q", got)
	}
	if got := state.GetString("retrieval_query"); got != "count rows" {
		t.Errorf("expected before-agent callback to run, got %q", got)
	}
	if seen == nil || seen.ToolName != "run_query" || !seen.Success() {
		t.Fatalf("expected after-tool callback for run_query, got %+v", seen)
	}
	response, ok := seen.Response.(map[string]any)
	if !ok || response["columns"] == nil {
		t.Errorf("expected decoded JSON response, got %#v", seen.Response)
	}
	if len(resp.Metadata.ToolCalls) != 1 || !resp.Metadata.ToolCalls[0].Success {
		t.Errorf("expected one successful tool call, got %+v", resp.Metadata.ToolCalls)
	}
	if resp.Metadata.LLMCalls != 2 || resp.Metadata.TokenUsage.TotalTokens != 10 {
		t.Errorf("expected 2 calls and 10 tokens, got %d / %+v", resp.Metadata.LLMCalls, resp.Metadata.TokenUsage)
	}

	system := provider.received[0][0].Content
	if !strings.Contains(system, "Answer for count rows.") {
		t.Errorf("expected rendered instruction in system prompt, got %q", system)
	}
	if !strings.Contains(system, "run_query") {
		t.Errorf("expected tool description in system prompt")
	}
	if provider.options[0].Temperature == nil || *provider.options[0].Temperature != 0.1 {
		t.Errorf("expected generation options forwarded, got %+v", provider.options[0])
	}
}

func TestFailedToolStillReachesCallback(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"thought": "try", "action": {"tool": "run_query", "input": {"sql": "x"}}, "is_final": false}`,
		`{"thought": "give up", "is_final": true, "final_answer": "no data"}`,
	}}

	var callbackErr error
	cfg := NewBuilder("retrieval").
		Tool(&queryTool{fail: true}).
		AfterTool(func(ctx context.Context, tc *ToolContext) error {
			callbackErr = tc.Err
			return errors.New("callback errors are logged, not fatal")
		}).
		Build()

	resp := New(cfg, provider).Execute(context.Background(), "get data", 5)
	if !resp.IsSuccess() {
		t.Fatalf("expected success despite tool failure, got %s", resp.ResultText())
	}
	if callbackErr == nil {
		t.Error("expected tool error in callback context")
	}

	observation := provider.received[1][len(provider.received[1])-1].Content
	if !strings.Contains(observation, "Tool failed") {
		t.Errorf("expected failure observation, got %q", observation)
	}
}

func TestToollessAgentAnswersOnce(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"```json\n{\"analysis_summary\": \"ok\"}\n```"}}

	cfg := NewBuilder("analytics_agent").
		Instruction("Analyze.").
		OutputKey("analytics_output").
		Generation(llm.Options{Temperature: llm.Float32(0), MaxTokens: 4096}).
		ResponseSchema(json.RawMessage(`{"type": "object"}`)).
		Build()

	state := NewState(nil)
	resp := New(cfg, provider).Run(context.Background(), state, "Data: x", 5)

	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %s", resp.ResultText())
	}
	if resp.Result != `{"analysis_summary": "ok"}` {
		t.Errorf("expected extracted JSON, got %q", resp.Result)
	}
	if state.GetString("analytics_output") != resp.Result {
		t.Error("expected analytics output in state")
	}
	if len(provider.received) != 1 {
		t.Errorf("expected a single LLM call, got %d", len(provider.received))
	}
	if !provider.options[0].JSON {
		t.Error("expected JSON mode for schema-bound agent")
	}
	if !strings.Contains(provider.received[0][0].Content, `{"type": "object"}`) {
		t.Error("expected schema in instruction")
	}
}

func TestTimeoutAfterMaxIterations(t *testing.T) {
	step := `{"thought": "again", "action": {"tool": "run_query", "input": {"sql": "x"}}, "is_final": false}`
	provider := &scriptedProvider{replies: []string{step, step}}

	cfg := NewBuilder("loop").Tool(&queryTool{output: "[]"}).OutputKey("out").Build()
	state := NewState(nil)
	resp := New(cfg, provider).Run(context.Background(), state, "spin", 2)

	if resp.Type != ResponseTimeout {
		t.Fatalf("expected timeout, got %v", resp.Type)
	}
	if _, ok := state.Get("out"); ok {
		t.Error("expected output key untouched on timeout")
	}
	if len(resp.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(resp.Steps))
	}
}

func TestProviderErrorIsFailure(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("boom")}
	cfg := NewBuilder("x").Tool(&queryTool{}).Build()

	resp := New(cfg, provider).Execute(context.Background(), "task", 3)
	if resp.Type != ResponseFailure {
		t.Fatalf("expected failure, got %v", resp.Type)
	}
	if !strings.Contains(resp.Error, "boom") {
		t.Errorf("expected provider error, got %q", resp.Error)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := NewBuilder("x").Tool(&queryTool{}).Build()
	resp := New(cfg, &scriptedProvider{}).Execute(ctx, "task", 3)
	if resp.Type != ResponseFailure || !strings.Contains(resp.Error, "cancelled") {
		t.Errorf("expected cancellation failure, got %v %q", resp.Type, resp.Error)
	}
}

func TestNonJSONReplyIsThought(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"I need to think about this.",
		`{"thought": "ok", "is_final": true, "final_answer": {"rows": 2}}`,
	}}
	cfg := NewBuilder("x").Tool(&queryTool{}).Build()

	resp := New(cfg, provider).Execute(context.Background(), "task", 3)
	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %s", resp.ResultText())
	}
	if !strings.Contains(resp.Result, `"rows": 2`) {
		t.Errorf("expected object final answer rendered as JSON, got %q", resp.Result)
	}
	if resp.Steps[0].Observation == nil || *resp.Steps[0].Observation != "No action specified" {
		t.Errorf("expected first step without action, got %+v", resp.Steps[0])
	}
}
