package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/tools"
)

// agentScript answers each agent from its own queue, picked by the system prompt.
type agentScript struct {
	mu       sync.Mutex
	replies  map[string][]string
	err      error
	received map[string][][]llm.ChatMessage
}

func newAgentScript(replies map[string][]string) *agentScript {
	return &agentScript{replies: replies, received: map[string][][]llm.ChatMessage{}}
}

func (s *agentScript) Name() string  { return "script" }
func (s *agentScript) Model() string { return "script-model" }

func (s *agentScript) Chat(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := "unknown"
	system := messages[0].Content
	switch {
	case strings.Contains(system, "data retrieval specialist"):
		role = "retrieval"
	case strings.Contains(system, "ANALYTICS ENGINE"):
		role = "analytics"
	case strings.Contains(system, "Classify the user's request"):
		role = "router"
	}
	s.received[role] = append(s.received[role], messages)

	if s.err != nil {
		return llm.Response{}, s.err
	}
	queue := s.replies[role]
	if len(queue) == 0 {
		return llm.Response{}, errors.New("no reply scripted for " + role)
	}
	s.replies[role] = queue[1:]
	return llm.Response{Content: queue[0], Usage: &llm.TokenUsage{PromptTokens: 4, CompletionTokens: 1, TotalTokens: 5}}, nil
}

// tableTool returns a fixed tool output.
type tableTool struct {
	tools.BaseTool
	name   string
	output string
}

func (t *tableTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        t.name,
		Description: "Runs SQL against the warehouse",
		Parameters:  []tools.ToolParameter{{Name: "sql", ParamType: "string", Required: true}},
	}
}

func (t *tableTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	return tools.SuccessResult(t.output), nil
}

const salesTable = `{"columns": ["region", "total_sales"], "rows": [["north", 120], ["south", 80]]}`

const retrievalAnswer = `{"data_source": "postgresql", "data_type": "table", "summary": "Sales by region", "data": {"rows": 2}, "needs_visualization": true, "error": null}`

const analyticsAnswer = `{"analysis_summary": "North leads", "entities": {}, "aggregate_metrics": {"total": 200}, "comparisons": [], "time_series": [], "insights": ["north is 60%"], "recommendations": [], "visualization_hints": [{"chart_type": "bar", "x": ["north", "south"], "y": [120, 80], "title": "Sales by region"}]}`

func toolCall(tool, sql string) string {
	return `{"thought": "query", "action": {"tool": "` + tool + `", "input": {"sql": "` + sql + `"}}, "is_final": false}`
}

func finalAnswer(answer string) string {
	encoded, _ := json.Marshal(answer)
	return `{"thought": "done", "is_final": true, "final_answer": ` + string(encoded) + `}`
}
