package agent

import (
	"context"
	"encoding/json"
)

// CallbackContext is passed to BeforeAgent callbacks.
type CallbackContext struct {
	AgentName string
	// UserContent is the task text the agent was invoked with.
	UserContent string
	State       *State
}

// ToolContext is passed to AfterTool callbacks once a tool call completes.
type ToolContext struct {
	AgentName string
	ToolName  string
	Args      json.RawMessage
	// Output is the tool's text output; empty when the call failed.
	Output string
	// Response is Output decoded as JSON when possible, else the text itself.
	Response any
	Err      error
	State    *State
}

// Success reports whether the tool call succeeded.
func (t *ToolContext) Success() bool {
	return t.Err == nil
}

// BeforeAgentFunc runs before the agent's reasoning loop.
type BeforeAgentFunc func(ctx context.Context, cbCtx *CallbackContext) error

// AfterToolFunc runs after every tool call.
type AfterToolFunc func(ctx context.Context, toolCtx *ToolContext) error

// decodeToolOutput parses output as JSON, keeping number literals, or returns the text.
func decodeToolOutput(output string) any {
	var v any
	if err := unmarshalUseNumber([]byte(output), &v); err != nil {
		return output
	}
	return v
}
