// Agent configuration types.
//
// Information Hiding:
// - Configuration validation logic hidden
// - Default values hidden

package agent

import (
	"encoding/json"

	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/tools"
)

// Config holds agent configuration.
type Config struct {
	// Name is a unique identifier for the agent.
	Name string

	// Description explains what this agent does (used by routers and the banner).
	Description string

	// Instruction guides the agent's behavior. {key} placeholders are filled from state.
	Instruction string

	// Tools available to this agent. An agent without tools answers in a single call.
	Tools []tools.Tool

	// OutputKey, when set, stores the final answer in state under this key.
	OutputKey string

	// Generation carries per-agent sampling settings.
	Generation llm.Options

	// ResponseSchema is an optional JSON schema describing the final answer.
	ResponseSchema json.RawMessage

	// BeforeAgent runs before the reasoning loop.
	BeforeAgent BeforeAgentFunc

	// AfterTool runs after every tool call.
	AfterTool AfterToolFunc
}

// DefaultConfig returns a basic agent configuration.
func DefaultConfig() Config {
	return Config{
		Name:        "agent",
		Description: "A general-purpose agent",
		Instruction: "You are a helpful assistant.",
		Tools:       []tools.Tool{},
	}
}

// HasTools returns true if the agent has tools configured.
func (c *Config) HasTools() bool {
	return len(c.Tools) > 0
}

// HasResponseSchema returns true if a response schema is configured.
func (c *Config) HasResponseSchema() bool {
	return len(c.ResponseSchema) > 0
}
