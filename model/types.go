// Package model provides domain types shared across packages.
package model

// Step represents a single step in a reasoning process.
// Used by both agents and orchestration for tracking progress.
type Step struct {
	Agent       string  `json:"agent,omitempty"`
	Iteration   int     `json:"iteration"`
	Thought     string  `json:"thought"`
	Action      *string `json:"action,omitempty"`
	Observation *string `json:"observation,omitempty"`
}

// ToolCall contains metrics about a tool invocation.
// Used for tracking and analytics in both agent and orchestration contexts.
type ToolCall struct {
	Name       string `json:"name"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	Success    bool   `json:"success"`
}
