// Package orchestration routes queries across the orchestrator, retrieval and
// analytics agents.
//
// Types used by routers, handoff validation and the orchestrator.
package orchestration

import (
	"github.com/richinex/datagent/agent"
	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/model"
)

// ValidationResult contains the result of validation with detailed feedback.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

// ValidationError contains validation error details.
type ValidationError struct {
	Field     string  `json:"field"`
	ErrorType string  `json:"error_type"`
	Message   string  `json:"message"`
	Expected  *string `json:"expected,omitempty"`
	Actual    *string `json:"actual,omitempty"`
}

// NewValidationSuccess creates a successful validation result.
func NewValidationSuccess() ValidationResult {
	return ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []string{},
	}
}

// NewValidationFailure creates a failed validation result.
func NewValidationFailure(errors []ValidationError) ValidationResult {
	return ValidationResult{
		Valid:    false,
		Errors:   errors,
		Warnings: []string{},
	}
}

// WithWarnings adds warnings to the validation result.
func (v ValidationResult) WithWarnings(warnings []string) ValidationResult {
	if warnings == nil {
		warnings = []string{}
	}
	v.Warnings = warnings
	return v
}

// Step is an alias for model.Step for orchestration steps.
type Step = model.Step

// TokenStats tracks token usage across an orchestration.
type TokenStats struct {
	PromptTokens     uint32 `json:"prompt_tokens"`
	CompletionTokens uint32 `json:"completion_tokens"`
	TotalTokens      uint32 `json:"total_tokens"`
	LLMCalls         int    `json:"llm_calls"`
}

// AddUsage adds token usage from an LLM call.
func (ts *TokenStats) AddUsage(usage *llm.TokenUsage) {
	if usage == nil {
		return
	}
	ts.PromptTokens += usage.PromptTokens
	ts.CompletionTokens += usage.CompletionTokens
	ts.TotalTokens += usage.TotalTokens
}

// AddResponse adds an agent run's usage and call count.
func (ts *TokenStats) AddResponse(resp agent.Response) {
	ts.AddUsage(resp.Metadata.TokenUsage)
	ts.LLMCalls += resp.Metadata.LLMCalls
}
