// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Mapping of per-agent generation options to provider parameters

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for chat completions.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request using the given generation options.
	Chat(ctx context.Context, messages []ChatMessage, opts Options) (Response, error)
}

// Options controls generation for a single request.
// Nil pointers and zero values leave the provider default in place.
type Options struct {
	Temperature *float32
	TopP        *float32
	MaxTokens   int
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Float32 returns a pointer to v, for filling Options.
func Float32(v float32) *float32 {
	return &v
}

// WithDefaults fills unset fields from defaults.
func (o Options) WithDefaults(defaults Options) Options {
	if o.Temperature == nil {
		o.Temperature = defaults.Temperature
	}
	if o.TopP == nil {
		o.TopP = defaults.TopP
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = defaults.MaxTokens
	}
	return o
}
