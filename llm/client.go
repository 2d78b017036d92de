// LLMClient - Provider wrapper that accounts for token usage.

package llm

import (
	"context"
	"sync"
)

// Client wraps a Provider and accumulates token usage across calls.
// It implements Provider so it can be handed to agents in place of the raw provider.
type Client struct {
	provider Provider

	mu    sync.Mutex
	usage TokenUsage
	calls int
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Name returns the wrapped provider's name.
func (c *Client) Name() string {
	return c.provider.Name()
}

// Model returns the wrapped provider's model.
func (c *Client) Model() string {
	return c.provider.Model()
}

// Chat forwards to the provider and records usage on success.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage, opts Options) (Response, error) {
	response, err := c.provider.Chat(ctx, messages, opts)
	if err != nil {
		return Response{}, err
	}

	c.mu.Lock()
	c.calls++
	c.usage.Add(response.Usage)
	c.mu.Unlock()

	return response, nil
}

// Complete sends messages and returns just the content.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage, opts Options) (string, error) {
	response, err := c.Chat(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Usage returns accumulated token usage and the number of successful calls.
func (c *Client) Usage() (TokenUsage, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage, c.calls
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

var _ Provider = (*Client)(nil)
