// Tool Executor with Retry Logic.
//
// Information Hiding:
// - Retry strategy implementation hidden
// - Backoff algorithm hidden
// - Error classification logic hidden

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"goa.design/clue/log"
)

// Executor provides tool execution with retry and timeout support.
type Executor struct {
	config ToolConfig
}

// NewExecutor creates a new tool executor with the given configuration.
func NewExecutor(config ToolConfig) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return &Executor{config: DefaultToolConfig()}
}

// Execute runs a tool with retry logic. Transport errors and transient tool
// failures are retried with exponential backoff; validation and query errors
// are returned at once.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	var lastErr error
	toolName := tool.Metadata().Name
	maxRetries := e.config.Retries()

	if err := tool.Validate(args); err != nil {
		return FailureResult(fmt.Errorf("validation failed: %w", err)), nil
	}

	for attempt := uint32(0); attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := e.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ToolResult{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.Timeout())*time.Second)
		result, err := tool.Execute(attemptCtx, args)
		cancel()
		if err != nil {
			lastErr = err
			log.Warn(ctx, log.KV{K: "msg", V: "tool call failed"}, log.KV{K: "tool", V: toolName},
				log.KV{K: "attempt", V: attempt + 1}, log.KV{K: "err", V: err.Error()})
			continue
		}

		if result.Success() {
			return result, nil
		}

		if !e.shouldRetry(result) {
			return result, nil
		}
		log.Debug(ctx, log.KV{K: "msg", V: "transient tool failure"}, log.KV{K: "tool", V: toolName},
			log.KV{K: "attempt", V: attempt + 1}, log.KV{K: "err", V: result.Error.Error()})
		lastErr = result.Error
	}

	// All retries exhausted
	errMsg := "unknown error"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	return FailureResultf("tool '%s' failed after %d attempts: %s", toolName, maxRetries, errMsg), nil
}

// calculateBackoff returns the backoff duration for the given attempt.
func (e *Executor) calculateBackoff(attempt uint32) time.Duration {
	const (
		baseDelay = 100 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// Failures a data tool reports about the query itself. Retrying the same
// arguments gives the same answer, so the agent sees them at once and can
// rewrite the query.
var queryErrors = []string{
	"validation", "not allowed", "permission", "denied", "read-only", "readonly",
	"syntax error", "does not exist", "no such table", "no such column",
	"unknown column", "invalid", "only select",
}

// Failures worth another attempt with the same arguments.
var transientErrors = []string{
	"timeout", "timed out", "deadline exceeded", "connection", "network", "eof",
	"temporarily unavailable", "too many requests", "rate limit", "503", "502",
}

// shouldRetry reports whether a failed result is transient. Query errors win
// over transient markers; anything unclassified is treated as a query error.
func (e *Executor) shouldRetry(result ToolResult) bool {
	if result.Error == nil {
		return false
	}
	msg := strings.ToLower(result.Error.Error())
	return !containsAny(msg, queryErrors) && containsAny(msg, transientErrors)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
