package orchestration

import (
	"context"
	"fmt"

	"goa.design/clue/log"

	"github.com/richinex/datagent/internal/jsonutil"
	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/prompts"
)

// Router decides how a query is handled.
type Router interface {
	Route(ctx context.Context, query string) (Intent, error)
}

// KeywordRouter routes with a Classifier. It never fails.
type KeywordRouter struct {
	classifier Classifier
}

// NewKeywordRouter creates a router over the default keyword sets.
func NewKeywordRouter() *KeywordRouter {
	return &KeywordRouter{classifier: DefaultClassifier()}
}

// Route classifies query.
func (r *KeywordRouter) Route(_ context.Context, query string) (Intent, error) {
	return r.classifier.Classify(query), nil
}

// LLMRouter asks the orchestrator model for the intent and falls back to
// keyword routing when the call fails or the answer cannot be parsed.
type LLMRouter struct {
	provider llm.Provider
	opts     llm.Options
	fallback *KeywordRouter
}

// NewLLMRouter creates a router using provider with the root generation options.
func NewLLMRouter(provider llm.Provider, opts llm.Options) *LLMRouter {
	opts.JSON = true
	return &LLMRouter{provider: provider, opts: opts, fallback: NewKeywordRouter()}
}

type intentAnswer struct {
	Intent string `json:"intent"`
}

// Route returns the model's intent, or the keyword intent on any failure.
func (r *LLMRouter) Route(ctx context.Context, query string) (Intent, error) {
	intent, err := r.ask(ctx, query)
	if err != nil {
		log.Warn(ctx,
			log.KV{K: "msg", V: "llm routing failed, using keyword routing"},
			log.KV{K: "err", V: err.Error()})
		return r.fallback.Route(ctx, query)
	}
	return intent, nil
}

func (r *LLMRouter) ask(ctx context.Context, query string) (Intent, error) {
	resp, err := r.provider.Chat(ctx, []llm.ChatMessage{
		llm.SystemMessage(prompts.IntentInstruction()),
		llm.UserMessage(query),
	}, r.opts)
	if err != nil {
		return IntentAnalysis, fmt.Errorf("failed to ask for intent: %w", err)
	}

	answer, err := jsonutil.ExtractJSONFromResponse[intentAnswer](resp.Content)
	if err != nil {
		return IntentAnalysis, fmt.Errorf("failed to parse intent answer: %w", err)
	}
	return ParseIntent(answer.Intent)
}

// NewRouter builds the router named by mode ("keyword" or "llm").
func NewRouter(mode string, provider llm.Provider, opts llm.Options) (Router, error) {
	switch mode {
	case "", "keyword":
		return NewKeywordRouter(), nil
	case "llm":
		if provider == nil {
			return nil, fmt.Errorf("llm routing needs a provider")
		}
		return NewLLMRouter(provider, opts), nil
	default:
		return nil, fmt.Errorf("unknown routing mode %q (expected keyword or llm)", mode)
	}
}
