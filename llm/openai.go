// OpenAI-compatible Provider implementation using go-openai library.
//
// Serves OpenAI itself and every endpoint speaking the same Chat Completions
// protocol: DeepSeek and self-hosted vLLM.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Chat Completions API
// - Model routing prefixes used by vLLM deployments

package llm

import (
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// OpenAIProvider implements the Provider interface for OpenAI-compatible APIs.
type OpenAIProvider struct {
	client   *openai.Client
	name     string
	model    string
	defaults Options
}

// NewOpenAIProvider creates a provider for api.openai.com.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32) *OpenAIProvider {
	return newCompatibleProvider("openai", apiKey, "", model, maxTokens)
}

// NewDeepSeekProvider creates a provider for the DeepSeek API.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32) *OpenAIProvider {
	return newCompatibleProvider("deepseek", apiKey, deepseekBaseURL, model, maxTokens)
}

// NewVLLMProvider creates a provider for a vLLM server at baseURL.
// Model names carrying an "openai/" routing prefix are sent without it.
func NewVLLMProvider(baseURL, apiKey, model string, maxTokens uint32) *OpenAIProvider {
	return newCompatibleProvider("vllm", apiKey, baseURL, strings.TrimPrefix(model, "openai/"), maxTokens)
}

func newCompatibleProvider(name, apiKey, baseURL, model string, maxTokens uint32) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(config),
		name:     name,
		model:    model,
		defaults: Options{MaxTokens: int(maxTokens)},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []ChatMessage, opts Options) (Response, error) {
	opts = opts.WithDefaults(p.defaults)

	req := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  convertToOpenAIMessages(messages),
		MaxTokens: opts.MaxTokens,
	}
	if opts.Temperature != nil {
		req.Temperature = nonZero(*opts.Temperature)
	}
	if opts.TopP != nil {
		req.TopP = nonZero(*opts.TopP)
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	usage := &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}

	return Response{Content: content, Usage: usage}, nil
}

// nonZero maps 0 to the smallest positive float32; go-openai drops zero values via omitempty.
func nonZero(v float32) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return v
}

func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
