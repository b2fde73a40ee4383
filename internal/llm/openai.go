package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompleter implements Completer using the OpenAI chat completions API.
// Works with DashScope (Qwen), OpenAI, vLLM, Ollama and any OpenAI-compatible endpoint.
type OpenAICompleter struct {
	client openai.Client
	opts   Options
}

// NewOpenAICompleter creates a completer for an OpenAI-compatible endpoint.
func NewOpenAICompleter(baseURL, apiKey string, opts Options, extra ...option.RequestOption) *OpenAICompleter {
	reqOpts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	reqOpts = append(reqOpts, extra...)
	return &OpenAICompleter{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
	}
}

// Provider returns the provider identifier.
func (c *OpenAICompleter) Provider() string { return string(ProviderOpenAI) }

// Complete sends the conversation and returns the first choice's content.
func (c *OpenAICompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.opts.Model,
		Messages:    convertOpenAIMessages(messages),
		Temperature: openai.Float(c.opts.Temperature),
	}
	if c.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.opts.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func convertOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
