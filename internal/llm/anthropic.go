package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicCompleter implements Completer using the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	opts   Options
}

// NewAnthropicCompleter creates a completer. An empty apiKey makes the SDK
// read ANTHROPIC_API_KEY from the environment.
func NewAnthropicCompleter(apiKey string, opts Options) *AnthropicCompleter {
	var reqOpts []option.RequestOption
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	return &AnthropicCompleter{
		client: anthropic.NewClient(reqOpts...),
		opts:   opts,
	}
}

// Provider returns the provider identifier.
func (c *AnthropicCompleter) Provider() string { return string(ProviderAnthropic) }

// Complete sends the conversation and returns the concatenated text blocks.
func (c *AnthropicCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	msg, err := c.client.Messages.New(ctx, c.buildParams(messages))
	if err != nil {
		return "", fmt.Errorf("anthropic chat: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// buildParams lifts system messages into the request's system prompt; the
// Messages API only accepts user and assistant turns.
func (c *AnthropicCompleter) buildParams(messages []Message) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	turns := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := c.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultOptions().MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.opts.Model),
		Messages:    turns,
		MaxTokens:   int64(maxTokens),
		Temperature: param.NewOpt(c.opts.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	return params
}
