package llm

import (
	"fmt"
	"strings"
)

// Provider identifies an LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderMock      Provider = "mock"
)

// DefaultBaseURL is DashScope's OpenAI-compatible endpoint serving Qwen models.
const DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// ParseProvider normalizes a provider name. An empty name selects the
// OpenAI-compatible provider.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "openai", "qwen", "dashscope":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "mock":
		return ProviderMock, nil
	default:
		return "", fmt.Errorf("unknown llm provider %q", name)
	}
}

// ClientConfig holds the immutable settings used to construct a Completer.
type ClientConfig struct {
	Provider Provider
	BaseURL  string
	APIKey   string
	Options  Options
}

// NewCompleter creates the Completer for cfg.Provider.
func NewCompleter(cfg ClientConfig) (Completer, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultBaseURL
		}
		return NewOpenAICompleter(baseURL, cfg.APIKey, cfg.Options), nil
	case ProviderAnthropic:
		return NewAnthropicCompleter(cfg.APIKey, cfg.Options), nil
	case ProviderMock:
		return NewMockCompleter(MockResponse{Content: "Final Answer: mock provider configured, no model was called."}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
