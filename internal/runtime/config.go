// Package runtime loads the agent configuration and serves the HTTP chat API.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/szaher/infraagent/internal/auth"
	"github.com/szaher/infraagent/internal/cloud"
	"github.com/szaher/infraagent/internal/llm"
	"github.com/szaher/infraagent/internal/loop"
	"github.com/szaher/infraagent/internal/policy"
	"github.com/szaher/infraagent/internal/secrets"
)

// Limits enforced by Validate.
const (
	MaxIterationsLimit = 20
	MaxTemperature     = 2.0
)

// DefaultListen is the HTTP listen address.
const DefaultListen = ":8000"

// DefaultRequestTimeout bounds one HTTP chat request.
const DefaultRequestTimeout = 5 * time.Minute

// LLMConfig configures the language-model gateway.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AgentConfig configures the orchestration loop.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Listen         string               `yaml:"listen"`
	APIKey         string               `yaml:"api_key"`
	RequestTimeout time.Duration        `yaml:"request_timeout"`
	RateLimit      auth.RateLimitConfig `yaml:"rate_limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete agent configuration.
type Config struct {
	LLM      LLMConfig     `yaml:"llm"`
	Agent    AgentConfig   `yaml:"agent"`
	Server   ServerConfig  `yaml:"server"`
	Cloud    cloud.Config  `yaml:"cloud"`
	Policies []policy.Rule `yaml:"policies"`
	Log      LogConfig     `yaml:"log"`

	// Source is the file the configuration was read from, empty when none.
	Source string `yaml:"-"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	opts := llm.DefaultOptions()
	return &Config{
		LLM: LLMConfig{
			Provider:    string(llm.ProviderOpenAI),
			BaseURL:     llm.DefaultBaseURL,
			Model:       opts.Model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Timeout:     opts.Timeout,
		},
		Agent:  AgentConfig{MaxIterations: loop.DefaultMaxIterations},
		Server: ServerConfig{
			Listen:         DefaultListen,
			RequestTimeout: DefaultRequestTimeout,
			RateLimit:      auth.DefaultRateLimitConfig(),
		},
		Cloud: cloud.DefaultConfig(),
		Log:   LogConfig{Level: "info"},
	}
}

// DefaultSearchPaths lists the locations probed when no --config is given.
func DefaultSearchPaths() []string {
	paths := []string{"infraagent.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "infraagent", "config.yaml"))
	}
	return append(paths, "/etc/infraagent/config.yaml")
}

type loadConfig struct {
	searchPaths []string
	lookupEnv   func(string) (string, bool)
	resolver    secrets.Resolver
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadConfig)

// WithSearchPaths replaces the default search paths.
func WithSearchPaths(paths ...string) LoadOption {
	return func(c *loadConfig) { c.searchPaths = paths }
}

// WithEnvLookup replaces os.LookupEnv for environment overrides.
func WithEnvLookup(fn func(string) (string, bool)) LoadOption {
	return func(c *loadConfig) { c.lookupEnv = fn }
}

// WithResolver sets the resolver for env(VAR) references.
func WithResolver(r secrets.Resolver) LoadOption {
	return func(c *loadConfig) { c.resolver = r }
}

// LoadDotEnv loads variables from .env files that exist. Variables already
// set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// FindConfig returns explicit when set, otherwise the first existing search
// path. An empty result means no file was found.
func FindConfig(explicit string, searchPaths []string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, p := range searchPaths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// LoadConfig builds the configuration from defaults, the config file,
// environment overrides and secret references, then validates it.
func LoadConfig(ctx context.Context, path string, opts ...LoadOption) (*Config, error) {
	lc := &loadConfig{
		searchPaths: DefaultSearchPaths(),
		lookupEnv:   os.LookupEnv,
		resolver:    secrets.NewEnvResolver(),
	}
	for _, opt := range opts {
		opt(lc)
	}

	cfg := DefaultConfig()
	found, err := FindConfig(path, lc.searchPaths)
	if err != nil {
		return nil, err
	}
	if found != "" {
		data, err := os.ReadFile(found)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", found, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", found, err)
		}
		cfg.Source = found
	}

	if err := cfg.applyEnv(lc.lookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.resolveSecrets(ctx, lc.resolver); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("LLM_MODEL", &c.LLM.Model)
	str("ALIYUN_REGION_ID", &c.Cloud.RegionID)
	str("ALIYUN_ACCESS_KEY_ID", &c.Cloud.AccessKeyID)
	str("ALIYUN_ACCESS_KEY_SECRET", &c.Cloud.AccessKeySecret)
	str("INFRA_AGENT_LISTEN", &c.Server.Listen)
	str("INFRA_AGENT_API_KEY", &c.Server.APIKey)
	str("INFRA_AGENT_LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("INFRA_AGENT_MAX_ITERATIONS"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("INFRA_AGENT_MAX_ITERATIONS: %q is not an integer", v)
		}
		c.Agent.MaxIterations = n
	}
	return nil
}

func (c *Config) resolveSecrets(ctx context.Context, r secrets.Resolver) error {
	fields := []struct {
		name string
		dst  *string
	}{
		{"llm.api_key", &c.LLM.APIKey},
		{"llm.base_url", &c.LLM.BaseURL},
		{"cloud.access_key_id", &c.Cloud.AccessKeyID},
		{"cloud.access_key_secret", &c.Cloud.AccessKeySecret},
		{"server.api_key", &c.Server.APIKey},
	}
	for _, f := range fields {
		v, err := secrets.ResolveValue(ctx, r, *f.dst)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return nil
}

// Validate checks value ranges and the provider name.
func (c *Config) Validate() error {
	var errs []error
	provider, err := llm.ParseProvider(c.LLM.Provider)
	if err != nil {
		errs = append(errs, fmt.Errorf("llm.provider: %w", err))
	}
	if provider == llm.ProviderAnthropic && strings.HasPrefix(c.LLM.Model, "qwen") {
		errs = append(errs, fmt.Errorf("llm.model %q is not an Anthropic model", c.LLM.Model))
	}
	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations))
	} else if c.Agent.MaxIterations > MaxIterationsLimit {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be at most %d, got %d", MaxIterationsLimit, c.Agent.MaxIterations))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > MaxTemperature {
		errs = append(errs, fmt.Errorf("llm.temperature must be within [0, %g], got %g", MaxTemperature, c.LLM.Temperature))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens))
	}
	if c.LLM.Timeout < 0 || c.Server.RequestTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 || c.Server.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("server.rate_limit values must not be negative"))
	}
	if err := c.Cloud.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cloud: %w", err))
	}
	return errors.Join(errs...)
}

// ClientConfig returns the settings for llm.NewCompleter.
func (c *Config) ClientConfig() (llm.ClientConfig, error) {
	provider, err := llm.ParseProvider(c.LLM.Provider)
	if err != nil {
		return llm.ClientConfig{}, err
	}
	return llm.ClientConfig{
		Provider: provider,
		BaseURL:  c.LLM.BaseURL,
		APIKey:   c.LLM.APIKey,
		Options: llm.Options{
			Model:       c.LLM.Model,
			Temperature: c.LLM.Temperature,
			MaxTokens:   c.LLM.MaxTokens,
			Timeout:     c.LLM.Timeout,
		},
	}, nil
}

// Secrets returns the credential values that must never be logged.
func (c *Config) Secrets() []string {
	var out []string
	for _, s := range []string{c.LLM.APIKey, c.Cloud.AccessKeySecret, c.Server.APIKey} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
