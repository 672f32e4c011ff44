// Package llmclient provides VERITAS's one concrete core.AIClient
// implementation: an HTTP client against any OpenAI-compatible chat
// completions endpoint. VERITAS treats the LLM as an opaque collaborator
// (spec.md §9 "no prompt engineering specifics in the pipeline core"), so
// unlike the teacher's multi-provider ai package (openai/anthropic/
// gemini/bedrock/ollama each with a dedicated client), VERITAS needs only
// one transport shape — unlocked for any OpenAI-compatible backend
// (OpenAI itself, or a compatible gateway like Groq/Together/DeepSeek)
// through ProviderAlias, the same environment-driven auto-configuration
// pattern the teacher's ai.WithProviderAlias uses.
package llmclient

import (
	"os"
	"strings"
	"time"

	"github.com/veritasfuji-japan/veritas/core"
)

// Config holds configuration for constructing a Client.
type Config struct {
	// ProviderAlias selects an OpenAI-compatible backend, e.g. "openai",
	// "openai.groq", "openai.deepseek", "openai.together".
	ProviderAlias string

	APIKey  string
	BaseURL string

	Timeout    time.Duration
	MaxRetries int

	Model       string
	Temperature float32
	MaxTokens   int

	Headers map[string]string

	Logger    core.Logger
	Telemetry core.Telemetry
}

// Option configures a Config.
type Option func(*Config)

func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

func WithTemperature(t float32) Option {
	return func(c *Config) { c.Temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

func WithHeaders(headers map[string]string) Option {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			c.Headers[k] = v
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

func WithTelemetry(t core.Telemetry) Option {
	return func(c *Config) { c.Telemetry = t }
}

// WithProviderAlias sets ProviderAlias and, when the caller hasn't already
// set APIKey/BaseURL explicitly, auto-configures both from well-known
// environment variables — the same three-tier precedence (explicit >
// env > hardcoded default) as the teacher's ai.WithProviderAlias.
// NewConfig's default OpenAI BaseURL does not count as explicit.
func WithProviderAlias(alias string) Option {
	return func(c *Config) {
		c.ProviderAlias = alias
		parts := strings.SplitN(alias, ".", 2)
		if len(parts) < 2 || c.APIKey != "" || (c.BaseURL != "" && c.BaseURL != "https://api.openai.com/v1") {
			return
		}
		switch parts[1] {
		case "deepseek":
			c.APIKey = os.Getenv("DEEPSEEK_API_KEY")
			c.BaseURL = firstNonEmpty(os.Getenv("DEEPSEEK_BASE_URL"), "https://api.deepseek.com")
		case "groq":
			c.APIKey = os.Getenv("GROQ_API_KEY")
			c.BaseURL = firstNonEmpty(os.Getenv("GROQ_BASE_URL"), "https://api.groq.com/openai/v1")
		case "together":
			c.APIKey = os.Getenv("TOGETHER_API_KEY")
			c.BaseURL = firstNonEmpty(os.Getenv("TOGETHER_BASE_URL"), "https://api.together.xyz/v1")
		case "ollama":
			c.BaseURL = firstNonEmpty(os.Getenv("OLLAMA_BASE_URL"), "http://localhost:11434/v1")
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewConfig applies opts over sensible defaults.
func NewConfig(opts ...Option) Config {
	c := Config{
		BaseURL:    "https://api.openai.com/v1",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		Model:      "gpt-4o-mini",
		MaxTokens:  1024,
		Logger:     &core.NoOpLogger{},
		Telemetry:  &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
