package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/veritasfuji-japan/veritas/core"
)

// Client implements core.AIClient against any OpenAI-compatible chat
// completions endpoint. Grounded on the teacher's
// ai/providers/openai/client.go request/response shape, trimmed to the
// single round trip VERITAS needs (no streaming, no tool-calling) since
// the pipeline treats the LLM as an opaque collaborator.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt as a single user message and returns the
// provider's reply, satisfying core.AIClient.
func (c *Client) Generate(ctx context.Context, prompt string) (core.AIResponse, error) {
	reqBody := chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return core.AIResponse{}, fmt.Errorf("llmclient: encode request: %w", err)
	}

	url := c.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return core.AIResponse{}, fmt.Errorf("llmclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.cfg.Logger.Error("llmclient: request failed", map[string]interface{}{"err": err.Error()})
		return core.AIResponse{}, fmt.Errorf("llmclient: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.AIResponse{}, fmt.Errorf("llmclient: read response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return core.AIResponse{}, fmt.Errorf("llmclient: decode response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return core.AIResponse{}, fmt.Errorf("llmclient: provider error: %s", msg)
	}
	if len(parsed.Choices) == 0 {
		return core.AIResponse{}, fmt.Errorf("llmclient: provider returned no choices")
	}

	return core.AIResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: core.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}
