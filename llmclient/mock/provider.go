// Package mock provides a scriptable core.AIClient for tests, grounded on
// the teacher's ai/mock.Client (same CallCount/LastPrompt/Responses
// bookkeeping), trimmed of the provider-registry Factory machinery VERITAS
// doesn't use since llmclient has exactly one concrete provider.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/veritasfuji-japan/veritas/core"
)

// Client implements core.AIClient with a scripted sequence of responses.
type Client struct {
	mu            sync.Mutex
	Responses     []string
	responseIndex int
	Err           error
	CallCount     int
	LastPrompt    string
}

// NewClient builds a Client that returns "mock response" once.
func NewClient() *Client {
	return &Client{Responses: []string{"mock response"}}
}

// Generate implements core.AIClient.
func (c *Client) Generate(ctx context.Context, prompt string) (core.AIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CallCount++
	c.LastPrompt = prompt

	select {
	case <-ctx.Done():
		return core.AIResponse{}, ctx.Err()
	default:
	}

	if c.Err != nil {
		return core.AIResponse{}, c.Err
	}
	if c.responseIndex >= len(c.Responses) {
		return core.AIResponse{}, errors.New("mock: no more scripted responses")
	}

	response := c.Responses[c.responseIndex]
	c.responseIndex++

	return core.AIResponse{
		Content: response,
		Model:   "mock-model",
		Usage: core.TokenUsage{
			PromptTokens:     len(prompt) / 4,
			CompletionTokens: len(response) / 4,
			TotalTokens:      (len(prompt) + len(response)) / 4,
		},
	}, nil
}

// SetResponses replaces the scripted responses and resets the cursor.
func (c *Client) SetResponses(responses ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses = responses
	c.responseIndex = 0
}

// SetError makes every subsequent Generate call fail with err.
func (c *Client) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

// Reset clears call bookkeeping and any configured error.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseIndex = 0
	c.CallCount = 0
	c.LastPrompt = ""
	c.Err = nil
}
