package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateParsesSuccessfulResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := chatCompletionResponse{Model: "gpt-4o-mini"}
		resp.Choices = []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: "hello there"}}}
		resp.Usage.PromptTokens = 3
		resp.Usage.CompletionTokens = 2
		resp.Usage.TotalTokens = 5

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	cfg := NewConfig(WithBaseURL(server.URL), WithAPIKey("test-key"))
	client := NewClient(cfg)

	resp, err := client.Generate(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Content)
	require.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestGenerateSurfacesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limited"},
		})
	}))
	defer server.Close()

	cfg := NewConfig(WithBaseURL(server.URL))
	client := NewClient(cfg)

	_, err := client.Generate(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestWithProviderAliasConfiguresKnownBackend(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "groq-secret")
	t.Setenv("GROQ_BASE_URL", "")

	cfg := NewConfig(WithProviderAlias("openai.groq"))
	require.Equal(t, "groq-secret", cfg.APIKey)
	require.Equal(t, "https://api.groq.com/openai/v1", cfg.BaseURL)
}

func TestWithProviderAliasRespectsExplicitOverride(t *testing.T) {
	cfg := NewConfig(WithAPIKey("explicit"), WithProviderAlias("openai.groq"))
	require.Equal(t, "explicit", cfg.APIKey)
}
