package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-qa/backend/pkg/apperrors"
	"github.com/golf-qa/backend/pkg/config"
)

func testConfig(provider, model string) config.LLMConfig {
	return config.LLMConfig{
		Provider:   provider,
		Model:      model,
		APIKey:     "test-key",
		MaxTokens:  1024,
		TimeoutSec: 5,
	}
}

func TestPriceFor(t *testing.T) {
	tests := []struct {
		model string
		want  Price
	}{
		{model: "claude-sonnet-4-5-20250929", want: Price{Input: 3, Output: 15}},
		{model: "claude-3-5-haiku-20241022", want: Price{Input: 0.8, Output: 4}},
		{model: "gpt-4o-mini-2024-07-18", want: Price{Input: 0.15, Output: 0.6}},
		{model: "gpt-4o-2024-08-06", want: Price{Input: 2.5, Output: 10}},
		{model: "some-future-model", want: Price{Input: 3, Output: 15}},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceFor(tt.model))
		})
	}
}

func TestCost(t *testing.T) {
	cost := Cost("claude-sonnet-4-5-20250929", Usage{InputTokens: 1_000_000, OutputTokens: 100_000})
	assert.InDelta(t, 4.5, cost, 1e-9)
	assert.Zero(t, Cost("gpt-4o", Usage{}))
}

func TestTokenCounterFallback(t *testing.T) {
	var counter *TokenCounter
	assert.Equal(t, 0, counter.Count(""))
	assert.Equal(t, 1, counter.Count("ab"))
	assert.Equal(t, 10, (&TokenCounter{}).Count("0123456789012345678901234567890123456789"))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)

	_, err = NewClient(config.LLMConfig{Provider: "mistral", APIKey: "k"})
	assert.Error(t, err)

	client, err := NewClient(testConfig("openai", "gpt-4o"))
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Provider())
}

func TestAnthropicComplete(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "Under Rule 13.1c you may repair damage on the putting green."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 812, "output_tokens": 64}
		}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(testConfig("anthropic", "claude-sonnet-4-5-20250929"), option.WithBaseURL(server.URL))

	resp, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "You are a golf rules expert.",
		UserPrompt:   "Can I repair a pitch mark?",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "Rule 13.1c")
	assert.Equal(t, 812, resp.Usage.InputTokens)
	assert.Equal(t, 64, resp.Usage.OutputTokens)
	assert.Equal(t, 876, resp.Usage.Total())
	assert.Equal(t, float64(1024), body["max_tokens"])
}

func TestAnthropicFailureIsProviderFailure(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(testConfig("anthropic", "claude-sonnet-4-5-20250929"), option.WithBaseURL(server.URL))

	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrProviderFailure)
	assert.Equal(t, 1, calls)
}

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "See Rule 18.2."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 200, "completion_tokens": 10, "total_tokens": 210}
		}`))
	}))
	defer server.Close()

	clientConfig := openai.DefaultConfig("test-key")
	clientConfig.BaseURL = server.URL + "/v1"
	client := NewOpenAIClientWithConfig(testConfig("openai", "gpt-4o-mini"), clientConfig)

	resp, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "lost ball?"})
	require.NoError(t, err)
	assert.Equal(t, "See Rule 18.2.", resp.Content)
	assert.Equal(t, 200, resp.Usage.InputTokens)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
}
