package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitea/omnitea/internal/adapter/llm/openai"
	"github.com/omnitea/omnitea/internal/domain"
)

func testRetryConfig() openai.RetryConfig {
	return openai.RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func testConversation() domain.Log {
	return domain.Log{}.
		System("You are omnitea, a helpful assistant.").
		User("alice says: hello")
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "alice says: hello", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-123",
			Object: "chat.completion",
			Model:  "gpt-3.5-turbo",
			Choices: []openai.Choice{{
				Message:      openai.Message{Role: "assistant", Content: "Hello, alice."},
				FinishReason: "stop",
			}},
			Usage: openai.Usage{PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25},
		})
	}))
	defer server.Close()

	client := openai.NewClient("test-api-key", "gpt-3.5-turbo")
	client.SetBaseURL(server.URL)

	entry, usage, err := client.Complete(context.Background(), testConversation())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, entry.Role)
	assert.Equal(t, "Hello, alice.", entry.Content)
	assert.Equal(t, 20, usage.PromptTokens)
	assert.Equal(t, 5, usage.CompletionTokens)
	assert.Equal(t, 25, usage.TotalTokens)
}

func TestClient_Complete_AuthenticationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(openai.ErrorResponse{
			Error: openai.ErrorDetail{
				Message: "Invalid API key",
				Type:    "invalid_request_error",
				Code:    "invalid_api_key",
			},
		})
	}))
	defer server.Close()

	client := openai.NewClient("bad-key", "gpt-3.5-turbo")
	client.SetBaseURL(server.URL)
	client.SetRetryConfig(testRetryConfig())

	_, _, err := client.Complete(context.Background(), testConversation())
	require.Error(t, err)

	var apiErr *openai.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, openai.ErrorTypeAuthentication, apiErr.Type)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable)
	assert.Contains(t, apiErr.Message, "Invalid API key")
}

func TestClient_Complete_RetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(openai.ErrorResponse{
				Error: openai.ErrorDetail{Message: "Rate limit reached", Type: "rate_limit_error"},
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.Choice{{
				Message:      openai.Message{Role: "assistant", Content: "second time lucky"},
				FinishReason: "stop",
			}},
		})
	}))
	defer server.Close()

	client := openai.NewClient("test-api-key", "gpt-3.5-turbo")
	client.SetBaseURL(server.URL)
	client.SetRetryConfig(testRetryConfig())

	entry, _, err := client.Complete(context.Background(), testConversation())
	require.NoError(t, err)
	assert.Equal(t, "second time lucky", entry.Content)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_Complete_ServerErrorExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "upstream unavailable")
	}))
	defer server.Close()

	client := openai.NewClient("test-api-key", "gpt-3.5-turbo")
	client.SetBaseURL(server.URL)
	client.SetRetryConfig(openai.RetryConfig{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	})

	_, _, err := client.Complete(context.Background(), testConversation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")

	var apiErr *openai.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, openai.ErrorTypeServer, apiErr.Type)
	assert.Contains(t, apiErr.Message, "upstream unavailable")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_Complete_NoChoices(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{Choices: []openai.Choice{}})
	}))
	defer server.Close()

	client := openai.NewClient("test-api-key", "gpt-3.5-turbo")
	client.SetBaseURL(server.URL)
	client.SetRetryConfig(testRetryConfig())

	_, _, err := client.Complete(context.Background(), testConversation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
	assert.False(t, openai.IsRetryable(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_Complete_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := openai.NewClient("test-api-key", "gpt-3.5-turbo")
	client.SetBaseURL(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := client.Complete(ctx, testConversation())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
