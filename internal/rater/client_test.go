package rater

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, SystemPrompt, req.System)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "rate me", req.Messages[0].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"score\": 77}"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("test-key", "claude-test", srv.URL)
	defer c.Close()

	got, err := c.Complete(context.Background(), "rate me")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 77}`, got)
	assert.Equal(t, "claude-test", c.Model())
}

func TestClaudeClient_RetryableStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", status)
		}))

		_, err := NewClaudeClient("k", "", srv.URL).Complete(context.Background(), "p")
		var re *RetryableError
		require.True(t, errors.As(err, &re), "status %d should be retryable, got %v", status, err)
		assert.Equal(t, status, re.StatusCode)
		srv.Close()
	}
}

func TestClaudeClient_ClientErrorNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"invalid_request_error"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClaudeClient("k", "", srv.URL).Complete(context.Background(), "p")
	require.Error(t, err)
	var re *RetryableError
	assert.False(t, errors.As(err, &re))
	assert.Contains(t, err.Error(), "400")
}

func TestClaudeClient_EmptyContentIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := NewClaudeClient("k", "", srv.URL).Complete(context.Background(), "p")
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"score\": 55}"}}]
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", "gpt-test", srv.URL+"/v1/")
	got, err := c.Complete(context.Background(), "rate me")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 55}`, got)
}

func TestOpenAIClient_RetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", "", srv.URL+"/v1/").Complete(context.Background(), "p")
	var re *RetryableError
	require.True(t, errors.As(err, &re), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
}

func TestGeminiClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-test:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "88"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), "test-key", "gemini-test", srv.URL)
	require.NoError(t, err)
	got, err := c.Complete(context.Background(), "rate me")
	require.NoError(t, err)
	assert.Equal(t, "88", got)
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	c, err := NewClient(ctx, "Claude", "k", "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultClaudeModel, c.Model())

	c, err = NewClient(ctx, ProviderOpenAI, "k", "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, c.Model())

	_, err = NewClient(ctx, ProviderGemini, "", "", "")
	assert.Error(t, err)

	_, err = NewClient(ctx, "cohere", "k", "", "")
	assert.Error(t, err)
}
