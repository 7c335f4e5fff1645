// Package rater asks a hosted language model to rate proposal sections.
package rater

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Client sends one prompt to a hosted model and returns its text reply.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Supported providers.
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var (
	// ErrMalformedResponse means the reply could not be read as a rating.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrOutOfRange means the reply carried a score outside [0, 100].
	ErrOutOfRange = errors.New("score out of range")
)

// NewClient builds the client for a provider.
func NewClient(ctx context.Context, provider, apiKey, model, baseURL string) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: api key is empty", provider)
	}
	switch strings.ToLower(provider) {
	case ProviderClaude:
		return NewClaudeClient(apiKey, model, baseURL), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, apiKey, model, baseURL)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown rater provider %q", provider)
	}
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
