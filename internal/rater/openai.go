package rater

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a client. An empty baseURL uses the public API.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	// Retries are driven by the pipeline so attempts show up in its logs.
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), model: model}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends a single user prompt and returns the text reply.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500) {
			return "", &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("openai api: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty response from openai", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
