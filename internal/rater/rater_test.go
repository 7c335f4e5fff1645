package rater

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	prompts []string
}

func (s *stubClient) Model() string { return "stub" }

func (s *stubClient) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func TestRater_Rate(t *testing.T) {
	client := &stubClient{reply: `{"score": 64, "rationale": "Adequate."}`}
	r := New(client, Options{})

	got, err := r.Rate(context.Background(), proposal.Technical, "Technical Approach\nWe will deliver.")
	require.NoError(t, err)
	assert.Equal(t, 64.0, got.Score)
	assert.Equal(t, "Adequate.", got.Rationale)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "TECHNICAL APPROACH")
	assert.Contains(t, client.prompts[0], "We will deliver.")
	assert.Equal(t, 1, r.Stats().Snapshot().Calls)
}

func TestRater_TimeoutSurfacesDeadline(t *testing.T) {
	client := &stubClient{reply: "50", delay: time.Second}
	r := New(client, Options{Timeout: 20 * time.Millisecond})

	_, err := r.Rate(context.Background(), proposal.PastPerformance, "References")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRater_PassesClientErrors(t *testing.T) {
	client := &stubClient{err: &RetryableError{StatusCode: 503, Message: "overloaded"}}
	r := New(client, Options{})

	_, err := r.Rate(context.Background(), proposal.Technical, "x")
	var re *RetryableError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 503, re.StatusCode)
}

func TestRater_TrimsLongSections(t *testing.T) {
	client := &stubClient{reply: "70"}
	r := New(client, Options{MaxPromptTokens: 50})

	long := strings.Repeat("word ", 2000)
	_, err := r.Rate(context.Background(), proposal.Technical, long)
	require.NoError(t, err)
	require.Len(t, client.prompts, 1)
	assert.Less(t, len(client.prompts[0]), 1500)
}

func TestRater_RateLimitHonorsContext(t *testing.T) {
	client := &stubClient{reply: "70"}
	r := New(client, Options{RatePerSecond: 0.001, Burst: 1})

	_, err := r.Rate(context.Background(), proposal.Technical, "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = r.Rate(ctx, proposal.Technical, "x")
	require.Error(t, err)
	assert.Len(t, client.prompts, 1)
}

func TestRater_Summarize(t *testing.T) {
	client := &stubClient{reply: "- Strong plan\n- High price"}
	r := New(client, Options{MaxPromptTokens: 300})

	sections := proposal.Sections{
		proposal.Technical:       "Technical Approach\nAgile delivery.",
		proposal.PastPerformance: "",
		proposal.Cost:            "Cost\n$10",
	}
	got, err := r.Summarize(context.Background(), "acme.pdf", sections)
	require.NoError(t, err)
	assert.Equal(t, "- Strong plan\n- High price", got)
	assert.Contains(t, client.prompts[0], "(section not found)")
	assert.Contains(t, client.prompts[0], `"acme.pdf"`)
}

func TestRater_SummarizeSharesPromptBudget(t *testing.T) {
	client := &stubClient{reply: "- ok"}
	r := New(client, Options{MaxPromptTokens: 90})

	long := strings.TrimSpace(strings.Repeat("delivery ", 200))
	sections := proposal.Sections{
		proposal.Technical:       long,
		proposal.PastPerformance: "",
		proposal.Cost:            "Cost\n$10",
	}
	_, err := r.Summarize(context.Background(), "acme.pdf", sections)
	require.NoError(t, err)

	// Cost and the missing section need little, so technical keeps the rest.
	kept := strings.Count(client.prompts[0], "delivery")
	assert.Greater(t, kept, 30)
	assert.Less(t, kept, 200)
	assert.Contains(t, client.prompts[0], "$10")
}
