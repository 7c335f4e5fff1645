package rater

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/bidrank/internal/chunker"
	"github.com/dgallion1/bidrank/internal/proposal"
	"golang.org/x/time/rate"
)

// Options tune a Rater.
type Options struct {
	Timeout         time.Duration // per call; 0 disables
	RatePerSecond   float64       // 0 disables pacing
	Burst           int
	MaxPromptTokens int // section text beyond this is trimmed; 0 disables
	Stats           *LLMStats
	Logger          *slog.Logger
}

// Rater paces, times and records calls to a Client.
type Rater struct {
	client          Client
	limiter         *rate.Limiter
	timeout         time.Duration
	maxPromptTokens int
	stats           *LLMStats
	log             *slog.Logger
}

// New wraps client. The returned Rater is safe for concurrent use.
func New(client Client, opts Options) *Rater {
	r := &Rater{
		client:          client,
		limiter:         rate.NewLimiter(rate.Inf, 0),
		timeout:         opts.Timeout,
		maxPromptTokens: opts.MaxPromptTokens,
		stats:           opts.Stats,
		log:             opts.Logger,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	if r.stats == nil {
		r.stats = NewLLMStats(time.Hour)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Model returns the underlying model name.
func (r *Rater) Model() string { return r.client.Model() }

// Stats returns the latency tracker.
func (r *Rater) Stats() *LLMStats { return r.stats }

// Rate asks the model to score one section.
func (r *Rater) Rate(ctx context.Context, section proposal.Section, text string) (Rating, error) {
	text, trimmed := chunker.Fit(text, r.maxPromptTokens)
	if trimmed {
		r.log.Debug("rater.trimmed", "section", section, "max_tokens", r.maxPromptTokens)
	}
	reply, err := r.call(ctx, BuildRatingPrompt(section, text))
	if err != nil {
		return Rating{}, err
	}
	return ParseRating(reply)
}

// Summarize asks the model for bullet-point insights on a whole proposal.
func (r *Rater) Summarize(ctx context.Context, id string, sections proposal.Sections) (string, error) {
	sizes := make([]int, len(proposal.AllSections))
	for i, s := range proposal.AllSections {
		sizes[i] = chunker.EstimateTokens(sections[s])
	}
	budgets := chunker.Allot(sizes, r.maxPromptTokens)
	fitted := make(proposal.Sections, len(sections))
	for i, s := range proposal.AllSections {
		fitted[s], _ = chunker.Fit(sections[s], budgets[i])
	}
	reply, err := r.call(ctx, BuildSummaryPrompt(id, fitted))
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(stripCodeBlock(reply))
	if reply == "" {
		return "", fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}
	return reply, nil
}

func (r *Rater) call(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := r.client.Complete(ctx, prompt)
	elapsed := time.Since(start)
	r.stats.Record(elapsed.Milliseconds(), err != nil)
	if err != nil {
		r.log.Warn("rater.call", "model", r.client.Model(), "ms", elapsed.Milliseconds(), "error", err)
		return "", err
	}
	r.log.Debug("rater.call", "model", r.client.Model(), "ms", elapsed.Milliseconds())
	return reply, nil
}
