// Package scoring turns section text into 0-100 scores.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/dgallion1/bidrank/internal/rater"
)

// Request is one section to score.
type Request struct {
	ProposalID string
	Section    proposal.Section
	Text       string
	Cost       *float64     // extracted amount, Cost section only
	Baseline   CostBaseline // batch-wide, read-only
}

// Scorer produces a score for one section. Both strategies share it so the
// pipeline never branches on which one it holds.
type Scorer interface {
	Score(ctx context.Context, req Request) (proposal.ScoreResult, error)
	Strategy() proposal.Strategy
}

// Select picks the strategy for a whole batch: the external model when a
// rater is configured, otherwise the heuristic.
func Select(r *rater.Rater) Scorer {
	h := NewHeuristic()
	if r == nil {
		return h
	}
	return NewModel(r, h)
}

// Failure reasons for ScoringServiceError.
const (
	ReasonNetwork    = "network"
	ReasonTimeout    = "timeout"
	ReasonMalformed  = "malformed"
	ReasonOutOfRange = "out_of_range"
)

// ScoringServiceError reports that the external rating service failed for
// one section. Callers fall back to the heuristic.
type ScoringServiceError struct {
	Section proposal.Section
	Reason  string
	Err     error
}

func (e *ScoringServiceError) Error() string {
	return fmt.Sprintf("score %s: %s: %v", e.Section, e.Reason, e.Err)
}

func (e *ScoringServiceError) Unwrap() error { return e.Err }

// round2 keeps reported scores readable without affecting ranking.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
