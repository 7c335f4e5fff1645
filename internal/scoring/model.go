package scoring

import (
	"context"
	"errors"
	"strings"

	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/dgallion1/bidrank/internal/rater"
)

// Model rates Technical and Past Performance through an external model.
// Cost always goes to the heuristic.
type Model struct {
	rater     *rater.Rater
	heuristic *Heuristic
}

func NewModel(r *rater.Rater, h *Heuristic) *Model {
	if h == nil {
		h = NewHeuristic()
	}
	return &Model{rater: r, heuristic: h}
}

func (m *Model) Strategy() proposal.Strategy { return proposal.StrategyModel }

// Heuristic returns the fallback scorer.
func (m *Model) Heuristic() *Heuristic { return m.heuristic }

// Score returns a *ScoringServiceError when the rating service fails; the
// caller decides whether to retry or fall back.
func (m *Model) Score(ctx context.Context, req Request) (proposal.ScoreResult, error) {
	if req.Section == proposal.Cost {
		return m.heuristic.Score(ctx, req)
	}
	// Nothing to rate; an empty section is worst-case without a call.
	if strings.TrimSpace(req.Text) == "" {
		return proposal.ScoreResult{Value: 0, Strategy: proposal.StrategyHeuristic}, nil
	}

	rating, err := m.rater.Rate(ctx, req.Section, req.Text)
	if err != nil {
		return proposal.ScoreResult{}, &ScoringServiceError{
			Section: req.Section,
			Reason:  classify(err),
			Err:     err,
		}
	}
	return proposal.ScoreResult{
		Value:     round2(rating.Score),
		Strategy:  proposal.StrategyModel,
		Rationale: rating.Rationale,
	}, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, rater.ErrOutOfRange):
		return ReasonOutOfRange
	case errors.Is(err, rater.ErrMalformedResponse):
		return ReasonMalformed
	default:
		return ReasonNetwork
	}
}
