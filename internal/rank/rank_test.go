package rank

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(id string, index int, cost, tech, past float64) *proposal.Proposal {
	p := proposal.New(id, index)
	p.Scores[proposal.Cost] = proposal.ScoreResult{Value: cost}
	p.Scores[proposal.Technical] = proposal.ScoreResult{Value: tech}
	p.Scores[proposal.PastPerformance] = proposal.ScoreResult{Value: past}
	return p
}

func ids(ps []*proposal.Proposal) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestAggregate_WeightedMean(t *testing.T) {
	p := scored("a", 0, 100, 50, 0)
	got := Aggregate(p.Scores, Weights{Cost: 1, Technical: 1, PastPerformance: 2})
	assert.InDelta(t, 37.5, got, 1e-9)
}

func TestAggregate_AlwaysBounded(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 1000 {
		w := Weights{Cost: r.Float64() * 10, Technical: r.Float64() * 10, PastPerformance: r.Float64() * 10}
		if w.Validate() != nil {
			continue
		}
		p := scored("x", 0, r.Float64()*100, r.Float64()*100, r.Float64()*100)
		got := Aggregate(p.Scores, w)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 100.0)
	}
}

func TestAggregate_ClipsOutOfRangeInputs(t *testing.T) {
	p := scored("x", 0, 500, 500, 500)
	assert.Equal(t, 100.0, Aggregate(p.Scores, DefaultWeights()))

	p = scored("y", 0, -10, -10, -10)
	assert.Equal(t, 0.0, Aggregate(p.Scores, DefaultWeights()))
}

func TestRank_OrdersDescendingWithCompetitionRanks(t *testing.T) {
	w := Weights{Cost: 1}
	in := []*proposal.Proposal{
		scored("low", 0, 10, 0, 0),
		scored("tieA", 1, 50, 0, 0),
		scored("top", 2, 90, 0, 0),
		scored("tieB", 3, 50, 0, 0),
	}
	out := Rank(in, w)

	assert.Equal(t, []string{"top", "tieA", "tieB", "low"}, ids(out))
	assert.Equal(t, []int{1, 2, 2, 4}, []int{out[0].Rank, out[1].Rank, out[2].Rank, out[3].Rank})
	// Input slice untouched.
	assert.Equal(t, []string{"low", "tieA", "top", "tieB"}, ids(in))
}

func TestRank_StableAcrossShuffleAndRestore(t *testing.T) {
	w := DefaultWeights()
	build := func() []*proposal.Proposal {
		return []*proposal.Proposal{
			scored("a", 0, 50, 50, 50),
			scored("b", 1, 50, 50, 50),
			scored("c", 2, 80, 10, 10),
			scored("d", 3, 50, 50, 50),
		}
	}
	first := ids(Rank(build(), w))

	r := rand.New(rand.NewPCG(7, 7))
	for range 20 {
		ps := build()
		r.Shuffle(len(ps), func(i, j int) { ps[i], ps[j] = ps[j], ps[i] })
		// Restore input order, then rank again.
		restored := make([]*proposal.Proposal, len(ps))
		for _, p := range ps {
			restored[p.Index] = p
		}
		assert.Equal(t, first, ids(Rank(restored, w)))
	}
	assert.Equal(t, []string{"a", "b", "d", "c"}, first)
}

func TestRank_EqualTotalsAcrossSectionsTie(t *testing.T) {
	// 0.3·4 and 0.4·3 differ in the last bit as float64.
	a := scored("a", 0, 0, 0, 4)
	b := scored("b", 1, 0, 3, 0)

	out := Rank([]*proposal.Proposal{a, b}, DefaultWeights())
	assert.Equal(t, []string{"a", "b"}, ids(out))
	assert.Equal(t, 1, out[0].Rank)
	assert.Equal(t, 1, out[1].Rank)
}

func TestAggregate_HugeWeightsStayFinite(t *testing.T) {
	p := scored("x", 0, 20, 50, 80)
	w := Weights{Cost: 1e308, Technical: 1e308, PastPerformance: 1e308}
	assert.InDelta(t, 50.0, Aggregate(p.Scores, w), 1e-9)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, DefaultWeights()))
}

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name string
		w    Weights
		ok   bool
	}{
		{"default", DefaultWeights(), true},
		{"unnormalized", Weights{Cost: 3, Technical: 4, PastPerformance: 3}, true},
		{"single", Weights{Technical: 1}, true},
		{"negative", Weights{Cost: -1, Technical: 2, PastPerformance: 1}, false},
		{"all zero", Weights{}, false},
		{"nan", Weights{Cost: math.NaN(), Technical: 1}, false},
		{"inf", Weights{Cost: math.Inf(1)}, false},
		{"sum overflows", Weights{Cost: 1e308, Technical: 1e308, PastPerformance: 1e308}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights(strings.NewReader(`{"cost": 0.2, "technical": 0.5, "past_performance": 0.3}`))
	require.NoError(t, err)
	assert.Equal(t, Weights{Cost: 0.2, Technical: 0.5, PastPerformance: 0.3}, w)

	bad := []string{
		`{"cost": 0.2, "technical": 0.5, "past_performance": 0.3, "price": 1}`,
		`{"cost": 0.2, "technical": 0.5}`,
		`{"cost": 0.2, "technical": 0.5, "past_performance": 0.3, "COST": 5}`,
		`{"cost": 0.2, "technical": 0.5, "past_performance": 0.3, "Technical": 0}`,
		`{"cost": -1, "technical": 0.5, "past_performance": 0.3}`,
		`{"cost": 0, "technical": 0, "past_performance": 0}`,
		`[1, 2, 3]`,
		`not json`,
	}
	for _, doc := range bad {
		_, err := ParseWeights(strings.NewReader(doc))
		assert.Error(t, err, doc)
	}
}

func TestNewBatch_FlattensIssuesInSubmissionOrder(t *testing.T) {
	a := scored("a", 0, 10, 0, 0)
	a.AddIssue(proposal.Issue{Stage: proposal.StageSegment, Kind: proposal.KindSegmentationMiss, Section: proposal.Technical})
	b := scored("b", 1, 90, 0, 0)
	b.Scores[proposal.Technical] = proposal.ScoreResult{Value: 40, Fallback: "heuristic"}
	b.AddIssue(proposal.Issue{Stage: proposal.StageScore, Kind: proposal.KindScoringServiceError, Section: proposal.Technical, Fallback: "heuristic"})

	batch := NewBatch("batch-1", []*proposal.Proposal{a, b}, DefaultWeights(), proposal.StrategyModel, "fake")

	assert.Equal(t, []string{"b", "a"}, ids(batch.Proposals))
	require.Len(t, batch.Issues, 2)
	assert.Equal(t, "a", batch.Issues[0].ProposalID)
	assert.Equal(t, "b", batch.Issues[1].ProposalID)
	assert.Equal(t, 1, batch.FallbackCount())
}
