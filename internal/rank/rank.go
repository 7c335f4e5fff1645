package rank

import (
	"math"
	"sort"

	"github.com/dgallion1/bidrank/internal/proposal"
)

// Aggregate returns the weighted mean of section scores, clipped to [0, 100].
// Missing scores count as 0.
func Aggregate(scores map[proposal.Section]proposal.ScoreResult, w Weights) float64 {
	// Weights are relative; scaling by the largest keeps the sum finite.
	scale := max(w.Cost, w.Technical, w.PastPerformance)
	if scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return 0
	}
	var total, sum float64
	for _, s := range proposal.AllSections {
		ws := w.Of(s) / scale
		total += ws * scores[s].Value
		sum += ws
	}
	total /= sum
	switch {
	case total < 0 || math.IsNaN(total):
		return 0
	case total > 100:
		return 100
	}
	return total
}

// Rank sets Total on every proposal, orders them by total descending and
// assigns competition ranks: equal totals share the lower rank number and
// the next rank skips (1, 2, 2, 4). Totals are compared at the two-decimal
// precision reports print, so float noise never splits a tie. Ties keep
// input order. The input slice is not modified; the returned slice is.
func Rank(proposals []*proposal.Proposal, w Weights) []*proposal.Proposal {
	out := make([]*proposal.Proposal, len(proposals))
	copy(out, proposals)
	for _, p := range out {
		p.Total = Aggregate(p.Scores, w)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return rankKey(out[i].Total) > rankKey(out[j].Total)
	})

	for i, p := range out {
		if i > 0 && rankKey(p.Total) == rankKey(out[i-1].Total) {
			p.Rank = out[i-1].Rank
		} else {
			p.Rank = i + 1
		}
	}
	return out
}

// rankKey is the total in hundredths.
func rankKey(total float64) int64 {
	return int64(math.Round(total * 100))
}
