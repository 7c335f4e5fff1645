package scoring

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/dgallion1/bidrank/internal/proposal"
)

// Heuristic curve parameters.
const (
	// LengthScale is the word count at which the length component reaches
	// about 63% of its maximum.
	LengthScale = 150.0
	// DensityTarget is the keyword hit rate that earns full density credit.
	DensityTarget = 0.05
	LengthWeight  = 0.6
	DensityWeight = 0.4
)

// DefaultKeywords are lower-case stems matched at the start of each word.
var DefaultKeywords = map[proposal.Section][]string{
	proposal.Technical: {
		"approach", "method", "architect", "design", "implement", "deliver",
		"risk", "quality", "efficien", "scal", "secur", "test", "milestone",
		"requirement", "perform", "reliab", "innovat", "integrat",
	},
	proposal.PastPerformance: {
		"experience", "contract", "client", "customer", "deliver", "project",
		"award", "reference", "success", "on time", "on budget", "quality",
		"perform", "reliab", "efficien", "year", "similar",
	},
}

// Heuristic scores text from its length and keyword density, and scores
// cost by linear inverse scaling against the batch minimum.
type Heuristic struct {
	keywords map[proposal.Section][]string
}

func NewHeuristic() *Heuristic {
	return &Heuristic{keywords: DefaultKeywords}
}

func (h *Heuristic) Strategy() proposal.Strategy { return proposal.StrategyHeuristic }

func (h *Heuristic) Score(_ context.Context, req Request) (proposal.ScoreResult, error) {
	var v float64
	if req.Section == proposal.Cost {
		v = req.Baseline.Score(req.Cost)
	} else {
		v = h.TextScore(req.Section, req.Text)
	}
	return proposal.ScoreResult{Value: round2(clamp(v)), Strategy: proposal.StrategyHeuristic}, nil
}

// TextScore blends a saturating length curve with keyword density.
// Empty text scores 0; the result is monotone in length for fixed density.
func (h *Heuristic) TextScore(section proposal.Section, text string) float64 {
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}
	n := float64(len(words))
	length := 100 * (1 - math.Exp(-n/LengthScale))

	hits := countHits(words, strings.ToLower(text), h.keywords[section])
	density := 100 * math.Min(1, (float64(hits)/n)/DensityTarget)

	return LengthWeight*length + DensityWeight*density
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// countHits counts words starting with a stem. Multi-word stems are
// counted as phrases in the lower-cased text.
func countHits(words []string, lower string, stems []string) int {
	hits := 0
	for _, stem := range stems {
		if strings.Contains(stem, " ") {
			hits += strings.Count(lower, stem)
			continue
		}
		for _, w := range words {
			if strings.HasPrefix(w, stem) {
				hits++
			}
		}
	}
	return hits
}
