package rank

import (
	"sort"
	"time"

	"github.com/dgallion1/bidrank/internal/proposal"
)

// Batch is the ranked outcome of one evaluation run.
type Batch struct {
	ID        string               `json:"batch_id"`
	CreatedAt time.Time            `json:"created_at"`
	Weights   Weights              `json:"weights"`
	Strategy  proposal.Strategy    `json:"strategy"`
	Model     string               `json:"model,omitempty"`
	Proposals []*proposal.Proposal `json:"proposals"` // rank order
	Issues    []proposal.Issue     `json:"issues"`
}

// NewBatch ranks proposals and flattens their issues in submission order.
func NewBatch(id string, proposals []*proposal.Proposal, w Weights, strategy proposal.Strategy, model string) *Batch {
	b := &Batch{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Weights:   w,
		Strategy:  strategy,
		Model:     model,
		Proposals: Rank(proposals, w),
		Issues:    []proposal.Issue{},
	}

	bySubmission := make([]*proposal.Proposal, len(proposals))
	copy(bySubmission, proposals)
	sort.SliceStable(bySubmission, func(i, j int) bool {
		return bySubmission[i].Index < bySubmission[j].Index
	})
	for _, p := range bySubmission {
		b.Issues = append(b.Issues, p.Issues...)
	}
	return b
}

// FallbackCount is the number of section scores produced by a fallback.
func (b *Batch) FallbackCount() int {
	n := 0
	for _, p := range b.Proposals {
		for _, r := range p.Scores {
			if r.Fallback != "" {
				n++
			}
		}
	}
	return n
}
