package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/dgallion1/bidrank/internal/rank"
)

// Document is the structured report.
type Document struct {
	BatchID   string            `json:"batch_id"`
	CreatedAt time.Time         `json:"created_at"`
	Strategy  proposal.Strategy `json:"strategy"`
	Model     string            `json:"model,omitempty"`
	Weights   rank.Weights      `json:"weights"`
	Proposals []Record          `json:"proposals"`
	Issues    []proposal.Issue  `json:"issues"`
}

// Record is one ranked proposal.
type Record struct {
	Rank          int                                `json:"rank"`
	ID            string                             `json:"id"`
	Total         float64                            `json:"total"`
	ExtractedCost *float64                           `json:"extracted_cost"`
	Scores        map[proposal.Section]SectionRecord `json:"scores"`
	Excerpt       string                             `json:"excerpt,omitempty"`
	Summary       string                             `json:"summary,omitempty"`
	Issues        []proposal.Issue                   `json:"issues"`
}

// SectionRecord is one section score with its provenance.
type SectionRecord struct {
	Score     float64           `json:"score"`
	Strategy  proposal.Strategy `json:"strategy"`
	Rationale string            `json:"rationale,omitempty"`
	Fallback  string            `json:"fallback,omitempty"`
}

// NewDocument flattens a batch into report records.
func NewDocument(b *rank.Batch) Document {
	doc := Document{
		BatchID:   b.ID,
		CreatedAt: b.CreatedAt,
		Strategy:  b.Strategy,
		Model:     b.Model,
		Weights:   b.Weights,
		Proposals: make([]Record, 0, len(b.Proposals)),
		Issues:    b.Issues,
	}
	if doc.Issues == nil {
		doc.Issues = []proposal.Issue{}
	}
	for _, p := range b.Proposals {
		rec := Record{
			Rank:          p.Rank,
			ID:            p.ID,
			Total:         round2(p.Total),
			ExtractedCost: p.Cost,
			Scores:        make(map[proposal.Section]SectionRecord, len(proposal.AllSections)),
			Excerpt:       p.Excerpt,
			Summary:       p.Summary,
			Issues:        p.Issues,
		}
		if rec.Issues == nil {
			rec.Issues = []proposal.Issue{}
		}
		for _, s := range proposal.AllSections {
			r := p.Scores[s]
			rec.Scores[s] = SectionRecord{
				Score:     r.Value,
				Strategy:  r.Strategy,
				Rationale: r.Rationale,
				Fallback:  r.Fallback,
			}
		}
		doc.Proposals = append(doc.Proposals, rec)
	}
	return doc
}

// WriteJSON writes the structured report, indented.
func WriteJSON(w io.Writer, b *rank.Batch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(b)); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
