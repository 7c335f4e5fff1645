// Package proposal defines the records that flow through an evaluation batch.
package proposal

import (
	"strings"
	"unicode/utf8"
)

// Section identifies one of the three scored proposal sections.
type Section string

const (
	Technical       Section = "technical"
	PastPerformance Section = "past_performance"
	Cost            Section = "cost"
)

// AllSections lists the sections in report column order.
var AllSections = []Section{Cost, Technical, PastPerformance}

// Label is the human-readable column heading.
func (s Section) Label() string {
	switch s {
	case Technical:
		return "Technical Approach"
	case PastPerformance:
		return "Past Performance"
	case Cost:
		return "Cost"
	}
	return string(s)
}

// Strategy names the scorer that produced a value.
type Strategy string

const (
	StrategyHeuristic Strategy = "heuristic"
	StrategyModel     Strategy = "external-model"
)

// ScoreResult is one section score.
type ScoreResult struct {
	Value     float64  `json:"value"`
	Strategy  Strategy `json:"strategy"`
	Rationale string   `json:"rationale,omitempty"`
	Fallback  string   `json:"fallback,omitempty"` // set when a fallback produced Value
}

// Sections maps each section to its extracted text. Missing sections map to "".
type Sections map[Section]string

// Stage is the pipeline step an issue was raised in.
type Stage string

const (
	StageExtract Stage = "extract"
	StageSegment Stage = "segment"
	StageScore   Stage = "score"
	StageExplain Stage = "explain"
)

// IssueKind classifies recoverable failures.
type IssueKind string

const (
	KindExtractionError     IssueKind = "extraction_error"
	KindSegmentationMiss    IssueKind = "segmentation_miss"
	KindScoringServiceError IssueKind = "scoring_service_error"
	KindExplanationError    IssueKind = "explanation_error"
)

// Issue is an audit record for a recoverable failure.
type Issue struct {
	ProposalID string    `json:"proposal_id"`
	Stage      Stage     `json:"stage"`
	Kind       IssueKind `json:"kind"`
	Section    Section   `json:"section,omitempty"`
	Fallback   string    `json:"fallback,omitempty"`
	Detail     string    `json:"detail"`
}

// Proposal is one submitted document moving through the pipeline.
// Once ranked it is treated as read-only.
type Proposal struct {
	ID       string                  `json:"id"`
	Index    int                     `json:"index"`
	Text     string                  `json:"-"`
	Sections Sections                `json:"-"`
	Cost     *float64                `json:"cost,omitempty"`
	Scores   map[Section]ScoreResult `json:"scores"`
	Total    float64                 `json:"total"`
	Rank     int                     `json:"rank"`
	Excerpt  string                  `json:"excerpt,omitempty"` // leading section text for reports
	Summary  string                  `json:"summary,omitempty"` // model-written insights
	Issues   []Issue                 `json:"issues,omitempty"`
}

// New returns an empty proposal with every section present and unscored.
func New(id string, index int) *Proposal {
	p := &Proposal{
		ID:       id,
		Index:    index,
		Sections: make(Sections, len(AllSections)),
		Scores:   make(map[Section]ScoreResult, len(AllSections)),
	}
	for _, s := range AllSections {
		p.Sections[s] = ""
	}
	return p
}

// AddIssue records a recoverable failure against this proposal.
func (p *Proposal) AddIssue(issue Issue) {
	issue.ProposalID = p.ID
	p.Issues = append(p.Issues, issue)
}

// Score returns the value for a section, 0 when unscored.
func (p *Proposal) Score(s Section) float64 {
	return p.Scores[s].Value
}

// SetExcerpt fills Excerpt from the found sections, in report order,
// cut to at most n bytes on a rune boundary.
func (p *Proposal) SetExcerpt(n int) {
	var parts []string
	for _, s := range AllSections {
		if t := strings.Join(strings.Fields(p.Sections[s]), " "); t != "" {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, " | ")
	if len(text) > n {
		cut := n
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	p.Excerpt = text
}

// Fallbacks lists "section:fallback" for every section scored by a fallback.
func (p *Proposal) Fallbacks() string {
	var out []string
	for _, s := range AllSections {
		if r, ok := p.Scores[s]; ok && r.Fallback != "" {
			out = append(out, string(s)+":"+r.Fallback)
		}
	}
	return strings.Join(out, ", ")
}
