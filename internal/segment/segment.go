// Package segment locates the Technical, Past Performance and Cost
// sections of a proposal by literal heading matching.
package segment

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dgallion1/bidrank/internal/proposal"
)

// MaxHeadingWords bounds how long a heading line without a separator may be.
const MaxHeadingWords = 6

// DefaultSynonyms are the heading phrases recognized for each section.
var DefaultSynonyms = map[proposal.Section][]string{
	proposal.Technical: {
		"Technical Approach", "Technical Proposal", "Technical Volume",
		"Technical Merit", "Technical Solution", "Approach",
	},
	proposal.PastPerformance: {
		"Past Performance", "Relevant Experience", "Corporate Experience",
		"Prior Experience", "Experience", "References",
	},
	proposal.Cost: {
		"Cost Proposal", "Cost Volume", "Price Proposal", "Cost",
		"Pricing", "Price", "Budget",
	},
}

var (
	markupRe = regexp.MustCompile(`^(?:#+\s*|[-*•▪]\s+)`)
	labelRe  = regexp.MustCompile(`(?i)^(?:section|volume|part|tab)\s+(?:\d+(?:\.\d+)*|[ivxlcdm]+|[a-z])\b\s*[.):\-–—]?\s*`)
	enumRe   = regexp.MustCompile(`(?i)^(?:\d+(?:\.\d+)*[.):]?|[ivxlcdm]+[.)]|[a-z][.)])\s+`)
	// Table-of-contents entries: "Cost ........ 7".
	tocRe = regexp.MustCompile(`\.{3,}\s*\d+\s*$`)
)

type synonym struct {
	phrase  string // lower-cased
	section proposal.Section
}

// Segmenter splits document text into sections. It is stateless and safe
// for concurrent use.
type Segmenter struct {
	synonyms []synonym
}

// New builds a segmenter. A nil map uses DefaultSynonyms.
func New(synonyms map[proposal.Section][]string) *Segmenter {
	if synonyms == nil {
		synonyms = DefaultSynonyms
	}
	s := &Segmenter{}
	for sec, phrases := range synonyms {
		for _, p := range phrases {
			s.synonyms = append(s.synonyms, synonym{phrase: strings.ToLower(p), section: sec})
		}
	}
	// Longest phrase first so "Cost Proposal" wins over "Cost".
	sort.SliceStable(s.synonyms, func(i, j int) bool {
		if len(s.synonyms[i].phrase) != len(s.synonyms[j].phrase) {
			return len(s.synonyms[i].phrase) > len(s.synonyms[j].phrase)
		}
		return s.synonyms[i].phrase < s.synonyms[j].phrase
	})
	return s
}

// Heading is a recognized section heading.
type Heading struct {
	Section proposal.Section
	Line    string
	Offset  int // byte offset of the heading line in the text
}

// Span is the byte range [Start, End) a section occupies.
type Span struct {
	Start, End int
}

// Headings returns every recognized heading in document order.
func (s *Segmenter) Headings(text string) []Heading {
	var out []Heading
	offset := 0
	for offset <= len(text) {
		end := strings.IndexAny(text[offset:], "\n\r\f")
		var line string
		if end < 0 {
			line = text[offset:]
		} else {
			line = text[offset : offset+end]
		}
		if sec, ok := s.Match(line); ok {
			out = append(out, Heading{Section: sec, Line: strings.TrimSpace(line), Offset: offset})
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return out
}

// Boundaries returns the span of each found section. A section runs from
// its first heading to the next recognized heading of any section, or to
// the end of the text. Later duplicate headings only close the preceding
// section.
func (s *Segmenter) Boundaries(text string) map[proposal.Section]Span {
	headings := s.Headings(text)
	spans := make(map[proposal.Section]Span, 3)
	for i, h := range headings {
		if _, seen := spans[h.Section]; seen {
			continue
		}
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].Offset
		}
		spans[h.Section] = Span{Start: h.Offset, End: end}
	}
	return spans
}

// Segment maps every section to its text. Missing sections map to "".
func (s *Segmenter) Segment(text string) proposal.Sections {
	out := make(proposal.Sections, len(proposal.AllSections))
	for _, sec := range proposal.AllSections {
		out[sec] = ""
	}
	for sec, span := range s.Boundaries(text) {
		out[sec] = strings.TrimSpace(text[span.Start:span.End])
	}
	return out
}

// Missing lists the sections that came back empty, in report order.
func Missing(sections proposal.Sections) []proposal.Section {
	var out []proposal.Section
	for _, sec := range proposal.AllSections {
		if sections[sec] == "" {
			out = append(out, sec)
		}
	}
	return out
}

// Match reports whether a single line is a section heading.
func (s *Segmenter) Match(line string) (proposal.Section, bool) {
	line = stripPrefix(line)
	if line == "" || tocRe.MatchString(line) {
		return "", false
	}
	lower := strings.ToLower(line)
	for _, syn := range s.synonyms {
		if !strings.HasPrefix(lower, syn.phrase) {
			continue
		}
		rest := lower[len(syn.phrase):]
		if rest != "" && isWordRune(firstRune(rest)) {
			continue
		}
		rest = strings.TrimSpace(rest)
		if rest == "" || strings.ContainsRune(":-–—.)", firstRune(rest)) {
			return syn.section, true
		}
		// A short run-on heading must start upper-case; wrapped body lines do not.
		if unicode.IsUpper(firstRune(line)) && len(strings.Fields(line)) <= MaxHeadingWords && !strings.ContainsAny(line[len(line)-1:], ".!?;,") {
			return syn.section, true
		}
		return "", false
	}
	return "", false
}

// stripPrefix removes markup and enumeration ahead of the heading text,
// e.g. "## 2.1 ", "- ", "Section 3: ", "IV. ", "**".
func stripPrefix(line string) string {
	line = strings.TrimSpace(line)
	line = markupRe.ReplaceAllString(line, "")
	line = strings.Trim(line, "*_ \t")
	if loc := labelRe.FindStringIndex(line); loc != nil {
		line = line[loc[1]:]
	} else if loc := enumRe.FindStringIndex(line); loc != nil {
		line = line[loc[1]:]
	}
	return strings.TrimSpace(line)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
