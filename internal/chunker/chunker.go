// Package chunker trims section text to a model prompt budget, cutting on
// paragraph, then sentence, then word boundaries.
package chunker

import (
	"sort"
	"strings"
	"unicode"
)

// Fit returns the leading part of text that fits in maxTokens. truncated
// reports whether anything was dropped. maxTokens <= 0 disables the limit.
func Fit(text string, maxTokens int) (fitted string, truncated bool) {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text, false
	}
	budget := max(wordsFor(maxTokens), 1)

	var kept []string
	used := 0
	for _, para := range paragraphs(text) {
		n := wordCount(para)
		if used+n <= budget {
			kept = append(kept, para)
			used += n
			continue
		}
		if len(kept) == 0 {
			return fitSentences(para, budget), true
		}
		break
	}
	return strings.Join(kept, "\n\n"), true
}

// Allot divides maxTokens across texts of the given token sizes. Texts that
// need less than an even share pass the surplus to the others. Every
// returned budget is at least 1 unless maxTokens <= 0, in which case all
// budgets are 0 (no limit).
func Allot(sizes []int, maxTokens int) []int {
	budgets := make([]int, len(sizes))
	if maxTokens <= 0 || len(sizes) == 0 {
		return budgets
	}

	order := make([]int, len(sizes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return sizes[order[a]] < sizes[order[b]] })

	remaining := maxTokens
	for k, idx := range order {
		share := remaining / (len(order) - k)
		give := min(sizes[idx], share)
		budgets[idx] = max(give, 1)
		remaining -= give
	}
	return budgets
}

// fitSentences keeps whole sentences up to budget words. A first sentence
// longer than the budget is cut on words.
func fitSentences(para string, budget int) string {
	var kept []string
	used := 0
	for _, s := range sentences(para) {
		n := wordCount(s)
		if used+n > budget {
			if len(kept) == 0 {
				return strings.Join(strings.Fields(s)[:budget], " ")
			}
			break
		}
		kept = append(kept, s)
		used += n
	}
	return strings.Join(kept, " ")
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentences splits after '.', '!' or '?' when followed by whitespace or the
// end of text. Decimals such as "1.5" stay intact.
func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && !unicode.IsSpace(rune(text[i+1])) {
				continue
			}
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
