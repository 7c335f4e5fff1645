package chunker

import "strings"

// tokensPerWord approximates English text under common model tokenizers.
const tokensPerWord = 1.33

// EstimateTokens gives a rough token count from the word count. Any
// non-empty text counts as at least one token.
func EstimateTokens(text string) int {
	words := wordCount(text)
	if words == 0 {
		if text != "" {
			return 1
		}
		return 0
	}
	return int(float64(words) * tokensPerWord)
}

// wordsFor is the largest word count whose estimate stays within tokens.
func wordsFor(tokens int) int {
	return int(float64(tokens) / tokensPerWord)
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
