// Package tokenizer estimates token counts for embedding inputs when the
// provider does not report usage.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// CountTokens is a rough estimate: about 4/3 tokens per word, and never less
// than one token per 4 characters for text without spaces.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	byWords := len(strings.Fields(text)) * 4 / 3
	byChars := utf8.RuneCountInString(text) / 4
	return max(byWords, byChars, 1)
}

// CountAll sums CountTokens over texts.
func CountAll(texts []string) int {
	n := 0
	for _, t := range texts {
		n += CountTokens(t)
	}
	return n
}
