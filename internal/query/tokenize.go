package query

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
}

// Tokenize preprocesses a natural language query: splits on whitespace,
// trims punctuation, drops stopwords and words shorter than 3 chars,
// lowercases the rest.
func Tokenize(text string) []string {
	words := strings.Fields(text)
	var tokens []string
	for _, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if len(trimmed) < 3 {
			continue
		}
		lower := strings.ToLower(trimmed)
		if stopwords[lower] {
			continue
		}
		tokens = append(tokens, lower)
	}
	return tokens
}
