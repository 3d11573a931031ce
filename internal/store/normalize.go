package store

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeLabel canonicalizes a label for identity comparison: lowercase,
// trimmed, inner whitespace collapsed, trailing punctuation stripped.
// (type, NormalizeLabel(label)) is the de-dup key used by synthesis upserts.
func NormalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = whitespaceRe.ReplaceAllString(label, " ")
	return strings.TrimRight(label, ".,!?;:")
}
