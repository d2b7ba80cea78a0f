// Package textnorm canonicalizes raw catalog and corpus text before vectorization.
package textnorm

import (
	"strings"
	"unicode"
)

// Normalize lower-cases s, replaces every rune that is not a word rune,
// whitespace or hyphen with a space, and collapses whitespace runs.
// The result has no leading or trailing space. Normalize is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		if !IsWordRune(r) && r != '-' {
			// Covers both whitespace and stripped punctuation.
			pendingSpace = true
			continue
		}
		if pendingSpace && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		pendingSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// IsWordRune reports whether r is a letter, digit or underscore.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
