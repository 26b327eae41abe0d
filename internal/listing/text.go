package listing

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds s for matching: lower case, diacritics stripped (é → e),
// whitespace collapsed and trimmed.
func Normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Matches reports whether any of fields contains the query after folding.
// An empty query matches everything.
func Matches(fields []string, query string) bool {
	q := Normalize(query)
	if q == "" {
		return true
	}
	return matchesFolded(fields, q)
}

func matchesFolded(fields []string, folded string) bool {
	for _, f := range fields {
		if strings.Contains(Normalize(f), folded) {
			return true
		}
	}
	return false
}
