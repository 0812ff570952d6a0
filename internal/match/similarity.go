// Package match resolves a row's product reference against the catalog:
// exact code match first, then a cheap description-similarity fallback
// for exports whose item codes don't line up with the catalog.
package match

import "strings"

// Similarity scores two free-text descriptions in [0, 1] using a
// positional character-match ratio: the count of positions where the
// normalized strings agree, divided by the longer string's length. It is
// intentionally cheap (no quadratic alignment) because it runs inside a
// per-row scan over the whole catalog.
func Similarity(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)

	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	ra := []rune(a)
	rb := []rune(b)
	shorter, longer := ra, rb
	if len(rb) < len(ra) {
		shorter, longer = rb, ra
	}

	matches := 0
	for i := range shorter {
		if shorter[i] == longer[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(longer))
}

// normalize lowercases, trims, and collapses internal whitespace runs to
// a single space.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
