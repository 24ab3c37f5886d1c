package catalog

import (
	"strings"
	"unicode"
)

// stopwords are generic category words that add lexical noise without
// identifying a product ("Coca-Cola Classic Soft Drink" vs "Coca Cola
// Classic"). Removed as whole words.
var stopwords = map[string]struct{}{
	"drink":     {},
	"snack":     {},
	"product":   {},
	"brand":     {},
	"mix":       {},
	"bar":       {},
	"food":      {},
	"beverage":  {},
	"packaged":  {},
	"soft":      {},
	"the":       {},
	"a":         {},
	"original":  {},
	"flavored":  {},
	"flavoured": {},
}

// NormalizeKey derives the canonical matching key for a (brand, name) pair:
// lowercase, punctuation stripped to whitespace, stopwords removed, runs of
// whitespace collapsed. Idempotent. An empty key never participates in
// matching.
func NormalizeKey(brand, name string) string {
	raw := strings.ToLower(strings.TrimSpace(brand + " " + name))

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if _, skip := stopwords[w]; skip {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// normalizeField canonicalizes a single name or brand for exact matching:
// lowercase with collapsed whitespace, no stopword removal.
func normalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
