package matcher

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Similarity computes a fuzzy similarity ratio between two strings on a
// 0-100 scale. It is an interface so tests and callers can substitute a
// different measure without touching the scoring code.
type Similarity interface {
	Ratio(a, b string) int
}

// TokenSortSimilarity is the default Similarity implementation. It lowercases
// both strings, splits them into tokens, sorts the tokens and compares the
// rejoined forms by Levenshtein distance, making the measure insensitive to
// case and token order. Product descriptions frequently reorder brand, size
// and packaging tokens between invoice and receipt, which plain edit
// distance penalizes heavily.
type TokenSortSimilarity struct{}

// NewTokenSortSimilarity returns the default similarity measure.
func NewTokenSortSimilarity() *TokenSortSimilarity {
	return &TokenSortSimilarity{}
}

// Ratio returns the token-sorted Levenshtein similarity ratio (0-100).
func (ts *TokenSortSimilarity) Ratio(a, b string) int {
	na := tokenSortNormalize(a)
	nb := tokenSortNormalize(b)

	if na == "" && nb == "" {
		return 100
	}
	if na == "" || nb == "" {
		return 0
	}

	ra := []rune(na)
	rb := []rune(nb)

	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}

	return int(float64(longest-distance) / float64(longest) * 100)
}

func tokenSortNormalize(s string) string {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
