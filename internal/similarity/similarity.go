// Package similarity provides edit-distance and normalized string
// similarity primitives used by the text correction models.
package similarity

import "strings"

// Normalize lowercases a string and collapses surrounding/internal
// whitespace runs to single spaces. All similarity comparisons operate
// on normalized input so that "Chicago  Cubs " and "chicago cubs"
// compare as identical.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// EditDistance returns the minimum number of single-rune insertions,
// deletions, and substitutions required to transform a into b
// (Levenshtein distance). Inputs are compared as given; callers that
// want case-insensitive behavior should Normalize first.
func EditDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two-row DP over the shorter string to keep allocation small.
	if len(rb) > len(ra) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Score returns a normalized similarity in [0,1]:
//
//	1 - EditDistance(a, b) / max(len(a), len(b))
//
// computed over normalized (lowercased, whitespace-collapsed) input.
// Two empty strings score 0, not 1: an empty extraction carries no
// evidence of agreement. Identical non-empty strings score 1.
func Score(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == "" && nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	la := len([]rune(na))
	lb := len([]rune(nb))
	longest := max(la, lb)

	return 1 - float64(EditDistance(na, nb))/float64(longest)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
