package validation

import "strings"

// Similarity scores how close two already-normalized titles are, in [0, 1].
// Implementations must be symmetric.
type Similarity interface {
	Score(a, b string) float64
}

// EditDistanceSimilarity scores titles by Levenshtein distance over runes,
// scaled by the longer title's length. Exact matches short-circuit to 1.0
// and containment (one title inside the other, as with subtitle variants
// like "Blade Runner" vs "Blade Runner: The Final Cut") to 0.9.
type EditDistanceSimilarity struct{}

func (EditDistanceSimilarity) Score(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	if contains(a, b) || contains(b, a) {
		return 0.9
	}

	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longest)
}

func contains(haystack, needle string) bool {
	return len(haystack) > len(needle) && strings.Contains(haystack, needle)
}

// levenshtein computes edit distance with the two-row dynamic programming
// formulation, O(min(len)) extra space.
func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
