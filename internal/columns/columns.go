// Package columns checks that the columns an analysis needs are present and
// proposes close matches for the missing ones.
package columns

import "sort"

// DefaultCutoff is the minimum similarity for a suggestion.
const DefaultCutoff = 0.6

// maxSuggestions is the number of close matches returned per column.
const maxSuggestions = 3

// CheckRequired reports whether every required column is present and lists
// the missing ones in the order they were required.
func CheckRequired(columns, required []string) (bool, []string) {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := present[r]; !ok {
			missing = append(missing, r)
		}
	}
	return len(missing) == 0, missing
}

// SuggestSimilar returns, for each missing column, up to three columns whose
// similarity ratio is at least cutoff, best first.
func SuggestSimilar(columns, missing []string, cutoff float64) map[string][]string {
	out := make(map[string][]string, len(missing))
	for _, m := range missing {
		out[m] = closeMatches(m, columns, maxSuggestions, cutoff)
	}
	return out
}

type scored struct {
	name  string
	score float64
}

func closeMatches(word string, candidates []string, n int, cutoff float64) []string {
	var hits []scored
	for _, c := range candidates {
		if s := Ratio(word, c); s >= cutoff {
			hits = append(hits, scored{c, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].name > hits[j].name
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

// Ratio is the Ratcliff/Obershelp similarity of a and b: twice the number of
// matching characters divided by the total length.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingChars(ra, rb)) / float64(total)
}

// matchingChars sums the lengths of the longest common blocks found
// recursively on both sides of each match.
func matchingChars(a, b []rune) int {
	i, j, size := longestBlock(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingChars(a[:i], b[:j]) + matchingChars(a[i+size:], b[j+size:])
}

func longestBlock(a, b []rune) (int, int, int) {
	bestI, bestJ, best := 0, 0, 0
	prev := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best, bestI, bestJ = cur[j], i-cur[j], j-cur[j]
				}
			}
		}
		prev = cur
	}
	return bestI, bestJ, best
}
