package ui

import (
	"sort"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

const (
	// DefaultMaxDistance is the largest edit distance still offered as a suggestion
	DefaultMaxDistance = 3
	// DefaultMaxSuggestions is the maximum number of suggestions returned
	DefaultMaxSuggestions = 3
)

type suggestion struct {
	value    string
	distance int
}

// Suggest returns up to DefaultMaxSuggestions candidates within DefaultMaxDistance edits of target,
// closest first. Matching ignores case.
//
//	Suggest("Custmer", []string{"Customer", "Order"}) // ["Customer"]
func Suggest(target string, candidates []string) []string {
	var matches []suggestion
	for _, candidate := range candidates {
		dist := EditDistance(strings.ToLower(target), strings.ToLower(candidate))
		if dist <= DefaultMaxDistance {
			matches = append(matches, suggestion{value: candidate, distance: dist})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	result := make([]string, 0, DefaultMaxSuggestions)
	for i := 0; i < len(matches) && i < DefaultMaxSuggestions; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// EditDistance is the Levenshtein distance between a and b, counted in runes
func EditDistance(a, b string) int {
	dmp := diffpatch.New()
	diffs := dmp.DiffMainRunes([]rune(a), []rune(b), false)
	return dmp.DiffLevenshtein(diffs)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
