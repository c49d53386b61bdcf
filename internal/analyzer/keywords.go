package analyzer

import (
	"sort"
	"strings"
	"unicode"

	"github.com/boopin/seo-url-analyzer/pkg/types"
)

// Keywords builds the ranked term frequency table of a corpus. Tokens are
// folded to lowercase, stripped of leading and trailing punctuation, and
// dropped when empty, non-alphanumeric, or stop words. The table is ordered
// by descending frequency with ties kept in first-appearance order and is
// capped at the configured top-N.
func (a *Analyzer) Keywords(corpus string) []types.KeywordEntry {
	freq := make(map[string]int)
	order := []string{}

	for _, token := range strings.Fields(strings.ToLower(corpus)) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if token == "" || !alphanumeric(token) {
			continue
		}
		if _, stop := a.stopWords[token]; stop {
			continue
		}
		if _, seen := freq[token]; !seen {
			order = append(order, token)
		}
		freq[token]++
	}

	entries := make([]types.KeywordEntry, 0, len(order))
	for _, term := range order {
		entries = append(entries, types.KeywordEntry{Term: term, Frequency: freq[term]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Frequency > entries[j].Frequency
	})

	if len(entries) > a.topN {
		entries = entries[:a.topN]
	}
	return entries
}

func alphanumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
