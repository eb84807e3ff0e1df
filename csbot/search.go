package csbot

import (
	"regexp"
	"strings"
)

var segmentSplitPattern = regexp.MustCompile(`[\s-]+`)

// Match tiers, strongest first.
const (
	matchTierPrefix        = 3
	matchTierSegmentPrefix = 2
	matchTierContains      = 1
	matchTierNone          = 0
)

// matchTier scores how well a candidate matches a query:
// 3 if the candidate starts with the query, 2 if any whitespace- or
// hyphen-delimited segment does, 1 if the candidate contains the query
// anywhere, 0 otherwise. Comparison is case-insensitive.
func matchTier(query, candidate string) int {
	query = strings.ToLower(query)
	candidate = strings.ToLower(candidate)

	if strings.HasPrefix(candidate, query) {
		return matchTierPrefix
	}
	for _, segment := range segmentSplitPattern.Split(candidate, -1) {
		if strings.HasPrefix(segment, query) {
			return matchTierSegmentPrefix
		}
	}
	if strings.Contains(candidate, query) {
		return matchTierContains
	}
	return matchTierNone
}

// searchRank returns a permutation of the candidate indices, ordered
// by descending match tier; non-matching candidates trail the matches.
// Candidates within the same tier keep their original relative order.
// An empty query matches every candidate in original order.
func searchRank(query string, candidates []string) []int {
	if query == "" {
		result := make([]int, len(candidates))
		for i := range candidates {
			result[i] = i
		}
		return result
	}

	result := make([]int, 0, len(candidates))
	for tier := matchTierPrefix; tier >= matchTierNone; tier-- {
		for i, candidate := range candidates {
			if matchTier(query, candidate) == tier {
				result = append(result, i)
			}
		}
	}
	return result
}
