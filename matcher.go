package main

import (
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// findAdvancedMatches is the hybrid title matcher:
//  1. substring containment, in candidate order
//  2. token-set fuzzy scores at or above the cutoff, best first
//  3. merge, first-seen order, deduplicated
//  4. if the merge is empty and the query has several words, rank by how
//     many query tokens appear in the candidate
//
// Exact-key hits are handled by the caller before this runs.
func findAdvancedMatches(query string, candidates []string, limit, scoreCutoff int) []string {
	q := canonicalTitle(query)
	if q == "" {
		return nil
	}

	var keywordMatches []string
	for _, title := range candidates {
		if strings.Contains(strings.ToLower(title), q) {
			keywordMatches = append(keywordMatches, title)
		}
	}

	type scored struct {
		title string
		score int
	}
	var fuzzyHits []scored
	for _, title := range candidates {
		score := fuzzy.TokenSetRatio(q, strings.ToLower(title))
		if score >= scoreCutoff {
			fuzzyHits = append(fuzzyHits, scored{title, score})
		}
	}
	sort.Slice(fuzzyHits, func(i, j int) bool {
		if fuzzyHits[i].score != fuzzyHits[j].score {
			return fuzzyHits[i].score > fuzzyHits[j].score
		}
		return fuzzyHits[i].title < fuzzyHits[j].title
	})
	if len(fuzzyHits) > limit*2 {
		fuzzyHits = fuzzyHits[:limit*2]
	}

	seen := make(map[string]bool)
	var merged []string
	for _, t := range keywordMatches {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, h := range fuzzyHits {
		if !seen[h.title] {
			seen[h.title] = true
			merged = append(merged, h.title)
		}
	}

	// Multi-word queries that both tiers rejected still get a shot via
	// plain token overlap. Single-word queries intentionally do not.
	if len(merged) == 0 && strings.Contains(q, " ") {
		type hit struct {
			title string
			count int
		}
		var hits []hit
		tokens := strings.Fields(q)
		for _, title := range candidates {
			tl := strings.ToLower(title)
			count := 0
			for _, tok := range tokens {
				if strings.Contains(tl, tok) {
					count++
				}
			}
			if count > 0 {
				hits = append(hits, hit{title, count})
			}
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].count != hits[j].count {
				return hits[i].count > hits[j].count
			}
			return hits[i].title < hits[j].title
		})
		for _, h := range hits {
			merged = append(merged, h.title)
		}
	}

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
