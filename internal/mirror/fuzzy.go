package mirror

import (
	"sort"
	"strings"
)

// Scoring bands for candidate listings. Exact substring matches on the slug
// beat matches on the display name, which beat similarity-only matches.
const (
	scoreSlugSubstring = 100
	scoreNameSubstring = 90
	scoreSimilarityMax = 80
	scoreSpeculative   = 50

	similarityFloor = 0.5
)

type candidate struct {
	slug string
	name string
	url  string
}

type scored struct {
	candidate
	score int
}

// scoreCandidates assigns a relevance score to every candidate and returns the
// survivors sorted by score descending. Sorting is stable so ties keep their
// sitemap discovery order.
func scoreCandidates(query string, candidates []candidate) []scored {
	q := strings.ToLower(strings.TrimSpace(query))
	// Slugs are hyphenated, so a multi-word query only matches them after
	// the same normalization.
	slugQ := strings.ReplaceAll(q, " ", "-")

	var results []scored
	for _, c := range candidates {
		score := 0
		switch {
		case strings.Contains(c.slug, slugQ):
			score = scoreSlugSubstring
		case strings.Contains(strings.ToLower(c.name), q):
			score = scoreNameSubstring
		default:
			if ratio := similarityRatio(q, c.slug); ratio > similarityFloor {
				score = int(ratio * scoreSimilarityMax)
			}
		}
		if score > 0 {
			results = append(results, scored{candidate: c, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	return results
}

// similarityRatio is a character-level similarity in [0,1]: twice the length of
// the longest common subsequence over the combined length of both strings.
func similarityRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Single-row LCS table; the inputs are short slugs.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}
