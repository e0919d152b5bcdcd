package search

import (
	"strings"

	"github.com/apkgrab/apkgrab/internal/listing"
)

// Results carries both per-source lists and the reconciled ranking.
type Results struct {
	Mirror   []listing.Record `json:"mirror"`
	Play     []listing.Record `json:"play"`
	Combined []listing.Record `json:"combined"`
}

// Combine merges mirror and play result lists into one deduplicated list of at
// most limit entries. Mirror results win when they plausibly match the query
// because their download path is materially more reliable; play results fill
// gaps. Four fixed passes, each bounded by limit:
//
//  1. relevant mirror results, dedupe on exact lowercased name, marking both
//     the exact and the normalized name as seen
//  2. relevant play results whose exact name, normalized name and package are
//     all unseen, marking exact name and package
//  3. remaining mirror results in source order
//  4. remaining play results in source order
//
// This is a greedy priority-stratified merge, not a global rank sort; ties
// within a tier keep source order.
func Combine(query string, limit int, mirror, play []listing.Record, suffixes []string) []listing.Record {
	if limit <= 0 {
		limit = 10
	}
	queryLower := strings.ToLower(strings.TrimSpace(query))

	seenNames := make(map[string]struct{})
	seenPackages := make(map[string]struct{})
	combined := make([]listing.Record, 0, limit)

	nameSeen := func(name string) bool {
		_, ok := seenNames[name]
		return ok
	}
	packageSeen := func(pkg string) bool {
		_, ok := seenPackages[pkg]
		return ok
	}

	// Pass 1: relevant mirror results first.
	for _, rec := range mirror {
		if len(combined) >= limit {
			break
		}
		nameKey := strings.ToLower(rec.Name)
		if nameSeen(nameKey) || !isRelevant(queryLower, nameKey) {
			continue
		}
		combined = append(combined, rec)
		seenNames[nameKey] = struct{}{}
		seenNames[normalizeName(nameKey, suffixes)] = struct{}{}
	}

	// Pass 2: relevant play results not shadowed by a mirror entry.
	for _, rec := range play {
		if len(combined) >= limit {
			break
		}
		nameKey := strings.ToLower(rec.Name)
		if nameSeen(nameKey) || nameSeen(normalizeName(nameKey, suffixes)) || packageSeen(rec.Package) {
			continue
		}
		if !isRelevant(queryLower, nameKey) {
			continue
		}
		combined = append(combined, rec)
		seenNames[nameKey] = struct{}{}
		seenPackages[rec.Package] = struct{}{}
	}

	// Pass 3: remaining mirror results regardless of relevance.
	for _, rec := range mirror {
		if len(combined) >= limit {
			break
		}
		nameKey := strings.ToLower(rec.Name)
		if nameSeen(nameKey) {
			continue
		}
		combined = append(combined, rec)
		seenNames[nameKey] = struct{}{}
	}

	// Pass 4: remaining play results.
	for _, rec := range play {
		if len(combined) >= limit {
			break
		}
		nameKey := strings.ToLower(rec.Name)
		if nameSeen(nameKey) || packageSeen(rec.Package) {
			continue
		}
		combined = append(combined, rec)
		seenNames[nameKey] = struct{}{}
		seenPackages[rec.Package] = struct{}{}
	}

	if len(combined) > limit {
		combined = combined[:limit]
	}
	return combined
}

// isRelevant reports whether the query, or any whitespace token of it, appears
// as a substring of the lowercased name.
func isRelevant(queryLower, nameLower string) bool {
	if strings.Contains(nameLower, queryLower) {
		return true
	}
	for _, word := range strings.Fields(queryLower) {
		if strings.Contains(nameLower, word) {
			return true
		}
	}
	return false
}

// normalizeName strips the configured marketing suffix tokens so "VPN Master"
// and "VPN Master Pro" compare equal across sources.
func normalizeName(nameLower string, suffixes []string) string {
	for _, suffix := range suffixes {
		nameLower = strings.ReplaceAll(nameLower, suffix, "")
	}
	return strings.TrimSpace(nameLower)
}
