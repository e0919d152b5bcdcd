package search

import (
	"context"
	"strings"
	"sync"

	"github.com/phuslu/log"

	"github.com/apkgrab/apkgrab/internal/listing"
	"github.com/apkgrab/apkgrab/internal/mirror"
	"github.com/apkgrab/apkgrab/internal/pkgcache"
)

// MirrorSearcher is the primary-source adapter contract.
type MirrorSearcher interface {
	Search(ctx context.Context, query string, limit int) []listing.Record
}

// PlaySearcher is the secondary-source adapter contract.
type PlaySearcher interface {
	Search(ctx context.Context, query string, n int) []listing.Record
}

// Service fans a query out to both source adapters and reconciles the results.
type Service struct {
	mirror   MirrorSearcher
	play     PlaySearcher
	cache    *pkgcache.Cache
	suffixes []string
}

func NewService(m MirrorSearcher, p PlaySearcher, cache *pkgcache.Cache, suffixes []string) *Service {
	return &Service{
		mirror:   m,
		play:     p,
		cache:    cache,
		suffixes: suffixes,
	}
}

// Search runs both adapters concurrently and merges once both have returned.
// Play results are upserted into the package cache as a side effect so later
// identifier resolution can skip the store.
func (s *Service) Search(ctx context.Context, query string, limit int) Results {
	var (
		wg            sync.WaitGroup
		mirrorResults []listing.Record
		playResults   []listing.Record
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		mirrorResults = dropUnnamed(s.mirror.Search(ctx, query, limit))
	}()
	go func() {
		defer wg.Done()
		playResults = dropUnnamed(s.play.Search(ctx, query, limit))
	}()
	wg.Wait()

	for _, rec := range playResults {
		s.cache.Put(mirror.Slugify(rec.Name), rec.Package, rec.Name, rec.Image, string(listing.SourcePlay))
	}

	log.Debug().
		Str("query", query).
		Int("mirror_results", len(mirrorResults)).
		Int("play_results", len(playResults)).
		Msg("search adapters completed")

	return Results{
		Mirror:   mirrorResults,
		Play:     playResults,
		Combined: Combine(query, limit, mirrorResults, playResults, s.suffixes),
	}
}

// MirrorOnly searches just the primary source.
func (s *Service) MirrorOnly(ctx context.Context, query string, limit int) []listing.Record {
	return dropUnnamed(s.mirror.Search(ctx, query, limit))
}

// ResolvePackage maps a listing slug to a store package identifier, consulting
// the package cache before falling back to a store search. Returns "" when
// nothing matches.
func (s *Service) ResolvePackage(ctx context.Context, slug string) string {
	if entry, ok := s.cache.Get(slug); ok {
		return entry.Package
	}

	searchTerm := strings.ReplaceAll(slug, "-", " ")
	results := s.play.Search(ctx, searchTerm, 5)
	if len(results) == 0 {
		return ""
	}

	slugLower := strings.ToLower(slug)
	pick := results[0]
	for _, rec := range results {
		recSlug := mirror.Slugify(rec.Name)
		if strings.Contains(recSlug, slugLower) || strings.Contains(slugLower, recSlug) {
			pick = rec
			break
		}
	}

	s.cache.Put(slug, pick.Package, pick.Name, pick.Image, string(listing.SourcePlay))
	return pick.Package
}

// dropUnnamed enforces the adapter-boundary invariant that retained records
// always have a name.
func dropUnnamed(records []listing.Record) []listing.Record {
	kept := records[:0]
	for _, rec := range records {
		if rec.Name != "" {
			kept = append(kept, rec)
		}
	}
	return kept
}
