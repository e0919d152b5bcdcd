package sitemap

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the page-fetch collaborator. Satisfied by fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Options bound the sitemap crawl.
type Options struct {
	TTL      time.Duration // cache lifetime of a built index
	MaxFetch int           // cap on nested sitemaps fetched per rebuild
	Delay    time.Duration // pause between nested fetches
}

// Index lazily builds and TTL-caches the flat set of listing URLs found in the
// mirror site's sitemap. A rebuild replaces the whole set atomically; concurrent
// rebuilds collapse to one via singleflight, last rebuild wins.
type Index struct {
	baseURL string
	fetcher Fetcher
	opts    Options
	now     func() time.Time

	mu      sync.RWMutex
	urls    []string
	builtAt time.Time

	sf singleflight.Group
}

func New(baseURL string, fetcher Fetcher, opts Options) *Index {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.MaxFetch <= 0 {
		opts.MaxFetch = 15
	}
	return &Index{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		fetcher: fetcher,
		opts:    opts,
		now:     time.Now,
	}
}

// Load returns the cached URL set, rebuilding it when empty or expired.
// A failed rebuild yields whatever was accumulated, possibly nothing; the
// caller treats an empty index as zero candidates, never as an error.
func (ix *Index) Load(ctx context.Context) []string {
	ix.mu.RLock()
	if len(ix.urls) > 0 && ix.now().Sub(ix.builtAt) < ix.opts.TTL {
		urls := ix.urls
		ix.mu.RUnlock()
		return urls
	}
	ix.mu.RUnlock()

	result, _, _ := ix.sf.Do("sitemap", func() (interface{}, error) {
		urls := ix.crawl(ctx)
		ix.mu.Lock()
		ix.urls = urls
		ix.builtAt = ix.now()
		ix.mu.Unlock()
		return urls, nil
	})

	return result.([]string)
}

// crawl walks the top-level sitemap index and collects leaf listing URLs.
// Individual nested-sitemap failures are logged and skipped.
func (ix *Index) crawl(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var all []string

	top, err := ix.fetcher.Fetch(ctx, ix.baseURL+"/sitemap.xml")
	if err != nil {
		log.Error().Err(err).Str("base_url", ix.baseURL).Msg("failed to load sitemap index")
		return all
	}

	leafPattern := ix.leafPattern()

	nested := 0
	for _, loc := range extractLocs(top) {
		if !strings.Contains(loc, "post-sitemap") {
			continue
		}
		if nested >= ix.opts.MaxFetch {
			break
		}
		nested++

		content, err := ix.fetcher.Fetch(ctx, loc)
		if err != nil {
			log.Warn().Err(err).Str("sitemap_url", loc).Msg("skipping nested sitemap")
			continue
		}

		for _, leaf := range extractLocs(content) {
			if !leafPattern.MatchString(leaf) {
				continue
			}
			if isExcluded(leaf) {
				continue
			}
			if _, dup := seen[leaf]; dup {
				continue
			}
			seen[leaf] = struct{}{}
			all = append(all, leaf)
		}

		if ix.opts.Delay > 0 {
			select {
			case <-time.After(ix.opts.Delay):
			case <-ctx.Done():
				return all
			}
		}
	}

	log.Info().
		Int("url_count", len(all)).
		Int("sitemaps_fetched", nested).
		Msg("sitemap index rebuilt")
	return all
}

// leafPattern matches single-path-segment listing URLs under the mirror host,
// e.g. https://example.com/some-app-mod-apk/.
func (ix *Index) leafPattern() *regexp.Regexp {
	host := ix.baseURL
	if u, err := url.Parse(ix.baseURL); err == nil && u.Host != "" {
		host = u.Scheme + "://" + u.Host
	}
	return regexp.MustCompile("^" + regexp.QuoteMeta(host) + `/[a-z0-9-]+/?$`)
}

func isExcluded(u string) bool {
	return strings.Contains(u, "/app/") ||
		strings.Contains(u, "/game/") ||
		strings.Contains(u, "/author/")
}

// extractLocs pulls the text of every <loc> element from a sitemap document.
// Sitemaps are machine-generated and flat, so simple string scanning beats a
// full XML decoder here.
func extractLocs(doc string) []string {
	var locs []string
	rest := doc
	for {
		start := strings.Index(rest, "<loc>")
		if start == -1 {
			break
		}
		rest = rest[start+len("<loc>"):]
		end := strings.Index(rest, "</loc>")
		if end == -1 {
			break
		}
		loc := strings.TrimSpace(rest[:end])
		if loc != "" {
			locs = append(locs, loc)
		}
		rest = rest[end+len("</loc>"):]
	}
	return locs
}
