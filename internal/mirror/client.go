package mirror

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/phuslu/log"

	"github.com/apkgrab/apkgrab/internal/listing"
	"github.com/apkgrab/apkgrab/internal/sitemap"
)

// Fetcher is the page-fetch collaborator used by the client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
	Probe(ctx context.Context, url string) bool
}

// Client is the primary-source search adapter: it searches the mirror site via
// its sitemap index and scrapes detail and download pages.
type Client struct {
	baseURL   string
	host      string
	fetcher   Fetcher
	index     *sitemap.Index
	searchCap int
}

func NewClient(baseURL string, fetcher Fetcher, index *sitemap.Index, searchCap int) *Client {
	if searchCap <= 0 {
		searchCap = 20
	}
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		host:      host,
		fetcher:   fetcher,
		index:     index,
		searchCap: searchCap,
	}
}

// ListingURL builds the canonical listing URL for a slug.
func (c *Client) ListingURL(slug string) string {
	return c.baseURL + "/" + strings.Trim(slug, "/") + "/"
}

// Search scores every sitemap candidate against the query and returns the best
// matches, capped and sorted by score descending. A failed or empty sitemap
// load degrades to the speculative-probe path instead of erroring.
func (c *Client) Search(ctx context.Context, query string, limit int) []listing.Record {
	limitCap := c.searchCap
	if limit > 0 && limit < limitCap {
		limitCap = limit
	}

	urls := c.index.Load(ctx)
	candidates := make([]candidate, 0, len(urls))
	for _, u := range urls {
		slug := SlugFromURL(u)
		name := NameFromSlug(slug)
		if name == "" {
			continue
		}
		candidates = append(candidates, candidate{slug: slug, name: name, url: u})
	}

	matches := scoreCandidates(query, candidates)
	if len(matches) == 0 {
		if rec, ok := c.probeSlugGuess(ctx, query); ok {
			return []listing.Record{rec}
		}
		return nil
	}

	if len(matches) > limitCap {
		matches = matches[:limitCap]
	}

	records := make([]listing.Record, 0, len(matches))
	for _, m := range matches {
		records = append(records, listing.Record{
			Name:   m.name,
			URL:    m.url,
			Score:  m.score,
			Source: listing.SourceMirror,
		})
	}
	return records
}

// probeSlugGuess constructs a speculative listing URL from the query and checks
// whether it exists. Best-effort heuristic for apps missing from the sitemap.
func (c *Client) probeSlugGuess(ctx context.Context, query string) (listing.Record, bool) {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(query)), " ", "-")
	if slug == "" {
		return listing.Record{}, false
	}
	guessed := c.ListingURL(slug)
	if !c.fetcher.Probe(ctx, guessed) {
		return listing.Record{}, false
	}
	return listing.Record{
		Name:   titleCase(query),
		URL:    guessed,
		Score:  scoreSpeculative,
		Source: listing.SourceMirror,
	}, true
}

// AppDetails scrapes a listing page for its metadata. Fields the page does not
// expose stay empty; the download page is consulted for anything still missing.
func (c *Client) AppDetails(ctx context.Context, appURL string) (listing.AppDetails, error) {
	html, err := c.fetcher.Fetch(ctx, appURL)
	if err != nil {
		return listing.AppDetails{}, fmt.Errorf("fetch details page: %w", err)
	}

	downloadPage := strings.TrimRight(appURL, "/") + "/download/"
	details := listing.AppDetails{DownloadPage: downloadPage}

	if title := firstTagText(html, "h1"); title != "" {
		details.Name = title
		details.Version = matchVersion(title)
	}
	if details.Version == "" {
		details.Version = matchVersion(html)
	}
	details.Size = matchSize(html)
	details.Requirements = matchAndroidRequirement(html)
	details.Icon = findIcon(html)

	for _, a := range extractAnchors(html) {
		if details.Category == "" && categoryHrefPattern.MatchString(a.href) {
			details.Category = a.text
		}
		if details.Publisher == "" && strings.Contains(a.href, "/developer/") {
			details.Publisher = a.text
		}
	}

	if details.Size == "" || details.Version == "" || details.Requirements == "" {
		if dlHTML, err := c.fetcher.Fetch(ctx, downloadPage); err == nil {
			if details.Version == "" {
				details.Version = matchVersion(dlHTML)
			}
			if details.Size == "" {
				details.Size = matchSize(dlHTML)
			}
			if details.Requirements == "" {
				details.Requirements = matchAndroidRequirement(dlHTML)
			}
		} else {
			log.Debug().Err(err).Str("url", downloadPage).Msg("could not fetch download page for details")
		}
	}

	return details, nil
}

var (
	categoryHrefPattern = regexp.MustCompile(`/(app|game)/[a-z-]+/`)
	iconImgPattern      = regexp.MustCompile(`(?i)<img[^>]*class="[^"]*(poster|icon|logo)[^"]*"[^>]*>`)
	imgSrcPattern       = regexp.MustCompile(`(?:data-src|src)="([^"]+)"`)
	binarySuffixes      = []string{".apk", ".xapk", ".zip"}
)

func findIcon(html string) string {
	tag := iconImgPattern.FindString(html)
	if tag == "" {
		return ""
	}
	if m := imgSrcPattern.FindStringSubmatch(tag); m != nil {
		return m[1]
	}
	return ""
}

// DownloadLinks extracts candidate download links from a listing's download
// page, preferring the mirror's dedicated file hosts. Links returned first are
// tried first by the acquisition engine.
func (c *Client) DownloadLinks(ctx context.Context, appURL string) ([]listing.DownloadLink, error) {
	downloadURL := strings.TrimRight(appURL, "/") + "/download/"

	html, err := c.fetcher.Fetch(ctx, downloadURL)
	if err != nil {
		html, err = c.fetcher.Fetch(ctx, appURL)
		if err != nil {
			return nil, fmt.Errorf("fetch download page: %w", err)
		}
	}

	anchors := extractAnchors(html)

	var holeLinks, fileLinks, otherLinks []listing.DownloadLink
	for _, a := range anchors {
		switch {
		case strings.Contains(a.href, "hole."):
			holeLinks = append(holeLinks, directLink(a, "Download APK"))
		case strings.Contains(a.href, "file."):
			fileLinks = append(fileLinks, directLink(a, "Download APK"))
		case hasBinarySuffix(a.href):
			otherLinks = append(otherLinks, directLink(a, "Download"))
		}
	}

	downloads := append(append(holeLinks, fileLinks...), otherLinks...)
	if len(downloads) > 0 {
		return downloads, nil
	}

	// No direct links; fall back to download-button anchors pointing back into
	// the mirror. These need a further fetch to resolve.
	for _, a := range anchors {
		if !strings.Contains(strings.ToLower(a.class), "download") &&
			!strings.Contains(strings.ToLower(a.class), "btn") {
			continue
		}
		if strings.Contains(a.href, c.host) && strings.Contains(strings.ToLower(a.href), "download") {
			link := directLink(a, "Download")
			link.Direct = false
			downloads = append(downloads, link)
		}
	}
	return downloads, nil
}

func directLink(a anchor, fallbackName string) listing.DownloadLink {
	name := a.text
	if name == "" {
		name = fallbackName
	}
	if r := []rune(name); len(r) > 50 {
		name = string(r[:50])
	}
	return listing.DownloadLink{
		Name:   name,
		URL:    a.href,
		Size:   matchSize(a.text),
		Direct: true,
	}
}

func hasBinarySuffix(href string) bool {
	for _, suffix := range binarySuffixes {
		if strings.HasSuffix(href, suffix) {
			return true
		}
	}
	return false
}

// Browse scrapes one page of the mirror's app or game listing section.
func (c *Client) Browse(ctx context.Context, section string, page, limit int) ([]listing.Record, error) {
	if section != "app" && section != "game" {
		return nil, fmt.Errorf("unknown listing section %q", section)
	}
	pageURL := fmt.Sprintf("%s/%s/", c.baseURL, section)
	if page > 1 {
		pageURL = fmt.Sprintf("%s/%s/page/%d/", c.baseURL, section, page)
	}

	html, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s listing: %w", section, err)
	}

	leaf := regexp.MustCompile(regexp.QuoteMeta(c.host) + `/[a-z0-9-]+/?$`)
	category := titleCase(section)

	seen := make(map[string]struct{})
	var records []listing.Record
	for _, a := range extractAnchors(html) {
		if !leaf.MatchString(a.href) {
			continue
		}
		if strings.Contains(a.href, "/app/") || strings.Contains(a.href, "/game/") {
			continue
		}
		if _, dup := seen[a.href]; dup {
			continue
		}
		seen[a.href] = struct{}{}

		name := a.title
		if name == "" {
			name = a.text
		}
		if name == "" {
			name = NameFromSlug(SlugFromURL(a.href))
		}
		if len(name) <= 2 {
			continue
		}

		records = append(records, listing.Record{
			Name:     name,
			URL:      a.href,
			Category: category,
			Source:   listing.SourceMirror,
		})
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}
