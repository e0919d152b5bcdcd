package mirror

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/apkgrab/apkgrab/internal/listing"
	"github.com/apkgrab/apkgrab/internal/sitemap"
)

type stubFetcher struct {
	pages      map[string]string
	probeOK    map[string]bool
	fetchCalls []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.fetchCalls = append(f.fetchCalls, url)
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return "", fmt.Errorf("fetch failed for %s: not found", url)
}

func (f *stubFetcher) Probe(_ context.Context, url string) bool {
	return f.probeOK[url]
}

const testBase = "https://apkdone.com"

func sitemapFixture() map[string]string {
	return map[string]string{
		testBase + "/sitemap.xml": `<?xml version="1.0"?>
<sitemapindex>
  <sitemap><loc>https://apkdone.com/post-sitemap1.xml</loc></sitemap>
  <sitemap><loc>https://apkdone.com/page-sitemap.xml</loc></sitemap>
</sitemapindex>`,
		testBase + "/post-sitemap1.xml": `<?xml version="1.0"?>
<urlset>
  <url><loc>https://apkdone.com/subway-surfers-mod-apk/</loc></url>
  <url><loc>https://apkdone.com/minecraft-apk/</loc></url>
  <url><loc>https://apkdone.com/app/arcade/</loc></url>
  <url><loc>https://apkdone.com/temple-run-2/</loc></url>
</urlset>`,
	}
}

func newTestClient(fetcher *stubFetcher) *Client {
	index := sitemap.New(testBase, fetcher, sitemap.Options{TTL: time.Hour, MaxFetch: 5})
	return NewClient(testBase, fetcher, index, 20)
}

func TestClient_Search(t *testing.T) {
	t.Run("matches ranked by score", func(t *testing.T) {
		fetcher := &stubFetcher{pages: sitemapFixture()}
		client := newTestClient(fetcher)

		records := client.Search(context.Background(), "subway surfers", 10)
		if len(records) == 0 {
			t.Fatal("Expected results")
		}
		if records[0].URL != "https://apkdone.com/subway-surfers-mod-apk/" {
			t.Errorf("Expected subway surfers first, got %s", records[0].URL)
		}
		if records[0].Score != 100 {
			t.Errorf("Expected slug-match score 100, got %d", records[0].Score)
		}
		if records[0].Name != "Subway Surfers" {
			t.Errorf("Expected slug-derived name, got %q", records[0].Name)
		}
		if records[0].Source != listing.SourceMirror {
			t.Errorf("Expected mirror source, got %s", records[0].Source)
		}
		for i := 1; i < len(records); i++ {
			if records[i].Score > records[i-1].Score {
				t.Errorf("Results out of score order at %d", i)
			}
		}
	})

	t.Run("limit caps results", func(t *testing.T) {
		fetcher := &stubFetcher{pages: sitemapFixture()}
		client := newTestClient(fetcher)

		records := client.Search(context.Background(), "a", 1)
		if len(records) > 1 {
			t.Errorf("Expected at most 1 result, got %d", len(records))
		}
	})

	t.Run("speculative probe when nothing matches", func(t *testing.T) {
		fetcher := &stubFetcher{
			pages:   sitemapFixture(),
			probeOK: map[string]bool{testBase + "/clash-of-clans/": true},
		}
		client := newTestClient(fetcher)

		records := client.Search(context.Background(), "clash of clans", 10)
		if len(records) != 1 {
			t.Fatalf("Expected 1 speculative result, got %d", len(records))
		}
		if records[0].Score != scoreSpeculative {
			t.Errorf("Expected score %d, got %d", scoreSpeculative, records[0].Score)
		}
		if records[0].URL != testBase+"/clash-of-clans/" {
			t.Errorf("Unexpected guessed URL %s", records[0].URL)
		}
	})

	t.Run("no match and failed probe yields nothing", func(t *testing.T) {
		fetcher := &stubFetcher{pages: sitemapFixture()}
		client := newTestClient(fetcher)

		if records := client.Search(context.Background(), "clash of clans", 10); records != nil {
			t.Errorf("Expected nil, got %v", records)
		}
	})
}

func TestClient_AppDetails(t *testing.T) {
	appURL := testBase + "/subway-surfers-mod-apk/"
	pages := sitemapFixture()
	pages[appURL] = `<html><body>
<h1>Subway Surfers MOD APK 3.22.1 (Unlimited Coins)</h1>
<img class="app-icon lazy" data-src="https://cdn.apkdone.com/icons/subway.png">
<a href="/game/arcade/">Arcade</a>
<a href="https://apkdone.com/developer/sybo/">SYBO Games</a>
<p>Size: 145 MB. Requires Android 5.0+</p>
</body></html>`

	fetcher := &stubFetcher{pages: pages}
	client := newTestClient(fetcher)

	details, err := client.AppDetails(context.Background(), appURL)
	if err != nil {
		t.Fatalf("AppDetails failed: %v", err)
	}

	if details.Name != "Subway Surfers MOD APK 3.22.1 (Unlimited Coins)" {
		t.Errorf("Unexpected name %q", details.Name)
	}
	if details.Version != "3.22.1" {
		t.Errorf("Unexpected version %q", details.Version)
	}
	if details.Size != "145 MB" {
		t.Errorf("Unexpected size %q", details.Size)
	}
	if details.Requirements != "Android 5.0" {
		t.Errorf("Unexpected requirements %q", details.Requirements)
	}
	if details.Icon != "https://cdn.apkdone.com/icons/subway.png" {
		t.Errorf("Unexpected icon %q", details.Icon)
	}
	if details.Category != "Arcade" {
		t.Errorf("Unexpected category %q", details.Category)
	}
	if details.Publisher != "SYBO Games" {
		t.Errorf("Unexpected publisher %q", details.Publisher)
	}
	if details.DownloadPage != appURL+"download/" {
		t.Errorf("Unexpected download page %q", details.DownloadPage)
	}
}

func TestClient_AppDetails_FallsBackToDownloadPage(t *testing.T) {
	appURL := testBase + "/minecraft-apk/"
	pages := map[string]string{
		appURL: `<html><h1>Minecraft</h1></html>`,
		appURL + "download/": `<html>
<p>Minecraft 1.20.4 is 800 MB and needs Android 8.0</p>
</html>`,
	}

	fetcher := &stubFetcher{pages: pages}
	client := newTestClient(fetcher)

	details, err := client.AppDetails(context.Background(), appURL)
	if err != nil {
		t.Fatalf("AppDetails failed: %v", err)
	}
	if details.Version != "1.20.4" {
		t.Errorf("Expected version from download page, got %q", details.Version)
	}
	if details.Size != "800 MB" {
		t.Errorf("Expected size from download page, got %q", details.Size)
	}
	if details.Requirements != "Android 8.0" {
		t.Errorf("Expected requirements from download page, got %q", details.Requirements)
	}
}

func TestClient_DownloadLinks(t *testing.T) {
	appURL := testBase + "/subway-surfers-mod-apk/"

	t.Run("direct hosts ordered before plain binaries", func(t *testing.T) {
		pages := map[string]string{
			appURL + "download/": `<html>
<a href="https://mirror.example.com/subway.apk">Plain mirror (140 MB)</a>
<a href="https://file.apkdone.com/dl/subway-v2.apk">File host (145 MB)</a>
<a href="https://hole.apkdone.com/dl/subway.apk">Fast host (145 MB)</a>
<a href="https://apkdone.com/other-page/">unrelated</a>
</html>`,
		}
		client := newTestClient(&stubFetcher{pages: pages})

		links, err := client.DownloadLinks(context.Background(), appURL)
		if err != nil {
			t.Fatalf("DownloadLinks failed: %v", err)
		}
		if len(links) != 3 {
			t.Fatalf("Expected 3 links, got %d", len(links))
		}
		if links[0].URL != "https://hole.apkdone.com/dl/subway.apk" {
			t.Errorf("Expected hole host first, got %s", links[0].URL)
		}
		if links[1].URL != "https://file.apkdone.com/dl/subway-v2.apk" {
			t.Errorf("Expected file host second, got %s", links[1].URL)
		}
		if links[2].URL != "https://mirror.example.com/subway.apk" {
			t.Errorf("Expected plain binary last, got %s", links[2].URL)
		}
		for _, link := range links {
			if !link.Direct {
				t.Errorf("Expected %s to be direct", link.URL)
			}
		}
		if links[0].Size != "145 MB" {
			t.Errorf("Expected size from anchor text, got %q", links[0].Size)
		}
	})

	t.Run("long multibyte names truncated on rune boundary", func(t *testing.T) {
		longName := strings.Repeat("下", 60) + " (145 MB)"
		pages := map[string]string{
			appURL + "download/": `<html>
<a href="https://file.apkdone.com/dl/subway.apk">` + longName + `</a>
</html>`,
		}
		client := newTestClient(&stubFetcher{pages: pages})

		links, err := client.DownloadLinks(context.Background(), appURL)
		if err != nil {
			t.Fatalf("DownloadLinks failed: %v", err)
		}
		if len(links) != 1 {
			t.Fatalf("Expected 1 link, got %d", len(links))
		}
		if !utf8.ValidString(links[0].Name) {
			t.Errorf("Truncated name is not valid UTF-8: %q", links[0].Name)
		}
		if n := len([]rune(links[0].Name)); n != 50 {
			t.Errorf("Expected 50-rune name, got %d runes", n)
		}
	})

	t.Run("button anchors when no direct links", func(t *testing.T) {
		pages := map[string]string{
			appURL + "download/": `<html>
<a class="btn btn-download" href="https://apkdone.com/subway-surfers-mod-apk/download/1/">Download Now</a>
<a class="nav" href="https://apkdone.com/apps/">Apps</a>
</html>`,
		}
		client := newTestClient(&stubFetcher{pages: pages})

		links, err := client.DownloadLinks(context.Background(), appURL)
		if err != nil {
			t.Fatalf("DownloadLinks failed: %v", err)
		}
		if len(links) != 1 {
			t.Fatalf("Expected 1 button link, got %d", len(links))
		}
		if links[0].Direct {
			t.Error("Button link must not be marked direct")
		}
	})

	t.Run("download page 404 falls back to listing page", func(t *testing.T) {
		pages := map[string]string{
			appURL: `<html><a href="https://file.apkdone.com/dl/subway.apk">Get (145 MB)</a></html>`,
		}
		client := newTestClient(&stubFetcher{pages: pages})

		links, err := client.DownloadLinks(context.Background(), appURL)
		if err != nil {
			t.Fatalf("DownloadLinks failed: %v", err)
		}
		if len(links) != 1 {
			t.Fatalf("Expected 1 link from listing page, got %d", len(links))
		}
	})
}

func TestClient_Browse(t *testing.T) {
	pages := map[string]string{
		testBase + "/game/": `<html>
<a href="https://apkdone.com/subway-surfers-mod-apk/" title="Subway Surfers">icon</a>
<a href="https://apkdone.com/subway-surfers-mod-apk/">Subway Surfers</a>
<a href="https://apkdone.com/game/arcade/">Arcade</a>
<a href="https://apkdone.com/uv/">UV</a>
<a href="https://apkdone.com/temple-run-2/">Temple Run 2</a>
</html>`,
		testBase + "/game/page/2/": `<html>
<a href="https://apkdone.com/minecraft-apk/">Minecraft</a>
</html>`,
	}

	client := newTestClient(&stubFetcher{pages: pages})

	t.Run("first page with dedupe and filters", func(t *testing.T) {
		records, err := client.Browse(context.Background(), "game", 1, 20)
		if err != nil {
			t.Fatalf("Browse failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}
		if records[0].Name != "Subway Surfers" {
			t.Errorf("Expected title attribute as name, got %q", records[0].Name)
		}
		if records[0].Category != "Game" {
			t.Errorf("Expected Game category, got %q", records[0].Category)
		}
		if records[1].Name != "Temple Run 2" {
			t.Errorf("Expected Temple Run 2 second, got %q", records[1].Name)
		}
	})

	t.Run("later pages use the page path", func(t *testing.T) {
		records, err := client.Browse(context.Background(), "game", 2, 20)
		if err != nil {
			t.Fatalf("Browse failed: %v", err)
		}
		if len(records) != 1 || records[0].Name != "Minecraft" {
			t.Errorf("Unexpected page 2 records: %v", records)
		}
	})

	t.Run("unknown section rejected", func(t *testing.T) {
		if _, err := client.Browse(context.Background(), "movies", 1, 20); err == nil {
			t.Error("Expected error for unknown section")
		}
	})
}
