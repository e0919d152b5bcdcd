package cli

import (
	"net/http"

	"github.com/apkgrab/apkgrab/internal/config"
	"github.com/apkgrab/apkgrab/internal/download"
	"github.com/apkgrab/apkgrab/internal/fetch"
	"github.com/apkgrab/apkgrab/internal/mirror"
	"github.com/apkgrab/apkgrab/internal/pkgcache"
	"github.com/apkgrab/apkgrab/internal/playstore"
	"github.com/apkgrab/apkgrab/internal/search"
	"github.com/apkgrab/apkgrab/internal/sitemap"
)

// app bundles the wired components a CLI command needs. Commands build this
// per invocation; nothing here starts a listener.
type app struct {
	cfg    *config.Config
	mirror *mirror.Client
	play   *playstore.Client
	search *search.Service
	engine *download.Engine
}

func buildApp() *app {
	cfg := config.Load()

	fetcher := fetch.NewClient(fetch.WithRetries(cfg.FetchRetries, cfg.FetchRetryDelay))
	index := sitemap.New(cfg.MirrorURL, fetcher, sitemap.Options{
		TTL:      cfg.SitemapTTL,
		MaxFetch: cfg.SitemapMaxFetch,
		Delay:    cfg.SitemapDelay,
	})
	mirrorClient := mirror.NewClient(cfg.MirrorURL, fetcher, index, cfg.SearchCap)
	playClient := playstore.NewClient(cfg.NodePath, cfg.ScraperDir, cfg.PlayTimeout, cfg.AppTimeout)
	cache := pkgcache.New(cfg.PackageCacheFile, cfg.PackageCacheTTL)

	engine := download.NewEngine(
		cfg.DownloadDir,
		mirrorClient,
		download.NewAria2Transport(cfg.Aria2Path, cfg.MirrorURL+"/", cfg.TransportTimeout),
		download.NewHTTPStreamer(&http.Client{Timeout: cfg.TransportTimeout}),
		download.NewApkeepExecutor(cfg.ApkeepPath, cfg.TransportTimeout),
		nil, // CLI runs archive-less; the server wires the storage backend
	)

	return &app{
		cfg:    cfg,
		mirror: mirrorClient,
		play:   playClient,
		search: search.NewService(mirrorClient, playClient, cache, cfg.NormalizeSuffixes),
		engine: engine,
	}
}
