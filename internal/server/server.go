package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"

	"github.com/apkgrab/apkgrab/internal/config"
	"github.com/apkgrab/apkgrab/internal/download"
	"github.com/apkgrab/apkgrab/internal/fetch"
	"github.com/apkgrab/apkgrab/internal/listing"
	"github.com/apkgrab/apkgrab/internal/mirror"
	"github.com/apkgrab/apkgrab/internal/pkgcache"
	"github.com/apkgrab/apkgrab/internal/playstore"
	"github.com/apkgrab/apkgrab/internal/search"
	"github.com/apkgrab/apkgrab/internal/sitemap"
	"github.com/apkgrab/apkgrab/internal/storage"
)

type Server struct {
	config *config.Config
	mirror *mirror.Client
	play   *playstore.Client
	search *search.Service
	engine *download.Engine
	router *gin.Engine
}

func New(cfg *config.Config) *Server {
	if cfg.LogLevel == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %d - %v %s %s\n",
			param.TimeStamp.Format(time.RFC3339),
			param.StatusCode,
			param.Latency,
			param.Method,
			param.Path,
		)
	}))
	router.Use(gzip.Gzip(gzip.BestSpeed))

	fetcher := fetch.NewClient(fetch.WithRetries(cfg.FetchRetries, cfg.FetchRetryDelay))
	index := sitemap.New(cfg.MirrorURL, fetcher, sitemap.Options{
		TTL:      cfg.SitemapTTL,
		MaxFetch: cfg.SitemapMaxFetch,
		Delay:    cfg.SitemapDelay,
	})
	mirrorClient := mirror.NewClient(cfg.MirrorURL, fetcher, index, cfg.SearchCap)
	playClient := playstore.NewClient(cfg.NodePath, cfg.ScraperDir, cfg.PlayTimeout, cfg.AppTimeout)
	cache := pkgcache.New(cfg.PackageCacheFile, cfg.PackageCacheTTL)
	searchSvc := search.NewService(mirrorClient, playClient, cache, cfg.NormalizeSuffixes)

	archive, err := initStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize archive storage")
	}

	engine := download.NewEngine(
		cfg.DownloadDir,
		mirrorClient,
		download.NewAria2Transport(cfg.Aria2Path, cfg.MirrorURL+"/", cfg.TransportTimeout),
		download.NewHTTPStreamer(&http.Client{Timeout: cfg.TransportTimeout}),
		download.NewApkeepExecutor(cfg.ApkeepPath, cfg.TransportTimeout),
		archive,
	)

	s := &Server{
		config: cfg,
		mirror: mirrorClient,
		play:   playClient,
		search: searchSvc,
		engine: engine,
		router: router,
	}

	s.setupRoutes()
	return s
}

func initStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "s3":
		return storage.NewS3Storage(&storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			UseSSL:          cfg.S3UseSSL,
		})
	default:
		return storage.NewLocalStorage(cfg.DownloadDir + "/archive")
	}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHome)

	s.router.GET("/search", s.handleSearch)
	s.router.GET("/app/:id", s.handleApp)
	s.router.GET("/download/:id", s.handleDownload)
	s.router.GET("/status/:id", s.handleStatus)

	s.router.GET("/apps", s.handleBrowseApps)
	s.router.GET("/games", s.handleBrowseGames)

	s.router.GET("/health", s.handleHealth)

	s.router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not Found")
	})
}

func (s *Server) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "apkgrab",
		"endpoints": []string{
			"/search?q=<query>&num=<n>&combined=<bool>",
			"/app/<id>",
			"/download/<id>?force=<bool>&source=<mirror|play>",
			"/status/<id>",
			"/apps", "/games",
			"/health",
		},
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter 'q'"})
		return
	}

	limit := intQuery(c, "num", 10)
	if limit <= 0 {
		limit = 10
	}

	if boolQuery(c, "combined", true) {
		results := s.search.Search(c.Request.Context(), query, limit)
		c.JSON(http.StatusOK, gin.H{
			"query":   query,
			"results": results.Combined,
			"sources": gin.H{
				"mirror": len(results.Mirror),
				"play":   len(results.Play),
			},
		})
		return
	}

	records := s.search.MirrorOnly(c.Request.Context(), query, limit)
	c.JSON(http.StatusOK, gin.H{"query": query, "results": records})
}

// handleApp serves the detail page for one listing. Package-name
// identifiers resolve against the store; anything else is treated as a
// listing slug, with an explicit ?url= overriding the slug-derived URL
// for listings that live outside the default URL shape.
func (s *Server) handleApp(c *gin.Context) {
	id := c.Param("id")

	if playstore.IsPackageName(id) {
		rec := s.play.App(c.Request.Context(), id)
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no store listing for %s", id)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "details": rec, "package": rec.Package})
		return
	}

	appURL := c.Query("url")
	if appURL == "" {
		appURL = s.mirror.ListingURL(id)
	}

	details, err := s.mirror.AppDetails(c.Request.Context(), appURL)
	if err != nil {
		if errors.Is(err, fetch.ErrFetchFailed) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no listing found for %s", id)})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	links, err := s.mirror.DownloadLinks(c.Request.Context(), appURL)
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("could not resolve download links for detail view")
	}

	pkg := s.search.ResolvePackage(c.Request.Context(), id)

	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"url":     appURL,
		"details": details,
		"links":   links,
		"package": pkg,
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	id := c.Param("id")
	opts := download.Options{
		ForceRefetch: boolQuery(c, "force", false),
	}
	switch c.Query("source") {
	case "play":
		opts.SourceHint = listing.SourcePlay
	case "mirror":
		opts.SourceHint = listing.SourceMirror
	}

	result, err := s.engine.Acquire(c.Request.Context(), id, opts)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("acquisition failed")
		status := http.StatusBadGateway
		if errors.Is(err, download.ErrNoLinks) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Source", result.Source)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Name))
	c.File(result.Path)
}

func (s *Server) handleStatus(c *gin.Context) {
	id := c.Param("id")
	status := s.engine.Status(id)
	if !status.Ready {
		c.JSON(http.StatusNotFound, gin.H{"id": id, "ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":    id,
		"ready": true,
		"file":  status.File,
		"size":  status.Size,
	})
}

func (s *Server) handleBrowseApps(c *gin.Context) {
	s.browse(c, "app")
}

func (s *Server) handleBrowseGames(c *gin.Context) {
	s.browse(c, "game")
}

func (s *Server) browse(c *gin.Context, section string) {
	page := intQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := intQuery(c, "num", 20)
	if limit <= 0 {
		limit = 20
	}

	records, err := s.mirror.Browse(c.Request.Context(), section, page, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"section": section + "s",
		"page":    page,
		"results": records,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"timestamp": time.Now().Unix(),
		"data": gin.H{
			"mirror_url":          s.config.MirrorURL,
			"download_dir":        s.config.DownloadDir,
			"sitemap_ttl_seconds": int(s.config.SitemapTTL.Seconds()),
			"storage_type":        s.config.StorageType,
		},
	})
}

func (s *Server) Run() error {
	addr := ":" + s.config.Port
	log.Info().Str("addr", addr).Msg("Starting apkgrab server")
	return s.router.Run(addr)
}

func intQuery(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolQuery(c *gin.Context, key string, def bool) bool {
	v := strings.ToLower(c.Query(key))
	if v == "" {
		return def
	}
	return v != "0" && v != "no" && v != "off" && v != "false"
}
