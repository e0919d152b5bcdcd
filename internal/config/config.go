package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Mirror site configuration
	MirrorURL       string
	SitemapTTL      time.Duration
	SitemapMaxFetch int
	SitemapDelay    time.Duration
	SearchCap       int

	// Package cache configuration
	PackageCacheFile string
	PackageCacheTTL  time.Duration

	// Reconciler configuration
	NormalizeSuffixes []string

	// Play-store scraper subprocess
	NodePath    string
	ScraperDir  string
	PlayTimeout time.Duration
	AppTimeout  time.Duration

	// Download configuration
	DownloadDir      string
	Aria2Path        string
	ApkeepPath       string
	TransportTimeout time.Duration
	FetchRetries     int
	FetchRetryDelay  time.Duration

	// Artifact archive storage
	StorageType       string // "local" or "s3"
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Prefix          string
	S3UseSSL          bool

	// Server configuration
	Port      string
	LogLevel  string
	LogFormat string // console or json
	LogColor  bool
}

// defaultNormalizeSuffixes is the hand-picked set of marketing tokens stripped
// before comparing names across sources. Approximate by nature; override with
// APKGRAB_NORMALIZE_SUFFIXES when a deployment needs more coverage.
var defaultNormalizeSuffixes = []string{
	" - aio tunnel vpn", " vpn", " pro", " plus", " vip", " mod", " premium",
}

func Load() *Config {
	cfg := &Config{
		MirrorURL:       getEnv("APKGRAB_MIRROR_URL", "https://apkdone.com"),
		SitemapTTL:      getDurationEnv("APKGRAB_SITEMAP_TTL", time.Hour),
		SitemapMaxFetch: int(getIntEnv("APKGRAB_SITEMAP_MAX_FETCH", 15)),
		SitemapDelay:    getFloatDurationEnv("APKGRAB_SITEMAP_DELAY", 500*time.Millisecond),
		SearchCap:       int(getIntEnv("APKGRAB_SEARCH_CAP", 20)),

		PackageCacheFile: getEnv("APKGRAB_PACKAGE_CACHE_FILE", ""),
		PackageCacheTTL:  getDurationEnv("APKGRAB_PACKAGE_CACHE_TTL", 24*time.Hour),

		NodePath:    getEnv("APKGRAB_NODE_PATH", "node"),
		ScraperDir:  getEnv("APKGRAB_SCRAPER_DIR", ""),
		PlayTimeout: getDurationEnv("APKGRAB_PLAY_TIMEOUT", 30*time.Second),
		AppTimeout:  getDurationEnv("APKGRAB_PLAY_APP_TIMEOUT", 15*time.Second),

		DownloadDir:      getEnv("APKGRAB_DOWNLOAD_DIR", ""),
		Aria2Path:        getEnv("APKGRAB_ARIA2_PATH", "aria2c"),
		ApkeepPath:       getEnv("APKGRAB_APKEEP_PATH", "apkeep"),
		TransportTimeout: getDurationEnv("APKGRAB_TRANSPORT_TIMEOUT", 10*time.Minute),
		FetchRetries:     int(getIntEnv("APKGRAB_FETCH_RETRIES", 3)),
		FetchRetryDelay:  getFloatDurationEnv("APKGRAB_FETCH_RETRY_DELAY", 2*time.Second),

		StorageType:       getEnv("APKGRAB_STORAGE_TYPE", "local"),
		S3Endpoint:        getEnv("AWS_ENDPOINT_URL", ""),
		S3AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Region:          getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:          getEnv("APKGRAB_S3_BUCKET", ""),
		S3Prefix:          getEnv("APKGRAB_S3_PREFIX", "apkgrab"),
		S3UseSSL:          getBoolEnv("APKGRAB_S3_USE_SSL", true),

		Port:      getEnv("PORT", "8000"),
		LogLevel:  getEnv("APKGRAB_LOGGING_LEVEL", "INFO"),
		LogFormat: getEnv("APKGRAB_LOG_FORMAT", "console"),
		LogColor:  getBoolEnv("APKGRAB_LOG_COLOR", true),
	}

	if suffixes := getEnv("APKGRAB_NORMALIZE_SUFFIXES", ""); suffixes != "" {
		cfg.NormalizeSuffixes = splitAndTrim(suffixes, ",")
	} else {
		cfg.NormalizeSuffixes = append([]string(nil), defaultNormalizeSuffixes...)
	}

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = filepath.Join(os.TempDir(), "apkgrab-downloads")
	}
	if cfg.PackageCacheFile == "" {
		cfg.PackageCacheFile = filepath.Join(cfg.DownloadDir, "package_cache.json")
	}
	if cfg.ScraperDir == "" {
		// node resolves the scraper package relative to its cwd, so the
		// default must be where node_modules lives, not the download dir.
		if wd, err := os.Getwd(); err == nil {
			cfg.ScraperDir = wd
		}
	}

	if cfg.StorageType == "s3" {
		if cfg.S3Endpoint == "" {
			cfg.S3Endpoint = "s3.amazonaws.com"
		}
		if cfg.S3Bucket == "" {
			panic("APKGRAB_S3_BUCKET must be set when using S3 storage")
		}
		if cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			panic("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set when using S3 storage")
		}
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal) * time.Second
		}
	}
	return defaultValue
}

func getFloatDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(floatVal * float64(time.Second))
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value != "0" && value != "no" && value != "off" && value != "false"
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
