package playstore

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/phuslu/log"

	"github.com/apkgrab/apkgrab/internal/listing"
)

// packageNamePattern matches reverse-domain package identifiers like
// com.example.app.
var packageNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// IsPackageName reports whether s looks like a store package identifier.
func IsPackageName(s string) bool {
	return packageNamePattern.MatchString(strings.ToLower(s))
}

// Client wraps the node google-play-scraper library as a one-shot subprocess.
// Every call is fire-and-forget with its own timeout; failures degrade to
// empty results, never errors, because the store is a best-effort source.
type Client struct {
	nodePath      string
	workDir       string
	searchTimeout time.Duration
	appTimeout    time.Duration
}

func NewClient(nodePath, workDir string, searchTimeout, appTimeout time.Duration) *Client {
	if nodePath == "" {
		nodePath = "node"
	}
	if searchTimeout <= 0 {
		searchTimeout = 30 * time.Second
	}
	if appTimeout <= 0 {
		appTimeout = 15 * time.Second
	}
	return &Client{
		nodePath:      nodePath,
		workDir:       workDir,
		searchTimeout: searchTimeout,
		appTimeout:    appTimeout,
	}
}

// searchResult mirrors the fields of the scraper's search output we consume.
type searchResult struct {
	Title     string  `json:"title"`
	AppID     string  `json:"appId"`
	Icon      string  `json:"icon"`
	Developer string  `json:"developer"`
	Score     float64 `json:"score"`
	Genre     string  `json:"genre"`
	Size      string  `json:"size"`
	Version   string  `json:"version"`
	URL       string  `json:"url"`
	Summary   string  `json:"summary"`
	Error     string  `json:"error"`
}

// Search queries the store and returns up to n records. Timeouts and scraper
// errors yield an empty list.
func (c *Client) Search(ctx context.Context, query string, n int) []listing.Record {
	if n <= 0 {
		n = 10
	}

	script := fmt.Sprintf(`
const gplay = require('google-play-scraper').default || require('google-play-scraper');
gplay.search({term: %s, num: %d, lang: 'en', country: 'us'})
    .then(results => console.log(JSON.stringify(results)))
    .catch(err => console.error(JSON.stringify({error: err.message})));
`, jsonString(query), n)

	out, err := c.run(ctx, script, c.searchTimeout)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("play store search failed")
		return nil
	}

	var results []searchResult
	if err := sonic.Unmarshal(out, &results); err != nil {
		log.Warn().Err(err).Str("query", query).Msg("play store search returned malformed output")
		return nil
	}

	records := make([]listing.Record, 0, len(results))
	for _, r := range results {
		if len(records) >= n {
			break
		}
		if r.Title == "" || r.AppID == "" {
			continue
		}
		records = append(records, listing.Record{
			Name:      r.Title,
			Package:   r.AppID,
			Size:      r.Size,
			Image:     r.Icon,
			Developer: r.Developer,
			Category:  r.Genre,
			URL:       "https://play.google.com/store/apps/details?id=" + r.AppID,
			Source:    listing.SourcePlay,
		})
	}
	return records
}

// App looks up a single store listing by package name. Returns nil on any
// failure.
func (c *Client) App(ctx context.Context, packageName string) *listing.Record {
	script := fmt.Sprintf(`
const gplay = require('google-play-scraper').default || require('google-play-scraper');
gplay.app({appId: %s, lang: 'en', country: 'us'})
    .then(app => console.log(JSON.stringify(app)))
    .catch(err => console.error(JSON.stringify({error: err.message})));
`, jsonString(packageName))

	out, err := c.run(ctx, script, c.appTimeout)
	if err != nil {
		log.Warn().Err(err).Str("package", packageName).Msg("play store app lookup failed")
		return nil
	}

	var app searchResult
	if err := sonic.Unmarshal(out, &app); err != nil || app.Error != "" || app.AppID == "" {
		return nil
	}
	return &listing.Record{
		Name:      app.Title,
		Package:   app.AppID,
		Version:   app.Version,
		Size:      app.Size,
		Image:     app.Icon,
		Developer: app.Developer,
		Category:  app.Genre,
		URL:       app.URL,
		Source:    listing.SourcePlay,
	}
}

func (c *Client) run(ctx context.Context, script string, timeout time.Duration) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.nodePath, "-e", script)
	if c.workDir != "" {
		cmd.Dir = c.workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("scraper subprocess timed out after %s", timeout)
		}
		return nil, fmt.Errorf("scraper subprocess: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, fmt.Errorf("scraper subprocess produced no output: %s", strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func jsonString(s string) string {
	b, _ := sonic.Marshal(s)
	return string(b)
}
