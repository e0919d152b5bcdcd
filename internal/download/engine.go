package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phuslu/log"
	"golang.org/x/sync/singleflight"

	"github.com/apkgrab/apkgrab/internal/listing"
	"github.com/apkgrab/apkgrab/internal/playstore"
	"github.com/apkgrab/apkgrab/internal/storage"
)

// ErrNoLinks is the terminal failure when no tier produced a file and no
// direct download links existed.
var ErrNoLinks = errors.New("no download links found")

// Delivery source tags, exposed to callers via the X-Source header.
const (
	SourceCache            = "cache"
	SourceExecutor         = "executor"
	SourceBulk             = "bulk+mirror"
	SourceStream           = "stream+mirror"
	SourceExecutorFallback = "executor-fallback"
)

// artifactSuffixes are the file types a tier may deliver.
var artifactSuffixes = []string{".apk", ".xapk"}

// LinkResolver discovers direct download links for a listing slug.
// Satisfied by mirror.Client.
type LinkResolver interface {
	DownloadLinks(ctx context.Context, appURL string) ([]listing.DownloadLink, error)
	ListingURL(slug string) string
}

// Options tune one acquisition request.
type Options struct {
	ForceRefetch bool
	SourceHint   listing.Source
}

// Result describes a delivered artifact.
type Result struct {
	Path   string `json:"path"`
	Name   string `json:"file"`
	Size   int64  `json:"size"`
	Source string `json:"source"`
}

// Status reports whether an artifact is ready for an identifier.
type Status struct {
	Ready bool   `json:"ready"`
	File  string `json:"file,omitempty"`
	Size  int64  `json:"size,omitempty"`
}

// Engine acquires binaries by walking a fixed tier order: local cache, the
// package-identifier executor, bulk transport per direct link, single-stream
// fallback per link, then the executor once more. Each tier's failure is
// absorbed and triggers the next; only exhaustion surfaces an error.
type Engine struct {
	downloadDir string
	resolver    LinkResolver
	bulk        BulkTransport
	stream      Streamer
	executor    Executor
	archive     storage.Storage

	sf singleflight.Group
}

func NewEngine(downloadDir string, resolver LinkResolver, bulk BulkTransport, stream Streamer, executor Executor, archive storage.Storage) *Engine {
	return &Engine{
		downloadDir: downloadDir,
		resolver:    resolver,
		bulk:        bulk,
		stream:      stream,
		executor:    executor,
		archive:     archive,
	}
}

// Acquire returns a local file for the identifier, downloading it if needed.
// Concurrent acquisitions of the same identifier collapse into one.
func (e *Engine) Acquire(ctx context.Context, id string, opts Options) (*Result, error) {
	key := fmt.Sprintf("%s|%v|%s", id, opts.ForceRefetch, opts.SourceHint)
	result, err, _ := e.sf.Do(key, func() (interface{}, error) {
		return e.acquire(ctx, id, opts)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Result), nil
}

func (e *Engine) acquire(ctx context.Context, id string, opts Options) (*Result, error) {
	destDir := e.artifactDir(id)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	// Tier 1: a previously delivered artifact short-circuits everything.
	if !opts.ForceRefetch {
		if res := e.existingArtifact(id, SourceCache); res != nil {
			log.Debug().Str("id", id).Str("file", res.Name).Msg("serving cached artifact")
			return res, nil
		}
	}

	// Tier 2: go straight to the executor for store package names, an explicit
	// play hint, or a forced refetch.
	var executorErr error
	if playstore.IsPackageName(id) || opts.SourceHint == listing.SourcePlay || opts.ForceRefetch {
		log.Info().Str("id", id).Msg("trying package executor")
		executorErr = e.executor.Download(ctx, id, destDir)
		if executorErr == nil {
			if res := e.existingArtifact(id, SourceExecutor); res != nil {
				e.archiveArtifact(ctx, id, res)
				return res, nil
			}
		} else {
			log.Warn().Err(executorErr).Str("id", id).Msg("package executor failed")
		}
	}

	// Tiers 3 and 4: direct links via bulk transport, then single-stream.
	links, err := e.resolver.DownloadLinks(ctx, e.resolver.ListingURL(id))
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("could not resolve download links")
	}

	for _, link := range links {
		if !link.Direct || link.URL == "" {
			continue
		}

		if err := e.bulk.Download(ctx, link.URL, destDir, "", ""); err == nil {
			if res := e.newestArtifact(id, SourceBulk); res != nil {
				e.archiveArtifact(ctx, id, res)
				return res, nil
			}
		} else {
			log.Warn().Err(err).Str("url", link.URL).Msg("bulk transport failed, falling back to stream")
		}

		if path, err := e.stream.Download(ctx, link.URL, destDir); err == nil {
			if res := e.resultForPath(path, SourceStream); res != nil {
				e.archiveArtifact(ctx, id, res)
				return res, nil
			}
		} else {
			log.Warn().Err(err).Str("url", link.URL).Msg("stream transport failed")
		}
	}

	// Tier 5: forced refetches and link-less listings get one last executor
	// attempt before the terminal failure.
	if opts.ForceRefetch || len(links) == 0 {
		err := e.executor.Download(ctx, id, destDir)
		if err == nil {
			if res := e.existingArtifact(id, SourceExecutorFallback); res != nil {
				e.archiveArtifact(ctx, id, res)
				return res, nil
			}
			err = fmt.Errorf("executor produced no artifact for %s", id)
		}
		return nil, fmt.Errorf("download failed for %s: %w", id, err)
	}

	return nil, fmt.Errorf("%w for %s", ErrNoLinks, id)
}

// Status reports whether a finished artifact exists for the identifier.
// Temp files from in-flight transfers are never visible here.
func (e *Engine) Status(id string) Status {
	res := e.existingArtifact(id, SourceCache)
	if res == nil {
		return Status{}
	}
	return Status{Ready: true, File: res.Name, Size: res.Size}
}

func (e *Engine) artifactDir(id string) string {
	return filepath.Join(e.downloadDir, id)
}

// existingArtifact returns the first finished binary in the identifier's
// directory, preferring .apk over .xapk.
func (e *Engine) existingArtifact(id, source string) *Result {
	dir := e.artifactDir(id)
	for _, suffix := range artifactSuffixes {
		matches, _ := filepath.Glob(filepath.Join(dir, "*"+suffix))
		sort.Strings(matches)
		for _, m := range matches {
			if res := e.resultForPath(m, source); res != nil {
				return res
			}
		}
	}
	return nil
}

// newestArtifact returns the most recently modified binary in the directory.
// Bulk transports pick their own file names, so the newest file is the one
// they just wrote.
func (e *Engine) newestArtifact(id, source string) *Result {
	dir := e.artifactDir(id)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	type fileInfo struct {
		path    string
		modTime int64
		size    int64
	}
	var files []fileInfo
	for _, entry := range entries {
		if entry.IsDir() || !hasArtifactSuffix(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime().UnixNano(),
			size:    info.Size(),
		})
	}
	if len(files) == 0 {
		return nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime > files[j].modTime })
	return e.resultForPath(files[0].path, source)
}

func (e *Engine) resultForPath(path, source string) *Result {
	stat, err := os.Stat(path)
	if err != nil || stat.Size() == 0 {
		return nil
	}
	return &Result{
		Path:   path,
		Name:   filepath.Base(path),
		Size:   stat.Size(),
		Source: source,
	}
}

// archiveArtifact mirrors a delivered file into the configured archive
// backend. Best effort; a failed archive never fails the delivery.
func (e *Engine) archiveArtifact(ctx context.Context, id string, res *Result) {
	if e.archive == nil {
		return
	}
	key := id + "/" + res.Name
	if exists, _ := e.archive.Exists(ctx, key); exists {
		return
	}

	f, err := os.Open(res.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", res.Path).Msg("could not open artifact for archival")
		return
	}
	defer f.Close()

	if _, err := e.archive.Put(ctx, key, f, res.Size, "application/vnd.android.package-archive"); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("artifact archival failed")
		return
	}
	log.Debug().Str("key", key).Int64("size", res.Size).Msg("artifact archived")
}

func hasArtifactSuffix(name string) bool {
	for _, suffix := range append(artifactSuffixes, ".zip") {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
