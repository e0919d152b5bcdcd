package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/phuslu/log"
)

var (
	filenameDispPattern = regexp.MustCompile(`filename="?([^";\n]+)"?`)
	unsafeCharPattern   = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// HTTPStreamer is the single-stream fallback transport: a plain chunked HTTP
// download with periodic progress logging. It writes through a temp file and
// renames on completion so a failed transfer never leaves a partial artifact.
type HTTPStreamer struct {
	client *http.Client
}

func NewHTTPStreamer(client *http.Client) *HTTPStreamer {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPStreamer{client: client}
}

func (s *HTTPStreamer) Download(ctx context.Context, url, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("stream download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	filename := filenameFromResponse(resp)
	destPath := filepath.Join(destDir, filename)

	tmpFile, err := os.CreateTemp(destDir, ".dl-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	totalSize := resp.ContentLength
	written, err := copyWithProgress(tmpFile, resp.Body, totalSize, filename)
	if closeErr := tmpFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("stream download %s: %w", url, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("finalize download: %w", err)
	}

	log.Info().
		Str("file", filename).
		Int64("bytes", written).
		Msg("single-stream download complete")
	return destPath, nil
}

// filenameFromResponse resolves the artifact name from the Content-Disposition
// header, falling back to the final URL path. The name is sanitized and forced
// to a binary suffix.
func filenameFromResponse(resp *http.Response) string {
	filename := ""
	if disp := resp.Header.Get("Content-Disposition"); strings.Contains(disp, "filename=") {
		if m := filenameDispPattern.FindStringSubmatch(disp); m != nil {
			filename = m[1]
		}
	}
	if filename == "" {
		finalURL := resp.Request.URL.Path
		filename = finalURL[strings.LastIndex(finalURL, "/")+1:]
		if idx := strings.Index(filename, "?"); idx != -1 {
			filename = filename[:idx]
		}
	}
	if filename == "" {
		filename = "download.apk"
	}
	if !strings.HasSuffix(filename, ".apk") && !strings.HasSuffix(filename, ".xapk") && !strings.HasSuffix(filename, ".zip") {
		filename += ".apk"
	}
	return unsafeCharPattern.ReplaceAllString(filename, "_")
}

func copyWithProgress(dst io.Writer, src io.Reader, totalSize int64, name string) (int64, error) {
	buf := make([]byte, 8192)
	var written int64
	lastLogged := time.Now()

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)

			if totalSize > 0 && time.Since(lastLogged) > 2*time.Second {
				log.Debug().
					Str("file", name).
					Int64("downloaded", written).
					Int64("total", totalSize).
					Float64("percent", float64(written)/float64(totalSize)*100).
					Msg("download progress")
				lastLogged = time.Now()
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
