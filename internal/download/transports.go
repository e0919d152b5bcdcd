package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// ErrSubprocess marks a transport or executor subprocess that exited nonzero.
var ErrSubprocess = errors.New("transport subprocess failed")

// BulkTransport downloads a URL into destDir using a multi-connection
// external downloader.
type BulkTransport interface {
	Download(ctx context.Context, url, destDir, filename, referer string) error
}

// Executor resolves a store package identifier and fetches its binary into
// destDir.
type Executor interface {
	Download(ctx context.Context, packageID, destDir string) error
}

// Streamer performs a plain single-stream HTTP download into destDir and
// returns the path of the file it wrote.
type Streamer interface {
	Download(ctx context.Context, url, destDir string) (string, error)
}

// Aria2Transport shells out to aria2c. The aggressive connection settings
// mirror what the mirror's file hosts tolerate.
type Aria2Transport struct {
	binPath        string
	defaultReferer string
	timeout        time.Duration
}

func NewAria2Transport(binPath, defaultReferer string, timeout time.Duration) *Aria2Transport {
	if binPath == "" {
		binPath = "aria2c"
	}
	return &Aria2Transport{binPath: binPath, defaultReferer: defaultReferer, timeout: timeout}
}

func (t *Aria2Transport) Download(ctx context.Context, url, destDir, filename, referer string) error {
	args := []string{
		"--max-connection-per-server=16",
		"--split=16",
		"--min-split-size=512K",
		"--max-concurrent-downloads=16",
		"--continue=true",
		"--auto-file-renaming=false",
		"--allow-overwrite=true",
		"--file-allocation=none",
		"--timeout=120",
		"--connect-timeout=15",
		"--max-tries=5",
		"--retry-wait=2",
		"--enable-http-pipelining=true",
		"--http-accept-gzip=true",
		"--stream-piece-selector=geom",
		"--lowest-speed-limit=50K",
		"--async-dns=true",
		"--check-certificate=false",
		"--user-agent=Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"-d", destDir,
	}
	if referer == "" {
		referer = t.defaultReferer
	}
	args = append(args, "--referer", referer)
	if filename != "" {
		args = append(args, "-o", filename)
	}
	args = append(args, url)

	return runSubprocess(ctx, t.binPath, args, t.timeout)
}

// ApkeepExecutor shells out to apkeep, which resolves a package identifier
// against a public APK source and downloads the binary.
type ApkeepExecutor struct {
	binPath string
	timeout time.Duration
}

func NewApkeepExecutor(binPath string, timeout time.Duration) *ApkeepExecutor {
	if binPath == "" {
		binPath = "apkeep"
	}
	return &ApkeepExecutor{binPath: binPath, timeout: timeout}
}

func (e *ApkeepExecutor) Download(ctx context.Context, packageID, destDir string) error {
	args := []string{"-a", packageID, "-d", "apk-pure", destDir}
	return runSubprocess(ctx, e.binPath, args, e.timeout)
}

func runSubprocess(ctx context.Context, bin string, args []string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	log.Debug().
		Str("bin", bin).
		Dur("elapsed", time.Since(start)).
		Bool("ok", err == nil).
		Msg("subprocess finished")

	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if len(detail) > 500 {
			detail = detail[len(detail)-500:]
		}
		return fmt.Errorf("%w: %s: %s", ErrSubprocess, err, detail)
	}
	return nil
}
