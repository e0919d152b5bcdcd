package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apkgrab/apkgrab/internal/listing"
)

type stubResolver struct {
	links []listing.DownloadLink
	err   error
	calls int
}

func (r *stubResolver) DownloadLinks(_ context.Context, _ string) ([]listing.DownloadLink, error) {
	r.calls++
	return r.links, r.err
}

func (r *stubResolver) ListingURL(slug string) string {
	return "https://apkdone.com/" + slug + "/"
}

type stubBulk struct {
	filename string
	err      error
	calls    int
}

func (b *stubBulk) Download(_ context.Context, _, destDir, _, _ string) error {
	b.calls++
	if b.err != nil {
		return b.err
	}
	return writeArtifact(destDir, b.filename)
}

type stubStreamer struct {
	filename string
	err      error
	calls    int
}

func (s *stubStreamer) Download(_ context.Context, _, destDir string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	path := filepath.Join(destDir, s.filename)
	return path, writeArtifact(destDir, s.filename)
}

type stubExecutor struct {
	filename string
	err      error
	calls    int
}

func (e *stubExecutor) Download(_ context.Context, _, destDir string) error {
	e.calls++
	if e.err != nil {
		return e.err
	}
	return writeArtifact(destDir, e.filename)
}

func writeArtifact(destDir, filename string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destDir, filename), []byte("binary-content"), 0o644)
}

func directLinks() []listing.DownloadLink {
	return []listing.DownloadLink{
		{Name: "Download APK", URL: "https://hole.apkdone.com/dl/app.apk", Direct: true},
	}
}

func newTestEngine(dir string, resolver *stubResolver, bulk *stubBulk, stream *stubStreamer, exec *stubExecutor) *Engine {
	return NewEngine(dir, resolver, bulk, stream, exec, nil)
}

func TestEngine_Acquire_CacheHit(t *testing.T) {
	dir := t.TempDir()
	id := "subway-surfers-mod-apk"
	if err := writeArtifact(filepath.Join(dir, id), "subway.apk"); err != nil {
		t.Fatal(err)
	}

	resolver := &stubResolver{links: directLinks()}
	bulk := &stubBulk{filename: "bulk.apk"}
	engine := newTestEngine(dir, resolver, bulk, &stubStreamer{}, &stubExecutor{})

	result, err := engine.Acquire(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if result.Source != SourceCache {
		t.Errorf("Expected cache source, got %s", result.Source)
	}
	if result.Name != "subway.apk" {
		t.Errorf("Unexpected filename %q", result.Name)
	}
	if resolver.calls != 0 || bulk.calls != 0 {
		t.Error("Cache hit must not touch resolver or transports")
	}
}

func TestEngine_Acquire_BulkTransport(t *testing.T) {
	dir := t.TempDir()
	resolver := &stubResolver{links: directLinks()}
	bulk := &stubBulk{filename: "subway.apk"}
	stream := &stubStreamer{filename: "stream.apk"}

	engine := newTestEngine(dir, resolver, bulk, stream, &stubExecutor{err: errors.New("unused")})

	result, err := engine.Acquire(context.Background(), "subway-surfers-mod-apk", Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if result.Source != SourceBulk {
		t.Errorf("Expected bulk source, got %s", result.Source)
	}
	if stream.calls != 0 {
		t.Error("Stream fallback must not run when bulk succeeds")
	}
}

func TestEngine_Acquire_StreamFallback(t *testing.T) {
	dir := t.TempDir()
	resolver := &stubResolver{links: directLinks()}
	bulk := &stubBulk{err: errors.New("aria2c exited with status 1")}
	stream := &stubStreamer{filename: "subway.apk"}

	engine := newTestEngine(dir, resolver, bulk, stream, &stubExecutor{err: errors.New("unused")})

	result, err := engine.Acquire(context.Background(), "subway-surfers-mod-apk", Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if result.Source != SourceStream {
		t.Errorf("Expected stream source, got %s", result.Source)
	}
	if bulk.calls != 1 || stream.calls != 1 {
		t.Errorf("Expected bulk then stream, got bulk=%d stream=%d", bulk.calls, stream.calls)
	}
}

func TestEngine_Acquire_PackageNameGoesToExecutor(t *testing.T) {
	dir := t.TempDir()
	resolver := &stubResolver{links: directLinks()}
	exec := &stubExecutor{filename: "com.kiloo.subwaysurf.apk"}

	engine := newTestEngine(dir, resolver, &stubBulk{}, &stubStreamer{}, exec)

	result, err := engine.Acquire(context.Background(), "com.kiloo.subwaysurf", Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if result.Source != SourceExecutor {
		t.Errorf("Expected executor source, got %s", result.Source)
	}
	if exec.calls != 1 {
		t.Errorf("Expected 1 executor call, got %d", exec.calls)
	}
	if resolver.calls != 0 {
		t.Error("Executor success must not consult the link resolver")
	}
}

func TestEngine_Acquire_PlayHintGoesToExecutor(t *testing.T) {
	dir := t.TempDir()
	exec := &stubExecutor{filename: "subway.apk"}
	engine := newTestEngine(dir, &stubResolver{}, &stubBulk{}, &stubStreamer{}, exec)

	result, err := engine.Acquire(context.Background(), "subway-surfers", Options{SourceHint: listing.SourcePlay})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if result.Source != SourceExecutor {
		t.Errorf("Expected executor source, got %s", result.Source)
	}
}

func TestEngine_Acquire_ExecutorFallbackWhenNoLinks(t *testing.T) {
	dir := t.TempDir()
	resolver := &stubResolver{} // no links
	exec := &stubExecutor{filename: "subway.apk"}

	engine := newTestEngine(dir, resolver, &stubBulk{}, &stubStreamer{}, exec)

	result, err := engine.Acquire(context.Background(), "subway-surfers", Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if result.Source != SourceExecutorFallback {
		t.Errorf("Expected executor-fallback source, got %s", result.Source)
	}
}

func TestEngine_Acquire_AllTiersFail(t *testing.T) {
	dir := t.TempDir()
	resolver := &stubResolver{links: directLinks()}
	bulk := &stubBulk{err: errors.New("aria2c failed")}
	stream := &stubStreamer{err: errors.New("stream failed")}
	exec := &stubExecutor{err: errors.New("apkeep failed")}

	engine := newTestEngine(dir, resolver, bulk, stream, exec)

	id := "subway-surfers-mod-apk"
	_, err := engine.Acquire(context.Background(), id, Options{})
	if err == nil {
		t.Fatal("Expected terminal error")
	}
	if !errors.Is(err, ErrNoLinks) {
		t.Errorf("Expected ErrNoLinks without force, got %v", err)
	}

	status := engine.Status(id)
	if status.Ready {
		t.Error("Status must report not ready after total failure")
	}
}

func TestEngine_Acquire_ForceRefetch(t *testing.T) {
	dir := t.TempDir()
	id := "subway-surfers-mod-apk"
	if err := writeArtifact(filepath.Join(dir, id), "old.apk"); err != nil {
		t.Fatal(err)
	}

	exec := &stubExecutor{filename: "new.apk"}
	engine := newTestEngine(dir, &stubResolver{}, &stubBulk{}, &stubStreamer{}, exec)

	result, err := engine.Acquire(context.Background(), id, Options{ForceRefetch: true})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if result.Source == SourceCache {
		t.Error("Force refetch must not serve from cache")
	}
	if exec.calls == 0 {
		t.Error("Force refetch must invoke the executor")
	}
}

func TestEngine_Status(t *testing.T) {
	dir := t.TempDir()
	engine := newTestEngine(dir, &stubResolver{}, &stubBulk{}, &stubStreamer{}, &stubExecutor{})

	if status := engine.Status("missing-app"); status.Ready {
		t.Error("Expected not ready for unknown id")
	}

	id := "subway-surfers-mod-apk"
	if err := writeArtifact(filepath.Join(dir, id), "subway.apk"); err != nil {
		t.Fatal(err)
	}

	// In-flight temp files never count as ready artifacts.
	if err := writeArtifact(filepath.Join(dir, "partial-app"), "partial.apk.tmp"); err != nil {
		t.Fatal(err)
	}

	status := engine.Status(id)
	if !status.Ready {
		t.Fatal("Expected ready status")
	}
	if status.File != "subway.apk" {
		t.Errorf("Unexpected file %q", status.File)
	}
	if status.Size == 0 {
		t.Error("Expected non-zero size")
	}

	if status := engine.Status("partial-app"); status.Ready {
		t.Error("Temp files must not surface as ready")
	}
}
