package pkgcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCache_PutAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package_cache.json")
	cache := New(path, time.Hour)

	cache.Put("Subway-Surfers", "com.kiloo.subwaysurf", "Subway Surfers", "icon.png", "play")

	entry, ok := cache.Get("subway-surfers")
	if !ok {
		t.Fatal("Expected entry after Put")
	}
	if entry.Package != "com.kiloo.subwaysurf" {
		t.Errorf("Unexpected package %q", entry.Package)
	}
	if entry.Title != "Subway Surfers" {
		t.Errorf("Unexpected title %q", entry.Title)
	}

	// Slug lookup is case-insensitive both ways.
	if _, ok := cache.Get("SUBWAY-SURFERS"); !ok {
		t.Error("Expected case-insensitive lookup")
	}

	if _, ok := cache.Get("unknown-slug"); ok {
		t.Error("Expected miss for unknown slug")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package_cache.json")
	cache := New(path, time.Hour)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	cache.Put("minecraft", "com.mojang.minecraftpe", "Minecraft", "", "play")

	if _, ok := cache.Get("minecraft"); !ok {
		t.Fatal("Expected fresh entry")
	}

	cache.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, ok := cache.Get("minecraft"); ok {
		t.Error("Expected stale entry to be a miss")
	}

	// Stale entries stay on disk; a later Put refreshes the timestamp.
	cache.Put("minecraft", "com.mojang.minecraftpe", "Minecraft", "", "play")
	if _, ok := cache.Get("minecraft"); !ok {
		t.Error("Expected refreshed entry")
	}
}

func TestCache_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package_cache.json")

	first := New(path, time.Hour)
	first.Put("temple-run-2", "com.imangi.templerun2", "Temple Run 2", "", "play")

	second := New(path, time.Hour)
	entry, ok := second.Get("temple-run-2")
	if !ok {
		t.Fatal("Expected entry from persisted file")
	}
	if entry.Package != "com.imangi.templerun2" {
		t.Errorf("Unexpected package %q", entry.Package)
	}
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package_cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := New(path, time.Hour)
	if _, ok := cache.Get("anything"); ok {
		t.Error("Expected empty cache from corrupt file")
	}

	// Still writable afterwards.
	cache.Put("anything", "com.example.anything", "Anything", "", "play")
	if _, ok := cache.Get("anything"); !ok {
		t.Error("Expected Put to work after corrupt load")
	}
}
