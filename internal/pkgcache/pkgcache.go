package pkgcache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/phuslu/log"
)

// Entry maps a listing slug to its resolved store package identifier.
type Entry struct {
	Package   string `json:"package"`
	Title     string `json:"title"`
	Icon      string `json:"icon"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
}

// Cache is a flat slug-to-package mapping persisted as one JSON file. The file
// is loaded lazily once per process and rewritten whole on every put, so
// writers must go through the internal mutex; concurrent processes get
// last-writer-wins.
type Cache struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
	loaded  bool
}

func New(path string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		path: path,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns the entry for slug, or false when absent or stale. Stale entries
// are not evicted; staleness is a read-time check only.
func (c *Cache) Get(slug string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()

	entry, ok := c.entries[strings.ToLower(slug)]
	if !ok {
		return Entry{}, false
	}
	if c.now().Unix()-entry.Timestamp > int64(c.ttl.Seconds()) {
		return Entry{}, false
	}
	return entry, true
}

// Put upserts the entry under the lowercased slug, stamps the current time and
// persists the whole mapping.
func (c *Cache) Put(slug, packageName, title, icon, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()

	c.entries[strings.ToLower(slug)] = Entry{
		Package:   packageName,
		Title:     title,
		Icon:      icon,
		Source:    source,
		Timestamp: c.now().Unix(),
	}
	c.persist()
}

func (c *Cache) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.entries = make(map[string]Entry)

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", c.path).Msg("could not read package cache")
		}
		return
	}
	if err := sonic.Unmarshal(data, &c.entries); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("package cache corrupt, starting empty")
		c.entries = make(map[string]Entry)
	}
}

func (c *Cache) persist() {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("could not create package cache dir")
		return
	}
	data, err := sonic.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("could not encode package cache")
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("package cache save failed")
	}
}
