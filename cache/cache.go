// Package cache is a content-addressed on-disk store of parsed element
// sequences.
//
// Each entry is one JSON file named {hint}_{sha256[:16]}.json holding the
// elements and a little provenance. Access times and sizes live in a
// separate cache_metadata.json index owned by a single goroutine: callers
// send it operations over a channel, mutations arm a debounce timer, and
// Flush writes the index synchronously. Entries expire after a TTL and the
// least recently accessed ones are evicted once the directory outgrows its
// byte budget, down to 80% of that budget.
//
// Disk failures never reach the pipeline as hard errors: an unreadable
// entry is a miss, a corrupted one is deleted, and a directory that cannot
// be created turns the cache off.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/speakdown/element"
)

const (
	// MetadataFile is the name of the index file inside the cache directory.
	MetadataFile = "cache_metadata.json"

	DefaultTTL        = 24 * time.Hour
	DefaultMaxSize    = 100 << 20
	DefaultFlushDelay = 5 * time.Second

	// evictTarget is the fraction of MaxSize a size eviction shrinks to.
	evictTarget = 0.8
)

// EvictReason says why an entry left the cache.
type EvictReason string

const (
	EvictExpired   EvictReason = "expired"
	EvictSize      EvictReason = "size"
	EvictCorrupted EvictReason = "corrupted"
	EvictCleared   EvictReason = "cleared"
)

// Config configures a Cache.
type Config struct {
	Dir        string
	TTL        time.Duration // default 24h
	MaxSize    int64         // bytes, default 100MB
	FlushDelay time.Duration // index write debounce, default 5s
	Disabled   bool

	Logger *slog.Logger
	// Now is the clock; default time.Now.
	Now func() time.Time
	// OnEvict, if set, is called from the index goroutine for every entry
	// that is removed. It must not call back into the Cache.
	OnEvict func(key string, reason EvictReason)
}

func (c *Config) defaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = DefaultFlushDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Dir == "" {
		c.Dir = DefaultDir()
	}
}

// DefaultDir returns ~/.cache/speakdown, or ./.speakdown-cache when the
// user cache directory is unknown.
func DefaultDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "speakdown")
	}
	return ".speakdown-cache"
}

// entryFile is the on-disk shape of one cache entry.
type entryFile struct {
	Elements       json.RawMessage `json:"elements"`
	ContentLength  int             `json:"content_length"`
	FormatHint     string          `json:"format_hint"`
	ProcessingTime float64         `json:"processing_time"`
	CachedAt       time.Time       `json:"cached_at"`
}

// Cache is safe for concurrent use.
type Cache struct {
	cfg    Config
	logger *slog.Logger

	ops     chan op
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	// Owned by the index goroutine.
	idx   index
	stats counters
	dirty bool
}

// New opens (or creates) the cache directory and starts the index owner.
// It never fails: a directory that cannot be created yields a disabled
// cache and a warning.
func New(cfg Config) *Cache {
	cfg.defaults()
	c := &Cache{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "cache"),
		ops:     make(chan op),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if !cfg.Disabled {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			c.logger.Warn("cache disabled", "dir", cfg.Dir, "error", err)
			c.cfg.Disabled = true
		}
	}
	if c.cfg.Disabled {
		close(c.stopped)
		return c
	}
	c.load()
	go c.loop()
	return c
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return !c.cfg.Disabled
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.cfg.Dir
}

// Key returns the cache key of content under a format hint. An empty hint
// is "auto".
func Key(content, hint string) string {
	if hint == "" {
		hint = "auto"
	}
	sum := sha256.Sum256([]byte(content))
	return hint + "_" + hex.EncodeToString(sum[:])[:16]
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.cfg.Dir, key+".json")
}

// Get returns the cached elements of content, or false on a miss. Expired
// and corrupted entries are removed.
func (c *Cache) Get(content, hint string) ([]element.Element, bool) {
	if c.cfg.Disabled {
		return nil, false
	}
	key := Key(content, hint)
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("cache read failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}

	var ef entryFile
	var elems []element.Element
	if err := json.Unmarshal(data, &ef); err == nil {
		elems, err = element.UnmarshalList(ef.Elements)
		if err != nil {
			ef.CachedAt = time.Time{}
		}
	}
	if ef.CachedAt.IsZero() {
		c.logger.Warn("corrupted cache entry removed", "key", key)
		c.drop(key, EvictCorrupted)
		return nil, false
	}
	now := c.cfg.Now()
	if now.Sub(ef.CachedAt) > c.cfg.TTL {
		c.logger.Debug("cache entry expired", "key", key, "cached_at", ef.CachedAt)
		c.drop(key, EvictExpired)
		return nil, false
	}

	size := int64(len(data))
	c.do(false, func(ix *index) bool {
		m, ok := ix.Files[key]
		if !ok {
			m = fileMeta{
				Size:           size,
				ContentLength:  ef.ContentLength,
				FormatHint:     ef.FormatHint,
				ProcessingTime: ef.ProcessingTime,
				CachedAt:       ef.CachedAt,
			}
		}
		m.LastAccessed = now
		ix.put(key, m)
		c.stats.hits++
		return true
	})
	return elems, true
}

// Put stores the elements parsed from content. processing is how long the
// parse took. The returned error is informational; the cache stays usable.
func (c *Cache) Put(content, hint string, elems []element.Element, processing time.Duration) error {
	if c.cfg.Disabled {
		return nil
	}
	if hint == "" {
		hint = "auto"
	}
	key := Key(content, hint)
	list, err := element.MarshalList(elems)
	if err != nil {
		return fmt.Errorf("cache: marshal elements: %w", err)
	}
	now := c.cfg.Now()
	ef := entryFile{
		Elements:       list,
		ContentLength:  len(content),
		FormatHint:     hint,
		ProcessingTime: processing.Seconds(),
		CachedAt:       now,
	}
	data, err := json.Marshal(ef)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}
	if err := writeAtomic(c.path(key), data); err != nil {
		c.logger.Debug("cache write failed", "key", key, "error", err)
		return fmt.Errorf("cache: %w", err)
	}

	c.do(false, func(ix *index) bool {
		ix.put(key, fileMeta{
			Size:           int64(len(data)),
			ContentLength:  ef.ContentLength,
			FormatHint:     hint,
			ProcessingTime: ef.ProcessingTime,
			CachedAt:       now,
			LastAccessed:   now,
		})
		if ix.TotalSize > c.cfg.MaxSize {
			c.evictLRU(ix)
		}
		return true
	})
	return nil
}

func (c *Cache) miss() {
	c.do(false, func(*index) bool {
		c.stats.misses++
		return false
	})
}

// drop removes one entry (file and index row) and counts a miss.
func (c *Cache) drop(key string, reason EvictReason) {
	c.do(false, func(ix *index) bool {
		c.stats.misses++
		c.remove(ix, key, reason)
		return true
	})
}

// remove deletes an entry. Index goroutine only.
func (c *Cache) remove(ix *index, key string, reason EvictReason) {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("cache remove failed", "key", key, "error", err)
	}
	ix.delete(key)
	if reason == EvictSize || reason == EvictExpired {
		c.stats.evictions++
	}
	if c.cfg.OnEvict != nil {
		c.cfg.OnEvict(key, reason)
	}
}

// writeAtomic writes data to a temporary file and renames it over path so
// readers never see a partial entry.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// isEntryFile reports whether name looks like a cache entry.
func isEntryFile(name string) bool {
	return strings.HasSuffix(name, ".json") && name != MetadataFile && strings.Contains(name, "_")
}
