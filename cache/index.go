package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// fileMeta is the index row of one entry.
type fileMeta struct {
	Size           int64     `json:"size"`
	ContentLength  int       `json:"content_length"`
	FormatHint     string    `json:"format_hint"`
	ProcessingTime float64   `json:"processing_time"`
	CachedAt       time.Time `json:"cached_at"`
	LastAccessed   time.Time `json:"last_accessed"`
}

// index is the persisted shape of cache_metadata.json.
type index struct {
	Files       map[string]fileMeta `json:"files"`
	TotalSize   int64               `json:"total_size"`
	LastCleanup time.Time           `json:"last_cleanup"`
}

func (ix *index) put(key string, m fileMeta) {
	if ix.Files == nil {
		ix.Files = make(map[string]fileMeta)
	}
	if old, ok := ix.Files[key]; ok {
		ix.TotalSize -= old.Size
	}
	ix.Files[key] = m
	ix.TotalSize += m.Size
}

func (ix *index) delete(key string) {
	if old, ok := ix.Files[key]; ok {
		ix.TotalSize -= old.Size
		delete(ix.Files, key)
	}
}

// lru returns the keys ordered from least to most recently accessed.
func (ix *index) lru() []string {
	keys := make([]string, 0, len(ix.Files))
	for k := range ix.Files {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := ix.Files[keys[i]], ix.Files[keys[j]]
		if !a.LastAccessed.Equal(b.LastAccessed) {
			return a.LastAccessed.Before(b.LastAccessed)
		}
		return keys[i] < keys[j]
	})
	return keys
}

type counters struct {
	hits, misses, evictions int64
}

// op is one unit of work for the index goroutine. fn reports whether it
// changed the index; flush forces a synchronous write afterwards.
type op struct {
	fn    func(*index) bool
	flush bool
	done  chan struct{}
}

// do runs fn on the index goroutine and waits for it. After Close, fn is
// not run.
func (c *Cache) do(flush bool, fn func(*index) bool) {
	o := op{fn: fn, flush: flush, done: make(chan struct{})}
	select {
	case c.ops <- o:
		<-o.done
	case <-c.stopped:
	}
}

// loop owns the index. Mutations arm a one-shot timer; the index is written
// when it fires, on an explicit flush, or at Close.
func (c *Cache) loop() {
	defer close(c.stopped)
	var timer *time.Timer
	var timerC <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	for {
		select {
		case o := <-c.ops:
			if o.fn != nil && o.fn(&c.idx) {
				c.dirty = true
			}
			if o.flush {
				stopTimer()
				c.persist()
			} else if c.dirty && timer == nil {
				timer = time.NewTimer(c.cfg.FlushDelay)
				timerC = timer.C
			}
			close(o.done)
		case <-timerC:
			timer, timerC = nil, nil
			c.persist()
		case <-c.quit:
			stopTimer()
			c.persist()
			return
		}
	}
}

// persist writes the index if it changed. Index goroutine only.
func (c *Cache) persist() {
	if !c.dirty {
		return
	}
	data, err := json.MarshalIndent(&c.idx, "", "  ")
	if err != nil {
		c.logger.Warn("cache index marshal failed", "error", err)
		return
	}
	if err := writeAtomic(filepath.Join(c.cfg.Dir, MetadataFile), data); err != nil {
		c.logger.Warn("cache index write failed", "error", err)
		return
	}
	c.dirty = false
}

// load reads the index, dropping rows whose files are gone. A missing or
// unreadable index is rebuilt from the entry files.
func (c *Cache) load() {
	data, err := os.ReadFile(filepath.Join(c.cfg.Dir, MetadataFile))
	if err == nil {
		var ix index
		if err := json.Unmarshal(data, &ix); err == nil && ix.Files != nil {
			c.idx = index{Files: make(map[string]fileMeta, len(ix.Files)), LastCleanup: ix.LastCleanup}
			for k, m := range ix.Files {
				if _, err := os.Stat(c.path(k)); err == nil {
					c.idx.put(k, m)
				} else {
					c.dirty = true
				}
			}
			return
		}
		c.logger.Warn("cache index corrupted, rebuilding", "dir", c.cfg.Dir)
	}
	c.rebuild()
}

// rebuild scans the directory for entry files. Unparseable entries are
// deleted.
func (c *Cache) rebuild() {
	c.idx = index{Files: make(map[string]fileMeta)}
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		c.logger.Warn("cache scan failed", "dir", c.cfg.Dir, "error", err)
		return
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !isEntryFile(name) {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		path := filepath.Join(c.cfg.Dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var ef entryFile
		if err := json.Unmarshal(data, &ef); err != nil || ef.CachedAt.IsZero() {
			os.Remove(path)
			continue
		}
		accessed := ef.CachedAt
		if info, err := de.Info(); err == nil && info.ModTime().After(accessed) {
			accessed = info.ModTime()
		}
		c.idx.put(key, fileMeta{
			Size:           int64(len(data)),
			ContentLength:  ef.ContentLength,
			FormatHint:     ef.FormatHint,
			ProcessingTime: ef.ProcessingTime,
			CachedAt:       ef.CachedAt,
			LastAccessed:   accessed,
		})
	}
	c.dirty = true
	c.logger.Debug("cache index rebuilt", "entries", len(c.idx.Files))
}

// evictLRU removes least recently accessed entries until the total size is
// at most 80% of the budget. Index goroutine only.
func (c *Cache) evictLRU(ix *index) int {
	target := int64(float64(c.cfg.MaxSize) * evictTarget)
	n := 0
	for _, key := range ix.lru() {
		if ix.TotalSize <= target {
			break
		}
		c.remove(ix, key, EvictSize)
		n++
	}
	if n > 0 {
		c.logger.Debug("cache evicted", "entries", n, "total_size", ix.TotalSize)
	}
	return n
}
