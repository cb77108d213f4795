package cache

import (
	"os"
	"path/filepath"
	"time"
)

// Stats is a snapshot of cache state.
type Stats struct {
	Dir         string    `json:"dir"`
	Enabled     bool      `json:"enabled"`
	Entries     int       `json:"entries"`
	TotalSize   int64     `json:"total_size"`
	MaxSize     int64     `json:"max_size"`
	Utilization float64   `json:"utilization"`
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Evictions   int64     `json:"evictions"`
	LastCleanup time.Time `json:"last_cleanup,omitzero"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Flush writes the index now, cancelling any pending debounced write.
func (c *Cache) Flush() {
	c.do(true, nil)
}

// Stats flushes the index and reports its state.
func (c *Cache) Stats() Stats {
	st := Stats{Dir: c.cfg.Dir, Enabled: !c.cfg.Disabled, MaxSize: c.cfg.MaxSize}
	c.do(true, func(ix *index) bool {
		st.Entries = len(ix.Files)
		st.TotalSize = ix.TotalSize
		st.Hits, st.Misses, st.Evictions = c.stats.hits, c.stats.misses, c.stats.evictions
		st.LastCleanup = ix.LastCleanup
		return false
	})
	if st.MaxSize > 0 {
		st.Utilization = float64(st.TotalSize) / float64(st.MaxSize)
	}
	return st
}

// Cleanup removes expired entries, then evicts by size if the cache is
// still over budget. It returns how many entries were removed.
func (c *Cache) Cleanup() int {
	removed := 0
	c.do(true, func(ix *index) bool {
		now := c.cfg.Now()
		for key, m := range ix.Files {
			if now.Sub(m.CachedAt) > c.cfg.TTL {
				c.remove(ix, key, EvictExpired)
				removed++
			}
		}
		if ix.TotalSize > c.cfg.MaxSize {
			removed += c.evictLRU(ix)
		}
		ix.LastCleanup = now
		return true
	})
	if removed > 0 {
		c.logger.Info("cache cleanup", "removed", removed)
	}
	return removed
}

// Clear removes every entry, including files the index does not know.
func (c *Cache) Clear() int {
	removed := 0
	c.do(true, func(ix *index) bool {
		for key := range ix.Files {
			c.remove(ix, key, EvictCleared)
			removed++
		}
		if entries, err := os.ReadDir(c.cfg.Dir); err == nil {
			for _, de := range entries {
				if !de.IsDir() && isEntryFile(de.Name()) {
					if os.Remove(filepath.Join(c.cfg.Dir, de.Name())) == nil {
						removed++
					}
				}
			}
		}
		ix.TotalSize = 0
		return true
	})
	return removed
}

// Close writes the index and stops the index goroutine. Later calls to Get
// and Put still work on entry files but no longer update the index.
func (c *Cache) Close() error {
	if c.cfg.Disabled {
		return nil
	}
	c.once.Do(func() { close(c.quit) })
	<-c.stopped
	return nil
}
