package services

import (
	"strings"
	"sync"
	"time"
)

// TTLs per data class. Scores churn fast, team metadata barely moves.
var cacheTTLs = map[string]time.Duration{
	"scores":    60 * time.Second,
	"odds":      300 * time.Second,
	"news":      300 * time.Second,
	"injuries":  900 * time.Second,
	"schedules": 3600 * time.Second,
	"standings": 3600 * time.Second,
	"stats":     3600 * time.Second,
	"teams":     86400 * time.Second,
}

const defaultCacheTTL = 300 * time.Second

type cacheEntry struct {
	value     interface{}
	storedAt  time.Time
	expiresAt time.Time
}

// SourceCache is an in-process TTL cache for upstream API responses. Entries
// past their TTL are invisible to Get but stay retrievable through GetStale
// so ingestion can fall back to the last good payload when a source is down.
type SourceCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time

	hits   int64
	misses int64
}

func NewSourceCache() *SourceCache {
	return &SourceCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// ttlForKey picks the TTL class from the key prefix ("odds:nfl:h2h" -> odds).
func ttlForKey(key string) time.Duration {
	class := key
	if i := strings.IndexByte(key, ':'); i > 0 {
		class = key[:i]
	}
	if ttl, ok := cacheTTLs[class]; ok {
		return ttl
	}
	return defaultCacheTTL
}

// Get returns the cached value if present and fresh.
func (c *SourceCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.value, true
}

// GetStale returns the cached value regardless of freshness, with its age.
func (c *SourceCache) GetStale(key string) (interface{}, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, 0, false
	}
	return entry.value, c.now().Sub(entry.storedAt), true
}

// Set stores a value under the TTL class implied by the key prefix.
func (c *SourceCache) Set(key string, value interface{}) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttlForKey(key)),
	}
}

// Delete removes a single entry.
func (c *SourceCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops all entries.
func (c *SourceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// CacheStats is reported on the ops surface.
type CacheStats struct {
	Entries int   `json:"entries"`
	Fresh   int   `json:"fresh"`
	Stale   int   `json:"stale"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func (c *SourceCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			stats.Stale++
		} else {
			stats.Fresh++
		}
	}
	return stats
}
