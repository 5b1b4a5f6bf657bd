package services

import (
	"testing"
	"time"
)

func TestCacheTTLClasses(t *testing.T) {
	if got := ttlForKey("odds:americanfootball_nfl"); got != 300*time.Second {
		t.Errorf("odds TTL = %s", got)
	}
	if got := ttlForKey("teams:nfl"); got != 86400*time.Second {
		t.Errorf("teams TTL = %s", got)
	}
	if got := ttlForKey("scores:nfl:week1"); got != 60*time.Second {
		t.Errorf("scores TTL = %s", got)
	}
	if got := ttlForKey("something:else"); got != defaultCacheTTL {
		t.Errorf("unknown class TTL = %s", got)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewSourceCache()
	now := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("odds:nfl", "payload")

	if v, ok := cache.Get("odds:nfl"); !ok || v != "payload" {
		t.Fatalf("expected fresh hit, got %v %v", v, ok)
	}

	now = now.Add(301 * time.Second)
	if _, ok := cache.Get("odds:nfl"); ok {
		t.Error("entry past TTL must miss")
	}

	// Stale reads still work, with the age reported.
	v, age, ok := cache.GetStale("odds:nfl")
	if !ok || v != "payload" {
		t.Fatalf("expected stale value, got %v %v", v, ok)
	}
	if age != 301*time.Second {
		t.Errorf("stale age = %s, want 301s", age)
	}
}

func TestCacheSetRefreshesTTL(t *testing.T) {
	cache := NewSourceCache()
	now := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("injuries:nfl", 1)
	now = now.Add(899 * time.Second)
	cache.Set("injuries:nfl", 2)
	now = now.Add(899 * time.Second)

	v, ok := cache.Get("injuries:nfl")
	if !ok || v != 2 {
		t.Fatalf("expected refreshed entry, got %v %v", v, ok)
	}
}

func TestCacheStats(t *testing.T) {
	cache := NewSourceCache()
	now := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("scores:a", 1)
	cache.Set("teams:b", 2)
	cache.Get("scores:a")
	cache.Get("missing")

	now = now.Add(2 * time.Minute)

	stats := cache.Stats()
	if stats.Entries != 2 || stats.Fresh != 1 || stats.Stale != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected hit/miss counts %+v", stats)
	}
}

func TestCacheClear(t *testing.T) {
	cache := NewSourceCache()
	cache.Set("odds:a", 1)
	cache.Set("odds:b", 2)
	cache.Clear()
	if stats := cache.Stats(); stats.Entries != 0 {
		t.Errorf("expected empty cache, got %+v", stats)
	}
}
