package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"upset-radar-api/models"
)

const oddsFixture = `[{
	"id": "evt1",
	"sport_key": "americanfootball_nfl",
	"commence_time": "2025-09-07T22:00:00Z",
	"home_team": "Kansas City Chiefs",
	"away_team": "Las Vegas Raiders",
	"bookmakers": [{
		"key": "draftkings",
		"title": "DraftKings",
		"last_update": "2025-09-05T12:00:00Z",
		"markets": [
			{"key": "h2h", "outcomes": [
				{"name": "Kansas City Chiefs", "price": -180},
				{"name": "Las Vegas Raiders", "price": 155}
			]},
			{"key": "spreads", "outcomes": [
				{"name": "Kansas City Chiefs", "price": -110, "point": -3.5},
				{"name": "Las Vegas Raiders", "price": -110, "point": 3.5}
			]},
			{"key": "totals", "outcomes": [
				{"name": "Over", "price": -110, "point": 47.5},
				{"name": "Under", "price": -110, "point": 47.5}
			]}
		]
	}]
}]`

func newTestOddsService(t *testing.T, handler http.HandlerFunc) *OddsAPIService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cache := NewSourceCache()
	svc := NewOddsAPIService(cache)
	svc.apiKey = "test-key"
	svc.base = server.URL
	svc.client = fastClient("odds_api")
	return svc
}

func TestOddsSnapshotJobIngestsAndDedupes(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOddsService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(oddsFixture))
	})

	job := NewOddsSnapshotJob(db, svc, []string{"NFL"})
	fixed := time.Date(2025, 9, 5, 15, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Created != 1 || result.Processed != 1 {
		t.Fatalf("expected one snapshot, got %+v", result)
	}

	var snap models.OddsSnapshot
	if err := db.First(&snap, "game_id = ?", "evt1").Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Favorite != "Kansas City Chiefs" || snap.Underdog != "Las Vegas Raiders" {
		t.Errorf("favorite labeling wrong: %s vs %s", snap.Favorite, snap.Underdog)
	}
	if snap.UnderdogOdds == nil || *snap.UnderdogOdds != 155 {
		t.Errorf("underdog odds = %v, want 155", snap.UnderdogOdds)
	}
	if snap.Spread == nil || *snap.Spread != -3.5 {
		t.Errorf("spread = %v, want -3.5", snap.Spread)
	}
	if snap.Total == nil || *snap.Total != 47.5 {
		t.Errorf("total = %v, want 47.5", snap.Total)
	}

	// Same payload at the same capture minute: natural key blocks the dup.
	result, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Created != 0 {
		t.Errorf("re-ingest must create nothing, got %d", result.Created)
	}
	var count int64
	db.Model(&models.OddsSnapshot{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 row after re-ingest, got %d", count)
	}
}

func TestOddsSnapshotJobAuthFailure(t *testing.T) {
	db := newTestDB(t)
	svc := newTestOddsService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	job := NewOddsSnapshotJob(db, svc, []string{"NFL"})
	result, err := job.Run(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("auth failure must process nothing, got %d", result.Processed)
	}

	// The failed fetch must not have poisoned the cache.
	if _, ok := svc.cache.Get("odds:americanfootball_nfl"); ok {
		t.Error("cache must stay empty after auth failure")
	}
	if _, _, ok := svc.cache.GetStale("odds:americanfootball_nfl"); ok {
		t.Error("auth failures must never be cached")
	}
}

func TestOddsSnapshotJobSkippedWithoutKey(t *testing.T) {
	db := newTestDB(t)
	cache := NewSourceCache()
	svc := NewOddsAPIService(cache)
	svc.apiKey = ""

	job := NewOddsSnapshotJob(db, svc, []string{"NFL"})
	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("missing credentials must not error the scheduler: %v", err)
	}
	if !result.Skipped || result.SkipReason == "" {
		t.Errorf("expected a skipped result, got %+v", result)
	}
}

func TestOddsSnapshotJobStaleFallback(t *testing.T) {
	db := newTestDB(t)
	var healthy bool
	svc := newTestOddsService(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(oddsFixture))
	})
	now := time.Date(2025, 9, 5, 15, 0, 0, 0, time.UTC)
	svc.cache.now = func() time.Time { return now }

	job := NewOddsSnapshotJob(db, svc, []string{"NFL"})
	job.now = func() time.Time { return now }

	// Healthy fetch primes the cache.
	healthy = true
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("prime run: %v", err)
	}

	// Past TTL and upstream down: the job runs off the stale payload.
	healthy = false
	now = now.Add(10 * time.Minute)
	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("stale run should succeed: %v", err)
	}
	if _, ok := result.Extra["stale_NFL"]; !ok {
		t.Error("stale serving must be recorded in run metadata")
	}
}
