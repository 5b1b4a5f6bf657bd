package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"upset-radar-api/models"
)

func newTestSportsData(t *testing.T, handler http.HandlerFunc) *SportsDataService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewSportsDataService(NewSourceCache())
	svc.apiKey = "test-key"
	svc.base = server.URL
	svc.client = fastClient("sportsdata_io")
	return svc
}

const scheduleFixture = `[
	{"GameKey": "202510907", "Season": 2025, "SeasonType": 1, "Week": 1,
	 "Date": "2025-09-07T13:00:00", "AwayTeam": "LV", "HomeTeam": "KC",
	 "Channel": "CBS", "Status": "Scheduled", "PointSpread": -7.5,
	 "OverUnder": 46.5, "AwayTeamMoneyLine": 280, "HomeTeamMoneyLine": -340,
	 "StadiumDetails": {"Name": "GEHA Field at Arrowhead Stadium"}},
	{"GameKey": "202510908", "Season": 2025, "SeasonType": 1, "Week": 1,
	 "Date": "2025-09-07T16:25:00", "AwayTeam": "DAL", "HomeTeam": "PHI",
	 "Status": "InProgress", "Canceled": false}
]`

const standingsFixture = `[
	{"Team": "KC", "Name": "Kansas City Chiefs", "Season": 2025,
	 "Wins": 3, "Losses": 0, "Ties": 0, "Percentage": 1.0, "Streak": 3},
	{"Team": "LV", "Name": "Las Vegas Raiders", "Season": 2025,
	 "Wins": 1, "Losses": 2, "Ties": 0, "Percentage": 0.333, "Streak": -2}
]`

func TestScheduleRefreshJobUpserts(t *testing.T) {
	db := newTestDB(t)
	svc := newTestSportsData(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case strings.Contains(r.URL.Path, "Schedules"):
			w.Write([]byte(scheduleFixture))
		case strings.Contains(r.URL.Path, "Standings"):
			w.Write([]byte(standingsFixture))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	job := NewScheduleRefreshJob(db, svc)
	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Created != 2 || result.Updated != 0 {
		t.Fatalf("expected 2 created, got %+v", result)
	}

	var game models.Game
	if err := db.First(&game, "id = ?", "202510907").Error; err != nil {
		t.Fatalf("load game: %v", err)
	}
	if game.Status != models.GameStatusUpcoming {
		t.Errorf("Scheduled should normalize to upcoming, got %s", game.Status)
	}
	if game.StartTime == nil {
		t.Fatal("start time not parsed")
	}
	// 13:00 US Eastern is 17:00 UTC during DST.
	if game.StartTime.UTC().Hour() != 17 {
		t.Errorf("start time = %s, want 17:00 UTC", game.StartTime.UTC())
	}
	if game.Stadium == nil || *game.Stadium != "GEHA Field at Arrowhead Stadium" {
		t.Errorf("stadium = %v", game.Stadium)
	}

	var live models.Game
	if err := db.First(&live, "id = ?", "202510908").Error; err != nil {
		t.Fatalf("load game: %v", err)
	}
	if live.Status != models.GameStatusLive {
		t.Errorf("InProgress should normalize to live, got %s", live.Status)
	}

	var standing models.Standing
	if err := db.First(&standing, "team = ?", "LV").Error; err != nil {
		t.Fatalf("load standing: %v", err)
	}
	if standing.Streak != -2 {
		t.Errorf("streak = %d, want -2", standing.Streak)
	}

	// Second pass updates in place.
	svc.cache.Clear()
	result, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Created != 0 || result.Updated != 2 {
		t.Errorf("expected 2 updated on refresh, got %+v", result)
	}
	var count int64
	db.Model(&models.Game{}).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 games after refresh, got %d", count)
	}
}

const injuriesFixture = `[
	{"PlayerID": 101, "Name": "Star Quarterback", "Team": "KC", "Position": "QB",
	 "Status": "out", "BodyPart": "Ankle", "Practice": "Did Not Participate",
	 "DeclaredInactive": true, "Updated": "2025-09-05T10:00:00"},
	{"PlayerID": 102, "Name": "Slot Receiver", "Team": "LV", "Position": "WR",
	 "Status": "questionable", "BodyPart": ""},
	{"PlayerID": 103, "Name": "Edge Rusher", "Team": "LV", "Position": "DE",
	 "Status": ""}
]`

func TestInjuryUpdateJobNormalizesAndUpserts(t *testing.T) {
	db := newTestDB(t)
	svc := newTestSportsData(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(injuriesFixture))
	})

	job := NewInjuryUpdateJob(db, svc)
	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Created != 3 {
		t.Fatalf("expected 3 created, got %+v", result)
	}

	var qb models.Injury
	if err := db.First(&qb, 101).Error; err != nil {
		t.Fatalf("load injury: %v", err)
	}
	if qb.Status != models.InjuryStatusOut {
		t.Errorf(`"out" should normalize to Out, got %s`, qb.Status)
	}
	if qb.BodyPart != "Ankle" || !qb.DeclaredInactive {
		t.Errorf("fields not carried: %+v", qb)
	}

	var wr models.Injury
	db.First(&wr, 102)
	if wr.BodyPart != "Undisclosed" {
		t.Errorf("empty body part should default, got %q", wr.BodyPart)
	}

	var de models.Injury
	db.First(&de, 103)
	if de.Status != models.InjuryStatusUnknown {
		t.Errorf("empty status should be Unknown, got %s", de.Status)
	}

	// Re-run updates the same rows.
	svc.cache.Clear()
	result, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Created != 0 || result.Updated != 3 {
		t.Errorf("expected 3 updated, got %+v", result)
	}
}

func TestInjuryUpdateJobSkippedWithoutKey(t *testing.T) {
	db := newTestDB(t)
	svc := NewSportsDataService(NewSourceCache())
	svc.apiKey = ""

	job := NewInjuryUpdateJob(db, svc)
	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Skipped {
		t.Errorf("expected skipped result, got %+v", result)
	}
}

func TestSentimentJobSkippedWithoutFeed(t *testing.T) {
	db := newTestDB(t)
	social := NewSocialFeedService(NewSourceCache())
	social.feedURL = ""

	job := NewSentimentJob(db, social)
	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Skipped {
		t.Errorf("expected skipped result, got %+v", result)
	}
}

func TestSentimentJobAggregatesWindows(t *testing.T) {
	db := newTestDB(t)

	start := time.Now().UTC().Add(48 * time.Hour)
	game := models.Game{ID: "g1", Sport: "NFL", HomeTeam: "KC", AwayTeam: "LV", Status: models.GameStatusUpcoming, StartTime: &start}
	if err := db.Create(&game).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		team := r.URL.Query().Get("q")
		if team == "KC" {
			w.Write([]byte(`[
				{"id": "p1", "text": "KC looks unstoppable, best team rolling", "likes": 50},
				{"id": "p2", "text": "love this team, elite and healthy", "likes": 10}
			]`))
			return
		}
		w.Write([]byte(`[
			{"id": "p3", "text": "struggling and injured, avoid this trap", "likes": 5}
		]`))
	}))
	t.Cleanup(server.Close)

	social := NewSocialFeedService(NewSourceCache())
	social.feedURL = server.URL
	social.client = fastClient("social_feed")

	job := NewSentimentJob(db, social)
	fixed := time.Now().UTC()
	job.now = func() time.Time { return fixed }
	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Processed != 2 || result.Created != 2 {
		t.Fatalf("expected windows for both teams, got %+v", result)
	}

	var kc models.SentimentScore
	if err := db.First(&kc, "target_id = ?", "KC").Error; err != nil {
		t.Fatalf("load KC: %v", err)
	}
	if kc.Score <= 0 || kc.WeightedScore <= 0 {
		t.Errorf("positive posts should score positive, got %+v", kc)
	}
	if kc.PositiveCount != 2 || kc.TotalPosts != 2 {
		t.Errorf("counts wrong: %+v", kc)
	}

	var lv models.SentimentScore
	if err := db.First(&lv, "target_id = ?", "LV").Error; err != nil {
		t.Fatalf("load LV: %v", err)
	}
	if lv.Score >= 0 {
		t.Errorf("negative posts should score negative, got %v", lv.Score)
	}

	// Same window, same payload: the unique window key absorbs the rerun.
	result, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Created != 0 {
		t.Errorf("rerun inside one window must create nothing, got %d", result.Created)
	}
	var count int64
	db.Model(&models.SentimentScore{}).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 windows, got %d", count)
	}
}

func TestCurrentWeek(t *testing.T) {
	d1 := "2025-09-07T13:00:00"
	d2 := "2025-09-14T13:00:00"
	items := []ScheduleItem{
		{GameKey: "w1", Week: 1, Date: &d1},
		{GameKey: "w2", Week: 2, Date: &d2},
	}

	now := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	if got := CurrentWeek(items, now); got != 2 {
		t.Errorf("mid-season week = %d, want 2", got)
	}

	before := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	if got := CurrentWeek(items, before); got != 1 {
		t.Errorf("preseason week = %d, want 1", got)
	}

	after := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	if got := CurrentWeek(items, after); got != 1 {
		t.Errorf("played-out schedule week = %d, want 1", got)
	}

	if got := CurrentWeek(nil, now); got != 1 {
		t.Errorf("empty schedule week = %d, want 1", got)
	}
}
