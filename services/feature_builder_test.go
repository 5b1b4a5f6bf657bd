package services

import (
	"context"
	"testing"
	"time"

	"upset-radar-api/models"
)

func TestIsPrimeTime(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"sunday night", time.Date(2025, 9, 7, 20, 20, 0, 0, time.UTC), true},
		{"sunday afternoon", time.Date(2025, 9, 7, 17, 0, 0, 0, time.UTC), false},
		{"monday night", time.Date(2025, 9, 8, 20, 15, 0, 0, time.UTC), true},
		{"thursday night", time.Date(2025, 9, 4, 20, 15, 0, 0, time.UTC), true},
		{"saturday night", time.Date(2025, 9, 6, 21, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := isPrimeTime(&tc.at); got != tc.want {
			t.Errorf("%s: isPrimeTime = %v, want %v", tc.name, got, tc.want)
		}
	}
	if isPrimeTime(nil) {
		t.Error("nil start time must not be prime time")
	}
}

func TestTeamInjuryImpact(t *testing.T) {
	db := newTestDB(t)
	job := NewFeatureBuilderJob(db)

	injuries := []models.Injury{
		{PlayerID: 1, PlayerName: "Starting QB", Team: "KC", Position: "QB", Status: models.InjuryStatusOut},
		{PlayerID: 2, PlayerName: "WR One", Team: "KC", Position: "WR", Status: models.InjuryStatusQuestionable},
		{PlayerID: 3, PlayerName: "Corner", Team: "KC", Position: "CB", Status: models.InjuryStatusDoubtful},
		{PlayerID: 4, PlayerName: "Kicker", Team: "LV", Position: "K", Status: models.InjuryStatusProbable},
	}
	for i := range injuries {
		if err := db.Create(&injuries[i]).Error; err != nil {
			t.Fatalf("seed injury: %v", err)
		}
	}

	score, qbOut, keyOut, err := job.teamInjuryImpact("KC")
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	// QB Out 15*1.0 + WR Questionable 3*0.4 + CB Doubtful 3*0.8 = 18.6
	if score < 18.59 || score > 18.61 {
		t.Errorf("expected impact 18.6, got %v", score)
	}
	if !qbOut {
		t.Error("QB listed Out must set the QB flag")
	}
	// QB and CB count as unlikely to play at key positions; the
	// questionable WR does not.
	if keyOut != 2 {
		t.Errorf("expected 2 key players out, got %d", keyOut)
	}

	score, qbOut, keyOut, err = job.teamInjuryImpact("LV")
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	if qbOut || keyOut != 0 {
		t.Errorf("LV has no key absences, got qbOut=%v keyOut=%d", qbOut, keyOut)
	}
	if score < 0.09 || score > 0.11 {
		t.Errorf("expected impact 0.1, got %v", score)
	}
}

func TestFeatureBuilderDerivesMovement(t *testing.T) {
	db := newTestDB(t)

	start := time.Date(2025, 9, 7, 22, 0, 0, 0, time.UTC)
	game := models.Game{ID: "g1", Sport: "NFL", HomeTeam: "KC", AwayTeam: "LV", Status: models.GameStatusUpcoming, StartTime: &start}
	if err := db.Create(&game).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}

	captured := start.Add(-48 * time.Hour)
	snapshots := []models.OddsSnapshot{
		{
			ID: "s1", GameID: "g1", Sport: "NFL", Bookmaker: "draftkings",
			CapturedAt: captured, GameStartTime: &start,
			Favorite: "KC", Underdog: "LV",
			HomeMoneyline: ptrInt(-200), AwayMoneyline: ptrInt(170),
			FavoriteOdds: ptrInt(-200), UnderdogOdds: ptrInt(170),
			Spread: ptrFloat(-6.5), Total: ptrFloat(47.5),
		},
		{
			ID: "s2", GameID: "g1", Sport: "NFL", Bookmaker: "draftkings",
			CapturedAt: captured.Add(24 * time.Hour), GameStartTime: &start,
			Favorite: "KC", Underdog: "LV",
			HomeMoneyline: ptrInt(-160), AwayMoneyline: ptrInt(140),
			FavoriteOdds: ptrInt(-160), UnderdogOdds: ptrInt(140),
			Spread: ptrFloat(-4.5), Total: ptrFloat(46.5),
		},
	}
	for i := range snapshots {
		if err := db.Create(&snapshots[i]).Error; err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}

	job := NewFeatureBuilderJob(db)
	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("expected 1 feature row, got %+v", result)
	}

	var features models.GameFeatures
	if err := db.First(&features, "game_id = ?", "g1").Error; err != nil {
		t.Fatalf("load features: %v", err)
	}

	if features.CurrentSpread == nil || *features.CurrentSpread != -4.5 {
		t.Errorf("current spread = %v, want -4.5", features.CurrentSpread)
	}
	if features.OpeningSpread == nil || *features.OpeningSpread != -6.5 {
		t.Errorf("opening spread = %v, want -6.5", features.OpeningSpread)
	}
	// |−6.5| − |−4.5| = 2.0, toward the underdog.
	if features.SpreadMovement == nil || *features.SpreadMovement != 2.0 {
		t.Errorf("spread movement = %v, want 2.0", features.SpreadMovement)
	}
	if features.MovementDirection == nil || *features.MovementDirection != models.MovementTowardUnderdog {
		t.Errorf("movement direction = %v, want underdog", features.MovementDirection)
	}
	if features.ImpliedProbability == nil || *features.ImpliedProbability != ImpliedProbability(140) {
		t.Errorf("implied probability = %v, want %v", features.ImpliedProbability, ImpliedProbability(140))
	}
	if features.SnapshotsAnalyzed != 2 {
		t.Errorf("snapshots analyzed = %d, want 2", features.SnapshotsAnalyzed)
	}
	if !features.IsPrimeTime {
		t.Error("Sunday 22:00 UTC should be prime time")
	}
	// No sentiment or standings for either team.
	if features.FavoriteSentiment != nil || features.FavoriteWinPct != nil {
		t.Error("missing inputs must stay nil")
	}
}

func TestFeatureBuilderStableMovementBand(t *testing.T) {
	db := newTestDB(t)

	start := time.Date(2025, 9, 7, 17, 0, 0, 0, time.UTC)
	game := models.Game{ID: "g2", Sport: "NFL", HomeTeam: "DAL", AwayTeam: "NYG", Status: models.GameStatusUpcoming, StartTime: &start}
	if err := db.Create(&game).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}

	captured := start.Add(-24 * time.Hour)
	for i, spread := range []float64{-3.5, -3.0} {
		snap := models.OddsSnapshot{
			ID: "b" + string(rune('1'+i)), GameID: "g2", Sport: "NFL", Bookmaker: "fanduel",
			CapturedAt: captured.Add(time.Duration(i) * time.Hour),
			Favorite:   "DAL", Underdog: "NYG",
			FavoriteOdds: ptrInt(-150), UnderdogOdds: ptrInt(130),
			Spread: ptrFloat(spread),
		}
		if err := db.Create(&snap).Error; err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}

	job := NewFeatureBuilderJob(db)
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var features models.GameFeatures
	if err := db.First(&features, "game_id = ?", "g2").Error; err != nil {
		t.Fatalf("load features: %v", err)
	}
	// 0.5-point wiggle sits on the band edge; below it reads stable.
	if features.MovementDirection == nil || *features.MovementDirection != models.MovementTowardUnderdog {
		t.Errorf("0.5 movement should hit the band edge, got %v", features.MovementDirection)
	}
}

func TestFeatureBuilderIdempotentRebuild(t *testing.T) {
	db := newTestDB(t)

	start := time.Date(2025, 9, 7, 22, 0, 0, 0, time.UTC)
	game := models.Game{ID: "g3", Sport: "NFL", HomeTeam: "KC", AwayTeam: "LV", Status: models.GameStatusUpcoming, StartTime: &start}
	if err := db.Create(&game).Error; err != nil {
		t.Fatalf("seed game: %v", err)
	}
	snap := models.OddsSnapshot{
		ID: "s1", GameID: "g3", Sport: "NFL", Bookmaker: "draftkings",
		CapturedAt: start.Add(-time.Hour),
		Favorite:   "KC", Underdog: "LV",
		FavoriteOdds: ptrInt(-180), UnderdogOdds: ptrInt(155),
		Spread: ptrFloat(-3.5),
	}
	if err := db.Create(&snap).Error; err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	fixed := time.Date(2025, 9, 6, 12, 0, 0, 0, time.UTC)
	job := NewFeatureBuilderJob(db)
	job.now = func() time.Time { return fixed }

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	var first models.GameFeatures
	if err := db.First(&first, "game_id = ?", "g3").Error; err != nil {
		t.Fatalf("load first: %v", err)
	}

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	var second models.GameFeatures
	if err := db.First(&second, "game_id = ?", "g3").Error; err != nil {
		t.Fatalf("load second: %v", err)
	}

	var count int64
	db.Model(&models.GameFeatures{}).Count(&count)
	if count != 1 {
		t.Fatalf("rebuild must replace, not append: %d rows", count)
	}
	if !first.ComputedAt.Equal(second.ComputedAt) || !cmpFloatPtr(first.CurrentSpread, second.CurrentSpread) {
		t.Error("fixed-clock rebuild must produce an identical record")
	}
}

func cmpFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
