package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"upset-radar-api/config"
	"upset-radar-api/metrics"
	"upset-radar-api/models"
)

// ModelVersion tags every score result so old rows are attributable after a
// weight change.
const ModelVersion = "v2.1"

// HighUPSThreshold marks games worth surfacing to the alert engine.
const HighUPSThreshold = 60.0

const maxSignals = 6

// ScoreResult is the scorer's output for one game.
type ScoreResult struct {
	GameID      string             `json:"game_id"`
	UPSScore    float64            `json:"ups_score"`
	Confidence  float64            `json:"confidence"`
	Version     string             `json:"model_version"`
	Signals     []string           `json:"signals"`
	Adjustments map[string]float64 `json:"adjustments"`
}

// ImpliedProbability converts American odds to a win probability. Positive
// odds are the underdog side, negative the favorite; zero has no meaning
// and maps to a coin flip.
func ImpliedProbability(odds int) float64 {
	switch {
	case odds > 0:
		return 100.0 / (float64(odds) + 100.0)
	case odds < 0:
		abs := math.Abs(float64(odds))
		return abs / (abs + 100.0)
	default:
		return 0.5
	}
}

// ScoreGame is the deterministic scoring function: implied probability as
// the base, then independent additive adjustments, clamped to [0,100].
// Confidence reflects how many feature slots were populated, not how good
// the score is.
func ScoreGame(f *models.GameFeatures) ScoreResult {
	result := ScoreResult{
		GameID:      f.GameID,
		Version:     ModelVersion,
		Adjustments: map[string]float64{},
	}

	base := 50.0
	if f.ImpliedProbability != nil {
		base = *f.ImpliedProbability * 100
	}
	score := base
	result.Adjustments["base_implied"] = base

	apply := func(name string, delta float64, signals ...string) {
		if delta == 0 {
			return
		}
		score += delta
		result.Adjustments[name] = delta
		result.Signals = append(result.Signals, signals...)
	}

	// Spread bands. A tight spread means the market already sees a coin
	// flip; a double-digit spread buries the upset case.
	if f.CurrentSpread != nil {
		spread := math.Abs(*f.CurrentSpread)
		switch {
		case spread <= 3:
			apply("spread", 12, fmt.Sprintf("Tight spread (%.1f)", spread))
		case spread <= 6:
			apply("spread", 8, fmt.Sprintf("Close spread (%.1f)", spread))
		case spread <= 10:
			apply("spread", 4)
		case spread > 14:
			apply("spread", -5)
		}
	}

	// Injuries.
	if f.QBInjuryFavorite {
		apply("qb_favorite", 15, "Favorite starting QB unavailable")
	}
	if f.QBInjuryUnderdog {
		apply("qb_underdog", -10)
	}
	injuryDiff := f.FavoriteInjuryScore - f.UnderdogInjuryScore
	switch {
	case injuryDiff > 20:
		apply("injury_gap", 8, "Favorite significantly more injured")
	case injuryDiff > 10:
		apply("injury_gap", 4)
	case injuryDiff < -20:
		apply("injury_gap", -5)
	}

	// Contrarian sentiment: a market-quiet underdog is the upset profile,
	// an overhyped favorite even more so.
	if f.SentimentDifferential != nil {
		switch {
		case *f.SentimentDifferential < -0.3:
			apply("sentiment_gap", 5, "Public sentiment heavily favors underdog")
		case *f.SentimentDifferential > 0.3:
			apply("sentiment_gap", -3)
		}
	}
	if f.FavoriteSentiment != nil && *f.FavoriteSentiment > 0.4 {
		apply("favorite_hype", 3, "Favorite may be overhyped")
	}

	// Line movement toward the underdog means sharp money disagrees with
	// the opening number.
	if f.SpreadMovement != nil {
		switch {
		case *f.SpreadMovement >= 1.5:
			apply("line_movement", 8, "Line moving toward underdog")
		case *f.SpreadMovement >= 0.5:
			apply("line_movement", 4)
		case *f.SpreadMovement <= -1.5:
			apply("line_movement", -5)
		}
	}

	// Records and streaks.
	if f.FavoriteWinPct != nil && f.UnderdogWinPct != nil {
		recordDiff := *f.UnderdogWinPct - *f.FavoriteWinPct
		switch {
		case recordDiff >= 0:
			apply("record", 10, "Underdog has the better record")
		case recordDiff >= -0.15:
			apply("record", 4)
		}
	}
	if f.UnderdogStreak != nil && *f.UnderdogStreak >= 3 {
		apply("underdog_streak", 5, fmt.Sprintf("Underdog on a %d-game win streak", *f.UnderdogStreak))
	}
	if f.FavoriteStreak != nil && *f.FavoriteStreak <= -3 {
		apply("favorite_slump", 5, "Favorite on a losing streak")
	}

	// Situational.
	if f.IsPrimeTime {
		apply("prime_time", 3, "Prime time game")
	}

	result.UPSScore = clamp(score, 0, 100)
	result.Confidence = clamp(featureCoverage(f), 0, 1)
	if len(result.Signals) > maxSignals {
		result.Signals = result.Signals[:maxSignals]
	}
	return result
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// featureCoverage is the fraction of expected feature slots that carried a
// value at build time.
func featureCoverage(f *models.GameFeatures) float64 {
	present := 0
	slots := []bool{
		f.CurrentSpread != nil,
		f.OpeningSpread != nil,
		f.SpreadMovement != nil,
		f.CurrentMoneyline != nil,
		f.OpeningMoneyline != nil,
		f.MoneylineMovement != nil,
		f.ImpliedProbability != nil,
		f.OverUnder != nil,
		f.MovementDirection != nil,
		f.SnapshotsAnalyzed > 0,
		f.FavoriteSentiment != nil,
		f.UnderdogSentiment != nil,
		f.SentimentDifferential != nil,
		f.PostVolumeFavorite != nil,
		f.PostVolumeUnderdog != nil,
		f.FavoriteWinPct != nil,
		f.UnderdogWinPct != nil,
		f.FavoriteStreak != nil,
		f.UnderdogStreak != nil,
		f.GameStartTime != nil,
	}
	for _, ok := range slots {
		if ok {
			present++
		}
	}
	return float64(present) / float64(len(slots))
}

// ScorePublisher pushes fresh scores to connected streaming clients.
type ScorePublisher interface {
	BroadcastScore(gameID string, payload interface{})
}

// ModelScoreJob applies ScoreGame to every feature row and writes the result
// back onto it. Games at or above the high threshold are reported in the run
// metadata for the alert engine's next pass and broadcast to their game
// rooms when a publisher is attached.
type ModelScoreJob struct {
	DB        *gorm.DB
	Publisher ScorePublisher
	now       func() time.Time
}

func NewModelScoreJob(db *gorm.DB) *ModelScoreJob {
	return &ModelScoreJob{DB: db, now: time.Now}
}

func (j *ModelScoreJob) Run(ctx context.Context) (*JobResult, error) {
	result := &JobResult{Extra: map[string]interface{}{}}

	var rows []models.GameFeatures
	if err := j.DB.Find(&rows).Error; err != nil {
		return result, err
	}

	highUPS := 0
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		features := &rows[i]
		result.Processed++

		scored := ScoreGame(features)
		if err := j.writeBack(features, scored); err != nil {
			result.AddError("game %s: %v", features.GameID, err)
			continue
		}
		result.Updated++
		metrics.RecordsWritten.WithLabelValues("model_score", "update").Inc()

		if scored.UPSScore >= HighUPSThreshold {
			highUPS++
			config.Log.Infof("High UPS: %s vs %s scored %.1f", features.Underdog, features.Favorite, scored.UPSScore)
			if j.Publisher != nil {
				j.Publisher.BroadcastScore(features.GameID, map[string]interface{}{
					"game_id":        features.GameID,
					"favorite":       features.Favorite,
					"underdog":       features.Underdog,
					"ups_score":      scored.UPSScore,
					"ups_confidence": scored.Confidence,
					"model_version":  scored.Version,
				})
			}
		}
	}
	result.Extra["high_ups_games"] = highUPS
	return result, nil
}

func (j *ModelScoreJob) writeBack(features *models.GameFeatures, scored ScoreResult) error {
	signals, err := json.Marshal(scored.Signals)
	if err != nil {
		return err
	}
	adjustments, err := json.Marshal(scored.Adjustments)
	if err != nil {
		return err
	}

	now := j.now().UTC()
	signalsJSON := string(signals)
	adjustmentsJSON := string(adjustments)
	version := scored.Version

	return j.DB.Model(&models.GameFeatures{}).
		Where("game_id = ?", features.GameID).
		Updates(map[string]interface{}{
			"ups_score":      scored.UPSScore,
			"ups_confidence": scored.Confidence,
			"model_version":  version,
			"signals":        signalsJSON,
			"adjustments":    adjustmentsJSON,
			"scored_at":      now,
		}).Error
}
