package services

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"

	"upset-radar-api/metrics"
	"upset-radar-api/models"
)

// History window for line-movement derivation.
const oddsHistoryLimit = 50

// Spread must move at least this much before a direction is called; smaller
// wiggle reads as stable.
const movementBand = 0.5

// positionWeights ranks how much a missing player of each position hurts.
var positionWeights = map[string]float64{
	"QB": 15, "RB": 4, "WR": 3, "TE": 2.5,
	"LT": 4, "RT": 3, "C": 2.5, "G": 2,
	"DE": 3, "DT": 2.5, "LB": 2.5, "CB": 3, "S": 2.5,
	"K": 1, "P": 0.5,
}

const defaultPositionWeight = 1.5

// statusSeverity scales the position weight by how likely the player misses
// the game.
var statusSeverity = map[string]float64{
	models.InjuryStatusOut:          1.0,
	models.InjuryStatusIR:           1.0,
	models.InjuryStatusSuspended:    1.0,
	models.InjuryStatusDoubtful:     0.8,
	models.InjuryStatusPUP:          0.7,
	models.InjuryStatusQuestionable: 0.4,
	models.InjuryStatusProbable:     0.1,
}

const defaultStatusSeverity = 0.5

const injuryScoreCap = 100

// keyPositions are the starter spots whose absence counts toward the
// key-players-out feature.
var keyPositions = map[string]bool{
	"QB": true, "RB": true, "WR": true, "LT": true, "DE": true, "CB": true,
}

// unlikelyToPlay marks statuses treated as a true absence.
func unlikelyToPlay(status string) bool {
	switch status {
	case models.InjuryStatusOut, models.InjuryStatusIR, models.InjuryStatusDoubtful:
		return true
	}
	return false
}

// FeatureBuilderJob merges the latest snapshots, sentiment, injuries and
// standings into one flat feature row per upcoming game. Every input is
// optional; a missing input leaves its features nil rather than failing the
// game.
type FeatureBuilderJob struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewFeatureBuilderJob(db *gorm.DB) *FeatureBuilderJob {
	return &FeatureBuilderJob{DB: db, now: time.Now}
}

func (j *FeatureBuilderJob) Run(ctx context.Context) (*JobResult, error) {
	result := &JobResult{Extra: map[string]interface{}{}}

	var games []models.Game
	if err := j.DB.Where("status = ?", models.GameStatusUpcoming).Find(&games).Error; err != nil {
		return result, err
	}

	for _, game := range games {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++

		features, err := j.buildGame(game)
		if err != nil {
			result.AddError("game %s: %v", game.ID, err)
			continue
		}
		if features == nil {
			// No odds yet, nothing to score the game on.
			continue
		}

		// Full replace: the previous feature row for the game is gone,
		// including any stale score written onto it.
		if err := j.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("game_id = ?", game.ID).Delete(&models.GameFeatures{}).Error; err != nil {
				return err
			}
			return tx.Create(features).Error
		}); err != nil {
			result.AddError("game %s: %v", game.ID, err)
			continue
		}
		result.Created++
		metrics.RecordsWritten.WithLabelValues("feature_build", "replace").Inc()
	}
	return result, nil
}

// buildGame assembles the feature row, or nil when no odds snapshot exists.
func (j *FeatureBuilderJob) buildGame(game models.Game) (*models.GameFeatures, error) {
	history, err := j.oddsHistory(game.ID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[len(history)-1]

	features := &models.GameFeatures{
		GameID:        game.ID,
		Sport:         game.Sport,
		Favorite:      latest.Favorite,
		Underdog:      latest.Underdog,
		GameStartTime: game.StartTime,
		ComputedAt:    j.now().UTC(),
	}
	if features.GameStartTime == nil {
		features.GameStartTime = latest.GameStartTime
	}

	j.applyOddsFeatures(features, history)
	if err := j.applySentimentFeatures(features); err != nil {
		return nil, err
	}
	if err := j.applyInjuryFeatures(features); err != nil {
		return nil, err
	}
	if err := j.applyRecordFeatures(features); err != nil {
		return nil, err
	}
	features.IsPrimeTime = isPrimeTime(features.GameStartTime)
	return features, nil
}

// oddsHistory returns the newest snapshots for a game in chronological
// order, capped to the history limit.
func (j *FeatureBuilderJob) oddsHistory(gameID string) ([]models.OddsSnapshot, error) {
	var history []models.OddsSnapshot
	err := j.DB.
		Where("game_id = ?", gameID).
		Order("captured_at DESC").
		Limit(oddsHistoryLimit).
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	// Reverse to chronological.
	for i, k := 0, len(history)-1; i < k; i, k = i+1, k-1 {
		history[i], history[k] = history[k], history[i]
	}
	return history, nil
}

func (j *FeatureBuilderJob) applyOddsFeatures(features *models.GameFeatures, history []models.OddsSnapshot) {
	opening := history[0]
	latest := history[len(history)-1]
	features.SnapshotsAnalyzed = len(history)

	features.CurrentSpread = latest.Spread
	features.OpeningSpread = opening.Spread
	features.CurrentMoneyline = latest.UnderdogOdds
	features.OpeningMoneyline = opening.UnderdogOdds
	features.OverUnder = latest.Total

	if latest.UnderdogOdds != nil {
		implied := ImpliedProbability(*latest.UnderdogOdds)
		features.ImpliedProbability = &implied
	}

	if latest.Spread != nil && opening.Spread != nil {
		// Positive movement means the spread tightened toward the underdog.
		movement := math.Abs(*opening.Spread) - math.Abs(*latest.Spread)
		features.SpreadMovement = &movement

		direction := models.MovementStable
		switch {
		case movement >= movementBand:
			direction = models.MovementTowardUnderdog
		case movement <= -movementBand:
			direction = models.MovementTowardFavorite
		}
		features.MovementDirection = &direction
	}
	if latest.UnderdogOdds != nil && opening.UnderdogOdds != nil {
		delta := *latest.UnderdogOdds - *opening.UnderdogOdds
		features.MoneylineMovement = &delta
	}
}

func (j *FeatureBuilderJob) applySentimentFeatures(features *models.GameFeatures) error {
	favorite, favVolume, err := j.latestSentiment(features.Favorite)
	if err != nil {
		return err
	}
	underdog, undVolume, err := j.latestSentiment(features.Underdog)
	if err != nil {
		return err
	}

	features.FavoriteSentiment = favorite
	features.UnderdogSentiment = underdog
	features.PostVolumeFavorite = favVolume
	features.PostVolumeUnderdog = undVolume
	if favorite != nil && underdog != nil {
		diff := *favorite - *underdog
		features.SentimentDifferential = &diff
	}
	return nil
}

// latestSentiment returns the most recent window's weighted score for a
// team, or nil when none has been ingested.
func (j *FeatureBuilderJob) latestSentiment(team string) (*float64, *int, error) {
	if team == "" {
		return nil, nil, nil
	}
	var score models.SentimentScore
	err := j.DB.
		Where("target_type = ? AND target_id = ?", "team", team).
		Order("window_end DESC").
		First(&score).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return &score.WeightedScore, &score.TotalPosts, nil
}

func (j *FeatureBuilderJob) applyInjuryFeatures(features *models.GameFeatures) error {
	favScore, favQB, favKey, err := j.teamInjuryImpact(features.Favorite)
	if err != nil {
		return err
	}
	undScore, undQB, undKey, err := j.teamInjuryImpact(features.Underdog)
	if err != nil {
		return err
	}

	features.FavoriteInjuryScore = favScore
	features.UnderdogInjuryScore = undScore
	features.QBInjuryFavorite = favQB
	features.QBInjuryUnderdog = undQB
	features.KeyPlayersOutFavorite = favKey
	features.KeyPlayersOutUnderdog = undKey
	return nil
}

// teamInjuryImpact folds a team's injury report into the additive impact
// score, the QB-unavailable flag and the key-players-out count.
func (j *FeatureBuilderJob) teamInjuryImpact(team string) (score float64, qbOut bool, keyOut int, err error) {
	if team == "" {
		return 0, false, 0, nil
	}
	var injuries []models.Injury
	if err := j.DB.Where("team = ?", team).Find(&injuries).Error; err != nil {
		return 0, false, 0, err
	}

	for _, injury := range injuries {
		weight, ok := positionWeights[injury.Position]
		if !ok {
			weight = defaultPositionWeight
		}
		severity, ok := statusSeverity[injury.Status]
		if !ok {
			severity = defaultStatusSeverity
		}
		score += weight * severity

		if unlikelyToPlay(injury.Status) {
			if injury.Position == "QB" {
				qbOut = true
			}
			if keyPositions[injury.Position] {
				keyOut++
			}
		}
	}
	if score > injuryScoreCap {
		score = injuryScoreCap
	}
	return score, qbOut, keyOut, nil
}

func (j *FeatureBuilderJob) applyRecordFeatures(features *models.GameFeatures) error {
	fav, err := j.standing(features.Favorite)
	if err != nil {
		return err
	}
	und, err := j.standing(features.Underdog)
	if err != nil {
		return err
	}

	if fav != nil {
		features.FavoriteWinPct = &fav.WinPercentage
		streak := fav.Streak
		features.FavoriteStreak = &streak
	}
	if und != nil {
		features.UnderdogWinPct = &und.WinPercentage
		streak := und.Streak
		features.UnderdogStreak = &streak
	}
	return nil
}

func (j *FeatureBuilderJob) standing(team string) (*models.Standing, error) {
	if team == "" {
		return nil, nil
	}
	var standing models.Standing
	err := j.DB.Where("team = ?", team).First(&standing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &standing, nil
}

// isPrimeTime reports whether the game kicks off in a national TV window:
// Thursday, Sunday or Monday at 20:00 UTC or later.
func isPrimeTime(start *time.Time) bool {
	if start == nil {
		return false
	}
	t := start.UTC()
	switch t.Weekday() {
	case time.Thursday, time.Sunday, time.Monday:
		return t.Hour() >= 20
	}
	return false
}
