package models

import "time"

// Line movement directions derived from the spread history.
const (
	MovementTowardFavorite = "favorite"
	MovementTowardUnderdog = "underdog"
	MovementStable         = "stable"
)

// GameFeatures is the per-game merged view of every input the scorer
// consumes. One row per game, fully replaced on each feature-build cycle;
// the scorer writes its result back onto the same row.
type GameFeatures struct {
	GameID        string     `json:"game_id" gorm:"primaryKey;column:game_id;type:varchar(64)"`
	Sport         string     `json:"sport" gorm:"column:sport;type:varchar(16);not null"`
	Favorite      string     `json:"favorite" gorm:"column:favorite;type:varchar(64)"`
	Underdog      string     `json:"underdog" gorm:"column:underdog;type:varchar(64)"`
	GameStartTime *time.Time `json:"game_start_time" gorm:"column:game_start_time"`
	ComputedAt    time.Time  `json:"computed_at" gorm:"column:computed_at;not null"`

	// Odds features. A nil pointer means the input was unavailable at build
	// time.
	CurrentSpread      *float64 `json:"current_spread" gorm:"column:current_spread"`
	OpeningSpread      *float64 `json:"opening_spread" gorm:"column:opening_spread"`
	SpreadMovement     *float64 `json:"spread_movement" gorm:"column:spread_movement"`
	CurrentMoneyline   *int     `json:"current_moneyline" gorm:"column:current_moneyline"`
	OpeningMoneyline   *int     `json:"opening_moneyline" gorm:"column:opening_moneyline"`
	MoneylineMovement  *int     `json:"moneyline_movement" gorm:"column:moneyline_movement"`
	ImpliedProbability *float64 `json:"implied_probability" gorm:"column:implied_probability"`
	OverUnder          *float64 `json:"over_under" gorm:"column:over_under"`
	MovementDirection  *string  `json:"movement_direction" gorm:"column:movement_direction;type:varchar(16)"`
	SnapshotsAnalyzed  int      `json:"snapshots_analyzed" gorm:"column:snapshots_analyzed;not null;default:0"`

	// Sentiment features.
	FavoriteSentiment     *float64 `json:"favorite_sentiment" gorm:"column:favorite_sentiment"`
	UnderdogSentiment     *float64 `json:"underdog_sentiment" gorm:"column:underdog_sentiment"`
	SentimentDifferential *float64 `json:"sentiment_differential" gorm:"column:sentiment_differential"`
	PostVolumeFavorite    *int     `json:"post_volume_favorite" gorm:"column:post_volume_favorite"`
	PostVolumeUnderdog    *int     `json:"post_volume_underdog" gorm:"column:post_volume_underdog"`

	// Injury features.
	FavoriteInjuryScore   float64 `json:"favorite_injury_score" gorm:"column:favorite_injury_score;not null;default:0"`
	UnderdogInjuryScore   float64 `json:"underdog_injury_score" gorm:"column:underdog_injury_score;not null;default:0"`
	QBInjuryFavorite      bool    `json:"qb_injury_favorite" gorm:"column:qb_injury_favorite;not null;default:false"`
	QBInjuryUnderdog      bool    `json:"qb_injury_underdog" gorm:"column:qb_injury_underdog;not null;default:false"`
	KeyPlayersOutFavorite int     `json:"key_players_out_favorite" gorm:"column:key_players_out_favorite;not null;default:0"`
	KeyPlayersOutUnderdog int     `json:"key_players_out_underdog" gorm:"column:key_players_out_underdog;not null;default:0"`

	// Record features.
	FavoriteWinPct *float64 `json:"favorite_win_pct" gorm:"column:favorite_win_pct"`
	UnderdogWinPct *float64 `json:"underdog_win_pct" gorm:"column:underdog_win_pct"`
	FavoriteStreak *int     `json:"favorite_streak" gorm:"column:favorite_streak"`
	UnderdogStreak *int     `json:"underdog_streak" gorm:"column:underdog_streak"`

	IsPrimeTime bool `json:"is_prime_time" gorm:"column:is_prime_time;not null;default:false"`

	// Score result, written back by the scoring job.
	UPSScore      *float64   `json:"ups_score" gorm:"column:ups_score;index"`
	UPSConfidence *float64   `json:"ups_confidence" gorm:"column:ups_confidence"`
	ModelVersion  *string    `json:"model_version" gorm:"column:model_version;type:varchar(32)"`
	Signals       *string    `json:"signals" gorm:"column:signals;type:text"`
	Adjustments   *string    `json:"adjustments" gorm:"column:adjustments;type:text"`
	ScoredAt      *time.Time `json:"scored_at" gorm:"column:scored_at"`
}

func (GameFeatures) TableName() string { return "game_features" }
