package models

import "time"

// OddsSnapshot is one timestamped capture of market odds for one game from
// one bookmaker. Rows are append-only; the unique key keeps re-ingesting the
// same payload idempotent, and the per-game history feeds line-movement
// features.
type OddsSnapshot struct {
	ID string `json:"id" gorm:"primaryKey;column:id;type:varchar(36)"`

	GameID        string     `json:"game_id" gorm:"column:game_id;type:varchar(64);not null;uniqueIndex:uq_odds_natural,priority:1;index:idx_odds_game_time,priority:1"`
	Sport         string     `json:"sport" gorm:"column:sport;type:varchar(16);not null"`
	HomeTeam      string     `json:"home_team" gorm:"column:home_team;type:varchar(64)"`
	AwayTeam      string     `json:"away_team" gorm:"column:away_team;type:varchar(64)"`
	Bookmaker     string     `json:"bookmaker" gorm:"column:bookmaker;type:varchar(64);not null;uniqueIndex:uq_odds_natural,priority:2"`
	Source        string     `json:"source" gorm:"column:source;type:varchar(32);not null;default:'odds_api'"`
	CapturedAt    time.Time  `json:"captured_at" gorm:"column:captured_at;not null;uniqueIndex:uq_odds_natural,priority:3;index:idx_odds_game_time,priority:2"`
	GameStartTime *time.Time `json:"game_start_time" gorm:"column:game_start_time"`

	HomeMoneyline *int   `json:"home_moneyline" gorm:"column:home_moneyline"`
	AwayMoneyline *int   `json:"away_moneyline" gorm:"column:away_moneyline"`
	Favorite      string `json:"favorite" gorm:"column:favorite;type:varchar(64)"`
	Underdog      string `json:"underdog" gorm:"column:underdog;type:varchar(64)"`
	FavoriteOdds  *int   `json:"favorite_odds" gorm:"column:favorite_odds"`
	UnderdogOdds  *int   `json:"underdog_odds" gorm:"column:underdog_odds"`

	Spread         *float64 `json:"spread" gorm:"column:spread"`
	SpreadOddsHome *int     `json:"spread_odds_home" gorm:"column:spread_odds_home"`
	SpreadOddsAway *int     `json:"spread_odds_away" gorm:"column:spread_odds_away"`

	Total     *float64 `json:"total" gorm:"column:total"`
	OverOdds  *int     `json:"over_odds" gorm:"column:over_odds"`
	UnderOdds *int     `json:"under_odds" gorm:"column:under_odds"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (OddsSnapshot) TableName() string { return "odds_snapshots" }
