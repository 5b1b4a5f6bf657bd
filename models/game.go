package models

import "time"

const (
	GameStatusUpcoming  = "upcoming"
	GameStatusLive      = "live"
	GameStatusCompleted = "completed"
	GameStatusCancelled = "cancelled"
)

// Game is one scheduled matchup, refreshed by the schedule job and keyed by
// the upstream game key.
type Game struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id;type:varchar(64)"`
	Sport      string     `json:"sport" gorm:"column:sport;type:varchar(16);not null;index"`
	HomeTeam   string     `json:"home_team" gorm:"column:home_team;type:varchar(64);not null"`
	AwayTeam   string     `json:"away_team" gorm:"column:away_team;type:varchar(64);not null"`
	StartTime  *time.Time `json:"start_time" gorm:"column:start_time"`
	Status     string     `json:"status" gorm:"column:status;type:varchar(16);not null;default:'upcoming';index"`
	Season     int        `json:"season" gorm:"column:season"`
	Week       int        `json:"week" gorm:"column:week"`
	SeasonType int        `json:"season_type" gorm:"column:season_type;default:1"`
	Stadium    *string    `json:"stadium" gorm:"column:stadium;type:varchar(128)"`
	Channel    *string    `json:"channel" gorm:"column:channel;type:varchar(32)"`

	// Book numbers carried on the schedule feed itself, kept for display.
	PointSpread   *float64 `json:"point_spread" gorm:"column:point_spread"`
	OverUnder     *float64 `json:"over_under" gorm:"column:over_under"`
	HomeMoneyline *int     `json:"home_moneyline" gorm:"column:home_moneyline"`
	AwayMoneyline *int     `json:"away_moneyline" gorm:"column:away_moneyline"`

	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Game) TableName() string { return "games" }
