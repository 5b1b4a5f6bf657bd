package models

import "time"

// Standing is the current record for one team, upserted by team abbreviation;
// latest write wins.
type Standing struct {
	Team          string  `json:"team" gorm:"primaryKey;column:team;type:varchar(16)"`
	Name          string  `json:"name" gorm:"column:name;type:varchar(64)"`
	Sport         string  `json:"sport" gorm:"column:sport;type:varchar(16);not null;default:'NFL'"`
	Season        int     `json:"season" gorm:"column:season"`
	Wins          int     `json:"wins" gorm:"column:wins;not null;default:0"`
	Losses        int     `json:"losses" gorm:"column:losses;not null;default:0"`
	Ties          int     `json:"ties" gorm:"column:ties;not null;default:0"`
	WinPercentage float64 `json:"win_percentage" gorm:"column:win_percentage;not null;default:0"`

	// Streak is positive for a win streak, negative for a losing streak.
	Streak int `json:"streak" gorm:"column:streak;not null;default:0"`

	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Standing) TableName() string { return "standings" }
