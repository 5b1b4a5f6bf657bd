package models

import "time"

// Normalized injury report statuses (see utils.NormalizeInjuryStatus).
const (
	InjuryStatusOut          = "Out"
	InjuryStatusDoubtful     = "Doubtful"
	InjuryStatusQuestionable = "Questionable"
	InjuryStatusProbable     = "Probable"
	InjuryStatusIR           = "IR"
	InjuryStatusPUP          = "PUP"
	InjuryStatusSuspended    = "Suspended"
	InjuryStatusUnknown      = "Unknown"
)

// Injury is the latest report for one player, upserted by player id with no
// history retained.
type Injury struct {
	PlayerID   int    `json:"player_id" gorm:"primaryKey;column:player_id"`
	PlayerName string `json:"player_name" gorm:"column:player_name;type:varchar(128);not null"`
	Team       string `json:"team" gorm:"column:team;type:varchar(16);not null;index"`
	Position   string `json:"position" gorm:"column:position;type:varchar(8);not null"`
	Status     string `json:"status" gorm:"column:status;type:varchar(16);not null"`
	BodyPart   string `json:"body_part" gorm:"column:body_part;type:varchar(64);default:'Undisclosed'"`

	PracticeStatus   *string    `json:"practice_status" gorm:"column:practice_status;type:varchar(64)"`
	DeclaredInactive bool       `json:"declared_inactive" gorm:"column:declared_inactive;not null;default:false"`
	InjuryStartDate  *time.Time `json:"injury_start_date" gorm:"column:injury_start_date"`

	Source    string    `json:"source" gorm:"column:source;type:varchar(32);not null;default:'sportsdata_io'"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Injury) TableName() string { return "injuries" }
