package models

import "time"

// Alert queue statuses. sent, delivered and failed are terminal; no
// automatic transition leaves them.
const (
	AlertStatusPending   = "pending"
	AlertStatusSent      = "sent"
	AlertStatusDelivered = "delivered"
	AlertStatusFailed    = "failed"
)

const (
	AlertTypeUPSThreshold = "ups_threshold"
	AlertTypeLineMovement = "line_movement"
	AlertTypeInjury       = "injury"
)

// DefaultAlertMaxRetries caps delivery attempts per queued alert.
const DefaultAlertMaxRetries = 3

// QueuedAlert is one alert awaiting (or past) delivery. Created by the alert
// engine's detection pass, mutated only by the delivery pass.
type QueuedAlert struct {
	ID string `json:"id" gorm:"primaryKey;column:id;type:varchar(36)"`

	AlertType string  `json:"alert_type" gorm:"column:alert_type;type:varchar(32);not null;index:idx_alert_dedup,priority:3"`
	Title     string  `json:"title" gorm:"column:title;type:varchar(255);not null"`
	Message   string  `json:"message" gorm:"column:message;type:text;not null"`
	GameID    *string `json:"game_id" gorm:"column:game_id;type:varchar(64);index:idx_alert_dedup,priority:1"`
	UserID    *uint   `json:"user_id" gorm:"column:user_id;index:idx_alert_dedup,priority:2"`

	UPSScore  *float64 `json:"ups_score" gorm:"column:ups_score"`
	Threshold *float64 `json:"threshold" gorm:"column:threshold"`

	Priority int    `json:"priority" gorm:"column:priority;not null;default:5;index"`
	Status   string `json:"status" gorm:"column:status;type:varchar(16);not null;default:'pending';index"`

	RetryCount int `json:"retry_count" gorm:"column:retry_count;not null;default:0"`
	MaxRetries int `json:"max_retries" gorm:"column:max_retries;not null;default:3"`

	LastError      *string    `json:"last_error" gorm:"column:last_error;type:text"`
	DeliveryMethod *string    `json:"delivery_method" gorm:"column:delivery_method;type:varchar(32)"`
	SentAt         *time.Time `json:"sent_at" gorm:"column:sent_at"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (QueuedAlert) TableName() string { return "alert_queue" }
