package models

import "time"

const (
	SubscriptionTypeUPSThreshold = "ups_threshold"
	SubscriptionTypeTeam         = "team"
	SubscriptionTypeGame         = "game"
	SubscriptionTypeAllUpsets    = "all_upsets"
)

// AlertSubscription is a user's standing request to be alerted. Long-lived
// until deactivated.
type AlertSubscription struct {
	ID     uint `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID uint `json:"user_id" gorm:"column:user_id;not null;index"`

	SubscriptionType string  `json:"subscription_type" gorm:"column:subscription_type;type:varchar(16);not null;default:'ups_threshold'"`
	TargetID         *string `json:"target_id" gorm:"column:target_id;type:varchar(64)"`
	Sport            string  `json:"sport" gorm:"column:sport;type:varchar(16);not null;default:'NFL'"`
	UPSThreshold     float64 `json:"ups_threshold" gorm:"column:ups_threshold;not null;default:65"`

	Active bool `json:"active" gorm:"column:active;not null;default:true;index"`

	// Channel configuration.
	WebsocketEnabled bool    `json:"websocket_enabled" gorm:"column:websocket_enabled;not null;default:true"`
	PushEnabled      bool    `json:"push_enabled" gorm:"column:push_enabled;not null;default:true"`
	EmailEnabled     bool    `json:"email_enabled" gorm:"column:email_enabled;not null;default:false"`
	PushToken        *string `json:"push_token" gorm:"column:push_token;type:varchar(255)"`
	PushProvider     *string `json:"push_provider" gorm:"column:push_provider;type:varchar(16)"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (AlertSubscription) TableName() string { return "alert_subscriptions" }
