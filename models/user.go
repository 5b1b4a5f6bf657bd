package models

import (
	"time"
)

// Role ids. Admins may control the pipeline; every user may manage their own
// alert subscriptions.
const (
	RoleUser  = 1
	RoleAdmin = 2
)

type User struct {
	UserID      uint       `gorm:"primaryKey;column:user_id;autoIncrement" json:"user_id"`
	Email       string     `gorm:"column:email;type:varchar(128);unique;not null" json:"email"`
	Password    string     `gorm:"column:password;type:varchar(128);not null" json:"-"`
	DisplayName string     `gorm:"column:display_name;type:varchar(64)" json:"display_name"`
	RoleID      int        `gorm:"column:role_id;not null;default:1" json:"role_id"`
	CreateAt    time.Time  `gorm:"column:create_at;autoCreateTime" json:"create_at"`
	UpdateAt    time.Time  `gorm:"column:update_at;autoUpdateTime" json:"update_at"`
	DeleteAt    *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Default device registration, used when a subscription does not carry
	// channel config of its own.
	PushToken    *string `gorm:"column:push_token;type:varchar(255)" json:"push_token,omitempty"`
	PushProvider *string `gorm:"column:push_provider;type:varchar(16)" json:"push_provider,omitempty"`

	// Relations
	Subscriptions []AlertSubscription `gorm:"foreignKey:UserID" json:"subscriptions,omitempty"`
}

func (User) TableName() string { return "users" }
