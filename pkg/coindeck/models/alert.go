package models

import (
	"time"

	"gorm.io/gorm"
)

// AlertDirection says which way the price has to cross the threshold.
type AlertDirection string

const (
	AlertAbove AlertDirection = "above"
	AlertBelow AlertDirection = "below"
)

// Alert is a user's standing price condition, evaluated by the alert checker.
type Alert struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Token       string         `gorm:"not null" json:"token"`
	Direction   AlertDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Threshold   float64        `gorm:"not null" json:"threshold"`
	Active      bool           `gorm:"default:true" json:"active"`
	TriggeredAt *time.Time     `json:"triggered_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
