package models

import "time"

// UsageLog is an append-only record of one authenticated API request.
// Rows are never updated after creation.
type UsageLog struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	APIKeyID       uint      `gorm:"not null;index" json:"api_key_id"`
	Endpoint       string    `gorm:"not null" json:"endpoint"`
	Method         string    `json:"method"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs int64     `json:"response_time_ms"`

	APIKey APIKey `gorm:"foreignKey:APIKeyID" json:"-"`
}
