package models

import (
	"strings"
	"time"
)

// APIKey represents a bearer credential for programmatic access.
// The plaintext key is returned once at creation; only its hash is stored.
// Keys delete hard, not soft: a deleted key's name and hash leave the unique
// indexes so the name can be reused.
type APIKey struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	UserID     uint       `gorm:"not null;index;uniqueIndex:idx_user_key_name" json:"user_id"`
	Name       string     `gorm:"not null;uniqueIndex:idx_user_key_name" json:"name"`
	KeyHash    string     `gorm:"uniqueIndex;not null" json:"-"`
	KeyPrefix  string     `gorm:"not null" json:"key_prefix"` // First few chars for identification
	Active     bool       `gorm:"default:true" json:"active"`
	ExpiresAt  *time.Time `json:"expires_at"`
	UsageCount int64      `gorm:"default:0" json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at"`
	Scopes     string     `json:"scopes"`     // comma-separated capability names, empty = unrestricted
	RateLimit  *int       `json:"rate_limit"` // per-window override, nil = server default

	// Relationships
	User      User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	UsageLogs []UsageLog `gorm:"foreignKey:APIKeyID;constraint:OnDelete:CASCADE" json:"usage_logs,omitempty"`
}

// Expired reports whether the key has an expiry in the past.
func (k *APIKey) Expired() bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(time.Now())
}

// HasScope reports whether the key grants the given capability.
// A key with no scopes is unrestricted.
func (k *APIKey) HasScope(scope string) bool {
	if k.Scopes == "" {
		return true
	}
	for _, s := range strings.Split(k.Scopes, ",") {
		if strings.TrimSpace(s) == scope {
			return true
		}
	}
	return false
}
