package apikeys

import (
	"errors"
	"time"

	"github.com/coindeck/coindeck/pkg/coindeck/api"
	"github.com/coindeck/coindeck/pkg/coindeck/auth"
	"github.com/coindeck/coindeck/pkg/coindeck/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContextKeyAPIKey is the gin context key holding the authenticated key
const ContextKeyAPIKey = "api_key"

// ExtractKey reads the presented API key. The header and query parameter go
// through this single helper so every route accepts both the same way.
func ExtractKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}

// AuthMiddleware authenticates requests by API key and records a usage log
// for every authenticated call.
//
// Order matters: missing key, then lookup (not-found and inactive are one
// indistinct failure so callers can't probe which keys exist), then expiry.
// The usage counter only moves for keys that pass all three.
func AuthMiddleware(db *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ExtractKey(c)
		if key == "" {
			api.Abort(c, api.ErrAPIKeyRequired)
			return
		}

		// A store failure is not an invalid key; only a clean miss is.
		var apiKey models.APIKey
		err := db.Where("key_hash = ? AND active = ?", hashAPIKey(key), true).First(&apiKey).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.Abort(c, api.ErrInvalidAPIKey)
			return
		}
		if err != nil {
			api.Abort(c, api.ErrStoreUnavailable)
			return
		}

		// Expiry is checked before any usage mutation so expired keys are
		// never credited with additional usage.
		if apiKey.Expired() {
			api.Abort(c, api.ErrExpiredAPIKey)
			return
		}

		// Usage accounting is best effort; a failed update never fails the request
		now := time.Now()
		if err := db.Model(&models.APIKey{}).Where("id = ?", apiKey.ID).UpdateColumns(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + ?", 1),
			"last_used_at": now,
		}).Error; err != nil {
			logger.Warn("failed to update key usage counters",
				zap.Uint("api_key_id", apiKey.ID),
				zap.Error(err))
		}
		apiKey.UsageCount++
		apiKey.LastUsedAt = &now

		c.Set(ContextKeyAPIKey, &apiKey)
		c.Set(auth.ContextKeyUserID, apiKey.UserID)

		start := time.Now()
		c.Next()

		usage := models.UsageLog{
			APIKeyID:       apiKey.ID,
			Endpoint:       c.Request.URL.Path,
			Method:         c.Request.Method,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}
		if err := db.Create(&usage).Error; err != nil {
			logger.Warn("failed to record usage log",
				zap.Uint("api_key_id", apiKey.ID),
				zap.String("endpoint", usage.Endpoint),
				zap.Error(err))
		}
	}
}

// RequireScope rejects keys that carry scopes but not the required one.
// Must run after AuthMiddleware.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey, ok := GetAPIKey(c)
		if !ok {
			api.Abort(c, api.ErrAPIKeyRequired)
			return
		}
		if !apiKey.HasScope(scope) {
			api.Abort(c, api.ErrInsufficientScope)
			return
		}
		c.Next()
	}
}

// RateLimitOverride returns a resolver for per-key rate limit overrides,
// for wiring into the rate limiting middleware. Unknown keys resolve to nil
// and fall through to the server default; the authenticator rejects them.
func RateLimitOverride(db *gorm.DB) func(key string) *int {
	return func(key string) *int {
		var apiKey models.APIKey
		err := db.Select("rate_limit").
			Where("key_hash = ? AND active = ?", hashAPIKey(key), true).
			First(&apiKey).Error
		if err != nil {
			return nil
		}
		return apiKey.RateLimit
	}
}

// GetAPIKey returns the authenticated key from the gin context
func GetAPIKey(c *gin.Context) (*models.APIKey, bool) {
	v, exists := c.Get(ContextKeyAPIKey)
	if !exists {
		return nil, false
	}
	return v.(*models.APIKey), true
}
