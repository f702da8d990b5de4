package apikeys

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coindeck/coindeck/pkg/coindeck/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// issueTestKey creates a user with one active key and returns the plain token.
func issueTestKey(t *testing.T, db *gorm.DB, email string, mutate func(*models.APIKey)) string {
	user := createTestUser(t, db, email, "password123")

	token, err := generateAPIKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	key := models.APIKey{
		UserID:    user.ID,
		Name:      "Test Key",
		KeyHash:   hashAPIKey(token),
		KeyPrefix: token[:KeyDisplayLength],
		Active:    true,
	}
	if mutate != nil {
		mutate(&key)
	}
	// Active carries gorm's default:true tag, so Create drops a zero-value
	// false (and backfills the struct from the column default); persist the
	// mutated state explicitly after the insert.
	active := key.Active
	if err := db.Create(&key).Error; err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}
	if err := db.Model(&models.APIKey{}).Where("id = ?", key.ID).UpdateColumn("active", active).Error; err != nil {
		t.Fatalf("Failed to persist key active state: %v", err)
	}
	return token
}

func protectedRouter(db *gorm.DB, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(db, zap.NewNop())}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/protected", handlers...)
	return r
}

func getWithKey(router *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestAuthMiddlewareMissingKey(t *testing.T) {
	db := setupTestDB(t)
	router := protectedRouter(db)

	resp := getWithKey(router, "/protected", "")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewareInvalidKey(t *testing.T) {
	db := setupTestDB(t)
	router := protectedRouter(db)

	resp := getWithKey(router, "/protected", "cd_doesnotexist")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewareInactiveKey(t *testing.T) {
	db := setupTestDB(t)
	router := protectedRouter(db)

	token := issueTestKey(t, db, "user@example.com", func(k *models.APIKey) {
		k.Active = false
	})

	resp := getWithKey(router, "/protected", token)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for inactive key, got %d", resp.Code)
	}
}

func TestAuthMiddlewareExpiredKey(t *testing.T) {
	db := setupTestDB(t)
	router := protectedRouter(db)

	past := time.Now().Add(-time.Hour)
	token := issueTestKey(t, db, "user@example.com", func(k *models.APIKey) {
		k.ExpiresAt = &past
	})

	resp := getWithKey(router, "/protected", token)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for expired key, got %d", resp.Code)
	}

	// Expired requests must not count as usage
	var key models.APIKey
	db.Where("key_hash = ?", hashAPIKey(token)).First(&key)
	if key.UsageCount != 0 {
		t.Errorf("Expected usage count 0 for expired key, got %d", key.UsageCount)
	}
	var logs int64
	db.Model(&models.UsageLog{}).Count(&logs)
	if logs != 0 {
		t.Errorf("Expected no usage logs, got %d", logs)
	}
}

func TestAuthMiddlewareValidKey(t *testing.T) {
	db := setupTestDB(t)
	router := protectedRouter(db)

	token := issueTestKey(t, db, "user@example.com", nil)

	resp := getWithKey(router, "/protected", token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var key models.APIKey
	db.Where("key_hash = ?", hashAPIKey(token)).First(&key)
	if key.UsageCount != 1 {
		t.Errorf("Expected usage count 1, got %d", key.UsageCount)
	}
	if key.LastUsedAt == nil {
		t.Error("Expected last_used_at to be set")
	}

	var log models.UsageLog
	if err := db.First(&log).Error; err != nil {
		t.Fatalf("Expected a usage log: %v", err)
	}
	if log.APIKeyID != key.ID {
		t.Errorf("Usage log bound to wrong key: %d", log.APIKeyID)
	}
	if log.Endpoint != "/protected" {
		t.Errorf("Expected endpoint /protected, got %s", log.Endpoint)
	}
	if log.Method != "GET" {
		t.Errorf("Expected method GET, got %s", log.Method)
	}
	if log.StatusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", log.StatusCode)
	}
}

func TestAuthMiddlewareStoreDown(t *testing.T) {
	db := setupTestDB(t)
	router := protectedRouter(db)

	token := issueTestKey(t, db, "user@example.com", nil)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.Close()

	resp := getWithKey(router, "/protected", token)
	if resp.Code != http.StatusServiceUnavailable {
		t.Errorf("A store failure must not read as an invalid key, got %d", resp.Code)
	}
}

func TestAuthMiddlewareCounterUpdateBestEffort(t *testing.T) {
	db := setupTestDB(t)
	router := protectedRouter(db)

	token := issueTestKey(t, db, "user@example.com", nil)

	// Block updates to the key row; the lookup and usage log still work
	if err := db.Exec(`CREATE TRIGGER block_key_updates BEFORE UPDATE ON api_keys
		BEGIN SELECT RAISE(ABORT, 'blocked'); END`).Error; err != nil {
		t.Fatalf("Failed to create trigger: %v", err)
	}

	resp := getWithKey(router, "/protected", token)
	if resp.Code != http.StatusOK {
		t.Fatalf("A failed counter update must not fail the request, got %d: %s", resp.Code, resp.Body.String())
	}

	var key models.APIKey
	db.Where("key_hash = ?", hashAPIKey(token)).First(&key)
	if key.UsageCount != 0 {
		t.Errorf("Expected counter unchanged with updates blocked, got %d", key.UsageCount)
	}

	var logs int64
	db.Model(&models.UsageLog{}).Count(&logs)
	if logs != 1 {
		t.Errorf("Expected the usage log to still be written, got %d", logs)
	}
}

func TestAuthMiddlewareQueryParam(t *testing.T) {
	db := setupTestDB(t)
	router := protectedRouter(db)

	token := issueTestKey(t, db, "user@example.com", nil)

	req, _ := http.NewRequest("GET", "/protected?api_key="+token, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected query param auth to work, got %d", resp.Code)
	}
}

func TestExtractKeyHeaderWins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request, _ = http.NewRequest("GET", "/x?api_key=from-query", nil)
	c.Request.Header.Set("X-API-Key", "from-header")

	if got := ExtractKey(c); got != "from-header" {
		t.Errorf("Expected header to take precedence, got %q", got)
	}
}

func TestRequireScope(t *testing.T) {
	db := setupTestDB(t)
	router := protectedRouter(db, RequireScope("prices"))

	scoped := issueTestKey(t, db, "scoped@example.com", func(k *models.APIKey) {
		k.Scopes = "analytics"
	})
	resp := getWithKey(router, "/protected", scoped)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for missing scope, got %d", resp.Code)
	}

	granted := issueTestKey(t, db, "granted@example.com", func(k *models.APIKey) {
		k.Scopes = "prices,analytics"
		k.Name = "Granted"
	})
	resp = getWithKey(router, "/protected", granted)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 for granted scope, got %d", resp.Code)
	}

	unrestricted := issueTestKey(t, db, "open@example.com", func(k *models.APIKey) {
		k.Name = "Open"
	})
	resp = getWithKey(router, "/protected", unrestricted)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected unrestricted key to pass, got %d", resp.Code)
	}
}

func TestRateLimitOverride(t *testing.T) {
	db := setupTestDB(t)

	limit := 120
	token := issueTestKey(t, db, "user@example.com", func(k *models.APIKey) {
		k.RateLimit = &limit
	})

	resolve := RateLimitOverride(db)
	if got := resolve(token); got == nil || *got != 120 {
		t.Errorf("Expected override 120, got %v", got)
	}
	if got := resolve("cd_unknown"); got != nil {
		t.Errorf("Expected nil for unknown key, got %v", got)
	}
}
