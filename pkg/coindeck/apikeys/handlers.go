package apikeys

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coindeck/coindeck/pkg/coindeck/api"
	"github.com/coindeck/coindeck/pkg/coindeck/auth"
	"github.com/coindeck/coindeck/pkg/coindeck/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// maxNameAttempts bounds the auto-name collision loop. Exceeding it is an
// explicit conflict, never silent truncation.
const maxNameAttempts = 25

// Handler handles API key management requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new API keys handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// GenerateRequest represents a request to create an API key.
// Key management authenticates with account credentials in the body.
type GenerateRequest struct {
	Email              string   `json:"email" binding:"required,email"`
	Password           string   `json:"password" binding:"required"`
	Name               string   `json:"name"`
	ExpirationDuration *int     `json:"expirationDuration"` // days, non-positive means no expiry
	Scopes             []string `json:"scopes"`
	RateLimit          *int     `json:"rateLimit"` // per-window override, non-positive ignored
}

// DeleteRequest authenticates a key deletion
type DeleteRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateRequest renames an API key
type UpdateRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// GenerateResponse includes the full key (only shown once)
type GenerateResponse struct {
	ID        uint       `json:"id"`
	APIKey    string     `json:"apiKey"`
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// KeyResponse represents an API key in responses, without secret material
type KeyResponse struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	Active     bool       `json:"active"`
	ExpiresAt  *time.Time `json:"expires_at"`
	UsageCount int64      `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at"`
	Scopes     string     `json:"scopes,omitempty"`
	RateLimit  *int       `json:"rate_limit,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func keyResponse(k *models.APIKey) KeyResponse {
	return KeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		Active:     k.Active,
		ExpiresAt:  k.ExpiresAt,
		UsageCount: k.UsageCount,
		LastUsedAt: k.LastUsedAt,
		Scopes:     k.Scopes,
		RateLimit:  k.RateLimit,
		CreatedAt:  k.CreatedAt,
	}
}

// resolveName returns the key name to use, enforcing per-user uniqueness.
// An explicit name that collides is a conflict; auto-generated names get a
// " (n)" suffix until one is free, bounded by maxNameAttempts.
func (h *Handler) resolveName(userID uint, requested string) (string, error) {
	if requested != "" {
		taken, err := h.nameTaken(userID, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", api.ErrKeyNameTaken
		}
		return requested, nil
	}

	base := "API Key - " + time.Now().Format("2006-01-02")
	candidate := base
	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		taken, err := h.nameTaken(userID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d)", base, attempt)
	}
	return "", api.NewError(http.StatusConflict, "KEY_NAME_TAKEN",
		"could not find a free auto-generated key name")
}

func (h *Handler) nameTaken(userID uint, name string) (bool, error) {
	var count int64
	if err := h.db.Model(&models.APIKey{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Generate creates a new API key
// @Summary Generate an API key
// @Tags keys
// @Accept json
// @Produce json
// @Param request body GenerateRequest true "Credentials and key options"
// @Success 201 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 401 {object} api.ErrorResponse "Invalid credentials"
// @Failure 409 {object} api.ErrorResponse "Name already in use"
// @Router /api/keys/generate [post]
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.Validation(err.Error()))
		return
	}

	user, err := auth.Authenticate(h.db, req.Email, req.Password)
	if err != nil {
		api.Fail(c, err)
		return
	}

	// Resolve the name before generating any token material
	name, err := h.resolveName(user.ID, strings.TrimSpace(req.Name))
	if err != nil {
		api.Fail(c, err)
		return
	}

	token, err := generateAPIKey()
	if err != nil {
		api.Fail(c, err)
		return
	}

	// A non-positive duration means no expiry
	var expiresAt *time.Time
	if req.ExpirationDuration != nil && *req.ExpirationDuration > 0 {
		t := time.Now().AddDate(0, 0, *req.ExpirationDuration)
		expiresAt = &t
	}

	apiKey := models.APIKey{
		UserID:    user.ID,
		Name:      name,
		KeyHash:   hashAPIKey(token),
		KeyPrefix: token[:KeyDisplayLength],
		Active:    true,
		ExpiresAt: expiresAt,
		Scopes:    strings.Join(req.Scopes, ","),
		RateLimit: req.RateLimit,
	}
	if err := h.db.Create(&apiKey).Error; err != nil {
		// A concurrent create can still hit the unique name constraint
		api.Fail(c, api.ErrKeyNameTaken)
		return
	}

	// The full token is only visible in this response
	api.OK(c, http.StatusCreated, GenerateResponse{
		ID:        apiKey.ID,
		APIKey:    token,
		Name:      apiKey.Name,
		ExpiresAt: apiKey.ExpiresAt,
	})
}

// List returns all API keys for the authenticated user
// @Summary List API keys
// @Tags keys
// @Produce json
// @Success 200 {object} api.Response
// @Security BearerAuth
// @Router /api/keys [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var keys []models.APIKey
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&keys).Error; err != nil {
		api.Fail(c, err)
		return
	}

	responses := make([]KeyResponse, len(keys))
	for i := range keys {
		responses[i] = keyResponse(&keys[i])
	}
	api.OK(c, http.StatusOK, responses)
}

// Delete deletes an API key owned by the caller
// @Summary Delete an API key
// @Tags keys
// @Accept json
// @Produce json
// @Param id path int true "API key ID"
// @Param request body DeleteRequest true "Credentials"
// @Success 200 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Bad key ID"
// @Failure 401 {object} api.ErrorResponse "Invalid credentials"
// @Failure 404 {object} api.ErrorResponse "Not found or not owned"
// @Router /api/keys/delete/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	keyID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		api.Fail(c, api.Validation("invalid API key ID"))
		return
	}

	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.Validation(err.Error()))
		return
	}

	user, err := auth.Authenticate(h.db, req.Email, req.Password)
	if err != nil {
		api.Fail(c, err)
		return
	}

	// Ownership is part of the lookup; a foreign key reads as not-found
	var apiKey models.APIKey
	if err := h.db.Where("id = ? AND user_id = ?", keyID, user.ID).First(&apiKey).Error; err != nil {
		api.Fail(c, api.ErrNotFound)
		return
	}

	if err := h.db.Delete(&apiKey).Error; err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, http.StatusOK, gin.H{"message": "API key deleted"})
}

// Update renames an API key owned by the caller
// @Summary Rename an API key
// @Tags keys
// @Accept json
// @Produce json
// @Param id path int true "API key ID"
// @Param request body UpdateRequest true "Credentials and new name"
// @Success 200 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Bad key ID"
// @Failure 401 {object} api.ErrorResponse "Invalid credentials"
// @Failure 404 {object} api.ErrorResponse "Not found or not owned"
// @Failure 409 {object} api.ErrorResponse "Name already in use"
// @Router /api/keys/update/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	keyID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		api.Fail(c, api.Validation("invalid API key ID"))
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.Validation(err.Error()))
		return
	}

	user, err := auth.Authenticate(h.db, req.Email, req.Password)
	if err != nil {
		api.Fail(c, err)
		return
	}

	var apiKey models.APIKey
	if err := h.db.Where("id = ? AND user_id = ?", keyID, user.ID).First(&apiKey).Error; err != nil {
		api.Fail(c, api.ErrNotFound)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name != apiKey.Name {
		taken, err := h.nameTaken(user.ID, name)
		if err != nil {
			api.Fail(c, err)
			return
		}
		if taken {
			api.Fail(c, api.ErrKeyNameTaken)
			return
		}
	}

	apiKey.Name = name
	if err := h.db.Save(&apiKey).Error; err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, http.StatusOK, keyResponse(&apiKey))
}

// RegisterRoutes registers key management routes. Generate, delete and
// update authenticate via credentials in the body; List requires a JWT.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/generate", h.Generate)
	rg.DELETE("/delete/:id", h.Delete)
	rg.PUT("/update/:id", h.Update)
	rg.GET("", auth.AuthMiddleware(), h.List)
}
