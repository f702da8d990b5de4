package alerts

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/coindeck/coindeck/pkg/coindeck/api"
	"github.com/coindeck/coindeck/pkg/coindeck/auth"
	"github.com/coindeck/coindeck/pkg/coindeck/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles price alert CRUD
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new alerts handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateAlertRequest represents a new standing price condition
type CreateAlertRequest struct {
	Token     string  `json:"token" binding:"required"`
	Direction string  `json:"direction" binding:"required,oneof=above below"`
	Threshold float64 `json:"threshold" binding:"required,gt=0"`
}

// Create registers a new price alert for the authenticated user
// @Summary Create a price alert
// @Tags alerts
// @Accept json
// @Produce json
// @Param request body CreateAlertRequest true "Alert condition"
// @Success 201 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Security BearerAuth
// @Router /api/alerts [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.Validation(err.Error()))
		return
	}

	alert := models.Alert{
		UserID:    userID,
		Token:     strings.ToLower(strings.TrimSpace(req.Token)),
		Direction: models.AlertDirection(req.Direction),
		Threshold: req.Threshold,
		Active:    true,
	}
	if err := h.db.Create(&alert).Error; err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, http.StatusCreated, alert)
}

// List returns the authenticated user's alerts
// @Summary List price alerts
// @Tags alerts
// @Produce json
// @Success 200 {object} api.Response
// @Security BearerAuth
// @Router /api/alerts [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var alerts []models.Alert
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&alerts).Error; err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, http.StatusOK, alerts)
}

// Delete removes an alert owned by the caller
// @Summary Delete a price alert
// @Tags alerts
// @Produce json
// @Param id path int true "Alert ID"
// @Success 200 {object} api.Response
// @Failure 404 {object} api.ErrorResponse "Not found or not owned"
// @Security BearerAuth
// @Router /api/alerts/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	alertID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		api.Fail(c, api.Validation("invalid alert ID"))
		return
	}

	var alert models.Alert
	if err := h.db.Where("id = ? AND user_id = ?", alertID, userID).First(&alert).Error; err != nil {
		api.Fail(c, api.ErrNotFound)
		return
	}

	if err := h.db.Delete(&alert).Error; err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, http.StatusOK, gin.H{"message": "alert deleted"})
}

// RegisterRoutes registers alert routes. Requires JWT auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", auth.AuthMiddleware(), h.Create)
	rg.GET("", auth.AuthMiddleware(), h.List)
	rg.DELETE("/:id", auth.AuthMiddleware(), h.Delete)
}
