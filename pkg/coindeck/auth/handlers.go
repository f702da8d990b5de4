package auth

import (
	"net/http"
	"time"

	"github.com/coindeck/coindeck/pkg/coindeck/api"
	"github.com/coindeck/coindeck/pkg/coindeck/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles authentication requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoginResponse is the user plus a session token
type LoginResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	Token     string    `json:"token"`
}

// ProfileResponse is the authenticated user's profile with resource counts
type ProfileResponse struct {
	ID         uint      `json:"id"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
	APIKeys    int64     `json:"apiKeyCount"`
	AlertCount int64     `json:"alertCount"`
}

// Register handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 409 {object} api.ErrorResponse "Email already registered"
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.Validation(err.Error()))
		return
	}

	// Check if email already exists
	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		api.Fail(c, api.ErrEmailTaken)
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		api.Fail(c, err)
		return
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}
	if err := h.db.Create(&user).Error; err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, http.StatusCreated, UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// Login handles user login
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 401 {object} api.ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.Validation(err.Error()))
		return
	}

	user, err := Authenticate(h.db, req.Email, req.Password)
	if err != nil {
		api.Fail(c, err)
		return
	}

	token, err := GenerateToken(user.ID, user.Email)
	if err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, http.StatusOK, LoginResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		Token:     token,
	})
}

// Profile returns the current authenticated user with resource counts
// @Summary Get current user
// @Tags auth
// @Produce json
// @Success 200 {object} api.Response
// @Failure 401 {object} api.ErrorResponse "Authentication required"
// @Failure 404 {object} api.ErrorResponse "User no longer exists"
// @Security BearerAuth
// @Router /auth/profile [get]
func (h *Handler) Profile(c *gin.Context) {
	userID, exists := GetUserID(c)
	if !exists {
		api.Fail(c, api.ErrAuthRequired)
		return
	}

	// The user may have been deleted after the token was issued
	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		api.Fail(c, api.ErrNotFound)
		return
	}

	var keyCount, alertCount int64
	if err := h.db.Model(&models.APIKey{}).Where("user_id = ?", user.ID).Count(&keyCount).Error; err != nil {
		api.Fail(c, err)
		return
	}
	if err := h.db.Model(&models.Alert{}).Where("user_id = ?", user.ID).Count(&alertCount).Error; err != nil {
		api.Fail(c, err)
		return
	}

	api.OK(c, http.StatusOK, ProfileResponse{
		ID:         user.ID,
		Email:      user.Email,
		CreatedAt:  user.CreatedAt,
		APIKeys:    keyCount,
		AlertCount: alertCount,
	})
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.GET("/profile", AuthMiddleware(), h.Profile)
}
