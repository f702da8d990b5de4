package health

import (
	"net/http"

	"github.com/coindeck/coindeck/pkg/coindeck/database"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves liveness and readiness probes
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new health handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Live is the liveness probe; no dependency checks.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "coindeck"})
}

// Detailed is the readiness probe. A failing store ping is reported as a
// distinct service-unavailable condition, not a generic error.
func (h *Handler) Detailed(c *gin.Context) {
	checks := gin.H{}
	status := http.StatusOK

	if err := database.Ping(c.Request.Context(), h.db); err != nil {
		checks["database"] = "error: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// RegisterRoutes registers health routes on the engine root
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Live)
	r.GET("/health/detailed", h.Detailed)
}
