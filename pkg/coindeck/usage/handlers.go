package usage

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/coindeck/coindeck/pkg/coindeck/api"
	"github.com/coindeck/coindeck/pkg/coindeck/auth"
	"github.com/coindeck/coindeck/pkg/coindeck/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Handler serves usage analytics over the caller's own keys
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new usage analytics handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// AnalyticsRequest narrows the log set. All fields are optional; a time
// series is produced only when both the date range and interval are given.
type AnalyticsRequest struct {
	APIKeyID  *uint  `json:"apiKeyId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Interval  string `json:"interval"` // day, week or month
}

// EndpointCount is one entry of the popular-endpoints ranking
type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Count    int64  `json:"count"`
}

// TimeBucket is one gap-free calendar bucket of the time series
type TimeBucket struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

// AnalyticsResponse aggregates the selected usage logs
type AnalyticsResponse struct {
	TotalRequests       int64           `json:"totalRequests"`
	AverageResponseTime float64         `json:"averageResponseTime"`
	ErrorRate           float64         `json:"errorRate"` // percentage
	PopularEndpoints    []EndpointCount `json:"popularEndpoints"`
	TimeSeries          []TimeBucket    `json:"timeSeries,omitempty"`
}

// Analytics summarizes usage logs for the authenticated user's keys
// @Summary Usage analytics
// @Tags keys
// @Accept json
// @Produce json
// @Param request body AnalyticsRequest true "Filters"
// @Success 200 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Failure 404 {object} api.ErrorResponse "Key not found or not owned"
// @Security BearerAuth
// @Router /api/keys/usageAnalytics [post]
func (h *Handler) Analytics(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		api.Fail(c, api.ErrAuthRequired)
		return
	}

	var req AnalyticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.Validation(err.Error()))
		return
	}

	var start, end time.Time
	if req.StartDate != "" {
		t, err := time.Parse(dateLayout, req.StartDate)
		if err != nil {
			api.Fail(c, api.Validation("startDate must be YYYY-MM-DD"))
			return
		}
		start = t
	}
	if req.EndDate != "" {
		t, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			api.Fail(c, api.Validation("endDate must be YYYY-MM-DD"))
			return
		}
		end = t
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		api.Fail(c, api.Validation("endDate must not be before startDate"))
		return
	}
	if req.Interval != "" && req.Interval != "day" && req.Interval != "week" && req.Interval != "month" {
		api.Fail(c, api.Validation("interval must be day, week or month"))
		return
	}

	// Only logs of keys owned by the caller are visible. A foreign key ID
	// fails loudly rather than silently returning an empty set.
	keyIDs, err := h.ownedKeyIDs(userID, req.APIKeyID)
	if err != nil {
		api.Fail(c, err)
		return
	}

	var logs []models.UsageLog
	q := h.db.Where("api_key_id IN ?", keyIDs)
	if !start.IsZero() {
		q = q.Where("created_at >= ?", start)
	}
	if !end.IsZero() {
		// End date is inclusive
		q = q.Where("created_at < ?", end.AddDate(0, 0, 1))
	}
	if err := q.Order("created_at ASC").Find(&logs).Error; err != nil {
		api.Fail(c, err)
		return
	}

	resp := summarize(logs)
	if !start.IsZero() && !end.IsZero() && req.Interval != "" {
		resp.TimeSeries = timeSeries(logs, start, end, req.Interval)
	}

	api.OK(c, http.StatusOK, resp)
}

// ownedKeyIDs resolves which key IDs the query may touch.
func (h *Handler) ownedKeyIDs(userID uint, apiKeyID *uint) ([]uint, error) {
	if apiKeyID != nil {
		var key models.APIKey
		if err := h.db.Where("id = ? AND user_id = ?", *apiKeyID, userID).First(&key).Error; err != nil {
			return nil, api.ErrNotFound
		}
		return []uint{key.ID}, nil
	}

	var ids []uint
	if err := h.db.Model(&models.APIKey{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		// IN () is invalid SQL; an impossible ID keeps the query shape
		ids = []uint{0}
	}
	return ids, nil
}

// summarize computes the deterministic aggregates over a log set.
func summarize(logs []models.UsageLog) AnalyticsResponse {
	resp := AnalyticsResponse{PopularEndpoints: []EndpointCount{}}
	resp.TotalRequests = int64(len(logs))
	if resp.TotalRequests == 0 {
		return resp
	}

	var totalMs, errors int64
	byEndpoint := make(map[string]int64)
	for _, l := range logs {
		totalMs += l.ResponseTimeMs
		if l.StatusCode >= 400 {
			errors++
		}
		byEndpoint[l.Endpoint]++
	}

	resp.AverageResponseTime = round2(float64(totalMs) / float64(resp.TotalRequests))
	resp.ErrorRate = round2(float64(errors) / float64(resp.TotalRequests) * 100)

	for endpoint, count := range byEndpoint {
		resp.PopularEndpoints = append(resp.PopularEndpoints, EndpointCount{Endpoint: endpoint, Count: count})
	}
	// Ties break on endpoint name so repeated runs give identical output
	sort.Slice(resp.PopularEndpoints, func(i, j int) bool {
		a, b := resp.PopularEndpoints[i], resp.PopularEndpoints[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Endpoint < b.Endpoint
	})
	if len(resp.PopularEndpoints) > 5 {
		resp.PopularEndpoints = resp.PopularEndpoints[:5]
	}

	return resp
}

// timeSeries buckets logs by the interval. Every calendar bucket between
// start and end appears in the output, including empty ones.
func timeSeries(logs []models.UsageLog, start, end time.Time, interval string) []TimeBucket {
	counts := make(map[string]int64)
	for _, l := range logs {
		counts[bucketStart(l.CreatedAt, interval).Format(dateLayout)]++
	}

	series := []TimeBucket{}
	last := bucketStart(end, interval)
	for cursor := bucketStart(start, interval); !cursor.After(last); cursor = nextBucket(cursor, interval) {
		label := cursor.Format(dateLayout)
		series = append(series, TimeBucket{Bucket: label, Count: counts[label]})
	}
	return series
}

// bucketStart truncates a timestamp to its calendar bucket. Weeks start on
// Sunday: the date minus its weekday offset.
func bucketStart(t time.Time, interval string) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	switch interval {
	case "week":
		return day.AddDate(0, 0, -int(day.Weekday()))
	case "month":
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

func nextBucket(t time.Time, interval string) time.Time {
	switch interval {
	case "week":
		return t.AddDate(0, 0, 7)
	case "month":
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RegisterRoutes registers analytics routes. Requires JWT auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/usageAnalytics", auth.AuthMiddleware(), h.Analytics)
}
