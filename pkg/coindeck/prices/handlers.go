package prices

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coindeck/coindeck/pkg/coindeck/api"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Scope required of restricted API keys calling price endpoints.
const ScopePrices = "prices"

// supportedTokens is the closed dispatch table for the direct price
// endpoint. Anything else is an invalid selection, not a not-found.
var supportedTokens = map[string]bool{
	"bitcoin":  true,
	"ethereum": true,
	"tether":   true,
	"ripple":   true,
	"cardano":  true,
	"solana":   true,
	"polkadot": true,
	"dogecoin": true,
}

// batch size bounds
const (
	batchMin = 1
	batchMax = 10
)

// EthPricer reads an ETH price from an on-chain source.
type EthPricer interface {
	GetETHPrice(ctx context.Context) (float64, error)
}

// Handler proxies price and volume data from upstream providers
type Handler struct {
	gecko   *CoinGeckoClient
	uniswap EthPricer // nil when no RPC endpoint is configured
	cache   *priceCache
	logger  *zap.Logger
}

// NewHandler creates a new prices handler
func NewHandler(gecko *CoinGeckoClient, uniswap EthPricer, cacheTTL time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		gecko:   gecko,
		uniswap: uniswap,
		cache:   newPriceCache(cacheTTL),
		logger:  logger,
	}
}

// normalizeToken canonicalizes a token id before dispatch
func normalizeToken(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

var errInvalidToken = api.Validation("unsupported token id")

// upstreamError keeps the upstream failure category but carries the
// underlying provider error unchanged.
func upstreamError(err error) *api.Error {
	return api.NewError(api.ErrUpstream.Status, api.ErrUpstream.Code, err.Error())
}

// GetPrice returns the USD price for a supported token
// @Summary Token price
// @Tags prices
// @Produce json
// @Param tokenId path string true "Token id"
// @Success 200 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Unsupported token or provider failure"
// @Security ApiKeyAuth
// @Router /api/v1/price/{tokenId} [get]
func (h *Handler) GetPrice(c *gin.Context) {
	token := normalizeToken(c.Param("tokenId"))
	if !supportedTokens[token] {
		api.Fail(c, errInvalidToken)
		return
	}

	if price, ok := h.cache.get("price:" + token); ok {
		api.OK(c, http.StatusOK, gin.H{"tokenId": token, "price": price, "cached": true})
		return
	}

	price, err := h.gecko.GetPrice(c.Request.Context(), token)
	if err != nil {
		api.Fail(c, upstreamError(err))
		return
	}
	h.cache.set("price:"+token, price)

	api.OK(c, http.StatusOK, gin.H{"tokenId": token, "price": price})
}

// GetPriceChange returns the USD price and its 24h change
// @Summary Token price with 24h change
// @Tags prices
// @Produce json
// @Param tokenId path string true "Token id"
// @Success 200 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Provider failure"
// @Security ApiKeyAuth
// @Router /api/v1/priceChange/{tokenId} [get]
func (h *Handler) GetPriceChange(c *gin.Context) {
	token := normalizeToken(c.Param("tokenId"))
	if token == "" {
		api.Fail(c, api.Validation("token id required"))
		return
	}

	price, change, err := h.gecko.GetPriceChange(c.Request.Context(), token)
	if err != nil {
		api.Fail(c, upstreamError(err))
		return
	}

	api.OK(c, http.StatusOK, gin.H{"tokenId": token, "price": price, "change24h": change})
}

// GetVolume returns the 24h trading volume
// @Summary Token volume
// @Tags prices
// @Produce json
// @Param tokenId path string true "Token id"
// @Success 200 {object} api.Response
// @Failure 400 {object} api.ErrorResponse "Provider failure"
// @Security ApiKeyAuth
// @Router /api/v1/volume/{tokenId} [get]
func (h *Handler) GetVolume(c *gin.Context) {
	token := normalizeToken(c.Param("tokenId"))
	if token == "" {
		api.Fail(c, api.Validation("token id required"))
		return
	}

	volume, err := h.gecko.GetVolume(c.Request.Context(), token)
	if err != nil {
		api.Fail(c, upstreamError(err))
		return
	}

	api.OK(c, http.StatusOK, gin.H{"tokenId": token, "volume": volume, "period": "24h"})
}

// GetDevPrice returns the ETH price read from Uniswap reserves on-chain
// @Summary On-chain ETH price
// @Tags prices
// @Produce json
// @Success 200 {object} api.Response
// @Failure 503 {object} api.ErrorResponse "No RPC endpoint configured"
// @Security ApiKeyAuth
// @Router /api/v1/price/dev [get]
func (h *Handler) GetDevPrice(c *gin.Context) {
	if h.uniswap == nil {
		api.Fail(c, api.NewError(http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE",
			"on-chain price provider not configured"))
		return
	}

	if price, ok := h.cache.get("dev:ethereum"); ok {
		api.OK(c, http.StatusOK, gin.H{"tokenId": "ethereum", "price": price, "source": "uniswap", "cached": true})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	price, err := h.uniswap.GetETHPrice(ctx)
	if err != nil {
		api.Fail(c, upstreamError(err))
		return
	}
	h.cache.set("dev:ethereum", price)

	api.OK(c, http.StatusOK, gin.H{"tokenId": "ethereum", "price": price, "source": "uniswap"})
}

// BatchPriceRequest asks for prices of several tokens at once
type BatchPriceRequest struct {
	TokenIDs []string `json:"tokenIds" binding:"required"`
}

// BatchPrice fetches each token independently and concurrently. The status
// reports full success (200), partial success (207) or full failure (502).
// @Summary Batch token prices
// @Tags prices
// @Accept json
// @Produce json
// @Param request body BatchPriceRequest true "Token ids (1..10)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} api.ErrorResponse "Validation error"
// @Security ApiKeyAuth
// @Router /api/v1/batch-price [post]
func (h *Handler) BatchPrice(c *gin.Context) {
	var req BatchPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.Validation(err.Error()))
		return
	}
	if len(req.TokenIDs) < batchMin || len(req.TokenIDs) > batchMax {
		api.Fail(c, api.Validation("tokenIds must contain between 1 and 10 entries"))
		return
	}

	results := make(map[string]float64)
	failures := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, raw := range req.TokenIDs {
		token := normalizeToken(raw)
		if token == "" {
			mu.Lock()
			failures[raw] = "empty token id"
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			price, err := h.gecko.GetPrice(c.Request.Context(), token)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[token] = err.Error()
				return
			}
			results[token] = price
		}(token)
	}
	wg.Wait()

	status := http.StatusOK
	switch {
	case len(results) == 0:
		status = http.StatusBadGateway
	case len(failures) > 0:
		status = http.StatusMultiStatus
	}

	c.JSON(status, gin.H{
		"success": len(failures) == 0,
		"data":    results,
		"errors":  failures,
	})
}

// RegisterRoutes registers price routes. The caller wraps the group with
// API key auth and usage logging.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	// /price/dev must be registered before the :tokenId wildcard
	rg.GET("/price/dev", h.GetDevPrice)
	rg.GET("/price/:tokenId", h.GetPrice)
	rg.GET("/priceChange/:tokenId", h.GetPriceChange)
	rg.GET("/volume/:tokenId", h.GetVolume)
	rg.POST("/batch-price", h.BatchPrice)
}
