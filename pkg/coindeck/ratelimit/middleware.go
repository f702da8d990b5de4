package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/coindeck/coindeck/pkg/coindeck/api"
	"github.com/coindeck/coindeck/pkg/coindeck/apikeys"
	"github.com/gin-gonic/gin"
)

// Options configures the rate limiting middleware.
type Options struct {
	// SkipPaths bypass rate limiting entirely (liveness probes and the like)
	SkipPaths []string
	// BudgetFor resolves a per-key budget override for a presented key,
	// nil for the server default. Optional.
	BudgetFor func(key string) *int
}

// Middleware rejects requests over budget before any authentication runs.
// Identity is the API key value when one is presented, else the client IP.
func Middleware(l *Limiter, opts Options) gin.HandlerFunc {
	skip := make(map[string]bool, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		key := apikeys.ExtractKey(c)
		identity := "ip:" + c.ClientIP()
		keyed := false
		var override *int
		if key != "" {
			identity = "key:" + key
			keyed = true
			if opts.BudgetFor != nil {
				override = opts.BudgetFor(key)
			}
		}

		res := l.Allow(identity, keyed, override)

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			api.Abort(c, api.NewError(http.StatusTooManyRequests, "RATE_LIMITED",
				fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter)))
			return
		}

		c.Next()
	}
}
