package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"relay/internal/service"
	"relay/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	limit            int
	window           time.Duration
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, limit int, window time.Duration, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		limit:            limit,
		window:           window,
		log:              log,
	}
}

// Limit throttles requests per client IP under the given key prefix. The
// limiter fails open when Redis is unreachable.
func (m *RateLimitMiddleware) Limit(prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limit <= 0 {
			c.Next()
			return
		}

		key := prefix + ":" + c.ClientIP()

		allowed, err := m.rateLimitService.CheckLimit(c.Request.Context(), key, m.limit, m.window)
		if err != nil {
			m.log.Warn("Rate limit check failed", "error", err)
			c.Next()
			return
		}

		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(m.limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		count, err := m.rateLimitService.Increment(c.Request.Context(), key, m.window)
		if err != nil {
			m.log.Warn("Rate limit increment failed", "error", err)
		}

		remaining := m.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(m.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}
