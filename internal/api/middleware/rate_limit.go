package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"room-chat/internal/services"
	"room-chat/pkg/response"
)

// RateLimit caps requests per client IP using the redis counter in the
// presence service. A nil presence disables limiting, which keeps tests
// and redis-less deployments working.
func RateLimit(presence *services.PresenceService, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if presence == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())
		allowed, err := presence.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			// Redis trouble should not take the API down.
			c.Next()
			return
		}
		if !allowed {
			response.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
