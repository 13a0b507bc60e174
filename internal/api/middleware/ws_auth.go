package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"room-chat/internal/services"
	"room-chat/pkg/response"
)

// WebSocketAuth authenticates the upgrade request from a token query
// parameter, since browsers cannot set headers on WebSocket handshakes.
func WebSocketAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing token")
			c.Abort()
			return
		}

		userID, err := auth.VerifyAccessToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}
