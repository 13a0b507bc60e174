package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"room-chat/internal/api/middleware"
	"room-chat/internal/hub"
	"room-chat/pkg/response"
)

type WebSocketHandler struct {
	hub        *hub.Hub
	dispatcher *hub.Dispatcher
}

func NewWebSocketHandler(h *hub.Hub, dispatcher *hub.Dispatcher) *WebSocketHandler {
	return &WebSocketHandler{hub: h, dispatcher: dispatcher}
}

// Serve godoc
// @Summary      Upgrade to the realtime WebSocket connection
// @Description  Authenticate with ?token=<access token>. The socket carries
// @Description  the event envelope protocol: login, joinRoom, leaveRoom,
// @Description  sendMessage, typing, logout.
// @Tags         ws
// @Param        token query string true "Access token"
// @Success      101
// @Failure      401 {object} models.ErrorResponse
// @Router       /ws [get]
func (h *WebSocketHandler) Serve(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}
	hub.ServeWS(h.hub, h.dispatcher, c.Writer, c.Request, userID)
}
