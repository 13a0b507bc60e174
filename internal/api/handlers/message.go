package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"room-chat/internal/services"
	"room-chat/pkg/response"
)

type MessageHandler struct {
	history *services.HistoryService
}

func NewMessageHandler(history *services.HistoryService) *MessageHandler {
	return &MessageHandler{history: history}
}

// History godoc
// @Summary      Fetch a window of room history for backward pagination
// @Description  Returns up to limit messages strictly older than the cursor,
// @Description  oldest first. Pass the smallest message id already loaded as
// @Description  beforeId to page backwards; hasMore reports whether older
// @Description  messages remain.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Param        limit query int false "Window size (max 100, default 50)"
// @Param        beforeId query int false "Return messages with id strictly below this"
// @Param        before query string false "RFC3339 timestamp fallback for the first page"
// @Param        excludeSystem query bool false "Drop join/leave notices"
// @Success      200 {object} models.MessagePage
// @Failure      400 {object} models.ErrorResponse
// @Failure      404 {object} models.ErrorResponse
// @Router       /messages/room/{id} [get]
func (h *MessageHandler) History(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid room id")
		return
	}

	opts := services.WindowOptions{}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid limit")
			return
		}
		opts.Limit = limit
	}
	if v := c.Query("beforeId"); v != "" {
		beforeID, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid beforeId")
			return
		}
		opts.BeforeID = uint(beforeID)
	}
	if v := c.Query("before"); v != "" {
		before, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "before must be RFC3339")
			return
		}
		opts.Before = &before
	}
	if v := c.Query("excludeSystem"); v != "" {
		opts.ExcludeSystem = v == "true" || v == "1"
	}

	page, err := h.history.FetchWindow(c.Request.Context(), uint(roomID), opts)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "room not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to load history")
		return
	}
	response.JSON(c, http.StatusOK, page)
}
