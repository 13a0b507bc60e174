package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"room-chat/internal/models"
	"room-chat/internal/repositories/postgres"
	"room-chat/internal/services"
	"room-chat/pkg/response"
)

type RoomHandler struct {
	rooms   *postgres.RoomRepository
	service *services.RoomService
}

func NewRoomHandler(rooms *postgres.RoomRepository, service *services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms, service: service}
}

// List godoc
// @Summary      List rooms
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} models.RoomResponse
// @Router       /rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to list rooms")
		return
	}

	out := make([]models.RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.ToResponse())
	}
	response.JSON(c, http.StatusOK, out)
}

// Create godoc
// @Summary      Create a room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body models.CreateRoomRequest true "Room payload"
// @Success      201 {object} models.RoomResponse
// @Failure      400 {object} models.ErrorResponse
// @Failure      409 {object} models.ErrorResponse
// @Router       /rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	var req models.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	room := &models.Room{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.rooms.Create(c.Request.Context(), room); err != nil {
		response.Error(c, http.StatusConflict, "CONFLICT", "room name already taken")
		return
	}
	response.JSON(c, http.StatusCreated, room.ToResponse())
}

// Get godoc
// @Summary      Get a room with its persisted members
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {object} models.RoomResponse
// @Failure      404 {object} models.ErrorResponse
// @Router       /rooms/{id} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid room id")
		return
	}

	room, err := h.rooms.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "room not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to load room")
		return
	}
	response.JSON(c, http.StatusOK, room.ToResponse())
}

// OnlineMembers godoc
// @Summary      List user ids with a live connection in the room
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {array} int
// @Router       /rooms/{id}/online [get]
func (h *RoomHandler) OnlineMembers(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid room id")
		return
	}
	response.JSON(c, http.StatusOK, h.service.Members(uint(id)))
}
