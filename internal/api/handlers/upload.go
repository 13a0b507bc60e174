package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"room-chat/internal/adapters/storage"
	"room-chat/pkg/response"
)

const maxUploadSize = 10 << 20 // 10 MiB

type UploadHandler struct {
	store *storage.AttachmentStore
}

func NewUploadHandler(store *storage.AttachmentStore) *UploadHandler {
	return &UploadHandler{store: store}
}

// Upload godoc
// @Summary      Upload an attachment and receive its URL
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "File to upload"
// @Success      201 {object} map[string]string
// @Failure      400 {object} models.ErrorResponse
// @Failure      503 {object} models.ErrorResponse
// @Router       /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.store == nil {
		response.Error(c, http.StatusServiceUnavailable, "UNAVAILABLE", "attachment storage is not configured")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "missing file field")
		return
	}
	if file.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "file too large")
		return
	}

	url, err := h.store.Upload(c.Request.Context(), file)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to store file")
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"url": url})
}
