package response

import (
	"github.com/gin-gonic/gin"

	"room-chat/internal/models"
)

func JSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func ErrorWithDetails(c *gin.Context, status int, code, message string, details map[string]string) {
	c.JSON(status, models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
