package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "room-chat/docs"
	"room-chat/internal/api/handlers"
	"room-chat/internal/api/middleware"
	"room-chat/internal/services"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	User      *handlers.UserHandler
	Room      *handlers.RoomHandler
	Message   *handlers.MessageHandler
	Upload    *handlers.UploadHandler
	WebSocket *handlers.WebSocketHandler
}

// Setup assembles the gin engine: public auth endpoints, the token-guarded
// REST API, the WebSocket upgrade, and swagger.
func Setup(h Handlers, auth *services.AuthService, presence *services.PresenceService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(presence, 300, time.Minute))

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.Auth(auth))
	{
		protected.GET("/users", h.User.List)
		protected.GET("/users/me", h.User.Profile)
		protected.PUT("/users/me", h.User.UpdateProfile)
		protected.GET("/users/:id", h.User.Get)

		protected.GET("/rooms", h.Room.List)
		protected.POST("/rooms", h.Room.Create)
		protected.GET("/rooms/:id", h.Room.Get)
		protected.GET("/rooms/:id/online", h.Room.OnlineMembers)

		protected.GET("/messages/room/:id", h.Message.History)

		protected.POST("/uploads", h.Upload.Upload)
	}

	ws := r.Group("/ws")
	ws.Use(middleware.WebSocketAuth(auth))
	ws.GET("", h.WebSocket.Serve)

	return r
}
