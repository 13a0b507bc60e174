package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"room-chat/internal/adapters/kafka"
	"room-chat/internal/adapters/storage"
	"room-chat/internal/api/handlers"
	"room-chat/internal/api/routes"
	"room-chat/internal/config"
	"room-chat/internal/database"
	"room-chat/internal/hub"
	"room-chat/internal/repositories/postgres"
	"room-chat/internal/services"
)

// @title           Room Chat API
// @version         1.0
// @description     Realtime room chat coordination service
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()

	db, err := database.NewPostgresConnection(cfg.Database.URI)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	rdb, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	userRepo := postgres.NewUserRepository(db)
	roomRepo := postgres.NewRoomRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	h := hub.NewHub()
	go h.Run()
	defer h.Stop()

	messageService := services.NewMessageService(messageRepo, roomRepo, userRepo, h)
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			slog.Error("Failed to connect to Kafka", "brokers", cfg.Kafka.Brokers, "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		messageService.WithEventStream(producer, cfg.Kafka.Topic)
	}

	historyService := services.NewHistoryService(messageRepo, roomRepo)
	roomService := services.NewRoomService(roomRepo, userRepo, h, messageService, historyService)
	presenceService := services.NewPresenceService(rdb)
	authService := services.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expire, cfg.JWT.RefreshExpire)

	dispatcher := hub.NewDispatcher(h, roomService, messageService, userRepo, presenceService)

	var attachmentStore *storage.AttachmentStore
	if cfg.Minio.Enabled {
		attachmentStore, err = storage.NewAttachmentStore(
			cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey,
			cfg.Minio.Bucket, cfg.Minio.Secure,
		)
		if err != nil {
			slog.Error("Failed to connect to MinIO", "endpoint", cfg.Minio.Endpoint, "error", err)
			os.Exit(1)
		}
	}

	router := routes.Setup(routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		User:      handlers.NewUserHandler(userRepo),
		Room:      handlers.NewRoomHandler(roomRepo, roomService),
		Message:   handlers.NewMessageHandler(historyService),
		Upload:    handlers.NewUploadHandler(attachmentStore),
		WebSocket: handlers.NewWebSocketHandler(h, dispatcher),
	}, authService, presenceService)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}
}
