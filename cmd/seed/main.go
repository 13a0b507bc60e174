// Command seed populates a development database with demo users and rooms.
package main

import (
	"context"
	"log/slog"
	"os"

	"room-chat/internal/config"
	"room-chat/internal/database"
	"room-chat/internal/models"
	"room-chat/internal/repositories/postgres"
	"room-chat/internal/services"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg := config.Load()
	db, err := database.NewPostgresConnection(cfg.Database.URI)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	userRepo := postgres.NewUserRepository(db)
	roomRepo := postgres.NewRoomRepository(db)
	auth := services.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expire, cfg.JWT.RefreshExpire)

	users := []models.RegisterRequest{
		{Username: "alice", DisplayName: "Alice", Email: "alice@example.com", Password: "password123"},
		{Username: "bob", DisplayName: "Bob", Email: "bob@example.com", Password: "password123"},
		{Username: "carol", DisplayName: "Carol", Email: "carol@example.com", Password: "password123"},
	}
	for _, req := range users {
		if _, err := auth.Register(ctx, req); err != nil {
			slog.Warn("Skipping user", "username", req.Username, "error", err)
			continue
		}
		slog.Info("Created user", "username", req.Username)
	}

	rooms := []models.Room{
		{Name: "general", Description: "General discussion"},
		{Name: "random", Description: "Anything goes"},
	}
	for i := range rooms {
		if err := roomRepo.Create(ctx, &rooms[i]); err != nil {
			slog.Warn("Skipping room", "name", rooms[i].Name, "error", err)
			continue
		}
		slog.Info("Created room", "name", rooms[i].Name, "id", rooms[i].ID)
	}
}
