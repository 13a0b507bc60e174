package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey    = "online_users"
	onlineStatusTTL   = 5 * time.Minute
	offlineStatusTTL  = 24 * time.Hour
	statusKeyTemplate = "user:%d:status"
)

// PresenceService mirrors online/offline state into Redis. The hub registry
// is authoritative for this process; the mirror is what a multi-instance
// deployment would read, and it backs the rate limiter.
type PresenceService struct {
	client *redis.Client
}

func NewPresenceService(client *redis.Client) *PresenceService {
	return &PresenceService{client: client}
}

func (s *PresenceService) SetUserOnline(ctx context.Context, userID uint) error {
	key := fmt.Sprintf(statusKeyTemplate, userID)
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, key, map[string]interface{}{
		"status":    "online",
		"last_seen": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, onlineStatusTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to set user online", "userID", userID, "error", err)
		return err
	}
	return nil
}

func (s *PresenceService) SetUserOffline(ctx context.Context, userID uint) error {
	key := fmt.Sprintf(statusKeyTemplate, userID)
	pipe := s.client.Pipeline()
	pipe.SRem(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, key, map[string]interface{}{
		"status":    "offline",
		"last_seen": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, offlineStatusTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to set user offline", "userID", userID, "error", err)
		return err
	}
	return nil
}

func (s *PresenceService) IsUserOnline(ctx context.Context, userID uint) (bool, error) {
	return s.client.SIsMember(ctx, onlineUsersKey, fmt.Sprint(userID)).Result()
}

func (s *PresenceService) OnlineUsers(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, onlineUsersKey).Result()
}

// CheckRateLimit counts requests in a fixed window; the first hit arms the
// window's expiry.
func (s *PresenceService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
