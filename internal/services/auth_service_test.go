package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/models"
)

func newAuth(t *testing.T) (*AuthService, *env) {
	t.Helper()
	e := newEnv(t)
	return NewAuthService(e.users, "test-secret", time.Hour, 24*time.Hour), e
}

func TestRegisterAndLogin(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, models.RegisterRequest{
		Username:    "alice",
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "password123",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "password123", user.Password, "password must be hashed")

	result, err := auth.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, user.ID, result.User.ID)

	userID, err := auth.VerifyAccessToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, models.RegisterRequest{
		Username: "alice", DisplayName: "Alice", Email: "alice@example.com", Password: "password123",
	})
	require.NoError(t, err)

	_, err = auth.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	req := models.RegisterRequest{Username: "alice", DisplayName: "Alice", Email: "alice@example.com", Password: "x12345678"}
	_, err := auth.Register(ctx, req)
	require.NoError(t, err)

	req.Username = "alice2"
	_, err = auth.Register(ctx, req)
	require.ErrorIs(t, err, ErrConflict)
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, models.RegisterRequest{
		Username: "alice", DisplayName: "Alice", Email: "alice@example.com", Password: "password123",
	})
	require.NoError(t, err)

	login, err := auth.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := auth.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	userID, err := auth.VerifyAccessToken(refreshed.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, models.RegisterRequest{
		Username: "alice", DisplayName: "Alice", Email: "alice@example.com", Password: "password123",
	})
	require.NoError(t, err)
	login, err := auth.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = auth.Refresh(ctx, login.Token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyAccessTokenRejectsRefreshToken(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, models.RegisterRequest{
		Username: "alice", DisplayName: "Alice", Email: "alice@example.com", Password: "password123",
	})
	require.NoError(t, err)
	login, err := auth.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = auth.VerifyAccessToken(login.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyAccessTokenRejectsGarbage(t *testing.T) {
	auth, _ := newAuth(t)
	_, err := auth.VerifyAccessToken("not-a-token")
	require.ErrorIs(t, err, ErrUnauthorized)
}
