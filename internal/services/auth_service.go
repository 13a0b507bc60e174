package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"room-chat/internal/models"
	"room-chat/internal/repositories/postgres"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService issues and refreshes the JWT pair the realtime layer trusts.
type AuthService struct {
	users         *postgres.UserRepository
	jwtSecret     string
	jwtExpire     time.Duration
	refreshExpire time.Duration
}

func NewAuthService(users *postgres.UserRepository, secret string, expire, refreshExpire time.Duration) *AuthService {
	return &AuthService{
		users:         users,
		jwtSecret:     secret,
		jwtExpire:     expire,
		refreshExpire: refreshExpire,
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    string(hashed),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: username or email already taken", ErrConflict)
	}
	return user, nil
}

// Login verifies credentials and returns an access/refresh token pair.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	access, err := s.signToken(user, "access", s.jwtExpire)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(user, "refresh", s.refreshExpire)
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{
		Token:        access,
		RefreshToken: refresh,
		User:         user.ToResponse(),
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The realtime
// layer tolerates mid-session re-authentication: the client reconnects and
// rejoins, and membership operations are idempotent.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.LoginResponse, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return nil, fmt.Errorf("%w: not a refresh token", ErrUnauthorized)
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: malformed claims", ErrUnauthorized)
	}

	user, err := s.users.FindByID(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, uint(userID))
		}
		return nil, err
	}

	access, err := s.signToken(user, "access", s.jwtExpire)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(user, "refresh", s.refreshExpire)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		Token:        access,
		RefreshToken: refresh,
		User:         user.ToResponse(),
	}, nil
}

// VerifyAccessToken checks an access token and returns the user id it
// was issued for.
func (s *AuthService) VerifyAccessToken(tokenString string) (uint, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return 0, err
	}
	if typ, _ := claims["typ"].(string); typ != "access" {
		return 0, fmt.Errorf("%w: not an access token", ErrUnauthorized)
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: malformed claims", ErrUnauthorized)
	}
	return uint(userID), nil
}

// SignAccessToken issues an access token directly; used by tests and tools.
func (s *AuthService) SignAccessToken(user *models.User) (string, error) {
	return s.signToken(user, "access", s.jwtExpire)
}

func (s *AuthService) signToken(user *models.User, typ string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"typ":     typ,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (s *AuthService) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}
	return claims, nil
}
