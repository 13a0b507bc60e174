package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// User represents a registered chat user
type User struct {
	gorm.Model
	Username    string `gorm:"uniqueIndex;not null" json:"username"` // Unique handle shown in rooms
	DisplayName string `json:"displayName,omitempty"`                // Optional friendly name
	Email       string `gorm:"uniqueIndex;not null" json:"email"`    // Unique email for the user
	Password    string `json:"-"`                                    // Password is hashed and not returned in responses
	IsOnline    bool   `gorm:"default:false" json:"isOnline"`

	Rooms []*Room `gorm:"many2many:room_members" json:"rooms,omitempty"`
}

// Name returns the label used in system messages and member lists.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

/** -------------------- DTOs -------------------- */
// Request
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50"`
	DisplayName string `json:"displayName" binding:"omitempty,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the request for user login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token issued at login
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type UpdateUserRequest struct {
	Username    *string `json:"username,omitempty" binding:"omitempty,min=3,max=50"`
	DisplayName *string `json:"displayName,omitempty" binding:"omitempty,max=100"`
	Email       *string `json:"email,omitempty" binding:"omitempty,email"`
	Password    *string `json:"password,omitempty" binding:"omitempty,min=6"`
}

// Response
type UserResponse struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	Email       string    `json:"email,omitempty"`
	IsOnline    bool      `json:"isOnline"`
	CreatedAt   time.Time `json:"created_at"`
}

// LoginResponse represents the response for a successful login
// swagger:model
type LoginResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	User         UserResponse `json:"user"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		IsOnline:    u.IsOnline,
		CreatedAt:   u.CreatedAt,
	}
}
