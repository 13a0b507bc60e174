package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Room represents a named broadcast scope with members and a message history
type Room struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description,omitempty"`

	Users    []*User   `gorm:"many2many:room_members" json:"users,omitempty"`
	Messages []Message `gorm:"foreignKey:RoomID" json:"-"`
}

/** -------------------- DTOs -------------------- */
// Request
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"omitempty,max=500"`
}

// Response
type RoomResponse struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Users       []UserResponse `json:"users"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (r *Room) ToResponse() RoomResponse {
	users := make([]UserResponse, 0, len(r.Users))
	for _, u := range r.Users {
		users = append(users, u.ToResponse())
	}
	return RoomResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Users:       users,
		CreatedAt:   r.CreatedAt,
	}
}
