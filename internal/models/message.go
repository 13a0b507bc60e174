package models

import "time"

/** --------------------ENTITIES-------------------- */
// Message is immutable once created. The auto-increment ID assigned at
// persistence time is the authoritative ordering key for a room; SentAt is
// informational only because concurrent inserts can share a timestamp.
type Message struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Content  string    `gorm:"type:text;not null" json:"content"`
	UserID   *uint     `gorm:"index" json:"userId,omitempty"` // nil for system messages
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RoomID   uint      `gorm:"index;not null" json:"roomId"`
	SentAt   time.Time `gorm:"index;not null" json:"sentAt"`
	IsSystem bool      `gorm:"default:false" json:"isSystem"`
}

/** -------------------- DTOs -------------------- */
// Response
type MessageResponse struct {
	ID       uint          `json:"id"`
	Content  string        `json:"content"`
	User     *UserResponse `json:"user,omitempty"`
	RoomID   uint          `json:"roomId"`
	SentAt   time.Time     `json:"sentAt"`
	IsSystem bool          `json:"isSystem"`
}

// MessagePage is one backward window of history, ascending for display.
type MessagePage struct {
	Messages []MessageResponse `json:"messages"`
	HasMore  bool              `json:"hasMore"`
}

func (m *Message) ToResponse() MessageResponse {
	resp := MessageResponse{
		ID:       m.ID,
		Content:  m.Content,
		RoomID:   m.RoomID,
		SentAt:   m.SentAt,
		IsSystem: m.IsSystem,
	}
	if m.User != nil {
		user := m.User.ToResponse()
		user.Email = ""
		resp.User = &user
	}
	return resp
}
