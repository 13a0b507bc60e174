package postgres

import (
	"context"
	"time"

	"room-chat/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

// ListOptions bounds one backward page of room history. BeforeID is the
// authoritative cursor; Before (timestamp) is consulted only when no id
// cursor is given, because timestamps are not strictly monotonic under
// concurrent inserts.
type ListOptions struct {
	Limit         int
	BeforeID      uint
	Before        *time.Time
	ExcludeSystem bool
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).Preload("User").First(&msg, "id = ?", id).Error
	return &msg, err
}

// ListByRoom returns up to Limit messages strictly older than the cursor,
// newest first. Callers reverse for display.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID uint, opts ListOptions) ([]models.Message, error) {
	q := r.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ?", roomID).
		Order("id DESC").
		Limit(opts.Limit)

	if opts.ExcludeSystem {
		q = q.Where("is_system = ?", false)
	}
	if opts.BeforeID > 0 {
		q = q.Where("id < ?", opts.BeforeID)
	} else if opts.Before != nil {
		q = q.Where("sent_at < ?", *opts.Before)
	}

	var msgs []models.Message
	err := q.Find(&msgs).Error
	return msgs, err
}

func (r *MessageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", id).Error
}
