package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"room-chat/internal/models"
	"room-chat/internal/repositories/postgres"

	"gorm.io/gorm"
)

const (
	defaultWindowSize = 50
	maxWindowSize     = 100
)

// HistoryService serves bounded backward windows of room history for
// infinite scroll.
type HistoryService struct {
	messages *postgres.MessageRepository
	rooms    *postgres.RoomRepository
}

func NewHistoryService(messages *postgres.MessageRepository, rooms *postgres.RoomRepository) *HistoryService {
	return &HistoryService{messages: messages, rooms: rooms}
}

// WindowOptions selects one page. BeforeID is the authoritative cursor; the
// timestamp fallback exists only for a first page requested before any id
// has been observed.
type WindowOptions struct {
	Limit         int
	BeforeID      uint
	Before        *time.Time
	ExcludeSystem bool
}

// FetchWindow returns up to Limit messages strictly older than the cursor,
// ascending for display. HasMore is exact: the repository is probed for one
// extra row beyond the window.
func (s *HistoryService) FetchWindow(ctx context.Context, roomID uint, opts WindowOptions) (*models.MessagePage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultWindowSize
	}
	if limit > maxWindowSize {
		limit = maxWindowSize
	}

	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
		}
		return nil, fmt.Errorf("load room %d: %w", roomID, err)
	}

	msgs, err := s.messages.ListByRoom(ctx, roomID, postgres.ListOptions{
		Limit:         limit + 1,
		BeforeID:      opts.BeforeID,
		Before:        opts.Before,
		ExcludeSystem: opts.ExcludeSystem,
	})
	if err != nil {
		return nil, fmt.Errorf("list messages for room %d: %w", roomID, err)
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}

	// Repository order is newest first; reverse for display.
	page := &models.MessagePage{
		Messages: make([]models.MessageResponse, 0, len(msgs)),
		HasMore:  hasMore,
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, msgs[i].ToResponse())
	}
	return page, nil
}
