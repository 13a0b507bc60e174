package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"room-chat/internal/models"
	"room-chat/internal/protocol"
	"room-chat/internal/repositories/postgres"

	"github.com/IBM/sarama"
	"gorm.io/gorm"
)

// MessageService is the broadcast pipeline: it persists a message, which
// assigns the id that defines room order, then fans the canonical message
// out to every live member of the room, the sender included. The sender
// also gets the canonical message back synchronously so it never has to
// race its own broadcast echo.
type MessageService struct {
	messages *postgres.MessageRepository
	rooms    *postgres.RoomRepository
	users    *postgres.UserRepository

	broadcaster Broadcaster

	// Optional event stream for downstream consumers; nil disables it.
	producer sarama.SyncProducer
	topic    string

	// Per-room locks serialize persist+publish so delivery order always
	// equals id order within a room.
	roomMu sync.Map
}

func NewMessageService(
	messages *postgres.MessageRepository,
	rooms *postgres.RoomRepository,
	users *postgres.UserRepository,
	broadcaster Broadcaster,
) *MessageService {
	return &MessageService{
		messages:    messages,
		rooms:       rooms,
		users:       users,
		broadcaster: broadcaster,
	}
}

// WithEventStream attaches a Kafka producer that receives every persisted
// message, fire-and-forget.
func (s *MessageService) WithEventStream(producer sarama.SyncProducer, topic string) *MessageService {
	s.producer = producer
	s.topic = topic
	return s
}

func (s *MessageService) roomLock(roomID uint) *sync.Mutex {
	mu, _ := s.roomMu.LoadOrStore(roomID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Submit validates, persists and broadcasts one message. A nil authorID
// marks a system message. On persistence failure nothing is broadcast.
func (s *MessageService) Submit(ctx context.Context, roomID uint, authorID *uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrValidation)
	}

	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
		}
		return nil, fmt.Errorf("load room %d: %w", roomID, err)
	}

	var author *models.User
	if authorID != nil {
		user, err := s.users.FindByID(ctx, *authorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: user %d", ErrNotFound, *authorID)
			}
			return nil, fmt.Errorf("load user %d: %w", *authorID, err)
		}
		author = user
	}

	msg := &models.Message{
		Content:  content,
		UserID:   authorID,
		RoomID:   roomID,
		SentAt:   time.Now().UTC(),
		IsSystem: authorID == nil,
	}

	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	msg.User = author

	frame := protocol.MustMarshal("", protocol.EventNewMessage, msg.ToResponse())
	s.broadcaster.BroadcastToRoom(roomID, frame)

	s.publishEvent(msg)

	return msg, nil
}

func (s *MessageService) publishEvent(msg *models.Message) {
	if s.producer == nil {
		return
	}
	payload := protocol.MustMarshal("", protocol.EventNewMessage, msg.ToResponse())
	go func() {
		_, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(fmt.Sprintf("room-%d", msg.RoomID)),
			Value: sarama.ByteEncoder(payload),
		})
		if err != nil {
			slog.Error("Failed to publish message event", "messageID", msg.ID, "error", err)
		}
	}()
}
