package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"room-chat/internal/models"
	"room-chat/internal/protocol"
	"room-chat/internal/repositories/postgres"

	"gorm.io/gorm"
)

// RoomService is the membership manager. It owns the transition between
// persisted membership (the storage collaborator) and the live broadcast
// group (the hub), and announces joins and leaves to the rest of the room.
type RoomService struct {
	rooms *postgres.RoomRepository
	users *postgres.UserRepository

	broadcaster Broadcaster
	messages    *MessageService
	history     *HistoryService
}

func NewRoomService(
	rooms *postgres.RoomRepository,
	users *postgres.UserRepository,
	broadcaster Broadcaster,
	messages *MessageService,
	history *HistoryService,
) *RoomService {
	return &RoomService{
		rooms:       rooms,
		users:       users,
		broadcaster: broadcaster,
		messages:    messages,
		history:     history,
	}
}

// Join makes a user a member of a room. Idempotent: a second join returns
// the current snapshot without re-announcing or creating another system
// message. A fresh join persists the membership, adds the connection to the
// broadcast group, announces the newcomer to the existing members only, and
// broadcasts a persisted "X joined" system message to the whole room.
func (s *RoomService) Join(ctx context.Context, roomID, userID uint) (*protocol.JoinRoomData, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.broadcaster.IsMember(roomID, userID) {
		return s.snapshot(ctx, room)
	}

	if err := s.rooms.AddMember(ctx, roomID, userID); err != nil {
		return nil, fmt.Errorf("persist membership: %w", err)
	}
	if !s.broadcaster.JoinRoom(roomID, userID) {
		return nil, fmt.Errorf("%w: user %d has no live connection", ErrUnauthorized, userID)
	}

	joined := protocol.MustMarshal("", protocol.EventUserJoined, protocol.UserJoined{
		UserID: userID,
		RoomID: roomID,
		User:   user.ToResponse(),
	})
	s.broadcaster.BroadcastToRoomExcept(roomID, userID, joined)

	if _, err := s.messages.Submit(ctx, roomID, nil, fmt.Sprintf("%s joined the room", user.Name())); err != nil {
		slog.Error("Failed to create join notice", "roomID", roomID, "userID", userID, "error", err)
	}

	// Reload so the snapshot includes the newcomer.
	room, err = s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, room)
}

// Leave removes a user from a room. Success no-op when not a member; the
// remaining members receive a userLeft event plus a system message.
func (s *RoomService) Leave(ctx context.Context, roomID, userID uint) error {
	if _, err := s.loadRoom(ctx, roomID); err != nil {
		return err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	wasMember := s.broadcaster.IsMember(roomID, userID)

	if err := s.rooms.RemoveMember(ctx, roomID, userID); err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	s.broadcaster.LeaveRoom(roomID, userID)

	if !wasMember {
		return nil
	}

	left := protocol.MustMarshal("", protocol.EventUserLeft, protocol.UserLeft{
		UserID: userID,
		RoomID: roomID,
	})
	s.broadcaster.BroadcastToRoom(roomID, left)

	if _, err := s.messages.Submit(ctx, roomID, nil, fmt.Sprintf("%s left the room", user.Name())); err != nil {
		slog.Error("Failed to create leave notice", "roomID", roomID, "userID", userID, "error", err)
	}
	return nil
}

// Members returns the live membership snapshot for a room.
func (s *RoomService) Members(roomID uint) []uint {
	return s.broadcaster.Members(roomID)
}

// HandleDisconnect drops a vanished connection from every broadcast group
// it was in and tells the remaining members. Persisted membership is left
// untouched so a reconnect+rejoin is idempotent.
func (s *RoomService) HandleDisconnect(userID uint, roomIDs []uint) {
	for _, roomID := range roomIDs {
		left := protocol.MustMarshal("", protocol.EventUserLeft, protocol.UserLeft{
			UserID: userID,
			RoomID: roomID,
		})
		s.broadcaster.BroadcastToRoom(roomID, left)
	}
}

func (s *RoomService) snapshot(ctx context.Context, room *models.Room) (*protocol.JoinRoomData, error) {
	page, err := s.history.FetchWindow(ctx, room.ID, WindowOptions{Limit: defaultWindowSize})
	if err != nil {
		return nil, err
	}
	users := make([]models.UserResponse, 0, len(room.Users))
	for _, u := range room.Users {
		resp := u.ToResponse()
		resp.Email = ""
		users = append(users, resp)
	}
	return &protocol.JoinRoomData{
		RoomID:   room.ID,
		Users:    users,
		Messages: page.Messages,
	}, nil
}

func (s *RoomService) loadRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
		}
		return nil, fmt.Errorf("load room %d: %w", roomID, err)
	}
	return room, nil
}

func (s *RoomService) loadUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user, nil
}
