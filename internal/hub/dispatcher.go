package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"room-chat/internal/protocol"
	"room-chat/internal/repositories/postgres"
	"room-chat/internal/services"

	"gorm.io/gorm"
)

const dispatchTimeout = 10 * time.Second

// Presence mirrors online/offline state somewhere outside this process.
type Presence interface {
	SetUserOnline(ctx context.Context, userID uint) error
	SetUserOffline(ctx context.Context, userID uint) error
}

// Dispatcher turns inbound wire events into service calls and acks.
// Handler-local failures become {success:false, reason} replies and never
// take down the connection or the process.
type Dispatcher struct {
	hub      *Hub
	rooms    *services.RoomService
	messages *services.MessageService
	users    *postgres.UserRepository
	presence Presence
}

func NewDispatcher(
	h *Hub,
	rooms *services.RoomService,
	messages *services.MessageService,
	users *postgres.UserRepository,
	presence Presence,
) *Dispatcher {
	d := &Dispatcher{
		hub:      h,
		rooms:    rooms,
		messages: messages,
		users:    users,
		presence: presence,
	}
	h.OnDisconnect(d.handleDisconnect)
	return d
}

// Dispatch handles one inbound frame. Runs on its own goroutine per event;
// panics are contained so a bad frame cannot crash the process.
func (d *Dispatcher) Dispatch(c *Client, env protocol.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from handler panic", "type", env.Type, "clientID", c.ID(), "panic", r)
			c.Send(protocol.NewErrorAck(env.ID, "internal error"))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	switch env.Type {
	case protocol.EventLogin:
		d.handleLogin(ctx, c, env)
	case protocol.EventLogout:
		d.handleLogout(ctx, c, env)
	case protocol.EventJoinRoom:
		d.handleJoinRoom(ctx, c, env)
	case protocol.EventLeaveRoom:
		d.handleLeaveRoom(ctx, c, env)
	case protocol.EventSendMessage:
		d.handleSendMessage(ctx, c, env)
	case protocol.EventTyping:
		d.handleTyping(c, env)
	default:
		c.Send(protocol.NewErrorAck(env.ID, "unsupported request type"))
	}
}

func (d *Dispatcher) handleLogin(ctx context.Context, c *Client, env protocol.Envelope) {
	var req protocol.LoginRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.UserID == 0 {
		c.Send(protocol.NewErrorAck(env.ID, "malformed login request"))
		return
	}
	if req.UserID != c.AuthUserID() {
		c.Send(protocol.NewErrorAck(env.ID, "user does not match credentials"))
		return
	}

	user, err := d.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.Send(protocol.NewErrorAck(env.ID, "user not found"))
		} else {
			slog.Error("Login lookup failed", "userID", req.UserID, "error", err)
			c.Send(protocol.NewErrorAck(env.ID, "login failed"))
		}
		return
	}

	// Single active session: a re-login from elsewhere replaces this
	// user's previous connection, which is told why before teardown.
	if evicted := d.hub.BindUser(c, req.UserID); evicted != nil {
		evicted.Send(protocol.MustMarshal("", protocol.EventSessionReplaced, nil))
		d.hub.Evict(evicted)
	}

	if err := d.users.SetOnline(ctx, req.UserID, true); err != nil {
		slog.Error("Failed to persist online flag", "userID", req.UserID, "error", err)
	}
	if err := d.presence.SetUserOnline(ctx, req.UserID); err != nil {
		slog.Error("Failed to mirror online presence", "userID", req.UserID, "error", err)
	}

	d.hub.BroadcastAll(protocol.MustMarshal("", protocol.EventUserStatus, protocol.UserStatus{
		UserID:   req.UserID,
		IsOnline: true,
	}))

	d.ack(c, env.ID, user.ToResponse())
}

func (d *Dispatcher) handleLogout(ctx context.Context, c *Client, env protocol.Envelope) {
	userID := c.UserID()
	if userID == 0 {
		c.Send(protocol.NewErrorAck(env.ID, "not logged in"))
		return
	}

	roomIDs := d.hub.RoomsOf(userID)
	d.ack(c, env.ID, nil)
	d.hub.Evict(c)
	d.goOffline(ctx, userID, roomIDs)
}

func (d *Dispatcher) handleJoinRoom(ctx context.Context, c *Client, env protocol.Envelope) {
	var req protocol.JoinRoomRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.RoomID == 0 {
		c.Send(protocol.NewErrorAck(env.ID, "malformed join request"))
		return
	}
	if !d.requireBound(c, env.ID, req.UserID) {
		return
	}

	snapshot, err := d.rooms.Join(ctx, req.RoomID, req.UserID)
	if err != nil {
		c.Send(protocol.NewErrorAck(env.ID, reason(err)))
		return
	}
	d.ack(c, env.ID, snapshot)
}

func (d *Dispatcher) handleLeaveRoom(ctx context.Context, c *Client, env protocol.Envelope) {
	var req protocol.LeaveRoomRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.RoomID == 0 {
		c.Send(protocol.NewErrorAck(env.ID, "malformed leave request"))
		return
	}
	if !d.requireBound(c, env.ID, req.UserID) {
		return
	}

	if err := d.rooms.Leave(ctx, req.RoomID, req.UserID); err != nil {
		c.Send(protocol.NewErrorAck(env.ID, reason(err)))
		return
	}
	d.ack(c, env.ID, nil)
}

func (d *Dispatcher) handleSendMessage(ctx context.Context, c *Client, env protocol.Envelope) {
	var req protocol.SendMessageRequest
	if err := json.Unmarshal(env.Data, &req); err != nil || req.RoomID == 0 {
		c.Send(protocol.NewErrorAck(env.ID, "malformed send request"))
		return
	}
	if !d.requireBound(c, env.ID, req.UserID) {
		return
	}

	authorID := req.UserID
	msg, err := d.messages.Submit(ctx, req.RoomID, &authorID, req.Content)
	if err != nil {
		c.Send(protocol.NewErrorAck(env.ID, reason(err)))
		return
	}
	// The canonical message rides the ack as well as the broadcast: the
	// sender needs the id now, without racing its own echo.
	d.ack(c, env.ID, msg.ToResponse())
}

func (d *Dispatcher) handleTyping(c *Client, env protocol.Envelope) {
	var sig protocol.TypingSignal
	if err := json.Unmarshal(env.Data, &sig); err != nil || sig.RoomID == 0 {
		return
	}
	userID := c.UserID()
	if userID == 0 || sig.UserID != userID {
		return
	}
	if !d.hub.IsMember(sig.RoomID, userID) {
		return
	}
	// Ephemeral: no persistence, no ack, and the sender is excluded.
	d.hub.BroadcastToRoomExcept(sig.RoomID, userID, protocol.MustMarshal("", protocol.EventTyping, sig))
}

// handleDisconnect runs for abrupt transport loss and is the same path as
// explicit logout for presence purposes.
func (d *Dispatcher) handleDisconnect(userID uint, roomIDs []uint) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	d.goOffline(ctx, userID, roomIDs)
}

func (d *Dispatcher) goOffline(ctx context.Context, userID uint, roomIDs []uint) {
	d.rooms.HandleDisconnect(userID, roomIDs)

	if err := d.users.SetOnline(ctx, userID, false); err != nil {
		slog.Error("Failed to persist offline flag", "userID", userID, "error", err)
	}
	if err := d.presence.SetUserOffline(ctx, userID); err != nil {
		slog.Error("Failed to mirror offline presence", "userID", userID, "error", err)
	}

	d.hub.BroadcastAll(protocol.MustMarshal("", protocol.EventUserStatus, protocol.UserStatus{
		UserID:   userID,
		IsOnline: false,
	}))
}

func (d *Dispatcher) requireBound(c *Client, requestID string, claimedUserID uint) bool {
	userID := c.UserID()
	if userID == 0 {
		c.Send(protocol.NewErrorAck(requestID, "login required"))
		return false
	}
	if claimedUserID != userID {
		c.Send(protocol.NewErrorAck(requestID, "user does not match session"))
		return false
	}
	return true
}

func (d *Dispatcher) ack(c *Client, requestID string, data interface{}) {
	frame, err := protocol.NewAck(requestID, data)
	if err != nil {
		slog.Error("Failed to encode ack", "error", err)
		c.Send(protocol.NewErrorAck(requestID, "internal error"))
		return
	}
	c.Send(frame)
}

func reason(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "not found"
	case errors.Is(err, services.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, services.ErrValidation):
		return "invalid request"
	default:
		slog.Error("Request failed", "error", err)
		return "request failed"
	}
}
