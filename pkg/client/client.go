// Package client is the Go client for the realtime chat service: a
// websocket session with request/ack correlation, push callbacks, a
// typing signal with automatic idle clear, and a per-room message view
// that reconciles optimistic sends with broadcast echoes.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"room-chat/internal/models"
	"room-chat/internal/protocol"
)

const (
	defaultRequestTimeout = 10 * time.Second

	// joinRetryDelay is how long to wait before the single automatic
	// retry of a failed joinRoom.
	joinRetryDelay = 2 * time.Second

	// typingIdleTimeout clears the typing signal after the user stops
	// typing without sending.
	typingIdleTimeout = 3 * time.Second
)

var ErrClosed = errors.New("client: connection closed")

// Handlers receive server pushes. Nil fields are skipped. Callbacks run
// on the read loop goroutine; do not block in them.
type Handlers struct {
	OnNewMessage      func(models.MessageResponse)
	OnUserJoined      func(protocol.UserJoined)
	OnUserLeft        func(protocol.UserLeft)
	OnUserStatus      func(protocol.UserStatus)
	OnTyping          func(protocol.TypingSignal)
	OnSessionReplaced func()
	OnDisconnect      func(error)
}

// Conn is one authenticated websocket session.
type Conn struct {
	ws       *websocket.Conn
	handlers Handlers
	userID   uint
	timeout  time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan protocol.Ack
	closed  bool

	typingMu     sync.Mutex
	typingTimers map[uint]*time.Timer

	done chan struct{}
}

// Dial connects and authenticates the websocket with an access token.
// The caller still has to Login to bind the session to its user.
func Dial(ctx context.Context, serverURL, token string) (*Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	c := &Conn{
		ws:           ws,
		timeout:      defaultRequestTimeout,
		pending:      make(map[string]chan protocol.Ack),
		typingTimers: make(map[uint]*time.Timer),
		done:         make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// SetHandlers installs push callbacks. Call before Login to avoid
// missing early pushes.
func (c *Conn) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// Close tears the connection down and fails all in-flight requests.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	c.typingMu.Lock()
	for roomID, t := range c.typingTimers {
		t.Stop()
		delete(c.typingTimers, roomID)
	}
	c.typingMu.Unlock()

	close(c.done)
	return c.ws.Close()
}

// Login binds this connection to the authenticated user. Any previous
// connection of the same user is evicted server-side.
func (c *Conn) Login(ctx context.Context, userID uint) (*models.UserResponse, error) {
	ack, err := c.request(ctx, protocol.EventLogin, protocol.LoginRequest{UserID: userID})
	if err != nil {
		return nil, err
	}
	var user models.UserResponse
	if err := json.Unmarshal(ack.Data, &user); err != nil {
		return nil, fmt.Errorf("decode login ack: %w", err)
	}
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
	return &user, nil
}

// Logout releases the session. The server closes the connection after
// acknowledging; reconnect with Dial to start a new session.
func (c *Conn) Logout(ctx context.Context) error {
	_, err := c.request(ctx, protocol.EventLogout, nil)
	return err
}

// JoinRoom joins a room and returns the member list plus the most
// recent history window. A transient failure is retried once after a
// fixed delay; membership is idempotent so the retry is safe even if
// the first attempt half-succeeded.
func (c *Conn) JoinRoom(ctx context.Context, roomID uint) (*protocol.JoinRoomData, error) {
	data, err := c.joinOnce(ctx, roomID)
	if err == nil {
		return data, nil
	}
	if errors.Is(err, ErrClosed) {
		return nil, err
	}
	slog.Debug("Join failed, retrying", "roomID", roomID, "error", err)

	select {
	case <-time.After(joinRetryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
	return c.joinOnce(ctx, roomID)
}

func (c *Conn) joinOnce(ctx context.Context, roomID uint) (*protocol.JoinRoomData, error) {
	ack, err := c.request(ctx, protocol.EventJoinRoom, protocol.JoinRoomRequest{
		UserID: c.boundUserID(),
		RoomID: roomID,
	})
	if err != nil {
		return nil, err
	}
	var data protocol.JoinRoomData
	if err := json.Unmarshal(ack.Data, &data); err != nil {
		return nil, fmt.Errorf("decode join ack: %w", err)
	}
	return &data, nil
}

// LeaveRoom leaves a room. Leaving a room that was never joined succeeds.
func (c *Conn) LeaveRoom(ctx context.Context, roomID uint) error {
	c.cancelTyping(roomID)
	_, err := c.request(ctx, protocol.EventLeaveRoom, protocol.LeaveRoomRequest{
		UserID: c.boundUserID(),
		RoomID: roomID,
	})
	return err
}

// SendMessage submits a message and returns the canonical persisted
// copy from the ack. Sending also clears any active typing signal.
func (c *Conn) SendMessage(ctx context.Context, roomID uint, content string) (*models.MessageResponse, error) {
	c.cancelTyping(roomID)
	ack, err := c.request(ctx, protocol.EventSendMessage, protocol.SendMessageRequest{
		Content: content,
		UserID:  c.boundUserID(),
		RoomID:  roomID,
	})
	if err != nil {
		return nil, err
	}
	var msg models.MessageResponse
	if err := json.Unmarshal(ack.Data, &msg); err != nil {
		return nil, fmt.Errorf("decode message ack: %w", err)
	}
	return &msg, nil
}

// Typing signals that the user is composing. Fire-and-forget: there is
// no ack. The signal clears itself after the idle timeout unless
// refreshed by another call.
func (c *Conn) Typing(roomID uint) error {
	if err := c.sendTyping(roomID, true); err != nil {
		return err
	}

	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	if t, ok := c.typingTimers[roomID]; ok {
		t.Reset(typingIdleTimeout)
		return nil
	}
	c.typingTimers[roomID] = time.AfterFunc(typingIdleTimeout, func() {
		c.typingMu.Lock()
		delete(c.typingTimers, roomID)
		c.typingMu.Unlock()
		if err := c.sendTyping(roomID, false); err != nil {
			slog.Debug("Failed to clear typing signal", "roomID", roomID, "error", err)
		}
	})
	return nil
}

// StopTyping clears the typing signal immediately.
func (c *Conn) StopTyping(roomID uint) error {
	if !c.cancelTyping(roomID) {
		return nil
	}
	return c.sendTyping(roomID, false)
}

// cancelTyping stops the idle timer; reports whether one was active.
func (c *Conn) cancelTyping(roomID uint) bool {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	t, ok := c.typingTimers[roomID]
	if !ok {
		return false
	}
	t.Stop()
	delete(c.typingTimers, roomID)
	return true
}

func (c *Conn) sendTyping(roomID uint, isTyping bool) error {
	frame, err := protocol.Marshal("", protocol.EventTyping, protocol.TypingSignal{
		UserID:   c.boundUserID(),
		RoomID:   roomID,
		IsTyping: isTyping,
	})
	if err != nil {
		return err
	}
	return c.write(frame)
}

func (c *Conn) boundUserID() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// request sends one acknowledged event and waits for the correlated ack.
func (c *Conn) request(ctx context.Context, eventType protocol.EventType, payload interface{}) (*protocol.Ack, error) {
	id := uuid.New().String()
	frame, err := protocol.Marshal(id, eventType, payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan protocol.Ack, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(frame); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case ack, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if !ack.Success {
			return nil, fmt.Errorf("%s rejected: %s", eventType, ack.Message)
		}
		return &ack, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s: ack timeout", eventType)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Conn) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Conn) readLoop() {
	var readErr error
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}

		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Debug("Dropping malformed frame", "error", err)
			continue
		}
		c.handleFrame(env)
	}

	c.mu.Lock()
	alreadyClosed := c.closed
	handlers := c.handlers
	c.mu.Unlock()
	_ = c.Close()

	if !alreadyClosed && handlers.OnDisconnect != nil {
		handlers.OnDisconnect(readErr)
	}
}

func (c *Conn) handleFrame(env protocol.Envelope) {
	c.mu.Lock()
	handlers := c.handlers
	c.mu.Unlock()

	switch env.Type {
	case protocol.EventAck:
		var ack protocol.Ack
		if err := json.Unmarshal(env.Data, &ack); err != nil {
			slog.Debug("Dropping malformed ack", "error", err)
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		if ok {
			delete(c.pending, env.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- ack
		}

	case protocol.EventNewMessage:
		if handlers.OnNewMessage == nil {
			return
		}
		var msg models.MessageResponse
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		handlers.OnNewMessage(msg)

	case protocol.EventUserJoined:
		if handlers.OnUserJoined == nil {
			return
		}
		var p protocol.UserJoined
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		handlers.OnUserJoined(p)

	case protocol.EventUserLeft:
		if handlers.OnUserLeft == nil {
			return
		}
		var p protocol.UserLeft
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		handlers.OnUserLeft(p)

	case protocol.EventUserStatus:
		if handlers.OnUserStatus == nil {
			return
		}
		var p protocol.UserStatus
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		handlers.OnUserStatus(p)

	case protocol.EventTyping:
		if handlers.OnTyping == nil {
			return
		}
		var p protocol.TypingSignal
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		handlers.OnTyping(p)

	case protocol.EventSessionReplaced:
		if handlers.OnSessionReplaced != nil {
			handlers.OnSessionReplaced()
		}

	default:
		slog.Debug("Ignoring unknown push", "type", env.Type)
	}
}
