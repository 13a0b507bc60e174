package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"room-chat/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// ErrClientDisconnected reports a send against a connection that is gone.
var ErrClientDisconnected = errors.New("client disconnected")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS layer in front of the upgrade
		return true
	},
}

// Handler receives decoded inbound frames from client read pumps.
type Handler interface {
	Dispatch(c *Client, env protocol.Envelope)
}

// Client is the middleman between one websocket connection and the hub.
// authUserID is the identity proven at upgrade time; userID is zero until an
// explicit login binds the connection.
type Client struct {
	id         string
	hub        *Hub
	handler    Handler
	conn       *websocket.Conn
	send       chan []byte
	authUserID uint
	userID     atomic.Uint64
	closed     atomic.Bool

	// sendMu orders sends against the close of the send channel, so a
	// concurrent Send can never hit an already-closed channel.
	sendMu     sync.Mutex
	sendClosed bool
}

func NewClient(h *Hub, handler Handler, conn *websocket.Conn, authUserID uint) *Client {
	return &Client{
		id:         uuid.New().String(),
		hub:        h,
		handler:    handler,
		conn:       conn,
		send:       make(chan []byte, 256),
		authUserID: authUserID,
	}
}

func (c *Client) ID() string {
	return c.id
}

// AuthUserID is the identity carried by the connection's token.
func (c *Client) AuthUserID() uint {
	return c.authUserID
}

// UserID is the bound identity, zero before login.
func (c *Client) UserID() uint {
	return uint(c.userID.Load())
}

func (c *Client) bind(userID uint) {
	c.userID.Store(uint64(userID))
}

// Send queues a frame for delivery. Never blocks: a full buffer means the
// peer stopped reading, so the connection is torn down instead.
func (c *Client) Send(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed.Load() || c.sendClosed {
		return ErrClientDisconnected
	}
	select {
	case c.send <- data:
		return nil
	default:
		slog.Warn("Send buffer full, closing client", "clientID", c.id, "userID", c.UserID())
		c.sendClosed = true
		close(c.send)
		return ErrClientDisconnected
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.closed.Store(true)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "clientID", c.id, "userID", c.UserID(), "error", err)
			} else {
				slog.Debug("WebSocket connection closed", "clientID", c.id, "userID", c.UserID())
			}
			break
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("Failed to decode frame", "clientID", c.id, "error", err)
			c.Send(protocol.NewErrorAck("", "invalid frame"))
			continue
		}
		if err := env.Validate(); err != nil {
			c.Send(protocol.NewErrorAck(env.ID, err.Error()))
			continue
		}

		// Each inbound event runs as its own short task so a handler that
		// awaits storage never blocks this connection's read loop or the
		// other connections.
		go c.handler.Dispatch(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Write failed", "clientID", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades an authenticated HTTP request and starts the client's
// pumps. authUserID comes from the validated token on the upgrade request.
func ServeWS(h *Hub, handler Handler, w http.ResponseWriter, r *http.Request, authUserID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "userID", authUserID, "error", err)
		return
	}

	client := NewClient(h, handler, conn, authUserID)
	h.Register(client)
	slog.Info("WebSocket connection established", "clientID", client.id, "authUserID", authUserID)

	go client.writePump()
	go client.readPump()
}
