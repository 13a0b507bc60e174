package hub

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Hub owns the live view of the realtime layer: which users hold a
// connection and which connections belong to each room's broadcast group.
// Client lifecycle flows through the register/unregister channels and is
// applied by the single Run loop; lookups and group changes from dispatcher
// goroutines go through the read-write mutex.
type Hub struct {
	// Registered clients, bound or not
	clients map[*Client]bool

	// Connection registry: one live connection per user
	users map[uint]*Client

	// Broadcast groups: room id -> user id -> connection
	rooms map[uint]map[uint]*Client

	register   chan *Client
	unregister chan *Client

	// Invoked after a bound client is removed, with the rooms it was in.
	// Set once during wiring, before Run.
	onDisconnect func(userID uint, roomIDs []uint)

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.RWMutex
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		users:      make(map[uint]*Client),
		rooms:      make(map[uint]map[uint]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnDisconnect registers the callback fired when a bound client drops.
// Abrupt transport loss and explicit logout land here identically.
func (h *Hub) OnDisconnect(fn func(userID uint, roomIDs []uint)) {
	h.onDisconnect = fn
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Debug("Client registered", "clientID", client.ID())

		case client := <-h.unregister:
			h.removeClient(client)

		case <-h.ctx.Done():
			slog.Info("Hub shutting down")
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// Register queues a freshly upgraded connection. Identity is bound later by
// an explicit login request.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-time.After(5 * time.Second):
		slog.Warn("Timeout registering client", "clientID", client.ID())
		client.closeSend()
	}
}

// Unregister removes a connection; safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)

	userID := client.UserID()
	var roomIDs []uint
	if userID != 0 {
		if h.users[userID] == client {
			delete(h.users, userID)
		}
		for roomID, members := range h.rooms {
			if members[userID] == client {
				delete(members, userID)
				if len(members) == 0 {
					delete(h.rooms, roomID)
				}
				roomIDs = append(roomIDs, roomID)
			}
		}
	}
	h.mu.Unlock()

	client.closeSend()
	slog.Debug("Client unregistered", "clientID", client.ID(), "userID", userID)

	if userID != 0 && h.onDisconnect != nil {
		h.onDisconnect(userID, roomIDs)
	}
}

// BindUser attaches a user identity to a connection, enforcing the single
// active session policy. The previous connection for that user, if any, is
// returned so the caller can notify it before it is torn down.
func (h *Hub) BindUser(client *Client, userID uint) (evicted *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.users[userID]; ok && prev != client {
		evicted = prev
	}
	h.users[userID] = client
	client.bind(userID)
	return evicted
}

// Evict detaches a replaced session from the registry and its rooms without
// firing the disconnect callback: the user is still online on the new
// connection.
func (h *Hub) Evict(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	userID := client.UserID()
	// On logout this entry still points here and must go; on session
	// replacement it already points at the new connection and stays.
	if h.users[userID] == client {
		delete(h.users, userID)
	}
	for roomID, members := range h.rooms {
		if members[userID] == client {
			delete(members, userID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()
	client.closeSend()
}

// UserClient resolves the live connection for a user, if one exists.
func (h *Hub) UserClient(userID uint) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.users[userID]
	return c, ok
}

// JoinRoom adds a user's live connection to the room's broadcast group.
// Reports false when the user has no connection.
func (h *Hub) JoinRoom(roomID, userID uint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.users[userID]
	if !ok {
		return false
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[uint]*Client)
		h.rooms[roomID] = members
	}
	members[userID] = client
	return true
}

func (h *Hub) LeaveRoom(roomID, userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) IsMember(roomID, userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][userID]
	return ok
}

// Members returns the live membership snapshot, sorted for stable output.
func (h *Hub) Members(roomID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]uint, 0, len(h.rooms[roomID]))
	for userID := range h.rooms[roomID] {
		ids = append(ids, userID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RoomsOf returns the rooms a user's connection currently belongs to.
func (h *Hub) RoomsOf(userID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ids []uint
	for roomID, members := range h.rooms {
		if _, ok := members[userID]; ok {
			ids = append(ids, roomID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BroadcastToRoom fans a frame out to every connection in the room's group,
// the sender's own included. Delivery is fire-and-forget per recipient: a
// dead connection is skipped without failing the rest of the fan-out.
func (h *Hub) BroadcastToRoom(roomID uint, data []byte) {
	h.broadcastRoom(roomID, 0, data)
}

// BroadcastToRoomExcept fans out to all group members except one user,
// used for presence and typing events that the originator must not receive.
func (h *Hub) BroadcastToRoomExcept(roomID, exceptUserID uint, data []byte) {
	h.broadcastRoom(roomID, exceptUserID, data)
}

func (h *Hub) broadcastRoom(roomID, exceptUserID uint, data []byte) {
	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.rooms[roomID]))
	for userID, client := range h.rooms[roomID] {
		if exceptUserID != 0 && userID == exceptUserID {
			continue
		}
		recipients = append(recipients, client)
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		if err := client.Send(data); err != nil {
			slog.Debug("Dropped frame for dead recipient", "clientID", client.ID(), "roomID", roomID)
		}
	}
}

// BroadcastAll sends a frame to every bound connection, used for global
// online/offline status.
func (h *Hub) BroadcastAll(data []byte) {
	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.users))
	for _, client := range h.users {
		recipients = append(recipients, client)
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		if err := client.Send(data); err != nil {
			slog.Debug("Dropped status frame for dead recipient", "clientID", client.ID())
		}
	}
}
