package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"room-chat/internal/database"
	"room-chat/internal/models"
	"room-chat/internal/repositories/postgres"
)

// recordingBroadcaster is an in-memory Broadcaster that tracks membership
// like the hub and records every frame in publish order.
type recordingBroadcaster struct {
	mu      sync.Mutex
	members map[uint]map[uint]bool
	frames  map[uint][][]byte // roomID -> frames
	global  [][]byte
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{
		members: make(map[uint]map[uint]bool),
		frames:  make(map[uint][][]byte),
	}
}

func (b *recordingBroadcaster) JoinRoom(roomID, userID uint) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.members[roomID] == nil {
		b.members[roomID] = make(map[uint]bool)
	}
	b.members[roomID][userID] = true
	return true
}

func (b *recordingBroadcaster) LeaveRoom(roomID, userID uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members[roomID], userID)
}

func (b *recordingBroadcaster) IsMember(roomID, userID uint) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.members[roomID][userID]
}

func (b *recordingBroadcaster) Members(roomID uint) []uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []uint
	for id := range b.members[roomID] {
		ids = append(ids, id)
	}
	return ids
}

func (b *recordingBroadcaster) RoomsOf(userID uint) []uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []uint
	for roomID, members := range b.members {
		if members[userID] {
			ids = append(ids, roomID)
		}
	}
	return ids
}

func (b *recordingBroadcaster) BroadcastToRoom(roomID uint, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames[roomID] = append(b.frames[roomID], data)
}

func (b *recordingBroadcaster) BroadcastToRoomExcept(roomID, _ uint, data []byte) {
	b.BroadcastToRoom(roomID, data)
}

func (b *recordingBroadcaster) BroadcastAll(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, data)
}

func (b *recordingBroadcaster) roomFrames(roomID uint) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.frames[roomID]))
	copy(out, b.frames[roomID])
	return out
}

type env struct {
	db        *gorm.DB
	users     *postgres.UserRepository
	rooms     *postgres.RoomRepository
	messages  *postgres.MessageRepository
	broadcast *recordingBroadcaster
	service   *MessageService
	history   *HistoryService
	roomSvc   *RoomService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection keeps sqlite serialized under concurrent tests.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	users := postgres.NewUserRepository(db)
	rooms := postgres.NewRoomRepository(db)
	messages := postgres.NewMessageRepository(db)
	broadcast := newRecordingBroadcaster()
	service := NewMessageService(messages, rooms, users, broadcast)
	history := NewHistoryService(messages, rooms)
	roomSvc := NewRoomService(rooms, users, broadcast, service, history)

	return &env{
		db:        db,
		users:     users,
		rooms:     rooms,
		messages:  messages,
		broadcast: broadcast,
		service:   service,
		history:   history,
		roomSvc:   roomSvc,
	}
}

func (e *env) seedUser(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:    username,
		DisplayName: username,
		Email:       username + "@example.com",
		Password:    "x",
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *env) seedRoom(t *testing.T, name string) *models.Room {
	t.Helper()
	r := &models.Room{Name: name}
	require.NoError(t, e.rooms.Create(context.Background(), r))
	return r
}
