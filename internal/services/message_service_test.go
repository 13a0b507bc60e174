package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/models"
	"room-chat/internal/protocol"
)

func decodeBroadcast(t *testing.T, frame []byte) models.MessageResponse {
	t.Helper()
	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	require.Equal(t, protocol.EventNewMessage, env.Type)
	var msg models.MessageResponse
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	return msg
}

func TestSubmitPersistsAndBroadcasts(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")

	msg, err := e.service.Submit(context.Background(), room.ID, &alice.ID, "  hello  ")
	require.NoError(t, err)

	assert.NotZero(t, msg.ID)
	assert.Equal(t, "hello", msg.Content, "content is trimmed before persisting")
	assert.False(t, msg.IsSystem)
	require.NotNil(t, msg.User)

	frames := e.broadcast.roomFrames(room.ID)
	require.Len(t, frames, 1)
	got := decodeBroadcast(t, frames[0])
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "hello", got.Content)
	require.NotNil(t, got.User)
	assert.Empty(t, got.User.Email, "author email never rides the wire")

	stored, err := e.messages.FindByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Content)
}

func TestSubmitSystemMessage(t *testing.T) {
	e := newEnv(t)
	room := e.seedRoom(t, "general")

	msg, err := e.service.Submit(context.Background(), room.ID, nil, "alice joined the room")
	require.NoError(t, err)

	assert.True(t, msg.IsSystem)
	assert.Nil(t, msg.UserID)
	got := decodeBroadcast(t, e.broadcast.roomFrames(room.ID)[0])
	assert.True(t, got.IsSystem)
	assert.Nil(t, got.User)
}

func TestSubmitRejectsBlankContent(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")

	_, err := e.service.Submit(context.Background(), room.ID, &alice.ID, "   \n\t ")
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, e.broadcast.roomFrames(room.ID), "nothing is broadcast on failure")
}

func TestSubmitUnknownRoom(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")

	_, err := e.service.Submit(context.Background(), 999, &alice.ID, "hello")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitUnknownAuthor(t *testing.T) {
	e := newEnv(t)
	room := e.seedRoom(t, "general")
	ghost := uint(999)

	_, err := e.service.Submit(context.Background(), room.ID, &ghost, "hello")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, e.broadcast.roomFrames(room.ID))
}

// Concurrent senders in one room must observe broadcasts in id order:
// within a room, delivery order and id order are the same thing.
func TestConcurrentSubmitsBroadcastInIDOrder(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := e.service.Submit(context.Background(), room.ID, &alice.ID, "msg")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	frames := e.broadcast.roomFrames(room.ID)
	require.Len(t, frames, n)

	var prev uint
	for _, frame := range frames {
		msg := decodeBroadcast(t, frame)
		assert.Greater(t, msg.ID, prev, "ids must be strictly increasing in delivery order")
		prev = msg.ID
	}
}
