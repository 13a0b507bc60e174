package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/models"
)

func pageIDs(page *models.MessagePage) []uint {
	ids := make([]uint, 0, len(page.Messages))
	for _, m := range page.Messages {
		ids = append(ids, m.ID)
	}
	return ids
}

// seedMessages persists n user messages and returns their ids in order.
func seedMessages(t *testing.T, e *env, roomID, authorID uint, n int) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		msg, err := e.service.Submit(context.Background(), roomID, &authorID, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	return ids
}

func TestFetchWindowReturnsNewestAscending(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")
	ids := seedMessages(t, e, room.ID, alice.ID, 10)

	page, err := e.history.FetchWindow(context.Background(), room.ID, WindowOptions{Limit: 4})
	require.NoError(t, err)

	require.Len(t, page.Messages, 4)
	assert.True(t, page.HasMore)
	// The newest four, oldest first.
	for i, m := range page.Messages {
		assert.Equal(t, ids[6+i], m.ID)
	}
}

func TestFetchWindowCursorWalksBackwards(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")
	ids := seedMessages(t, e, room.ID, alice.ID, 10)

	var got []uint
	cursor := uint(0)
	for {
		page, err := e.history.FetchWindow(context.Background(), room.ID, WindowOptions{Limit: 3, BeforeID: cursor})
		require.NoError(t, err)
		require.NotEmpty(t, page.Messages)

		for _, m := range page.Messages {
			if cursor != 0 {
				assert.Less(t, m.ID, cursor, "window must be strictly older than the cursor")
			}
		}
		got = append(pageIDs(page), got...)
		cursor = page.Messages[0].ID
		if !page.HasMore {
			break
		}
	}

	assert.Equal(t, ids, got, "walking every page backwards reassembles the full history exactly once")
}

func TestFetchWindowHasMoreIsExact(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")
	seedMessages(t, e, room.ID, alice.ID, 5)

	// Window equal to the room's total: nothing older remains.
	page, err := e.history.FetchWindow(context.Background(), room.ID, WindowOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, page.Messages, 5)
	assert.False(t, page.HasMore, "a full window with nothing beyond it must not claim more")

	// One less than the total: exactly one older message remains.
	page, err = e.history.FetchWindow(context.Background(), room.ID, WindowOptions{Limit: 4})
	require.NoError(t, err)
	require.Len(t, page.Messages, 4)
	assert.True(t, page.HasMore)
}

func TestFetchWindowEmptyRoom(t *testing.T) {
	e := newEnv(t)
	room := e.seedRoom(t, "general")

	page, err := e.history.FetchWindow(context.Background(), room.ID, WindowOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)
}

func TestFetchWindowUnknownRoom(t *testing.T) {
	e := newEnv(t)
	_, err := e.history.FetchWindow(context.Background(), 999, WindowOptions{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetchWindowClampsLimit(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")
	seedMessages(t, e, room.ID, alice.ID, maxWindowSize+10)

	page, err := e.history.FetchWindow(context.Background(), room.ID, WindowOptions{Limit: 10_000})
	require.NoError(t, err)
	assert.Len(t, page.Messages, maxWindowSize)
	assert.True(t, page.HasMore)
}

func TestFetchWindowExcludesSystemMessages(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")

	_, err := e.service.Submit(context.Background(), room.ID, nil, "alice joined the room")
	require.NoError(t, err)
	seedMessages(t, e, room.ID, alice.ID, 2)

	page, err := e.history.FetchWindow(context.Background(), room.ID, WindowOptions{ExcludeSystem: true})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	for _, m := range page.Messages {
		assert.False(t, m.IsSystem)
	}
}

func TestFetchWindowTimestampFallback(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")
	seedMessages(t, e, room.ID, alice.ID, 3)

	// A cursor in the future returns everything; one in the past, nothing.
	future := time.Now().UTC().Add(time.Hour)
	page, err := e.history.FetchWindow(context.Background(), room.ID, WindowOptions{Before: &future})
	require.NoError(t, err)
	assert.Len(t, page.Messages, 3)

	past := time.Now().UTC().Add(-time.Hour)
	page, err = e.history.FetchWindow(context.Background(), room.ID, WindowOptions{Before: &past})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
}

func TestFetchWindowIDCursorWinsOverTimestamp(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice")
	room := e.seedRoom(t, "general")
	ids := seedMessages(t, e, room.ID, alice.ID, 3)

	// A stale timestamp that would select nothing must lose to the id cursor.
	past := time.Now().UTC().Add(-time.Hour)
	page, err := e.history.FetchWindow(context.Background(), room.ID, WindowOptions{
		BeforeID: ids[2],
		Before:   &past,
	})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, ids[0], page.Messages[0].ID)
	assert.Equal(t, ids[1], page.Messages[1].ID)
}
