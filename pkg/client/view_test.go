package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/models"
)

func msg(id uint, content string) models.MessageResponse {
	return models.MessageResponse{ID: id, Content: content, RoomID: 1, SentAt: time.Now()}
}

func page(hasMore bool, msgs ...models.MessageResponse) models.MessagePage {
	return models.MessagePage{Messages: msgs, HasMore: hasMore}
}

func entryIDs(v *View) []uint {
	var ids []uint
	for _, e := range v.Entries() {
		ids = append(ids, e.Message.ID)
	}
	return ids
}

func TestLoadInitialScrollsToBottom(t *testing.T) {
	v := NewView(200, nil)
	v.LoadInitial(page(true, msg(10, "a"), msg(11, "b"), msg(12, "c")))

	assert.Equal(t, []uint{10, 11, 12}, entryIDs(v))
	assert.True(t, v.HasMore())
	assert.True(t, v.NearBottom())
	assert.Equal(t, uint(12), v.LastReadID())
}

func TestAddIfAbsentDeduplicatesByID(t *testing.T) {
	v := NewView(200, nil)
	v.LoadInitial(page(false, msg(10, "a")))

	assert.True(t, v.AddIfAbsent(msg(11, "b")))
	assert.False(t, v.AddIfAbsent(msg(11, "b")), "a replayed broadcast must not duplicate the row")
	assert.False(t, v.AddIfAbsent(msg(10, "a")))
	assert.Equal(t, []uint{10, 11}, entryIDs(v))
}

func TestAddIfAbsentFollowsWhenNearBottom(t *testing.T) {
	v := NewView(200, nil)
	v.LoadInitial(page(false, msg(1, "a")))

	v.AddIfAbsent(msg(2, "b"))

	assert.True(t, v.NearBottom())
	assert.False(t, v.HasNewMessages())
	assert.Equal(t, uint(2), v.LastReadID())
}

// Scrolled far up, an arriving message must not move the viewport; it is
// flagged as unseen instead, until the user returns to the bottom.
func TestAddIfAbsentWhileScrolledUpFlagsUnseen(t *testing.T) {
	v := NewView(200, nil)
	msgs := make([]models.MessageResponse, 0, 50)
	for i := uint(1); i <= 50; i++ {
		msgs = append(msgs, msg(i, "m"))
	}
	v.LoadInitial(page(false, msgs...))
	v.SetScrollTop(0)

	before := v.ScrollTop()
	v.AddIfAbsent(msg(51, "new"))

	assert.Equal(t, before, v.ScrollTop(), "viewport must not move")
	assert.True(t, v.HasNewMessages())
	assert.Equal(t, uint(50), v.LastReadID(), "the unseen message is not read yet")

	v.ScrollToBottom()
	assert.False(t, v.HasNewMessages())
	assert.Equal(t, uint(51), v.LastReadID())
}

func TestOptimisticConfirmFlow(t *testing.T) {
	v := NewView(200, nil)
	v.LoadInitial(page(false, msg(10, "a")))
	author := &models.UserResponse{ID: 7, Username: "alice"}

	tempID := v.SubmitOptimistic("hello", author, 1)
	entries := v.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, StatusPending, entries[1].Status)
	assert.Zero(t, entries[1].Message.ID)

	require.NoError(t, v.Confirm(tempID, msg(11, "hello")))
	entries = v.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, StatusConfirmed, entries[1].Status)
	assert.Equal(t, uint(11), entries[1].Message.ID)
	assert.Equal(t, tempID, entries[1].TempID, "row identity survives confirmation")

	// Exactly once: a second resolution is refused.
	assert.ErrorIs(t, v.Confirm(tempID, msg(11, "hello")), ErrNotPending)
	assert.ErrorIs(t, v.Fail(tempID), ErrNotPending)

	// The broadcast echo of the confirmed message is dropped.
	assert.False(t, v.AddIfAbsent(msg(11, "hello")))
}

func TestConfirmAfterEchoRemovesOptimisticRow(t *testing.T) {
	v := NewView(200, nil)
	v.LoadInitial(page(false, msg(10, "a")))

	tempID := v.SubmitOptimistic("hello", nil, 1)
	// The room broadcast lands before the ack.
	require.True(t, v.AddIfAbsent(msg(11, "hello")))

	require.NoError(t, v.Confirm(tempID, msg(11, "hello")))
	assert.Equal(t, []uint{10, 11}, entryIDs(v), "no duplicate row for the same server id")
}

// A send that never reached the server is rolled back, not shown forever.
func TestFailRollsBackPendingRow(t *testing.T) {
	v := NewView(200, nil)
	v.LoadInitial(page(false, msg(10, "a")))
	tempID := v.SubmitOptimistic("hello", nil, 1)
	require.Len(t, v.Entries(), 2)

	require.NoError(t, v.Fail(tempID))
	assert.Equal(t, []uint{10}, entryIDs(v))

	// The rolled-back message cannot be resolved again.
	assert.ErrorIs(t, v.Confirm(tempID, msg(11, "hello")), ErrUnknownTemp)
	assert.ErrorIs(t, v.Fail(tempID), ErrUnknownTemp)
	assert.ErrorIs(t, v.Confirm("no-such-temp", msg(12, "x")), ErrUnknownTemp)
}

// Prepending an older page must not move what the user is looking at: the
// scroll offset grows by exactly the height of the inserted rows.
func TestPrependOlderCompensatesScroll(t *testing.T) {
	rowHeight := func(rows int) float64 { return float64(rows * 30) }
	v := NewView(120, rowHeight)
	v.LoadInitial(page(true, msg(20, "a"), msg(21, "b"), msg(22, "c"), msg(23, "d")))
	v.SetScrollTop(0) // reading the oldest loaded row

	added := v.PrependOlder(page(false, msg(17, "x"), msg(18, "y"), msg(19, "z")))

	assert.Equal(t, 3, added)
	assert.Equal(t, []uint{17, 18, 19, 20, 21, 22, 23}, entryIDs(v))
	assert.Equal(t, 3*30.0, v.ScrollTop(), "offset grows by the inserted height")
	assert.False(t, v.HasMore())
}

func TestPrependOlderDeduplicates(t *testing.T) {
	v := NewView(200, nil)
	v.LoadInitial(page(true, msg(20, "a"), msg(21, "b")))

	added := v.PrependOlder(page(false, msg(19, "x"), msg(20, "a")))

	assert.Equal(t, 1, added)
	assert.Equal(t, []uint{19, 20, 21}, entryIDs(v))
}

func TestOldestIDSkipsPendingRows(t *testing.T) {
	v := NewView(200, nil)
	assert.Zero(t, v.OldestID())

	v.LoadInitial(page(true, msg(20, "a"), msg(21, "b")))
	assert.Equal(t, uint(20), v.OldestID())

	v.PrependOlder(page(false, msg(15, "x")))
	assert.Equal(t, uint(15), v.OldestID())
}

func TestSetScrollTopClampsAndMarksRead(t *testing.T) {
	v := NewView(100, func(rows int) float64 { return float64(rows * 50) })
	v.LoadInitial(page(false, msg(1, "a"), msg(2, "b"), msg(3, "c"), msg(4, "d")))
	v.SetScrollTop(0)
	v.AddIfAbsent(msg(5, "e"))
	require.True(t, v.HasNewMessages())

	v.SetScrollTop(10_000) // clamped to the bottom
	assert.False(t, v.HasNewMessages())
	assert.Equal(t, uint(5), v.LastReadID())

	v.SetScrollTop(-5)
	assert.Equal(t, 0.0, v.ScrollTop())
}
