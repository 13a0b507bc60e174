package client

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"room-chat/internal/models"
)

// Status tracks an optimistic message through its lifecycle. A message
// leaves StatusPending exactly once: confirmed in place, or rolled back
// and removed.
type Status int

const (
	StatusPending Status = iota
	StatusConfirmed
)

var (
	ErrUnknownTemp = errors.New("client: unknown temp id")
	ErrNotPending  = errors.New("client: message already resolved")
)

// nearBottomThreshold is how close to the end of the scrollback, in
// height units, still counts as "reading the latest messages".
const nearBottomThreshold = 100

// Entry is one row of the message view. TempID is set for optimistic
// messages and survives confirmation so callers can keep stable row keys.
type Entry struct {
	TempID  string
	Message models.MessageResponse
	Status  Status
}

// HeightFunc reports the rendered content height for a number of rows.
// The default assumes uniform rows; UIs with variable row heights supply
// their own measurement.
type HeightFunc func(rows int) float64

func uniformRows(rows int) float64 { return float64(rows * 24) }

// View is the client-side mirror of one room's message list. It
// reconciles three inbound flows into a single ordered list without
// duplicates: optimistic local sends, broadcast echoes, and older
// history pages loaded while scrolling backwards. It also models the
// scroll position so prepending history never yanks the viewport and
// unseen messages are tracked when the user has scrolled up.
type View struct {
	mu sync.Mutex

	entries []Entry
	seen    map[uint]struct{} // server ids already in entries
	hasMore bool

	heightFn       HeightFunc
	viewportHeight float64
	scrollTop      float64

	lastReadID uint
	hasNew     bool
}

func NewView(viewportHeight float64, heightFn HeightFunc) *View {
	if heightFn == nil {
		heightFn = uniformRows
	}
	return &View{
		seen:           make(map[uint]struct{}),
		heightFn:       heightFn,
		viewportHeight: viewportHeight,
	}
}

// LoadInitial replaces the view with a join snapshot and scrolls to the
// newest message.
func (v *View) LoadInitial(page models.MessagePage) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.entries = v.entries[:0]
	v.seen = make(map[uint]struct{}, len(page.Messages))
	for _, m := range page.Messages {
		v.entries = append(v.entries, Entry{Message: m, Status: StatusConfirmed})
		v.seen[m.ID] = struct{}{}
	}
	v.hasMore = page.HasMore
	v.hasNew = false
	v.scrollBottomLocked()
}

// AddIfAbsent appends a broadcast message unless its id is already
// present, so replays and echo of our own confirmed sends are dropped.
// When the viewport sits near the bottom the view follows the new
// message; otherwise it stays put and the message counts as unseen.
func (v *View) AddIfAbsent(m models.MessageResponse) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, dup := v.seen[m.ID]; dup {
		return false
	}
	v.entries = append(v.entries, Entry{Message: m, Status: StatusConfirmed})
	v.seen[m.ID] = struct{}{}

	if v.nearBottomLocked() {
		v.scrollBottomLocked()
	} else {
		v.hasNew = true
	}
	return true
}

// SubmitOptimistic appends a pending local message and returns its temp
// id for later Confirm or Fail. The view always follows an own send.
func (v *View) SubmitOptimistic(content string, author *models.UserResponse, roomID uint) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	tempID := uuid.New().String()
	v.entries = append(v.entries, Entry{
		TempID: tempID,
		Message: models.MessageResponse{
			Content: content,
			User:    author,
			RoomID:  roomID,
			SentAt:  time.Now(),
		},
		Status: StatusPending,
	})
	v.scrollBottomLocked()
	return tempID
}

// Confirm resolves a pending message with the canonical server copy. If
// the broadcast echo beat the ack, the optimistic row is removed instead
// of duplicating the already-present canonical message. Confirming a
// resolved message is an error; each pending message resolves once.
func (v *View) Confirm(tempID string, canonical models.MessageResponse) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	i, err := v.findTempLocked(tempID)
	if err != nil {
		return err
	}

	if _, echoed := v.seen[canonical.ID]; echoed {
		v.entries = append(v.entries[:i], v.entries[i+1:]...)
		return nil
	}

	v.entries[i].Message = canonical
	v.entries[i].Status = StatusConfirmed
	v.seen[canonical.ID] = struct{}{}
	if v.nearBottomLocked() {
		v.scrollBottomLocked()
	}
	return nil
}

// Fail rolls a pending message back. The row is removed: a send that
// never reached the server must not linger as if it did. The caller
// keeps the content if it wants to offer a retry.
func (v *View) Fail(tempID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	i, err := v.findTempLocked(tempID)
	if err != nil {
		return err
	}
	v.entries = append(v.entries[:i], v.entries[i+1:]...)
	return nil
}

// PrependOlder inserts an older history page before the current entries
// and compensates the scroll position by the added height, so the rows
// the user was looking at do not move.
func (v *View) PrependOlder(page models.MessagePage) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	older := make([]Entry, 0, len(page.Messages))
	for _, m := range page.Messages {
		if _, dup := v.seen[m.ID]; dup {
			continue
		}
		older = append(older, Entry{Message: m, Status: StatusConfirmed})
		v.seen[m.ID] = struct{}{}
	}
	if len(older) == 0 {
		v.hasMore = page.HasMore
		return 0
	}

	before := v.heightFn(len(v.entries))
	v.entries = append(older, v.entries...)
	after := v.heightFn(len(v.entries))
	v.scrollTop += after - before

	v.hasMore = page.HasMore
	return len(older)
}

// ScrollToBottom jumps to the newest message and clears the unseen flag.
func (v *View) ScrollToBottom() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrollBottomLocked()
	v.hasNew = false
}

// SetScrollTop records a user scroll. Reaching the bottom marks
// everything read.
func (v *View) SetScrollTop(top float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	max := v.heightFn(len(v.entries)) - v.viewportHeight
	if max < 0 {
		max = 0
	}
	if top < 0 {
		top = 0
	}
	if top > max {
		top = max
	}
	v.scrollTop = top

	if v.nearBottomLocked() {
		v.hasNew = false
		v.markReadLocked()
	}
}

// NearBottom reports whether the viewport is within the follow threshold
// of the newest message.
func (v *View) NearBottom() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nearBottomLocked()
}

// HasNewMessages reports whether messages arrived while scrolled up.
func (v *View) HasNewMessages() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hasNew
}

// LastReadID is the newest server id the user has seen at the bottom.
func (v *View) LastReadID() uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastReadID
}

// HasMore reports whether older history remains beyond the loaded window.
func (v *View) HasMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hasMore
}

// OldestID returns the smallest loaded server id, the cursor for the
// next history page. Zero when nothing confirmed is loaded.
func (v *View) OldestID() uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range v.entries {
		if e.Status == StatusConfirmed || e.TempID == "" {
			return e.Message.ID
		}
	}
	return 0
}

// ScrollTop returns the modeled scroll offset.
func (v *View) ScrollTop() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrollTop
}

// Entries returns a snapshot of the rows in display order.
func (v *View) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

func (v *View) findTempLocked(tempID string) (int, error) {
	for i := range v.entries {
		if v.entries[i].TempID == tempID {
			if v.entries[i].Status != StatusPending {
				return 0, ErrNotPending
			}
			return i, nil
		}
	}
	return 0, ErrUnknownTemp
}

func (v *View) nearBottomLocked() bool {
	height := v.heightFn(len(v.entries))
	return height-(v.scrollTop+v.viewportHeight) < nearBottomThreshold
}

func (v *View) scrollBottomLocked() {
	max := v.heightFn(len(v.entries)) - v.viewportHeight
	if max < 0 {
		max = 0
	}
	v.scrollTop = max
	v.markReadLocked()
}

func (v *View) markReadLocked() {
	for i := len(v.entries) - 1; i >= 0; i-- {
		if id := v.entries[i].Message.ID; id != 0 {
			if id > v.lastReadID {
				v.lastReadID = id
			}
			return
		}
	}
}
