package client

import (
	"sort"
	"sync"

	"github.com/hearthline/hearth/internal/protocol"
)

// TypingTracker maintains, per room, the set of currently-typing users as
// observed on the room's typing channel. The viewer's own events are always
// filtered out. A user leaves the set on an explicit stop or on their next
// confirmed message in the room; there is deliberately no timeout, so a lost
// stop event leaves the indicator until that user's next message.
type TypingTracker struct {
	mu    sync.Mutex
	self  int64
	rooms map[int64]map[int64]struct{}
}

// NewTypingTracker creates a tracker for the given viewing user.
func NewTypingTracker(selfID int64) *TypingTracker {
	return &TypingTracker{
		self:  selfID,
		rooms: make(map[int64]map[int64]struct{}),
	}
}

// HandleTyping applies a typing event for a room. Events about the viewer
// themselves are ignored.
func (t *TypingTracker) HandleTyping(roomID, userID int64, action string) {
	if userID == t.self {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch action {
	case protocol.TypingStart:
		if t.rooms[roomID] == nil {
			t.rooms[roomID] = make(map[int64]struct{})
		}
		t.rooms[roomID][userID] = struct{}{}
	case protocol.TypingStop:
		t.removeLocked(roomID, userID)
	}
}

// HandleMessage clears the typing state of a user whose message was just
// confirmed in the room.
func (t *TypingTracker) HandleMessage(roomID, creatorID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(roomID, creatorID)
}

// Typing returns the sorted user IDs currently typing in a room.
func (t *TypingTracker) Typing(roomID int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.rooms[roomID]
	ids := make([]int64, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *TypingTracker) removeLocked(roomID, userID int64) {
	if users, ok := t.rooms[roomID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.rooms, roomID)
		}
	}
}
