package client

import (
	"sync"

	"github.com/hearthline/hearth/internal/protocol"
)

// SidebarStore mirrors the user's memberships from user-channel events. It
// keeps two recency-ordered lists (direct rooms and everything else) and the
// unread flags shown next to them. The room currently being viewed is
// tracked explicitly so that room.updated events for it never mark it
// unread.
type SidebarStore struct {
	mu      sync.Mutex
	direct  []protocol.Membership
	other   []protocol.Membership
	viewing int64 // room ID with an active presence subscription, 0 if none
}

// NewSidebarStore creates an empty SidebarStore.
func NewSidebarStore() *SidebarStore {
	return &SidebarStore{}
}

// Init replaces both lists with a server snapshot, the resynchronization
// path after a connection gap.
func (s *SidebarStore) Init(direct, other []protocol.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.direct = append(s.direct[:0], direct...)
	s.other = append(s.other[:0], other...)
}

// SetViewing records that the user is presence-connected to a room. Unread
// marking for that room is suppressed until ClearViewing, and its current
// unread flag is cleared (entering a room reads it).
func (s *SidebarStore) SetViewing(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = roomID
	s.clearUnreadLocked(roomID)
}

// ClearViewing ends the active-viewing suppression.
func (s *SidebarStore) ClearViewing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = 0
}

// HandleRoomCreated inserts a membership at the front of the appropriate
// list: a freshly created room is by definition the most recent activity.
// A duplicate event for an already-listed room is ignored.
func (s *SidebarStore) HandleRoomCreated(m protocol.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(m.RoomID) != nil {
		return
	}
	if m.RoomKind == "direct" {
		s.direct = append([]protocol.Membership{m}, s.direct...)
	} else {
		s.other = append([]protocol.Membership{m}, s.other...)
	}
}

// HandleRoomUpdated applies a room.updated event: the membership moves to
// the front of its list and is marked unread — unless the room is the one
// currently being viewed, in which case unread stays false.
func (s *SidebarStore) HandleRoomUpdated(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moveFront := func(list []protocol.Membership) ([]protocol.Membership, bool) {
		for i := range list {
			if list[i].RoomID == roomID {
				m := list[i]
				if roomID != s.viewing {
					m.Unread = true
				}
				list = append(list[:i], list[i+1:]...)
				return append([]protocol.Membership{m}, list...), true
			}
		}
		return list, false
	}

	var moved bool
	if s.direct, moved = moveFront(s.direct); moved {
		return
	}
	s.other, _ = moveFront(s.other)
}

// HandleRoomRead clears the unread flag for a room. It is idempotent: any
// number of room.read signals leaves the membership read.
func (s *SidebarStore) HandleRoomRead(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearUnreadLocked(roomID)
}

// HandleRoomDeleted drops the membership for a destroyed or left room.
func (s *SidebarStore) HandleRoomDeleted(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remove := func(list []protocol.Membership) []protocol.Membership {
		for i := range list {
			if list[i].RoomID == roomID {
				return append(list[:i], list[i+1:]...)
			}
		}
		return list
	}
	s.direct = remove(s.direct)
	s.other = remove(s.other)
}

// Direct returns a snapshot of the direct-room list, most recent first.
func (s *SidebarStore) Direct() []protocol.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Membership, len(s.direct))
	copy(out, s.direct)
	return out
}

// Other returns a snapshot of the open/closed-room list, most recent first.
func (s *SidebarStore) Other() []protocol.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Membership, len(s.other))
	copy(out, s.other)
	return out
}

// Unread reports the unread flag for a room, false if unknown.
func (s *SidebarStore) Unread(roomID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.findLocked(roomID); m != nil {
		return m.Unread
	}
	return false
}

func (s *SidebarStore) findLocked(roomID int64) *protocol.Membership {
	for i := range s.direct {
		if s.direct[i].RoomID == roomID {
			return &s.direct[i]
		}
	}
	for i := range s.other {
		if s.other[i].RoomID == roomID {
			return &s.other[i]
		}
	}
	return nil
}

func (s *SidebarStore) clearUnreadLocked(roomID int64) {
	if m := s.findLocked(roomID); m != nil {
		m.Unread = false
	}
}
