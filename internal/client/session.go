package client

import (
	"fmt"
	"sync"

	"github.com/hearthline/hearth/internal/channel"
	"github.com/hearthline/hearth/internal/protocol"
)

// Session is the explicit per-user client state: one message store per
// room, the sidebar store, and the typing tracker. It routes raw channel
// events to the right store, replacing any notion of process-wide
// singletons for "the currently mounted view".
type Session struct {
	selfID  int64
	sidebar *SidebarStore
	typing  *TypingTracker

	mu          sync.Mutex
	messages    map[int64]*MessageStore
	pendingRoom map[string]int64 // idempotency key -> room
}

// NewSession creates the client state for one user.
func NewSession(selfID int64) *Session {
	return &Session{
		selfID:      selfID,
		sidebar:     NewSidebarStore(),
		typing:      NewTypingTracker(selfID),
		messages:    make(map[int64]*MessageStore),
		pendingRoom: make(map[string]int64),
	}
}

// Sidebar returns the session's sidebar store.
func (s *Session) Sidebar() *SidebarStore { return s.sidebar }

// TypingIn returns the sorted user IDs currently typing in a room.
func (s *Session) TypingIn(roomID int64) []int64 { return s.typing.Typing(roomID) }

// Messages returns the message store for a room, creating it on first use.
func (s *Session) Messages(roomID int64) *MessageStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.messages[roomID]
	if !ok {
		ms = NewMessageStore()
		s.messages[roomID] = ms
	}
	return ms
}

// AddOptimistic inserts a pending message for a room and returns the
// generated idempotency key to put on the wire.
func (s *Session) AddOptimistic(roomID int64, body string) string {
	key := NewClientKey()
	s.Messages(roomID).AddOptimistic(key, body, s.selfID)

	s.mu.Lock()
	s.pendingRoom[key] = roomID
	s.mu.Unlock()
	return key
}

// MarkFailed transitions the pending entry for a key to failed, wherever it
// lives. Called on send error, timeout, or a keyed error reply.
func (s *Session) MarkFailed(key string) bool {
	s.mu.Lock()
	roomID, ok := s.pendingRoom[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.Messages(roomID).MarkFailed(key)
}

// ViewRoom records that the user's presence subscription for a room became
// active: the room reads itself and unread marking for it is suppressed.
func (s *Session) ViewRoom(roomID int64) {
	s.sidebar.SetViewing(roomID)
}

// LeaveRoom ends the active-viewing suppression.
func (s *Session) LeaveRoom() {
	s.sidebar.ClearViewing()
}

// ReadRoom applies a locally raised room.read signal.
func (s *Session) ReadRoom(roomID int64) {
	s.sidebar.HandleRoomRead(roomID)
}

// Apply routes one raw event received on a channel subscription to the
// matching store. The mutating client observes its own broadcast echoes
// here; every handler is idempotent, so echoes and replays converge to the
// same state.
func (s *Session) Apply(key channel.Key, data []byte) error {
	msgType, msg, err := protocol.ParseEvent(data)
	if err != nil {
		return err
	}

	switch ev := msg.(type) {
	case protocol.MessageCreatedEvent:
		if key.Kind != channel.KindRoom {
			return fmt.Errorf("client: %s event on %s channel", msgType, key.Kind)
		}
		s.Messages(key.ID).Add(ev.Message)
		s.typing.HandleMessage(key.ID, ev.Message.CreatorID)

	case protocol.MessageRemovedEvent:
		if key.Kind != channel.KindRoom {
			return fmt.Errorf("client: %s event on %s channel", msgType, key.Kind)
		}
		s.Messages(key.ID).Remove(ev.ID)

	case protocol.RoomCreatedEvent:
		s.sidebar.HandleRoomCreated(ev.Membership)

	case protocol.RoomUpdatedEvent:
		s.sidebar.HandleRoomUpdated(ev.RoomID)

	case protocol.RoomDeletedEvent:
		s.sidebar.HandleRoomDeleted(ev.RoomID)
		s.mu.Lock()
		delete(s.messages, ev.RoomID)
		s.mu.Unlock()

	case protocol.TypingEvent:
		if key.Kind != channel.KindTyping {
			return fmt.Errorf("client: %s event on %s channel", msgType, key.Kind)
		}
		s.typing.HandleTyping(key.ID, ev.UserID, ev.Action)

	case protocol.PresenceEvent:
		// Other viewers' presence; own viewing state is driven by
		// ViewRoom/LeaveRoom when the presence subscription changes.

	case protocol.MessagesSnapshotMsg:
		s.Messages(ev.RoomID).Init(ev.Messages)

	case protocol.SidebarSnapshotMsg:
		s.sidebar.Init(ev.Direct, ev.Other)

	case protocol.ErrorMsg:
		if ev.ClientKey != "" {
			s.MarkFailed(ev.ClientKey)
		}

	default:
		// Replies the session does not track (ready, subscribed, pong).
	}
	return nil
}
