// Package client implements the client-side reconciliation stores: the
// message store merging optimistic sends with confirmed server events, the
// sidebar store mirroring membership and unread state, and the typing
// tracker. Embedders drive these from their event loop; the stores are
// internally locked so transport callbacks may feed them directly.
package client

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hearthline/hearth/internal/protocol"
)

// PendingState is the lifecycle of an optimistic entry that has no
// confirmed counterpart yet.
type PendingState int

const (
	// PendingInFlight marks an optimistic entry awaiting its server echo.
	PendingInFlight PendingState = iota

	// PendingFailed marks an entry whose send failed. Failed entries are
	// never dropped silently; the user must retry or discard.
	PendingFailed
)

// Pending is an optimistic, client-only message tagged with its idempotency
// key.
type Pending struct {
	Key       string
	Body      string
	CreatorID int64
	State     PendingState
}

// Entry is the tagged variant handed to renderers: exactly one of Confirmed
// and Pending is set.
type Entry struct {
	Confirmed *protocol.Message
	Pending   *Pending
}

// NewClientKey generates a fresh idempotency key for an optimistic send.
func NewClientKey() string {
	return uuid.New().String()
}

// MessageStore holds the messages of one room: confirmed messages in server
// order and pending entries in client insertion order after them. All
// operations are idempotent with respect to replayed server events.
type MessageStore struct {
	mu        sync.Mutex
	confirmed []protocol.Message
	byID      map[int64]bool
	pending   []Pending
}

// NewMessageStore creates an empty MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID: make(map[int64]bool),
	}
}

// Init replaces the confirmed set with a server snapshot, the
// resynchronization path after a connection gap. Pending entries whose key
// appears in the snapshot are resolved; the rest are kept.
func (s *MessageStore) Init(messages []protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirmed = s.confirmed[:0]
	s.byID = make(map[int64]bool)
	for _, msg := range messages {
		if s.byID[msg.ID] {
			continue
		}
		s.byID[msg.ID] = true
		s.confirmed = append(s.confirmed, msg)
		s.resolvePendingLocked(msg.ClientKey)
	}
	s.sortLocked()
}

// AddOptimistic inserts a pending entry for immediate display, tagged with
// the client-generated idempotency key. If the server echo already arrived
// (it can race ahead of the local insert), the entry is skipped so the final
// state is independent of arrival order.
func (s *MessageStore) AddOptimistic(key, body string, creatorID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		if p.Key == key {
			return
		}
	}
	for _, msg := range s.confirmed {
		if msg.ClientKey == key {
			return
		}
	}
	s.pending = append(s.pending, Pending{
		Key:       key,
		Body:      body,
		CreatorID: creatorID,
		State:     PendingInFlight,
	})
}

// Add applies a confirmed message. If its idempotency key matches a pending
// entry, that entry is resolved and the confirmed message takes its place.
// A message whose ID is already present is a replayed delivery and is
// ignored, so the final state is independent of whether the optimistic
// insert or the server echo arrived first.
func (s *MessageStore) Add(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolvePendingLocked(msg.ClientKey)

	if s.byID[msg.ID] {
		return
	}
	s.byID[msg.ID] = true
	s.confirmed = append(s.confirmed, msg)
	s.sortLocked()
}

// Remove deletes a confirmed message, applying a message.removed event.
func (s *MessageStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.byID[id] {
		return
	}
	delete(s.byID, id)
	for i, msg := range s.confirmed {
		if msg.ID == id {
			s.confirmed = append(s.confirmed[:i], s.confirmed[i+1:]...)
			break
		}
	}
}

// MarkFailed transitions a pending entry to the terminal failed state.
// Returns false if no in-flight entry with the key exists.
func (s *MessageStore) MarkFailed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pending {
		if s.pending[i].Key == key && s.pending[i].State == PendingInFlight {
			s.pending[i].State = PendingFailed
			return true
		}
	}
	return false
}

// Discard removes a failed entry after the user chose not to retry.
func (s *MessageStore) Discard(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pending {
		if s.pending[i].Key == key {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Entries returns the rendering order: confirmed messages in server order,
// then pending entries (including failed ones) in insertion order.
func (s *MessageStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.confirmed)+len(s.pending))
	for i := range s.confirmed {
		msg := s.confirmed[i]
		entries = append(entries, Entry{Confirmed: &msg})
	}
	for i := range s.pending {
		p := s.pending[i]
		entries = append(entries, Entry{Pending: &p})
	}
	return entries
}

// resolvePendingLocked removes the pending entry matching a confirmed
// message's idempotency key. Caller holds s.mu.
func (s *MessageStore) resolvePendingLocked(clientKey string) {
	if clientKey == "" {
		return
	}
	for i := range s.pending {
		if s.pending[i].Key == clientKey {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// sortLocked keeps confirmed messages in server order. IDs are monotonic
// within a room, so sorting by ID reproduces it regardless of arrival order.
// Caller holds s.mu.
func (s *MessageStore) sortLocked() {
	sort.Slice(s.confirmed, func(i, j int) bool {
		return s.confirmed[i].ID < s.confirmed[j].ID
	})
}
