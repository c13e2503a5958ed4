package client

import (
	"testing"

	"github.com/hearthline/hearth/internal/protocol"
)

func confirmed(id int64, clientKey, body string) protocol.Message {
	return protocol.Message{
		ID:        id,
		RoomID:    7,
		CreatorID: 3,
		ClientKey: clientKey,
		Body:      body,
		CreatedAt: 1700000000000 + id,
	}
}

func TestOptimisticSendConfirmedByEcho(t *testing.T) {
	s := NewMessageStore()
	s.AddOptimistic("abc123", "hello", 3)

	entries := s.Entries()
	if len(entries) != 1 || entries[0].Pending == nil {
		t.Fatalf("expected one pending entry, got %+v", entries)
	}

	// Server echo carrying the same idempotency key resolves the pending
	// entry in place.
	s.Add(confirmed(42, "abc123", "hello"))

	entries = s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one entry after echo, got %d", len(entries))
	}
	if entries[0].Confirmed == nil || entries[0].Confirmed.ID != 42 {
		t.Fatalf("expected confirmed message 42, got %+v", entries[0])
	}
}

func TestEchoBeforeOptimisticInsert(t *testing.T) {
	// The broadcast echo can race ahead of the local optimistic insert. The
	// final state must be identical either way.
	s := NewMessageStore()
	s.Add(confirmed(42, "abc123", "hello"))
	s.AddOptimistic("abc123", "hello", 3)

	entries := s.Entries()
	if len(entries) != 1 || entries[0].Confirmed == nil || entries[0].Confirmed.ID != 42 {
		t.Fatalf("expected single confirmed message 42, got %+v", entries)
	}
}

func TestReplayedEchoIsNoOp(t *testing.T) {
	s := NewMessageStore()
	s.Add(confirmed(42, "abc123", "hello"))
	s.Add(confirmed(42, "abc123", "hello"))
	s.Add(confirmed(42, "abc123", "hello"))

	if entries := s.Entries(); len(entries) != 1 {
		t.Fatalf("replayed echo duplicated the message: %d entries", len(entries))
	}
}

func TestConfirmedSortedByID(t *testing.T) {
	s := NewMessageStore()
	s.Add(confirmed(44, "", "third"))
	s.Add(confirmed(42, "", "first"))
	s.Add(confirmed(43, "", "second"))

	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, wantID := range []int64{42, 43, 44} {
		if entries[i].Confirmed == nil || entries[i].Confirmed.ID != wantID {
			t.Errorf("entry %d: got %+v, want confirmed id %d", i, entries[i], wantID)
		}
	}
}

func TestPendingRenderAfterConfirmed(t *testing.T) {
	s := NewMessageStore()
	s.AddOptimistic("key-a", "pending one", 3)
	s.AddOptimistic("key-b", "pending two", 3)
	s.Add(confirmed(42, "", "from someone else"))

	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Confirmed == nil {
		t.Error("confirmed message must render before pending entries")
	}
	if entries[1].Pending == nil || entries[1].Pending.Key != "key-a" {
		t.Errorf("pending entries must keep insertion order, got %+v", entries[1])
	}
	if entries[2].Pending == nil || entries[2].Pending.Key != "key-b" {
		t.Errorf("pending entries must keep insertion order, got %+v", entries[2])
	}
}

func TestMarkFailedIsTerminal(t *testing.T) {
	s := NewMessageStore()
	s.AddOptimistic("abc123", "hello", 3)

	if !s.MarkFailed("abc123") {
		t.Fatal("MarkFailed on in-flight entry returned false")
	}
	if s.MarkFailed("abc123") {
		t.Error("MarkFailed on already-failed entry returned true")
	}
	if s.MarkFailed("unknown") {
		t.Error("MarkFailed on unknown key returned true")
	}

	entries := s.Entries()
	if len(entries) != 1 || entries[0].Pending == nil || entries[0].Pending.State != PendingFailed {
		t.Fatalf("expected one failed pending entry, got %+v", entries)
	}
}

func TestFailedEntryResolvedByLateEcho(t *testing.T) {
	// A send can fail locally (timeout) while the server actually committed.
	// The retry's echo, or the original's, must still resolve the entry.
	s := NewMessageStore()
	s.AddOptimistic("abc123", "hello", 3)
	s.MarkFailed("abc123")
	s.Add(confirmed(42, "abc123", "hello"))

	entries := s.Entries()
	if len(entries) != 1 || entries[0].Confirmed == nil {
		t.Fatalf("late echo did not resolve the failed entry: %+v", entries)
	}
}

func TestDiscardFailedEntry(t *testing.T) {
	s := NewMessageStore()
	s.AddOptimistic("abc123", "hello", 3)
	s.MarkFailed("abc123")

	if !s.Discard("abc123") {
		t.Fatal("Discard returned false for existing entry")
	}
	if s.Discard("abc123") {
		t.Error("Discard returned true for already-removed entry")
	}
	if entries := s.Entries(); len(entries) != 0 {
		t.Errorf("expected empty store after discard, got %+v", entries)
	}
}

func TestRemoveConfirmed(t *testing.T) {
	s := NewMessageStore()
	s.Add(confirmed(42, "", "hello"))
	s.Remove(42)
	s.Remove(42) // replayed removal is a no-op

	if entries := s.Entries(); len(entries) != 0 {
		t.Errorf("expected empty store after removal, got %+v", entries)
	}
}

func TestInitResolvesPending(t *testing.T) {
	s := NewMessageStore()
	s.AddOptimistic("abc123", "hello", 3)
	s.AddOptimistic("other-key", "still pending", 3)

	// Resync snapshot contains the committed form of the first send.
	s.Init([]protocol.Message{
		confirmed(41, "", "earlier"),
		confirmed(42, "abc123", "hello"),
	})

	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Confirmed == nil || entries[0].Confirmed.ID != 41 {
		t.Errorf("entry 0 = %+v, want confirmed 41", entries[0])
	}
	if entries[1].Confirmed == nil || entries[1].Confirmed.ID != 42 {
		t.Errorf("entry 1 = %+v, want confirmed 42", entries[1])
	}
	if entries[2].Pending == nil || entries[2].Pending.Key != "other-key" {
		t.Errorf("entry 2 = %+v, want pending other-key", entries[2])
	}
}

func TestNewClientKeyUnique(t *testing.T) {
	a, b := NewClientKey(), NewClientKey()
	if a == "" || a == b {
		t.Errorf("keys not unique: %q, %q", a, b)
	}
}
