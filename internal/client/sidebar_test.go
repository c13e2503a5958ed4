package client

import (
	"testing"

	"github.com/hearthline/hearth/internal/protocol"
)

func membership(roomID int64, kind string) protocol.Membership {
	return protocol.Membership{
		RoomID:   roomID,
		UserID:   3,
		RoomName: "room",
		RoomKind: kind,
	}
}

func roomIDs(list []protocol.Membership) []int64 {
	ids := make([]int64, len(list))
	for i, m := range list {
		ids[i] = m.RoomID
	}
	return ids
}

func TestRoomCreatedSplitsByKind(t *testing.T) {
	s := NewSidebarStore()
	s.HandleRoomCreated(membership(1, "open"))
	s.HandleRoomCreated(membership(2, "direct"))
	s.HandleRoomCreated(membership(3, "closed"))

	if got := roomIDs(s.Direct()); len(got) != 1 || got[0] != 2 {
		t.Errorf("direct list = %v, want [2]", got)
	}
	if got := roomIDs(s.Other()); len(got) != 2 {
		t.Errorf("other list = %v, want two rooms", got)
	}
}

func TestRoomCreatedPrependsAndDedupes(t *testing.T) {
	s := NewSidebarStore()
	s.HandleRoomCreated(membership(1, "open"))
	s.HandleRoomCreated(membership(2, "open"))
	s.HandleRoomCreated(membership(2, "open")) // duplicate event

	got := roomIDs(s.Other())
	if len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Errorf("other list = %v, want [2 1]", got)
	}
}

func TestRoomUpdatedMovesToFrontAndMarksUnread(t *testing.T) {
	s := NewSidebarStore()
	s.Init(nil, []protocol.Membership{
		membership(1, "open"),
		membership(2, "open"),
		membership(3, "open"),
	})

	s.HandleRoomUpdated(3)

	got := roomIDs(s.Other())
	if len(got) != 3 || got[0] != 3 {
		t.Fatalf("other list = %v, want room 3 first", got)
	}
	if !s.Unread(3) {
		t.Error("updated room not marked unread")
	}
	if s.Unread(1) || s.Unread(2) {
		t.Error("untouched rooms marked unread")
	}
}

func TestRoomUpdatedWhileViewingStaysRead(t *testing.T) {
	s := NewSidebarStore()
	s.Init(nil, []protocol.Membership{
		membership(5, "open"),
		membership(6, "open"),
	})

	s.SetViewing(5)
	s.HandleRoomUpdated(5)

	if s.Unread(5) {
		t.Error("room being viewed marked unread")
	}
	if got := roomIDs(s.Other()); got[0] != 5 {
		t.Errorf("viewed room must still move to front, got %v", got)
	}

	// Another room updating while viewing room 5 is marked normally.
	s.HandleRoomUpdated(6)
	if !s.Unread(6) {
		t.Error("non-viewed room not marked unread")
	}

	// After leaving, updates mark room 5 again.
	s.ClearViewing()
	s.HandleRoomUpdated(5)
	if !s.Unread(5) {
		t.Error("room not marked unread after viewing ended")
	}
}

func TestSetViewingClearsUnread(t *testing.T) {
	s := NewSidebarStore()
	s.Init(nil, []protocol.Membership{membership(5, "open")})
	s.HandleRoomUpdated(5)
	if !s.Unread(5) {
		t.Fatal("setup: room not unread")
	}

	s.SetViewing(5)
	if s.Unread(5) {
		t.Error("entering a room did not clear its unread flag")
	}
}

func TestRoomReadIdempotent(t *testing.T) {
	s := NewSidebarStore()
	s.Init(nil, []protocol.Membership{membership(5, "open")})
	s.HandleRoomUpdated(5)

	s.HandleRoomRead(5)
	s.HandleRoomRead(5)
	s.HandleRoomRead(5)

	if s.Unread(5) {
		t.Error("room still unread after read")
	}
	// Reading an unknown room is a no-op.
	s.HandleRoomRead(99)
}

func TestRoomDeleted(t *testing.T) {
	s := NewSidebarStore()
	s.Init(
		[]protocol.Membership{membership(2, "direct")},
		[]protocol.Membership{membership(1, "open")},
	)

	s.HandleRoomDeleted(2)
	s.HandleRoomDeleted(1)
	s.HandleRoomDeleted(1)

	if len(s.Direct()) != 0 || len(s.Other()) != 0 {
		t.Errorf("lists not empty after deletion: %v / %v", s.Direct(), s.Other())
	}
}

func TestInitReplacesState(t *testing.T) {
	s := NewSidebarStore()
	s.HandleRoomCreated(membership(1, "open"))

	s.Init(
		[]protocol.Membership{membership(9, "direct")},
		[]protocol.Membership{membership(8, "open")},
	)

	if got := roomIDs(s.Direct()); len(got) != 1 || got[0] != 9 {
		t.Errorf("direct list = %v, want [9]", got)
	}
	if got := roomIDs(s.Other()); len(got) != 1 || got[0] != 8 {
		t.Errorf("other list = %v, want [8]", got)
	}
}
