package client

import (
	"testing"

	"github.com/hearthline/hearth/internal/protocol"
)

func TestTypingStartStop(t *testing.T) {
	tr := NewTypingTracker(3)

	tr.HandleTyping(7, 4, protocol.TypingStart)
	tr.HandleTyping(7, 5, protocol.TypingStart)

	got := tr.Typing(7)
	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Fatalf("typing set = %v, want [4 5]", got)
	}

	tr.HandleTyping(7, 4, protocol.TypingStop)
	got = tr.Typing(7)
	if len(got) != 1 || got[0] != 5 {
		t.Errorf("typing set = %v, want [5]", got)
	}
}

func TestTypingSelfFiltered(t *testing.T) {
	tr := NewTypingTracker(3)
	tr.HandleTyping(7, 3, protocol.TypingStart)

	if got := tr.Typing(7); len(got) != 0 {
		t.Errorf("own typing events must be filtered, got %v", got)
	}
}

func TestTypingClearedByConfirmedMessage(t *testing.T) {
	tr := NewTypingTracker(3)
	tr.HandleTyping(7, 4, protocol.TypingStart)
	tr.HandleMessage(7, 4)

	if got := tr.Typing(7); len(got) != 0 {
		t.Errorf("typing not cleared by confirmed message, got %v", got)
	}
}

func TestTypingNoTimeout(t *testing.T) {
	// A lost stop event leaves the indicator until that user's next
	// message; a message from someone else must not clear it.
	tr := NewTypingTracker(3)
	tr.HandleTyping(7, 4, protocol.TypingStart)
	tr.HandleMessage(7, 5)

	if got := tr.Typing(7); len(got) != 1 || got[0] != 4 {
		t.Errorf("typing set = %v, want [4]", got)
	}

	tr.HandleMessage(7, 4)
	if got := tr.Typing(7); len(got) != 0 {
		t.Errorf("typing set = %v, want empty after user 4's message", got)
	}
}

func TestTypingScopedPerRoom(t *testing.T) {
	tr := NewTypingTracker(3)
	tr.HandleTyping(7, 4, protocol.TypingStart)
	tr.HandleTyping(8, 4, protocol.TypingStart)

	tr.HandleTyping(7, 4, protocol.TypingStop)

	if got := tr.Typing(7); len(got) != 0 {
		t.Errorf("room 7 typing set = %v, want empty", got)
	}
	if got := tr.Typing(8); len(got) != 1 || got[0] != 4 {
		t.Errorf("room 8 typing set = %v, want [4]", got)
	}
}

func TestTypingStopWithoutStart(t *testing.T) {
	tr := NewTypingTracker(3)
	tr.HandleTyping(7, 4, protocol.TypingStop)

	if got := tr.Typing(7); len(got) != 0 {
		t.Errorf("typing set = %v, want empty", got)
	}
}
