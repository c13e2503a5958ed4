package channel

import "testing"

func TestStringAndParseRoundTrip(t *testing.T) {
	keys := []Key{
		RoomKey(7),
		UserKey(3),
		TypingKey(7),
		PresenceKey(42),
	}

	for _, key := range keys {
		wire := key.String()
		parsed, err := Parse(wire)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", wire, err)
		}
		if parsed != key {
			t.Errorf("round trip of %q: got %+v, want %+v", wire, parsed, key)
		}
	}
}

func TestStringWireForms(t *testing.T) {
	cases := []struct {
		key  Key
		want string
	}{
		{RoomKey(7), "room:7"},
		{UserKey(3), "user:3"},
		{TypingKey(7), "room:7:typing"},
		{PresenceKey(7), "room:7:presence"},
	}

	for _, c := range cases {
		if got := c.key.String(); got != c.want {
			t.Errorf("String(%+v) = %q, want %q", c.key, got, c.want)
		}
	}
}

func TestSubjects(t *testing.T) {
	cases := []struct {
		key  Key
		want string
	}{
		{RoomKey(7), "chat.room.7"},
		{UserKey(3), "chat.user.3"},
		{TypingKey(7), "chat.room.7.typing"},
		{PresenceKey(7), "chat.room.7.presence"},
	}

	for _, c := range cases {
		if got := c.key.Subject(); got != c.want {
			t.Errorf("Subject(%+v) = %q, want %q", c.key, got, c.want)
		}
	}
}

func TestParseRejectsMalformedKeys(t *testing.T) {
	bad := []string{
		"",
		"room",
		"room:",
		"room:abc",
		"room:0",
		"room:-1",
		"user:7:typing",
		"room:7:unknown",
		"team:7",
		"room:7:typing:extra",
	}

	for _, s := range bad {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}

func TestRoomScoped(t *testing.T) {
	if !RoomKey(1).RoomScoped() || !TypingKey(1).RoomScoped() || !PresenceKey(1).RoomScoped() {
		t.Error("room, typing, and presence keys must be room scoped")
	}
	if UserKey(1).RoomScoped() {
		t.Error("user keys must not be room scoped")
	}
}
