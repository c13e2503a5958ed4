// Package channel defines the channel keys that scope every published event.
// A key pairs a channel kind with a resource ID and maps one-to-one onto a
// NATS subject, so that fan-out between server instances and delivery to
// locally subscribed connections use the same addressing scheme.
package channel

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the four channel families.
type Kind string

const (
	// KindRoom carries message.created / message.removed events for a room.
	KindRoom Kind = "room"

	// KindUser carries room.created / room.updated events for a single user's
	// sidebar. Only that user may subscribe.
	KindUser Kind = "user"

	// KindTyping carries ephemeral typing start/stop events for a room.
	KindTyping Kind = "typing"

	// KindPresence carries connected/disconnected signals for a room. An
	// active presence subscription means the user is viewing the room, which
	// suppresses unread marking.
	KindPresence Kind = "presence"
)

// Key addresses one channel: a kind plus the ID of the room or user it
// scopes. Keys are comparable and safe to use as map keys.
type Key struct {
	Kind Kind
	ID   int64
}

// RoomKey returns the room channel key for a room ID.
func RoomKey(roomID int64) Key { return Key{Kind: KindRoom, ID: roomID} }

// UserKey returns the user channel key for a user ID.
func UserKey(userID int64) Key { return Key{Kind: KindUser, ID: userID} }

// TypingKey returns the typing channel key for a room ID.
func TypingKey(roomID int64) Key { return Key{Kind: KindTyping, ID: roomID} }

// PresenceKey returns the presence channel key for a room ID.
func PresenceKey(roomID int64) Key { return Key{Kind: KindPresence, ID: roomID} }

// RoomScoped reports whether the key belongs to a room resource (and thus
// requires a membership to subscribe).
func (k Key) RoomScoped() bool {
	return k.Kind == KindRoom || k.Kind == KindTyping || k.Kind == KindPresence
}

// String renders the key in wire form: "room:7", "user:3", "room:7:typing",
// "room:7:presence".
func (k Key) String() string {
	switch k.Kind {
	case KindUser:
		return "user:" + strconv.FormatInt(k.ID, 10)
	case KindTyping:
		return "room:" + strconv.FormatInt(k.ID, 10) + ":typing"
	case KindPresence:
		return "room:" + strconv.FormatInt(k.ID, 10) + ":presence"
	default:
		return "room:" + strconv.FormatInt(k.ID, 10)
	}
}

// Subject returns the NATS subject for this key. Subjects mirror the wire
// form but use the NATS dot hierarchy under a common "chat." prefix.
func (k Key) Subject() string {
	switch k.Kind {
	case KindUser:
		return "chat.user." + strconv.FormatInt(k.ID, 10)
	case KindTyping:
		return "chat.room." + strconv.FormatInt(k.ID, 10) + ".typing"
	case KindPresence:
		return "chat.room." + strconv.FormatInt(k.ID, 10) + ".presence"
	default:
		return "chat.room." + strconv.FormatInt(k.ID, 10)
	}
}

// Parse converts the wire form back into a Key. It is the inverse of String.
func Parse(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Key{}, fmt.Errorf("channel: malformed key %q", s)
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return Key{}, fmt.Errorf("channel: invalid resource id in key %q", s)
	}

	switch {
	case len(parts) == 2 && parts[0] == "room":
		return Key{Kind: KindRoom, ID: id}, nil
	case len(parts) == 2 && parts[0] == "user":
		return Key{Kind: KindUser, ID: id}, nil
	case len(parts) == 3 && parts[0] == "room" && parts[2] == "typing":
		return Key{Kind: KindTyping, ID: id}, nil
	case len(parts) == 3 && parts[0] == "room" && parts[2] == "presence":
		return Key{Kind: KindPresence, ID: id}, nil
	}
	return Key{}, fmt.Errorf("channel: unknown channel kind in key %q", s)
}
