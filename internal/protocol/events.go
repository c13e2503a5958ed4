package protocol

import (
	"encoding/json"
	"fmt"
)

// Server -> Client direct reply types.
const (
	TypeReady            = "ready"
	TypeSubscribed       = "subscribed"
	TypeUnsubscribed     = "unsubscribed"
	TypeDirectRoomResult = "room.direct.result"
	TypeSidebarSnapshot  = "sidebar.snapshot"
	TypeMessagesSnapshot = "messages.snapshot"
	TypeError            = "error"
	TypePong             = "pong"
)

// Channel event types, published to channel keys and fanned out to every
// active subscriber. Events on the same channel key arrive in publish order;
// no ordering holds across different keys.
const (
	EventMessageCreated = "message.created"
	EventMessageRemoved = "message.removed"
	EventRoomCreated    = "room.created"
	EventRoomUpdated    = "room.updated"
	EventRoomDeleted    = "room.deleted"
	EventTyping         = "typing"
	EventConnected      = "connected"
	EventDisconnected   = "disconnected"
)

// Message is the wire form of a confirmed message. ID is server-assigned and
// monotonically increasing within a room. ClientKey echoes the sender's
// idempotency key so the sender can reconcile its optimistic entry.
type Message struct {
	ID        int64  `json:"id"`
	RoomID    int64  `json:"room_id"`
	CreatorID int64  `json:"creator_id"`
	ClientKey string `json:"client_key,omitempty"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"` // unix milliseconds
}

// Membership is the wire form of a (user, room) join record as shown in the
// sidebar.
type Membership struct {
	RoomID     int64  `json:"room_id"`
	UserID     int64  `json:"user_id"`
	RoomName   string `json:"room_name"`
	RoomKind   string `json:"room_kind"` // open | closed | direct
	Unread     bool   `json:"unread"`
	LastReadAt int64  `json:"last_read_at"` // unix milliseconds, 0 if never read
}

// ReadyMsg confirms a successful identify.
type ReadyMsg struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
}

// SubscribedMsg confirms an authorized, now-active subscription.
type SubscribedMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// UnsubscribedMsg confirms a terminated subscription.
type UnsubscribedMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// DirectRoomResultMsg carries the resolved canonical direct room.
type DirectRoomResultMsg struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
}

// SidebarSnapshotMsg is the full membership snapshot used for
// resynchronization after a connection gap.
type SidebarSnapshotMsg struct {
	Type   string       `json:"type"`
	Direct []Membership `json:"direct"`
	Other  []Membership `json:"other"`
}

// MessagesSnapshotMsg carries the most recent messages of a room, oldest
// first.
type MessagesSnapshotMsg struct {
	Type     string    `json:"type"`
	RoomID   int64     `json:"room_id"`
	Messages []Message `json:"messages"`
}

// ErrorMsg communicates a command failure. ClientKey is set for failed sends
// so the client can transition the matching pending entry to failed.
type ErrorMsg struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	ClientKey string `json:"client_key,omitempty"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// MessageCreatedEvent is published to the room channel after a message
// commit. Receivers must treat a replay for an already-known ID as a no-op.
type MessageCreatedEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// MessageRemovedEvent is published to the room channel after a message is
// removed. The room is implied by the channel the event arrives on.
type MessageRemovedEvent struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// RoomCreatedEvent is published to each participant's user channel when a
// room they belong to is created.
type RoomCreatedEvent struct {
	Type       string     `json:"type"`
	Membership Membership `json:"membership"`
}

// RoomUpdatedEvent is published to each member's user channel when the
// room's latest activity changes.
type RoomUpdatedEvent struct {
	Type      string `json:"type"`
	RoomID    int64  `json:"room_id"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// RoomDeletedEvent is published to a user's channel when their membership in
// a room ends, whether the room was destroyed or they left it.
type RoomDeletedEvent struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
}

// TypingEvent is published to the room's typing channel. Action is "start"
// or "stop". Receivers exclude their own user ID.
type TypingEvent struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	UserID int64  `json:"user"`
}

// PresenceEvent is published to the room's presence channel when a user's
// presence subscription becomes active ("connected") or terminates
// ("disconnected").
type PresenceEvent struct {
	Type   string `json:"type"`
	UserID int64  `json:"user"`
}

// ParseEvent parses raw bytes received from the server into a typed reply or
// channel event. It is the client-side counterpart of ParseCommand.
func ParseEvent(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse event: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeReady:
		var m ReadyMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSubscribed:
		var m SubscribedMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeUnsubscribed:
		var m UnsubscribedMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeDirectRoomResult:
		var m DirectRoomResultMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSidebarSnapshot:
		var m SidebarSnapshotMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessagesSnapshot:
		var m MessagesSnapshotMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeError:
		var m ErrorMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePong:
		var m PongMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case EventMessageCreated:
		var m MessageCreatedEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case EventMessageRemoved:
		var m MessageRemovedEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case EventRoomCreated:
		var m RoomCreatedEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case EventRoomUpdated:
		var m RoomUpdatedEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case EventRoomDeleted:
		var m RoomDeletedEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case EventTyping:
		var m TypingEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case EventConnected, EventDisconnected:
		var m PresenceEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown server message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the reply or event structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
