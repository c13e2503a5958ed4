// Package protocol defines the WebSocket message types exchanged between the
// chat client and server. All messages are serialized as JSON and follow a
// consistent envelope format with a type discriminator: client-to-server
// commands in this file, server-to-client replies and channel events in
// events.go.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> Server command types.
const (
	TypeIdentify       = "identify"
	TypeSubscribe      = "subscribe"
	TypeUnsubscribe    = "unsubscribe"
	TypeMessageSend    = "message.send"
	TypeMessageRemove  = "message.remove"
	TypeTyping         = "typing"
	TypeRoomRead       = "room.read"
	TypeRoomLeave      = "room.leave"
	TypeDirectRoom     = "room.direct"
	TypeSidebarSync    = "sidebar.sync"
	TypeMessagesRecent = "messages.recent"
	TypePing           = "ping"
)

// Typing actions.
const (
	TypingStart = "start"
	TypingStop  = "stop"
)

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// IdentifyMsg binds a connection to a user identity. The token is issued by
// the external authentication layer and verified before any identity-scoped
// command is accepted.
type IdentifyMsg struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// SubscribeMsg requests a subscription to a channel, identified by its wire
// key ("room:7", "user:3", "room:7:typing", "room:7:presence").
type SubscribeMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// UnsubscribeMsg cancels an active channel subscription.
type UnsubscribeMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// MessageSendMsg creates a message in a room. ClientKey is the
// client-generated idempotency key that ties the eventual confirmed message
// back to the sender's optimistic local entry; a retry with the same key
// never produces a second message.
type MessageSendMsg struct {
	Type      string `json:"type"`
	RoomID    int64  `json:"room_id"`
	ClientKey string `json:"client_key"`
	Body      string `json:"body"`
}

// MessageRemoveMsg removes a previously confirmed message.
type MessageRemoveMsg struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// TypingMsg signals that the sender started or stopped typing in a room.
// Action is "start" or "stop".
type TypingMsg struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
	Action string `json:"action"`
}

// RoomReadMsg advances the sender's read checkpoint for a room and clears
// its unread flag.
type RoomReadMsg struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
}

// RoomLeaveMsg ends the sender's membership in a room. The sidebar drops the
// room on the resulting room.deleted event.
type RoomLeaveMsg struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
}

// DirectRoomMsg resolves the canonical direct room for a participant set.
// The requester is always included; an empty list resolves the requester's
// "self" room.
type DirectRoomMsg struct {
	Type    string  `json:"type"`
	UserIDs []int64 `json:"user_ids"`
}

// SidebarSyncMsg requests a full membership snapshot, the client's recovery
// path after a connection gap.
type SidebarSyncMsg struct {
	Type string `json:"type"`
}

// MessagesRecentMsg requests the most recent messages of a room, oldest
// first. Limit is clamped server-side.
type MessagesRecentMsg struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
	Limit  int    `json:"limit"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ParseCommand parses raw WebSocket bytes into a typed client command. It
// returns the command type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseCommand(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeIdentify:
		var m IdentifyMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSubscribe:
		var m SubscribeMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeUnsubscribe:
		var m UnsubscribeMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessageSend:
		var m MessageSendMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessageRemove:
		var m MessageRemoveMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRoomRead:
		var m RoomReadMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRoomLeave:
		var m RoomLeaveMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeDirectRoom:
		var m DirectRoomMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSidebarSync:
		var m SidebarSyncMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessagesRecent:
		var m MessagesRecentMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client command type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}
