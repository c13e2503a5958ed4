// Package broadcast publishes typed events to channel keys after state
// mutations commit, and bridges published events back into the local channel
// registry. Publishing is fire-and-forget: subscribers that are offline at
// publish time never receive the event, and recovery is the client's full
// resynchronization.
package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthline/hearth/internal/channel"
	"github.com/hearthline/hearth/internal/metrics"
	"github.com/hearthline/hearth/internal/protocol"
)

// Publisher sends an encoded event to a channel key. The NATS messaging
// client implements it.
type Publisher interface {
	Publish(key channel.Key, data []byte) error
}

// Dispatcher turns committed mutations into channel events. Callers must
// invoke it only after the underlying write is durably committed, so that no
// receiver is told about state it cannot yet read back.
type Dispatcher struct {
	pub Publisher
}

// NewDispatcher creates a Dispatcher publishing through pub.
func NewDispatcher(pub Publisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

func (d *Dispatcher) publish(key channel.Key, eventType string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("broadcast: marshal %s: %w", eventType, err)
	}
	if err := d.pub.Publish(key, data); err != nil {
		return fmt.Errorf("broadcast: publish %s to %s: %w", eventType, key, err)
	}
	metrics.EventsPublished.WithLabelValues(eventType).Inc()
	return nil
}

// MessageCreated publishes message.created to the room channel and
// room.updated to every member's user channel. The sender receives its own
// echo on the room channel and reconciles it by idempotency key.
func (d *Dispatcher) MessageCreated(msg protocol.Message, memberIDs []int64) error {
	if err := d.publish(channel.RoomKey(msg.RoomID), protocol.EventMessageCreated, protocol.MessageCreatedEvent{
		Type:    protocol.EventMessageCreated,
		Message: msg,
	}); err != nil {
		return err
	}

	for _, userID := range memberIDs {
		if err := d.publish(channel.UserKey(userID), protocol.EventRoomUpdated, protocol.RoomUpdatedEvent{
			Type:      protocol.EventRoomUpdated,
			RoomID:    msg.RoomID,
			Timestamp: msg.CreatedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

// MessageRemoved publishes message.removed to the room channel only.
func (d *Dispatcher) MessageRemoved(roomID, messageID int64) error {
	return d.publish(channel.RoomKey(roomID), protocol.EventMessageRemoved, protocol.MessageRemovedEvent{
		Type: protocol.EventMessageRemoved,
		ID:   messageID,
	})
}

// RoomCreated publishes room.created to each participant's user channel,
// carrying that participant's own membership.
func (d *Dispatcher) RoomCreated(memberships []protocol.Membership) error {
	for _, m := range memberships {
		if err := d.publish(channel.UserKey(m.UserID), protocol.EventRoomCreated, protocol.RoomCreatedEvent{
			Type:       protocol.EventRoomCreated,
			Membership: m,
		}); err != nil {
			return err
		}
	}
	return nil
}

// RoomUpdated publishes room.updated for a room to every member's user
// channel, used for non-message activity such as renames.
func (d *Dispatcher) RoomUpdated(roomID int64, at time.Time, memberIDs []int64) error {
	for _, userID := range memberIDs {
		if err := d.publish(channel.UserKey(userID), protocol.EventRoomUpdated, protocol.RoomUpdatedEvent{
			Type:      protocol.EventRoomUpdated,
			RoomID:    roomID,
			Timestamp: at.UnixMilli(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// RoomDeleted publishes room.deleted to each affected user's channel after
// their membership ends, so their sidebar drops the room.
func (d *Dispatcher) RoomDeleted(roomID int64, userIDs []int64) error {
	for _, userID := range userIDs {
		if err := d.publish(channel.UserKey(userID), protocol.EventRoomDeleted, protocol.RoomDeletedEvent{
			Type:   protocol.EventRoomDeleted,
			RoomID: roomID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Typing publishes a typing start/stop event to the room's typing channel.
func (d *Dispatcher) Typing(roomID, userID int64, action string) error {
	return d.publish(channel.TypingKey(roomID), protocol.EventTyping, protocol.TypingEvent{
		Type:   protocol.EventTyping,
		Action: action,
		UserID: userID,
	})
}

// Presence publishes connected/disconnected to the room's presence channel.
func (d *Dispatcher) Presence(roomID, userID int64, connected bool) error {
	eventType := protocol.EventConnected
	if !connected {
		eventType = protocol.EventDisconnected
	}
	return d.publish(channel.PresenceKey(roomID), eventType, protocol.PresenceEvent{
		Type:   eventType,
		UserID: userID,
	})
}
