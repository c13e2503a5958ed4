package broadcast

import (
	"log"

	"github.com/hearthline/hearth/internal/channel"
	"github.com/hearthline/hearth/internal/metrics"
	"github.com/hearthline/hearth/internal/registry"
)

// Subjects is the subset of the NATS client the bridge needs.
type Subjects interface {
	SubscribeKey(key channel.Key, handler func(data []byte)) error
	UnsubscribeKey(key channel.Key) error
}

// Bridge ties the registry's key activity to NATS subject subscriptions:
// when a channel key gains its first local subscriber the bridge subscribes
// to the matching subject and forwards every received event to the
// registry's active subscriber snapshot; when the last local subscriber
// leaves, the subject is dropped.
type Bridge struct {
	subjects Subjects
	reg      *registry.Registry
}

// NewBridge wires the bridge into the registry's key-activity hooks.
func NewBridge(subjects Subjects, reg *registry.Registry) *Bridge {
	b := &Bridge{subjects: subjects, reg: reg}
	reg.OnKeyActivity(b.keyActive, b.keyIdle)
	return b
}

func (b *Bridge) keyActive(key channel.Key) {
	err := b.subjects.SubscribeKey(key, func(data []byte) {
		delivered := b.reg.Deliver(key, data)
		metrics.EventsDelivered.Add(float64(delivered))
	})
	if err != nil {
		log.Printf("[broadcast] subscribe %s: %v", key, err)
	}
}

func (b *Bridge) keyIdle(key channel.Key) {
	if err := b.subjects.UnsubscribeKey(key); err != nil {
		log.Printf("[broadcast] unsubscribe %s: %v", key, err)
	}
}
