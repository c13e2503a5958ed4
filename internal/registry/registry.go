// Package registry tracks which connection is subscribed to which channel
// and delivers published events to the active subscriber set. It replaces
// implicit per-connection subscriber graphs with an explicit mapping from
// channel key to a concurrency-safe set of connection handles, mutated under
// a single lock.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hearthline/hearth/internal/channel"
)

// ErrUnauthorized is returned when the subscribing identity may not access
// the requested channel. It is terminal: the client must not retry.
var ErrUnauthorized = errors.New("registry: unauthorized subscription")

// State is the lifecycle of a subscription.
type State int

const (
	StateRequested State = iota
	StateAuthorized
	StateActive
	StateTerminated
)

// String implements fmt.Stringer for log lines.
func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateAuthorized:
		return "authorized"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Subscriber is a connection handle the registry can deliver events to.
type Subscriber interface {
	ConnID() string
	UserID() int64
	Send(data []byte) error
}

// MembershipChecker answers whether a user currently holds a membership in a
// room. The store implements it against the source of truth.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
}

// KeyHook is invoked when a channel key gains its first local subscriber or
// loses its last one. The broadcast bridge uses it to manage per-key NATS
// subscriptions. Hooks run with the registry lock held so that first/last
// transitions for a key reach the hook in the order they happened; a hook
// must not call back into the Registry.
type KeyHook func(key channel.Key)

// PresenceFunc is invoked when a presence-channel subscription becomes
// active or terminates. The unread-state logic consumes these signals.
type PresenceFunc func(roomID, userID int64, connID string, connected bool)

type subscription struct {
	key   channel.Key
	sub   Subscriber
	state State
}

// Registry is the channel subscription manager. All maps are guarded by mu;
// event delivery works on a snapshot taken under the read lock, so a
// subscriber added after publish never receives the event and there is no
// backfill.
type Registry struct {
	mu      sync.RWMutex
	checker MembershipChecker

	byKey  map[channel.Key]map[string]*subscription
	byConn map[string]map[channel.Key]*subscription

	onFirstSubscriber KeyHook
	onLastSubscriber  KeyHook
	onPresence        PresenceFunc
}

// New creates an empty Registry that authorizes room-scoped subscriptions
// through checker.
func New(checker MembershipChecker) *Registry {
	return &Registry{
		checker: checker,
		byKey:   make(map[channel.Key]map[string]*subscription),
		byConn:  make(map[string]map[channel.Key]*subscription),
	}
}

// OnKeyActivity registers the hooks called when a key gains its first local
// subscriber and when it loses its last one.
func (r *Registry) OnKeyActivity(first, last KeyHook) {
	r.onFirstSubscriber = first
	r.onLastSubscriber = last
}

// OnPresence registers the callback for presence subscription transitions.
func (r *Registry) OnPresence(fn PresenceFunc) {
	r.onPresence = fn
}

// Subscribe takes a subscription through Requested -> Authorized -> Active.
// User channels are authorized only for the subscriber's own identity; room,
// typing, and presence channels require a current membership. Authorization
// failures return ErrUnauthorized. Subscribing twice to the same key is
// idempotent.
func (r *Registry) Subscribe(ctx context.Context, sub Subscriber, key channel.Key) error {
	state := StateRequested

	switch {
	case key.Kind == channel.KindUser:
		if sub.UserID() != key.ID {
			return ErrUnauthorized
		}
	case key.RoomScoped():
		ok, err := r.checker.IsMember(ctx, sub.UserID(), key.ID)
		if err != nil {
			return fmt.Errorf("registry: membership check for %s: %w", key, err)
		}
		if !ok {
			return ErrUnauthorized
		}
	default:
		return fmt.Errorf("registry: unknown channel kind %q", key.Kind)
	}
	state = StateAuthorized

	r.mu.Lock()
	if _, exists := r.byConn[sub.ConnID()][key]; exists {
		r.mu.Unlock()
		return nil
	}

	s := &subscription{key: key, sub: sub, state: state}
	if r.byKey[key] == nil {
		r.byKey[key] = make(map[string]*subscription)
	}
	if r.byConn[sub.ConnID()] == nil {
		r.byConn[sub.ConnID()] = make(map[channel.Key]*subscription)
	}
	r.byKey[key][sub.ConnID()] = s
	r.byConn[sub.ConnID()][key] = s
	s.state = StateActive
	if len(r.byKey[key]) == 1 && r.onFirstSubscriber != nil {
		r.onFirstSubscriber(key)
	}
	r.mu.Unlock()

	if key.Kind == channel.KindPresence && r.onPresence != nil {
		r.onPresence(key.ID, sub.UserID(), sub.ConnID(), true)
	}
	return nil
}

// Unsubscribe terminates one subscription. It is a no-op if the connection
// does not hold it.
func (r *Registry) Unsubscribe(connID string, key channel.Key) {
	r.mu.Lock()
	s, ok := r.byConn[connID][key]
	if ok {
		s.state = StateTerminated
		delete(r.byConn[connID], key)
		if len(r.byConn[connID]) == 0 {
			delete(r.byConn, connID)
		}
		delete(r.byKey[key], connID)
		if len(r.byKey[key]) == 0 {
			delete(r.byKey, key)
			if r.onLastSubscriber != nil {
				r.onLastSubscriber(key)
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if key.Kind == channel.KindPresence && r.onPresence != nil {
		r.onPresence(key.ID, s.sub.UserID(), connID, false)
	}
}

// DropConnection terminates every subscription held by a connection, firing
// the same hooks as explicit unsubscribes. Called on connection loss.
func (r *Registry) DropConnection(connID string) {
	r.mu.Lock()
	subs := r.byConn[connID]
	delete(r.byConn, connID)

	var presence []*subscription
	for key, s := range subs {
		s.state = StateTerminated
		delete(r.byKey[key], connID)
		if len(r.byKey[key]) == 0 {
			delete(r.byKey, key)
			if r.onLastSubscriber != nil {
				r.onLastSubscriber(key)
			}
		}
		if key.Kind == channel.KindPresence {
			presence = append(presence, s)
		}
	}
	r.mu.Unlock()

	if r.onPresence != nil {
		for _, s := range presence {
			r.onPresence(s.key.ID, s.sub.UserID(), connID, false)
		}
	}
}

// Deliver sends data to the snapshot of active subscribers for key at the
// time of the call, and returns how many subscribers were targeted. Send
// errors on individual connections are ignored; dead connections are
// reclaimed by the transport's heartbeat.
func (r *Registry) Deliver(key channel.Key, data []byte) int {
	r.mu.RLock()
	targets := make([]Subscriber, 0, len(r.byKey[key]))
	for _, s := range r.byKey[key] {
		targets = append(targets, s.sub)
	}
	r.mu.RUnlock()

	for _, sub := range targets {
		_ = sub.Send(data)
	}
	return len(targets)
}

// HasSubscribers reports whether any connection is actively subscribed to
// key on this server instance.
func (r *Registry) HasSubscribers(key channel.Key) bool {
	r.mu.RLock()
	n := len(r.byKey[key])
	r.mu.RUnlock()
	return n > 0
}

// Subscriptions returns the number of active subscriptions held by a
// connection.
func (r *Registry) Subscriptions(connID string) int {
	r.mu.RLock()
	n := len(r.byConn[connID])
	r.mu.RUnlock()
	return n
}

// ActiveKeys returns the number of channel keys with at least one local
// subscriber, for metrics.
func (r *Registry) ActiveKeys() int {
	r.mu.RLock()
	n := len(r.byKey)
	r.mu.RUnlock()
	return n
}
