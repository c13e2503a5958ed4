// Package messaging provides a NATS client wrapper used to fan events out
// between chat server instances. Each channel key maps to one NATS subject;
// a server instance subscribes to a subject only while it has at least one
// local connection subscribed to the corresponding channel.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hearthline/hearth/internal/channel"
)

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "hearth",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Client wraps the NATS connection with per-channel-key subscriptions.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[channel.Key]*nats.Subscription
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[channel.Key]*nats.Subscription),
	}, nil
}

// Publish sends data to the subject of the given channel key. Publishing is
// fire-and-forget: there is no buffering or redelivery for instances that
// are not subscribed at publish time.
func (c *Client) Publish(key channel.Key, data []byte) error {
	if err := c.conn.Publish(key.Subject(), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", key.Subject(), err)
	}
	return nil
}

// SubscribeKey starts delivering messages published to the key's subject to
// handler. Subscribing to a key that is already subscribed is a no-op; NATS
// preserves publish order per subscription, which yields the per-channel-key
// ordering guarantee.
func (c *Client) SubscribeKey(key channel.Key, handler func(data []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[key]; ok {
		return nil
	}

	sub, err := c.conn.Subscribe(key.Subject(), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", key.Subject(), err)
	}
	c.subs[key] = sub
	return nil
}

// UnsubscribeKey stops delivery for the key's subject.
func (c *Client) UnsubscribeKey(key channel.Key) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key.Subject(), err)
	}
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", key.Subject(), err)
		}
	}
	c.subs = make(map[channel.Key]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
