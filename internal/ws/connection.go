package ws

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection represents a single WebSocket client connection with its
// associated metadata and a write mutex for serializing outbound frames. It
// satisfies the registry's Subscriber interface, so the channel registry can
// deliver events to it directly.
type Connection struct {
	ID        string    // connection ID (UUID)
	Conn      net.Conn  // underlying TCP connection
	CreatedAt time.Time // when the connection was established

	userID   atomic.Int64 // 0 until the client identifies
	lastPing atomic.Int64 // unix nano of the last successful read
	writeMu  sync.Mutex   // serializes writes to this connection
}

// ConnID returns the connection's unique ID.
func (c *Connection) ConnID() string { return c.ID }

// UserID returns the authenticated user ID, or 0 if the connection has not
// identified yet.
func (c *Connection) UserID() int64 { return c.userID.Load() }

// SetUserID binds the connection to an authenticated user.
func (c *Connection) SetUserID(id int64) { c.userID.Store(id) }

// TouchPing records read activity for heartbeat staleness checks.
func (c *Connection) TouchPing() { c.lastPing.Store(time.Now().UnixNano()) }

// LastPing returns the time of the last successful read.
func (c *Connection) LastPing() time.Time { return time.Unix(0, c.lastPing.Load()) }

// Send writes a WebSocket text frame to this connection. The write mutex
// ensures that concurrent goroutines do not interleave frame bytes.
func (c *Connection) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9) on the
// connection. The write mutex ensures this does not interleave with other
// outbound frames.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager is a thread-safe registry mapping connection IDs to
// their Connection objects.
type ConnectionManager struct {
	mu   sync.RWMutex
	byID map[string]*Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID: make(map[string]*Connection),
	}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.mu.Unlock()
}

// Remove removes a connection by ID and closes the underlying network
// connection. Returns true if the connection was found and removed, false if
// it was already gone.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given ID, or nil if not found.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
