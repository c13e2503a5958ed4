// Package ws handles WebSocket connection management: upgrading HTTP
// connections, maintaining active client connections, and dispatching
// incoming commands to the appropriate handlers. Each connection is read by
// its own goroutine; writes are serialized per connection.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/hearthline/hearth/internal/metrics"
)

// SessionStore is the connection-session backend maintained alongside each
// WebSocket connection. The Redis-backed session store implements it.
type SessionStore interface {
	Create(ctx context.Context, connID string) error
	RefreshTTL(ctx context.Context, connID string) error
	Delete(ctx context.Context, connID string) error
}

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	MaxConnections int           // hard cap on total connections
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with sensible production
// defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		MaxConnections: 50000,
		WriteTimeout:   10 * time.Second,
	}
}

// Server is the WebSocket server built on gobwas/ws. It upgrades HTTP
// connections, registers them with the connection manager, and runs one
// reader goroutine per connection that feeds complete text frames to the
// onMessage callback.
type Server struct {
	config       ServerConfig
	conns        *ConnectionManager
	sessionStore SessionStore
	onMessage    func(conn *Connection, data []byte)
	onDisconnect func(conn *Connection)
	httpServer   *http.Server
	done         chan struct{}
	startedAt    time.Time
}

// NewServer creates a Server with the given configuration, session store,
// and message callback. The onMessage function is called from the
// connection's reader goroutine whenever a complete WebSocket text frame is
// received.
func NewServer(config ServerConfig, sessionStore SessionStore, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:       config,
		conns:        NewConnectionManager(),
		sessionStore: sessionStore,
		onMessage:    onMessage,
		done:         make(chan struct{}),
	}
}

// SetOnDisconnect registers a callback invoked when a connection is removed
// (read error, heartbeat timeout, or graceful close). It runs before the
// Redis session is deleted so the handler can inspect session state.
func (s *Server) SetOnDisconnect(fn func(conn *Connection)) {
	s.onDisconnect = fn
}

// Start configures the HTTP server and begins accepting WebSocket
// connections. It starts the heartbeat monitor and blocks on
// http.Server.ListenAndServe.
func (s *Server) Start(extra map[string]http.Handler) error {
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	for path, handler := range extra {
		mux.Handle(path, handler)
	}

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: mux,
	}

	StartHeartbeat(s, DefaultHeartbeatConfig())

	log.Printf("ws: server listening on %s (max_conns=%d)",
		s.config.ListenAddr, s.config.MaxConnections)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// handleUpgrade upgrades an HTTP request to a WebSocket connection using the
// gobwas/ws zero-copy upgrader, registers the connection, and starts its
// reader goroutine.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := &Connection{
		ID:        uuid.New().String(),
		Conn:      conn,
		CreatedAt: time.Now(),
	}
	c.TouchPing()

	s.conns.Add(c)
	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	if s.sessionStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.sessionStore.Create(ctx, c.ID); err != nil {
			log.Printf("ws: failed to create redis session for %s: %v", c.ID, err)
		}
	}

	go s.readLoop(c)

	log.Printf("ws: new connection conn=%s (total=%d)", c.ID, s.conns.Count())
}

// readLoop reads WebSocket frames from the connection until it fails or
// closes. wsutil.ReadClientData transparently answers control frames, so
// only complete data frames reach the message callback.
func (s *Server) readLoop(c *Connection) {
	defer s.RemoveConnection(c)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		data, op, err := wsutil.ReadClientData(c.Conn)
		if err != nil {
			if err != io.EOF {
				if _, ok := err.(wsutil.ClosedError); !ok {
					log.Printf("ws: read error conn=%s: %v", c.ID, err)
				}
			}
			return
		}

		c.TouchPing()

		if op != ws.OpText || len(data) == 0 {
			continue
		}

		if s.onMessage != nil {
			s.onMessage(c, data)
		}
	}
}

// handleHealth responds with the server's health status as JSON, including
// the current connection count and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// RemoveConnection removes a connection from the manager and closes the
// underlying network connection. It is exported so the heartbeat monitor can
// evict dead connections.
func (s *Server) RemoveConnection(c *Connection) {
	// Only proceed if the connection was actually in the manager. This
	// prevents double cleanup when the reader goroutine and the heartbeat
	// race to remove the same connection.
	if !s.conns.Remove(c.ID) {
		return
	}
	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	if s.onDisconnect != nil {
		s.onDisconnect(c)
	}

	if s.sessionStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.sessionStore.Delete(ctx, c.ID); err != nil {
			log.Printf("ws: failed to delete redis session for %s: %v", c.ID, err)
		}
	}

	log.Printf("ws: connection closed conn=%s (total=%d)", c.ID, s.conns.Count())
}

// Connections returns the ConnectionManager for external access to
// connection state.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown performs a graceful shutdown: it stops the HTTP listener, signals
// the reader goroutines to exit, and closes all active connections.
func (s *Server) Shutdown() error {
	log.Println("ws: shutting down server...")

	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("ws: http shutdown error: %v", err)
		}
	}

	for _, c := range s.conns.All() {
		if s.sessionStore != nil {
			delCtx, delCancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = s.sessionStore.Delete(delCtx, c.ID)
			delCancel()
		}
		c.Close()
	}

	log.Printf("ws: server stopped, all connections closed")
	return nil
}
