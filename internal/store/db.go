// Package store is the transactional source of truth for rooms, memberships,
// and messages, backed by PostgreSQL. The synchronization layer (broadcast
// dispatcher, channel registry) only reads it to decide fan-out targets;
// every mutation goes through the operations defined here, and events are
// published only after the corresponding transaction has committed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Room kinds.
const (
	RoomOpen   = "open"
	RoomClosed = "closed"
	RoomDirect = "direct"
)

// Room is a messaging context: shared (open), invite-only (closed), or a
// canonical paired/self conversation (direct). DirectKey is the canonical
// participant-set key; it is set only for direct rooms and is unique.
type Room struct {
	ID           int64
	Name         string
	Kind         string
	DirectKey    string
	LastActiveAt time.Time
}

// Membership links a user to a room. Unread is a cached flag derived from
// the persisted LastReadAt checkpoint; it is recomputed on message commit
// and cleared when the checkpoint advances.
type Membership struct {
	UserID      int64
	RoomID      int64
	Involvement string
	Unread      bool
	LastReadAt  time.Time // zero if never read
	RoomName    string
	RoomKind    string
}

// Message is a confirmed, immutable message. ClientKey is the sender's
// idempotency key, empty when the client did not supply one.
type Message struct {
	ID        int64
	RoomID    int64
	CreatorID int64
	ClientKey string
	Body      string
	CreatedAt time.Time
}

// Store wraps the database handle with the chat data operations.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the given DSN and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return db, nil
}

// Migrate applies all pending schema migrations from migrationsDir.
func Migrate(databaseURL, migrationsDir string) error {
	m, err := migrate.New("file://"+migrationsDir, databaseURL)
	if err != nil {
		return fmt.Errorf("store: migrate init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// NewStore creates a Store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
