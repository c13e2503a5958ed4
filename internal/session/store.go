// Package session manages ephemeral connection state in Redis: the binding
// from connection ID to authenticated user, and the per-room presence sets
// that the unread-marking logic consults. Nothing here is durable; a
// connection's state is deleted when it disconnects and presence entries are
// removed when the presence subscription terminates.
package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ConnPrefix is the Redis key prefix for connection session hashes.
	ConnPrefix = "conn:"

	// PresencePrefix is the Redis key prefix for per-room presence sets.
	PresencePrefix = "presence:room:"

	// ConnTTL is the time-to-live for connection keys; it is refreshed by
	// the heartbeat so only abandoned keys expire.
	ConnTTL = 1 * time.Hour
)

// Session represents one WebSocket connection's state.
type Session struct {
	ID         string `redis:"id"`
	UserID     int64  `redis:"user_id"` // 0 until identified
	Server     string `redis:"server"`  // which server instance owns the connection
	CreatedAt  int64  `redis:"created_at"`
	LastActive int64  `redis:"last_active"`
}

// Store manages connection sessions and presence sets in Redis.
type Store struct {
	client     *redis.Client
	serverName string
}

// NewStore creates a session store connected to Redis.
func NewStore(redisAddr string, serverName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName}, nil
}

// Client exposes the underlying Redis client so other components (rate
// limiter) can share the connection.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Create stores a new unidentified connection session.
func (s *Store) Create(ctx context.Context, connID string) error {
	key := ConnPrefix + connID
	now := time.Now().Unix()

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":          connID,
		"user_id":     0,
		"server":      s.serverName,
		"created_at":  now,
		"last_active": now,
	})
	pipe.Expire(ctx, key, ConnTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Bind associates an authenticated user with the connection. The TTL is
// re-applied so a bind against an expired key does not leave it unexpiring.
func (s *Store) Bind(ctx context.Context, connID string, userID int64) error {
	key := ConnPrefix + connID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "user_id", userID, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, ConnTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a connection session. Returns nil if not found.
func (s *Store) Get(ctx context.Context, connID string) (*Session, error) {
	key := ConnPrefix + connID
	var sess Session
	if err := s.client.HGetAll(ctx, key).Scan(&sess); err != nil {
		return nil, err
	}
	if sess.ID == "" {
		return nil, nil
	}
	return &sess, nil
}

// RefreshTTL extends the connection session's TTL and bumps last_active.
func (s *Store) RefreshTTL(ctx context.Context, connID string) error {
	key := ConnPrefix + connID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, ConnTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes a connection session.
func (s *Store) Delete(ctx context.Context, connID string) error {
	return s.client.Del(ctx, ConnPrefix+connID).Err()
}

// presenceMember encodes one presence-set entry. Entries carry the owning
// connection so that members left behind by a crashed instance can be
// reaped once their connection session expires.
func presenceMember(connID string, userID int64) string {
	return connID + "/" + strconv.FormatInt(userID, 10)
}

// parsePresenceMember is the inverse of presenceMember.
func parsePresenceMember(member string) (connID string, userID int64, ok bool) {
	i := strings.LastIndexByte(member, '/')
	if i < 0 {
		return "", 0, false
	}
	id, err := strconv.ParseInt(member[i+1:], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return member[:i], id, true
}

// AddPresence records that a connection is presence-connected to a room. The
// set is shared across server instances, so unread marking sees viewers on
// every instance.
func (s *Store) AddPresence(ctx context.Context, roomID, userID int64, connID string) error {
	key := PresencePrefix + strconv.FormatInt(roomID, 10)
	return s.client.SAdd(ctx, key, presenceMember(connID, userID)).Err()
}

// RemovePresence removes a connection's entry from a room's presence set.
func (s *Store) RemovePresence(ctx context.Context, roomID, userID int64, connID string) error {
	key := PresencePrefix + strconv.FormatInt(roomID, 10)
	return s.client.SRem(ctx, key, presenceMember(connID, userID)).Err()
}

// PresentUsers returns the user IDs currently presence-connected to a room.
// Members whose connection session no longer exists (the instance crashed
// without firing RemovePresence) are reaped from the set as they are seen,
// so they stop suppressing unread marking once the session TTL lapses.
func (s *Store) PresentUsers(ctx context.Context, roomID int64) ([]int64, error) {
	key := PresencePrefix + strconv.FormatInt(roomID, 10)
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("session: present users room=%d: %w", roomID, err)
	}

	var (
		ids   []int64
		seen  = make(map[int64]bool)
		stale []interface{}
	)
	for _, m := range members {
		connID, userID, ok := parsePresenceMember(m)
		if !ok {
			stale = append(stale, m)
			continue
		}
		exists, err := s.client.Exists(ctx, ConnPrefix+connID).Result()
		if err == nil && exists == 0 {
			stale = append(stale, m)
			continue
		}
		// On a Redis error, keep the member: suppressing one unread mark is
		// cheaper than flagging a room its viewer is looking at.
		if !seen[userID] {
			seen[userID] = true
			ids = append(ids, userID)
		}
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, key, stale...).Err(); err != nil {
			return ids, fmt.Errorf("session: reap presence room=%d: %w", roomID, err)
		}
	}
	return ids, nil
}
