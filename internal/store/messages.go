package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateMessage inserts a message and bumps the room's last-activity
// timestamp in one transaction. If clientKey is non-empty and a message with
// the same (room, clientKey) already exists — a retried or replayed send —
// the existing row is returned and created is false. The idempotency
// guarantee comes from the partial unique index on (room_id, client_key),
// not from a check-then-insert.
func (s *Store) CreateMessage(ctx context.Context, roomID, creatorID int64, clientKey, body string) (Message, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, false, fmt.Errorf("store: create message begin: %w", err)
	}
	defer tx.Rollback()

	msg := Message{
		RoomID:    roomID,
		CreatorID: creatorID,
		ClientKey: clientKey,
		Body:      body,
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (room_id, creator_id, client_key, body)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (room_id, client_key) WHERE client_key <> '' DO NOTHING
		 RETURNING id, created_at`,
		roomID, creatorID, clientKey, body,
	).Scan(&msg.ID, &msg.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict on the idempotency key: return the confirmed original.
		existing, lookupErr := s.MessageByClientKey(ctx, roomID, clientKey)
		if lookupErr != nil {
			return Message{}, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("store: create message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE rooms SET last_active_at = $1 WHERE id = $2`,
		msg.CreatedAt, roomID,
	); err != nil {
		return Message{}, false, fmt.Errorf("store: touch room %d: %w", roomID, err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, false, fmt.Errorf("store: create message commit: %w", err)
	}
	return msg, true, nil
}

// MessageByClientKey fetches a confirmed message by its idempotency key.
func (s *Store) MessageByClientKey(ctx context.Context, roomID int64, clientKey string) (Message, error) {
	var msg Message
	err := s.db.QueryRowContext(ctx,
		`SELECT id, room_id, creator_id, client_key, body, created_at
		 FROM messages WHERE room_id = $1 AND client_key = $2`,
		roomID, clientKey,
	).Scan(&msg.ID, &msg.RoomID, &msg.CreatorID, &msg.ClientKey, &msg.Body, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("store: message by client key: %w", err)
	}
	return msg, nil
}

// RemoveMessage deletes a message if creatorID is its creator, returning the
// room it belonged to for the removal broadcast. Returns ErrNotFound when
// the message does not exist or belongs to someone else.
func (s *Store) RemoveMessage(ctx context.Context, id, creatorID int64) (int64, error) {
	var roomID int64
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM messages WHERE id = $1 AND creator_id = $2 RETURNING room_id`,
		id, creatorID,
	).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("store: remove message %d: %w", id, err)
	}
	return roomID, nil
}

// RecentMessages returns the last limit messages of a room in chronological
// order (oldest first). It backs the client's resynchronization path.
func (s *Store) RecentMessages(ctx context.Context, roomID int64, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, creator_id, client_key, body, created_at
		 FROM messages WHERE room_id = $1 ORDER BY id DESC LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.CreatorID, &msg.ClientKey, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent messages rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
