package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateRoom inserts an open or closed room and memberships for the given
// users in one transaction. Direct rooms are created only through
// FindOrCreateDirectRoom.
func (s *Store) CreateRoom(ctx context.Context, name, kind string, memberIDs []int64) (Room, error) {
	if kind != RoomOpen && kind != RoomClosed {
		return Room{}, fmt.Errorf("store: invalid room kind %q", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, fmt.Errorf("store: create room begin: %w", err)
	}
	defer tx.Rollback()

	var room Room
	room.Name = name
	room.Kind = kind
	err = tx.QueryRowContext(ctx,
		`INSERT INTO rooms (name, kind) VALUES ($1, $2) RETURNING id, last_active_at`,
		name, kind,
	).Scan(&room.ID, &room.LastActiveAt)
	if err != nil {
		return Room{}, fmt.Errorf("store: create room: %w", err)
	}

	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memberships (user_id, room_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, room.ID,
		); err != nil {
			return Room{}, fmt.Errorf("store: create room membership: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Room{}, fmt.Errorf("store: create room commit: %w", err)
	}
	return room, nil
}

// Room fetches a room by ID. Returns ErrNotFound if it does not exist.
func (s *Store) Room(ctx context.Context, id int64) (Room, error) {
	var (
		room      Room
		directKey sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, direct_key, last_active_at FROM rooms WHERE id = $1`,
		id,
	).Scan(&room.ID, &room.Name, &room.Kind, &directKey, &room.LastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("store: room %d: %w", id, err)
	}
	room.DirectKey = directKey.String
	return room, nil
}

// DeleteRoom removes a room. Memberships and messages cascade.
func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete room %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
