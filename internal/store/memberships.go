package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// IsMember reports whether userID currently holds a membership in roomID.
// The channel registry uses this as its authorization check for room-scoped
// subscriptions.
func (s *Store) IsMember(ctx context.Context, userID, roomID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM memberships WHERE user_id = $1 AND room_id = $2)`,
		userID, roomID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("store: is member: %w", err)
	}
	return ok, nil
}

// RoomMemberIDs returns the user IDs of every member of a room. These are
// the fan-out targets for room.updated broadcasts.
func (s *Store) RoomMemberIDs(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM memberships WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, fmt.Errorf("store: room members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: room members rows: %w", err)
	}
	return ids, nil
}

// CreateMembership joins a user to a room. Idempotent.
func (s *Store) CreateMembership(ctx context.Context, userID, roomID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, room_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roomID,
	)
	if err != nil {
		return fmt.Errorf("store: create membership: %w", err)
	}
	return nil
}

// DeleteMembership removes a user from a room.
func (s *Store) DeleteMembership(ctx context.Context, userID, roomID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1 AND room_id = $2`,
		userID, roomID,
	)
	if err != nil {
		return fmt.Errorf("store: delete membership: %w", err)
	}
	return nil
}

// MarkUnread flags the memberships of a room whose read checkpoint predates
// messageAt, excluding the message author and every user currently
// presence-connected to the room. It returns the user IDs that were flagged.
func (s *Store) MarkUnread(ctx context.Context, roomID int64, messageAt time.Time, exclude []int64) ([]int64, error) {
	if exclude == nil {
		exclude = []int64{}
	}

	rows, err := s.db.QueryContext(ctx,
		`UPDATE memberships
		 SET unread = true
		 WHERE room_id = $1
		   AND user_id <> ALL($2)
		   AND (last_read_at IS NULL OR last_read_at < $3)
		 RETURNING user_id`,
		roomID, pq.Array(exclude), messageAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: mark unread: %w", err)
	}
	defer rows.Close()

	var flagged []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan unread: %w", err)
		}
		flagged = append(flagged, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: mark unread rows: %w", err)
	}
	return flagged, nil
}

// MarkRead advances the user's read checkpoint for a room and clears the
// cached unread flag. Last write wins; there is no cross-device merge.
func (s *Store) MarkRead(ctx context.Context, userID, roomID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET unread = false, last_read_at = $3
		 WHERE user_id = $1 AND room_id = $2`,
		userID, roomID, at,
	)
	if err != nil {
		return fmt.Errorf("store: mark read: %w", err)
	}
	return nil
}

// MembershipsForUser returns the user's memberships joined with room data,
// split into direct rooms and all others, each ordered by the room's latest
// activity (most recent first). This is the sidebar resync snapshot.
func (s *Store) MembershipsForUser(ctx context.Context, userID int64) (direct, other []Membership, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.user_id, m.room_id, m.involvement, m.unread, m.last_read_at, r.name, r.kind
		 FROM memberships m
		 JOIN rooms r ON r.id = m.room_id
		 WHERE m.user_id = $1
		 ORDER BY r.last_active_at DESC`,
		userID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("store: memberships for user: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m          Membership
			lastReadAt sql.NullTime
		)
		if err := rows.Scan(&m.UserID, &m.RoomID, &m.Involvement, &m.Unread, &lastReadAt, &m.RoomName, &m.RoomKind); err != nil {
			return nil, nil, fmt.Errorf("store: scan membership: %w", err)
		}
		m.LastReadAt = lastReadAt.Time

		if m.RoomKind == RoomDirect {
			direct = append(direct, m)
		} else {
			other = append(other, m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("store: memberships rows: %w", err)
	}
	return direct, other, nil
}

// MembershipsForRoom returns every membership of a room joined with room
// data, used to build room.created payloads per participant.
func (s *Store) MembershipsForRoom(ctx context.Context, roomID int64) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.user_id, m.room_id, m.involvement, m.unread, m.last_read_at, r.name, r.kind
		 FROM memberships m
		 JOIN rooms r ON r.id = m.room_id
		 WHERE m.room_id = $1`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: memberships for room: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var (
			m          Membership
			lastReadAt sql.NullTime
		)
		if err := rows.Scan(&m.UserID, &m.RoomID, &m.Involvement, &m.Unread, &lastReadAt, &m.RoomName, &m.RoomKind); err != nil {
			return nil, fmt.Errorf("store: scan membership: %w", err)
		}
		m.LastReadAt = lastReadAt.Time
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: memberships rows: %w", err)
	}
	return memberships, nil
}
