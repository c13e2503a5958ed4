package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NormalizeParticipants returns the canonical participant set for a direct
// room: the requester plus the given user IDs, deduplicated and sorted. A
// requester with no other participants yields the singleton "self" set.
func NormalizeParticipants(requester int64, userIDs []int64) []int64 {
	seen := map[int64]bool{requester: true}
	ids := []int64{requester}
	for _, id := range userIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ParticipantSetKey renders a normalized participant set as the canonical,
// order-independent key stored in rooms.direct_key. Equal sets always
// produce equal keys.
func ParticipantSetKey(ids []int64) string {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, 0, len(sorted))
	var last int64
	for i, id := range sorted {
		if i > 0 && id == last {
			continue
		}
		parts = append(parts, strconv.FormatInt(id, 10))
		last = id
	}
	return strings.Join(parts, ":")
}

// FindOrCreateDirectRoom resolves the single canonical direct room for a
// participant set, creating it (with its memberships) if it does not exist.
// Two concurrent calls with the same set may both attempt the insert; the
// loser hits the unique constraint on direct_key, and recovers by re-reading
// the winner's row. Callers always receive the same room, never a
// constraint error. The created flag is true only for the call that actually
// inserted the room.
func (s *Store) FindOrCreateDirectRoom(ctx context.Context, participantIDs []int64) (Room, bool, error) {
	if len(participantIDs) == 0 {
		return Room{}, false, fmt.Errorf("store: direct room requires at least one participant")
	}
	key := ParticipantSetKey(participantIDs)

	if room, err := s.directRoomByKey(ctx, key); err == nil {
		return room, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Room{}, false, err
	}

	room, err := s.insertDirectRoom(ctx, key, participantIDs)
	if err == nil {
		return room, true, nil
	}
	if !isUniqueViolation(err) {
		return Room{}, false, err
	}

	// Lost the creation race: the other caller's row is now visible.
	room, err = s.directRoomByKey(ctx, key)
	if err != nil {
		return Room{}, false, fmt.Errorf("store: direct room race recovery: %w", err)
	}
	return room, false, nil
}

func (s *Store) directRoomByKey(ctx context.Context, key string) (Room, error) {
	var room Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, direct_key, last_active_at
		 FROM rooms WHERE kind = 'direct' AND direct_key = $1`,
		key,
	).Scan(&room.ID, &room.Name, &room.Kind, &room.DirectKey, &room.LastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("store: direct room by key: %w", err)
	}
	return room, nil
}

func (s *Store) insertDirectRoom(ctx context.Context, key string, participantIDs []int64) (Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, fmt.Errorf("store: direct room begin: %w", err)
	}
	defer tx.Rollback()

	room := Room{Kind: RoomDirect, DirectKey: key}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO rooms (name, kind, direct_key) VALUES ('', 'direct', $1)
		 RETURNING id, last_active_at`,
		key,
	).Scan(&room.ID, &room.LastActiveAt)
	if err != nil {
		return Room{}, err
	}

	for _, userID := range participantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memberships (user_id, room_id) VALUES ($1, $2)`,
			userID, room.ID,
		); err != nil {
			return Room{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Room{}, err
	}
	return room, nil
}
