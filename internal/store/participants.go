package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
)

const participantCols = `id, room_id, session_id, display_name, is_host, connection_status, ready,
	total_score, team_id, joined_at, last_seen_at`

func scanParticipant(row scanner) (battle.Participant, error) {
	var (
		p            battle.Participant
		conn         string
		team         sql.NullString
		joined, seen int64
	)
	err := row.Scan(&p.ID, &p.RoomID, &p.SessionID, &p.DisplayName, &p.IsHost, &conn, &p.Ready,
		&p.TotalScore, &team, &joined, &seen)
	if err != nil {
		return battle.Participant{}, err
	}
	p.ConnectionStatus = battle.ConnectionStatus(conn)
	p.TeamID = stringPtr(team)
	p.JoinedAt = fromMillis(joined)
	p.LastSeenAt = fromMillis(seen)
	return p, nil
}

// JoinRoom adds the session to the room or, if it already has a row,
// refreshes its display name and marks it online. The bool result is true
// only when a new row was created. New rows are refused with ErrRoomFull
// at capacity and ErrNotJoinable once the room has left the waiting state.
//
// The no-op UPDATE on the room row takes a write lock first, which
// serializes concurrent joins to the same room on both SQLite and Postgres.
func (s *SQLStore) JoinRoom(ctx context.Context, jp JoinParams, capacity int) (battle.Participant, bool, error) {
	var (
		out     battle.Participant
		created bool
	)
	now := toMillis(time.Now())

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var status, mode string
		err := s.queryRow(ctx, tx,
			`UPDATE rooms SET status = status WHERE id = ? RETURNING status, battle_mode`, jp.RoomID,
		).Scan(&status, &mode)
		if err != nil {
			return notFound(err)
		}

		existing, err := scanParticipant(s.queryRow(ctx, tx, `
			UPDATE participants SET display_name = ?, connection_status = 'online', last_seen_at = ?
			WHERE room_id = ? AND session_id = ?
			RETURNING `+participantCols,
			jp.DisplayName, now, jp.RoomID, jp.SessionID))
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("refreshing participant: %w", err)
		}

		if battle.RoomStatus(status) != battle.RoomWaiting {
			return ErrNotJoinable
		}

		var count int
		if err := s.queryRow(ctx, tx,
			`SELECT COUNT(*) FROM participants WHERE room_id = ?`, jp.RoomID).Scan(&count); err != nil {
			return fmt.Errorf("counting participants: %w", err)
		}
		if count >= capacity {
			return ErrRoomFull
		}

		var team sql.NullString
		if battle.BattleMode(mode) == battle.ModeTeam {
			id, err := s.pickTeam(ctx, tx, jp.RoomID, jp.PreferredTeam)
			if err != nil {
				return err
			}
			team = sql.NullString{String: id, Valid: true}
		}

		out, err = scanParticipant(s.queryRow(ctx, tx, `
			INSERT INTO participants (id, room_id, session_id, display_name, is_host, connection_status,
				ready, total_score, team_id, joined_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?, 'online', ?, 0, ?, ?, ?)
			RETURNING `+participantCols,
			jp.ID, jp.RoomID, jp.SessionID, jp.DisplayName, s.d.boolean(false), s.d.boolean(false),
			team, now, now))
		if err != nil {
			return fmt.Errorf("inserting participant: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return battle.Participant{}, false, err
	}
	return out, created, nil
}

// pickTeam honors a preferred team name when given, otherwise picks the
// team with fewer members (red on ties).
func (s *SQLStore) pickTeam(ctx context.Context, tx *sql.Tx, roomID, preferred string) (string, error) {
	rows, err := s.query(ctx, tx, `
		SELECT t.id, t.name, COUNT(p.id)
		FROM teams t
		LEFT JOIN participants p ON p.team_id = t.id
		WHERE t.room_id = ?
		GROUP BY t.id, t.name
		ORDER BY COUNT(p.id) ASC, t.name DESC
	`, roomID)
	if err != nil {
		return "", fmt.Errorf("counting team members: %w", err)
	}
	defer rows.Close()

	var first string
	for rows.Next() {
		var (
			id, name string
			members  int
		)
		if err := rows.Scan(&id, &name, &members); err != nil {
			return "", fmt.Errorf("scanning team: %w", err)
		}
		if first == "" {
			first = id
		}
		if preferred != "" && name == preferred {
			return id, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("room %s has no teams", roomID)
	}
	return first, nil
}

func (s *SQLStore) GetParticipant(ctx context.Context, roomID, sessionID string) (battle.Participant, error) {
	p, err := scanParticipant(s.queryRow(ctx, s.db,
		`SELECT `+participantCols+` FROM participants WHERE room_id = ? AND session_id = ?`,
		roomID, sessionID))
	if err != nil {
		return battle.Participant{}, notFound(err)
	}
	return p, nil
}

// ListParticipants returns the room's participants in join order.
func (s *SQLStore) ListParticipants(ctx context.Context, roomID string) ([]battle.Participant, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT `+participantCols+` FROM participants WHERE room_id = ? ORDER BY joined_at, id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var out []battle.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetReady(ctx context.Context, roomID, sessionID string, ready bool) error {
	ok, err := changed(s.exec(ctx, s.db, `
		UPDATE participants SET ready = ?, last_seen_at = ?
		WHERE room_id = ? AND session_id = ?
	`, s.d.boolean(ready), toMillis(time.Now()), roomID, sessionID))
	if err != nil {
		return fmt.Errorf("setting ready: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ClearReady(ctx context.Context, roomID string) error {
	if _, err := s.exec(ctx, s.db,
		`UPDATE participants SET ready = ? WHERE room_id = ?`, s.d.boolean(false), roomID); err != nil {
		return fmt.Errorf("clearing ready flags: %w", err)
	}
	return nil
}

func (s *SQLStore) SetConnectionStatus(ctx context.Context, roomID, sessionID string, status battle.ConnectionStatus) error {
	ok, err := changed(s.exec(ctx, s.db, `
		UPDATE participants SET connection_status = ?, last_seen_at = ?
		WHERE room_id = ? AND session_id = ?
	`, string(status), toMillis(time.Now()), roomID, sessionID))
	if err != nil {
		return fmt.Errorf("setting connection status: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
