package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
)

const roomCols = `id, code, host_session_id, capacity, language, topic, num_questions, round_time_sec,
	question_type, difficulty, battle_mode, status, created_at, started_at, finished_at`

func scanRoom(row scanner) (battle.Room, error) {
	var (
		r                   battle.Room
		qtype, mode, status string
		created             int64
		started, finished   sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.Code, &r.HostSessionID, &r.Capacity, &r.Language, &r.Topic,
		&r.NumQuestions, &r.RoundTimeSec, &qtype, &r.Difficulty, &mode, &status,
		&created, &started, &finished)
	if err != nil {
		return battle.Room{}, err
	}
	r.QuestionType = battle.QuestionType(qtype)
	r.Mode = battle.BattleMode(mode)
	r.Status = battle.RoomStatus(status)
	r.CreatedAt = fromMillis(created)
	r.StartedAt = timePtr(started)
	r.FinishedAt = timePtr(finished)
	return r, nil
}

// CreateRoom inserts the room, its two teams in team mode, and the host's
// participant row in one transaction. A duplicate room code yields
// ErrConflict so the caller can retry with a fresh code.
func (s *SQLStore) CreateRoom(ctx context.Context, room battle.Room, host battle.Participant) (battle.Room, error) {
	now := time.Now().UTC()
	room.Status = battle.RoomWaiting
	room.CreatedAt = now

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.exec(ctx, tx, `
			INSERT INTO rooms (id, code, host_session_id, capacity, language, topic, num_questions,
				round_time_sec, question_type, difficulty, battle_mode, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, room.ID, room.Code, room.HostSessionID, room.Capacity, room.Language, room.Topic,
			room.NumQuestions, room.RoundTimeSec, string(room.QuestionType), room.Difficulty,
			string(room.Mode), string(room.Status), toMillis(now))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("inserting room: %w", err)
		}

		var hostTeam sql.NullString
		if room.Mode == battle.ModeTeam {
			for i, name := range battle.TeamNames {
				id := newID()
				if _, err := s.exec(ctx, tx,
					`INSERT INTO teams (id, room_id, name, total_score) VALUES (?, ?, ?, 0)`,
					id, room.ID, name); err != nil {
					return fmt.Errorf("inserting team %s: %w", name, err)
				}
				if i == 0 {
					hostTeam = sql.NullString{String: id, Valid: true}
				}
			}
		}

		_, err = s.exec(ctx, tx, `
			INSERT INTO participants (id, room_id, session_id, display_name, is_host, connection_status,
				ready, total_score, team_id, joined_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?, 'online', ?, 0, ?, ?, ?)
		`, host.ID, room.ID, host.SessionID, host.DisplayName, s.d.boolean(true), s.d.boolean(false),
			hostTeam, toMillis(now), toMillis(now))
		if err != nil {
			return fmt.Errorf("inserting host participant: %w", err)
		}
		return nil
	})
	if err != nil {
		return battle.Room{}, err
	}
	return room, nil
}

func (s *SQLStore) GetRoom(ctx context.Context, id string) (battle.Room, error) {
	r, err := scanRoom(s.queryRow(ctx, s.db, `SELECT `+roomCols+` FROM rooms WHERE id = ?`, id))
	if err != nil {
		return battle.Room{}, notFound(err)
	}
	return r, nil
}

func (s *SQLStore) GetRoomByCode(ctx context.Context, code string) (battle.Room, error) {
	r, err := scanRoom(s.queryRow(ctx, s.db, `SELECT `+roomCols+` FROM rooms WHERE code = ?`, code))
	if err != nil {
		return battle.Room{}, notFound(err)
	}
	return r, nil
}

// ActivateRoom flips a waiting room to active. It reports false when the
// room was not waiting.
func (s *SQLStore) ActivateRoom(ctx context.Context, roomID string, numQuestions int, at time.Time) (bool, error) {
	ok, err := changed(s.exec(ctx, s.db, `
		UPDATE rooms SET status = 'active', num_questions = ?, started_at = ?
		WHERE id = ? AND status = 'waiting'
	`, numQuestions, toMillis(at), roomID))
	if err != nil {
		return false, fmt.Errorf("activating room: %w", err)
	}
	return ok, nil
}

// FinishRoom flips an active room to finished. It reports false when the
// room was not active.
func (s *SQLStore) FinishRoom(ctx context.Context, roomID string, at time.Time) (bool, error) {
	ok, err := changed(s.exec(ctx, s.db, `
		UPDATE rooms SET status = 'finished', finished_at = ?
		WHERE id = ? AND status = 'active'
	`, toMillis(at), roomID))
	if err != nil {
		return false, fmt.Errorf("finishing room: %w", err)
	}
	return ok, nil
}

func (s *SQLStore) ListTeams(ctx context.Context, roomID string) ([]battle.Team, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, room_id, name, total_score FROM teams WHERE room_id = ? ORDER BY name DESC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []battle.Team
	for rows.Next() {
		var t battle.Team
		if err := rows.Scan(&t.ID, &t.RoomID, &t.Name, &t.TotalScore); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}
