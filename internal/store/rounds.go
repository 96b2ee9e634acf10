package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
)

const roundCols = `id, room_id, round_no, status, bank_question_id, question, revealed_at, deadline_at, closed_at`

func scanRound(row scanner) (battle.Round, error) {
	var (
		r                          battle.Round
		status, question           string
		bankID                     sql.NullString
		revealed, deadline, closed sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.RoomID, &r.Number, &status, &bankID, &question, &revealed, &deadline, &closed)
	if err != nil {
		return battle.Round{}, err
	}
	q, err := battle.UnmarshalQuestion([]byte(question))
	if err != nil {
		return battle.Round{}, fmt.Errorf("round %s: %w", r.ID, err)
	}
	r.Status = battle.RoundStatus(status)
	r.BankQuestionID = stringPtr(bankID)
	r.Question = q
	r.RevealedAt = timePtr(revealed)
	r.DeadlineAt = timePtr(deadline)
	r.ClosedAt = timePtr(closed)
	return r, nil
}

// CreateRounds bulk-inserts pending rounds. A clash on (room, round number)
// means another start already created them and yields ErrConflict.
func (s *SQLStore) CreateRounds(ctx context.Context, rounds []battle.Round) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rounds {
			data, err := battle.MarshalQuestion(r.Question)
			if err != nil {
				return fmt.Errorf("encoding question for round %d: %w", r.Number, err)
			}
			_, err = s.exec(ctx, tx, `
				INSERT INTO rounds (id, room_id, round_no, status, bank_question_id, question)
				VALUES (?, ?, ?, 'pending', ?, ?)
			`, r.ID, r.RoomID, r.Number, nullString(r.BankQuestionID), string(data))
			if err != nil {
				if isUniqueViolation(err) {
					return ErrConflict
				}
				return fmt.Errorf("inserting round %d: %w", r.Number, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) listRounds(ctx context.Context, query string, args ...any) ([]battle.Round, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	defer rows.Close()

	var out []battle.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListRounds(ctx context.Context, roomID string) ([]battle.Round, error) {
	return s.listRounds(ctx, `SELECT `+roundCols+` FROM rounds WHERE room_id = ? ORDER BY round_no`, roomID)
}

func (s *SQLStore) GetRound(ctx context.Context, roomID string, number int) (battle.Round, error) {
	r, err := scanRound(s.queryRow(ctx, s.db,
		`SELECT `+roundCols+` FROM rounds WHERE room_id = ? AND round_no = ?`, roomID, number))
	if err != nil {
		return battle.Round{}, notFound(err)
	}
	return r, nil
}

// FindRoundByStatus returns the lowest-numbered round in status.
func (s *SQLStore) FindRoundByStatus(ctx context.Context, roomID string, status battle.RoundStatus) (battle.Round, error) {
	r, err := scanRound(s.queryRow(ctx, s.db,
		`SELECT `+roundCols+` FROM rounds WHERE room_id = ? AND status = ? ORDER BY round_no LIMIT 1`,
		roomID, string(status)))
	if err != nil {
		return battle.Round{}, notFound(err)
	}
	return r, nil
}

func (s *SQLStore) CountRoundsByStatus(ctx context.Context, roomID string) (map[battle.RoundStatus]int, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT status, COUNT(*) FROM rounds WHERE room_id = ? GROUP BY status`, roomID)
	if err != nil {
		return nil, fmt.Errorf("counting rounds: %w", err)
	}
	defer rows.Close()

	counts := make(map[battle.RoundStatus]int, 4)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning round count: %w", err)
		}
		counts[battle.RoundStatus(status)] = n
	}
	return counts, rows.Err()
}

// RevealRound moves a pending round to active. It refuses, reporting false,
// when the round is not pending or another round of the room is active.
func (s *SQLStore) RevealRound(ctx context.Context, roomID string, number int, revealedAt, deadlineAt time.Time) (bool, error) {
	ok, err := changed(s.exec(ctx, s.db, `
		UPDATE rounds SET status = 'active', revealed_at = ?, deadline_at = ?
		WHERE room_id = ? AND round_no = ? AND status = 'pending'
		  AND NOT EXISTS (
			SELECT 1 FROM rounds other
			WHERE other.room_id = rounds.room_id AND other.status = 'active'
		  )
	`, toMillis(revealedAt), toMillis(deadlineAt), roomID, number))
	if err != nil {
		return false, fmt.Errorf("revealing round %d: %w", number, err)
	}
	return ok, nil
}

// CloseRoundAtomic moves an active round to the scoreboard and credits
// every participant and team with the round's scores in one operation.
// On Postgres it calls the close_round_and_tally function; on SQLite it
// runs CloseRoundGuarded. It reports false when the round was not active.
func (s *SQLStore) CloseRoundAtomic(ctx context.Context, roomID string, number int, at time.Time) (bool, error) {
	if s.d == postgresDialect {
		var ok bool
		if err := s.queryRow(ctx, s.db,
			`SELECT close_round_and_tally(?, ?, ?)`, roomID, number, toMillis(at)).Scan(&ok); err != nil {
			return false, fmt.Errorf("calling close_round_and_tally: %w", err)
		}
		return ok, nil
	}

	return s.CloseRoundGuarded(ctx, roomID, number, at)
}

// CloseRoundGuarded runs the conditional active -> scoreboard update and
// the score credit in one transaction on either dialect. A failed credit
// rolls the status back, so a later close can still credit the round.
func (s *SQLStore) CloseRoundGuarded(ctx context.Context, roomID string, number int, at time.Time) (bool, error) {
	var closedNow bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var roundID string
		err := s.queryRow(ctx, tx, `
			UPDATE rounds SET status = 'scoreboard', closed_at = ?
			WHERE room_id = ? AND round_no = ? AND status = 'active'
			RETURNING id
		`, toMillis(at), roomID, number).Scan(&roundID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("closing round %d: %w", number, err)
		}
		if err := s.creditRoundScores(ctx, tx, roomID, roundID); err != nil {
			return err
		}
		closedNow = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return closedNow, nil
}

func (s *SQLStore) creditRoundScores(ctx context.Context, q querier, roomID, roundID string) error {
	_, err := s.exec(ctx, q, `
		UPDATE participants
		SET total_score = total_score + COALESCE((
			SELECT a.score_final FROM answers a
			WHERE a.round_id = ? AND a.session_id = participants.session_id
		), 0)
		WHERE room_id = ?
	`, roundID, roomID)
	if err != nil {
		return fmt.Errorf("crediting participant scores: %w", err)
	}

	_, err = s.exec(ctx, q, `
		UPDATE teams
		SET total_score = total_score + COALESCE((
			SELECT SUM(a.score_final) FROM answers a
			JOIN participants p ON p.session_id = a.session_id AND p.room_id = teams.room_id
			WHERE a.round_id = ? AND p.team_id = teams.id
		), 0)
		WHERE room_id = ?
	`, roundID, roomID)
	if err != nil {
		return fmt.Errorf("crediting team scores: %w", err)
	}
	return nil
}

// MarkRoundClosed moves a scoreboard round to closed.
func (s *SQLStore) MarkRoundClosed(ctx context.Context, roomID string, number int) (bool, error) {
	ok, err := changed(s.exec(ctx, s.db, `
		UPDATE rounds SET status = 'closed'
		WHERE room_id = ? AND round_no = ? AND status = 'scoreboard'
	`, roomID, number))
	if err != nil {
		return false, fmt.Errorf("closing round %d: %w", number, err)
	}
	return ok, nil
}
