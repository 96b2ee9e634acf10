package store

import (
	"context"
	"fmt"

	"github.com/playperu/triviabattle/internal/battle"
)

const answerCols = `id, round_id, room_id, session_id, answer_text, choice_id, is_correct, elapsed_ms,
	score_final, feedback, created_at`

func scanAnswer(row scanner) (battle.Answer, error) {
	var (
		a       battle.Answer
		created int64
	)
	err := row.Scan(&a.ID, &a.RoundID, &a.RoomID, &a.SessionID, &a.Text, &a.ChoiceID, &a.IsCorrect,
		&a.ElapsedMS, &a.ScoreFinal, &a.Feedback, &created)
	if err != nil {
		return battle.Answer{}, err
	}
	a.CreatedAt = fromMillis(created)
	return a, nil
}

// InsertAnswer records a graded answer. A second answer from the same
// session for the same round yields ErrConflict.
func (s *SQLStore) InsertAnswer(ctx context.Context, a battle.Answer) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO answers (id, round_id, room_id, session_id, answer_text, choice_id, is_correct,
			elapsed_ms, score_final, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RoundID, a.RoomID, a.SessionID, a.Text, a.ChoiceID, s.d.boolean(a.IsCorrect),
		a.ElapsedMS, a.ScoreFinal, a.Feedback, toMillis(a.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting answer: %w", err)
	}
	return nil
}

func (s *SQLStore) listAnswers(ctx context.Context, query string, args ...any) ([]battle.Answer, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing answers: %w", err)
	}
	defer rows.Close()

	var out []battle.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListRoundAnswers(ctx context.Context, roundID string) ([]battle.Answer, error) {
	return s.listAnswers(ctx,
		`SELECT `+answerCols+` FROM answers WHERE round_id = ? ORDER BY created_at, id`, roundID)
}

func (s *SQLStore) ListRoomAnswers(ctx context.Context, roomID string) ([]battle.Answer, error) {
	return s.listAnswers(ctx,
		`SELECT `+answerCols+` FROM answers WHERE room_id = ? ORDER BY created_at, id`, roomID)
}

func (s *SQLStore) ListSessionAnswers(ctx context.Context, roomID, sessionID string) ([]battle.Answer, error) {
	return s.listAnswers(ctx,
		`SELECT `+answerCols+` FROM answers WHERE room_id = ? AND session_id = ? ORDER BY created_at, id`,
		roomID, sessionID)
}
