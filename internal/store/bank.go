package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const bankCols = `id, language, difficulty, category, prompt, answer, accepted_answers, active, created_at`

func scanBankQuestion(row scanner) (BankQuestion, error) {
	var (
		q        BankQuestion
		accepted string
		created  int64
	)
	err := row.Scan(&q.ID, &q.Language, &q.Difficulty, &q.Category, &q.Prompt, &q.Answer,
		&accepted, &q.Active, &created)
	if err != nil {
		return BankQuestion{}, err
	}
	if accepted != "" {
		if err := json.Unmarshal([]byte(accepted), &q.AcceptedAnswers); err != nil {
			return BankQuestion{}, fmt.Errorf("bank question %s accepted answers: %w", q.ID, err)
		}
	}
	q.CreatedAt = fromMillis(created)
	return q, nil
}

func encodeAccepted(answers []string) (string, error) {
	if answers == nil {
		answers = []string{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encoding accepted answers: %w", err)
	}
	return string(data), nil
}

// BankQuestions returns up to f.Limit active questions in the language,
// oldest first, optionally restricted to one difficulty.
func (s *SQLStore) BankQuestions(ctx context.Context, f BankFilter) ([]BankQuestion, error) {
	query := `SELECT ` + bankCols + ` FROM bank_questions WHERE active = ? AND language = ?`
	args := []any{s.d.boolean(true), f.Language}
	if f.Difficulty > 0 {
		query += ` AND difficulty = ?`
		args = append(args, f.Difficulty)
	}
	query += ` ORDER BY created_at, id LIMIT ?`
	args = append(args, f.Limit)
	return s.listBank(ctx, query, args...)
}

func (s *SQLStore) ListBankQuestions(ctx context.Context) ([]BankQuestion, error) {
	return s.listBank(ctx, `SELECT `+bankCols+` FROM bank_questions ORDER BY created_at, id`)
}

func (s *SQLStore) listBank(ctx context.Context, query string, args ...any) ([]BankQuestion, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing bank questions: %w", err)
	}
	defer rows.Close()

	var out []BankQuestion
	for rows.Next() {
		q, err := scanBankQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bank question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetBankQuestion(ctx context.Context, id string) (BankQuestion, error) {
	q, err := scanBankQuestion(s.queryRow(ctx, s.db,
		`SELECT `+bankCols+` FROM bank_questions WHERE id = ?`, id))
	if err != nil {
		return BankQuestion{}, notFound(err)
	}
	return q, nil
}

func (s *SQLStore) CreateBankQuestion(ctx context.Context, q BankQuestion) (BankQuestion, error) {
	accepted, err := encodeAccepted(q.AcceptedAnswers)
	if err != nil {
		return BankQuestion{}, err
	}
	if q.ID == "" {
		q.ID = newID()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	_, err = s.exec(ctx, s.db, `
		INSERT INTO bank_questions (id, language, difficulty, category, prompt, answer, accepted_answers, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, q.Language, q.Difficulty, q.Category, q.Prompt, q.Answer, accepted,
		s.d.boolean(q.Active), toMillis(q.CreatedAt))
	if err != nil {
		return BankQuestion{}, fmt.Errorf("inserting bank question: %w", err)
	}
	return q, nil
}

func (s *SQLStore) UpdateBankQuestion(ctx context.Context, q BankQuestion) (BankQuestion, error) {
	accepted, err := encodeAccepted(q.AcceptedAnswers)
	if err != nil {
		return BankQuestion{}, err
	}
	ok, err := changed(s.exec(ctx, s.db, `
		UPDATE bank_questions
		SET language = ?, difficulty = ?, category = ?, prompt = ?, answer = ?, accepted_answers = ?, active = ?
		WHERE id = ?
	`, q.Language, q.Difficulty, q.Category, q.Prompt, q.Answer, accepted, s.d.boolean(q.Active), q.ID))
	if err != nil {
		return BankQuestion{}, fmt.Errorf("updating bank question: %w", err)
	}
	if !ok {
		return BankQuestion{}, ErrNotFound
	}
	return s.GetBankQuestion(ctx, q.ID)
}

func (s *SQLStore) DeleteBankQuestion(ctx context.Context, id string) error {
	ok, err := changed(s.exec(ctx, s.db, `DELETE FROM bank_questions WHERE id = ?`, id))
	if err != nil {
		return fmt.Errorf("deleting bank question: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
