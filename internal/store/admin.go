package store

import (
	"context"
	"fmt"
	"time"
)

func (s *SQLStore) CreateAdmin(ctx context.Context, email, passwordHash string) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO admins (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
	`, newID(), email, passwordHash, toMillis(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting admin: %w", err)
	}
	return nil
}

func (s *SQLStore) AdminCredentials(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := s.queryRow(ctx, s.db,
		`SELECT id, password_hash FROM admins WHERE email = ?`, email).Scan(&id, &hash)
	if err != nil {
		return "", "", notFound(err)
	}
	return id, hash, nil
}

func (s *SQLStore) CreateAdminSession(ctx context.Context, adminID string) (string, error) {
	id := newID()
	if _, err := s.exec(ctx, s.db,
		`INSERT INTO admin_sessions (id, admin_id, created_at) VALUES (?, ?, ?)`,
		id, adminID, toMillis(time.Now())); err != nil {
		return "", fmt.Errorf("inserting admin session: %w", err)
	}
	return id, nil
}

func (s *SQLStore) AdminFromSession(ctx context.Context, sessionID string) (Admin, error) {
	var a Admin
	err := s.queryRow(ctx, s.db, `
		SELECT a.id, a.email
		FROM admin_sessions s
		JOIN admins a ON a.id = s.admin_id
		WHERE s.id = ?
	`, sessionID).Scan(&a.ID, &a.Email)
	if err != nil {
		return Admin{}, notFound(err)
	}
	return a, nil
}

func (s *SQLStore) DeleteAdminSession(ctx context.Context, sessionID string) error {
	if _, err := s.exec(ctx, s.db, `DELETE FROM admin_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting admin session: %w", err)
	}
	return nil
}
