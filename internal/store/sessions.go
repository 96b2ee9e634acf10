package store

import (
	"context"
	"fmt"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
)

const sessionCols = `id, display_name, fingerprint_hash, created_at, updated_at`

func scanSession(row scanner) (battle.Session, error) {
	var (
		s                battle.Session
		created, updated int64
	)
	if err := row.Scan(&s.ID, &s.DisplayName, &s.FingerprintHash, &created, &updated); err != nil {
		return battle.Session{}, err
	}
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updated)
	return s, nil
}

// UpsertSession returns the session for fingerprintHash, creating it on
// first use and refreshing the display name afterwards.
func (s *SQLStore) UpsertSession(ctx context.Context, fingerprintHash, displayName string) (battle.Session, error) {
	now := toMillis(time.Now())
	sess, err := scanSession(s.queryRow(ctx, s.db, `
		INSERT INTO sessions (id, display_name, fingerprint_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint_hash) DO UPDATE
			SET display_name = excluded.display_name, updated_at = excluded.updated_at
		RETURNING `+sessionCols,
		newID(), displayName, fingerprintHash, now, now,
	))
	if err != nil {
		return battle.Session{}, fmt.Errorf("upserting session: %w", err)
	}
	return sess, nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (battle.Session, error) {
	sess, err := scanSession(s.queryRow(ctx, s.db,
		`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		return battle.Session{}, notFound(err)
	}
	return sess, nil
}
