package preference

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blocmark/notifier/pkg/pg"
)

// PGStorage implements Storage on PostgreSQL.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a Postgres-backed preference storage.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

// Get implements Storage.
func (s *PGStorage) Get(ctx context.Context, userID uuid.UUID) (*Preference, error) {
	var pref Preference
	var transactional, marketing []byte

	err := s.pool.QueryRow(ctx, `
		SELECT user_id, transactional, marketing, frequency, updated_at
		FROM email_preferences
		WHERE user_id = $1`, userID).
		Scan(&pref.UserID, &transactional, &marketing, &pref.Frequency, &pref.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get preferences for %s: %w", userID, err)
	}

	if err := json.Unmarshal(transactional, &pref.Transactional); err != nil {
		return nil, fmt.Errorf("unmarshal transactional flags: %w", err)
	}
	if err := json.Unmarshal(marketing, &pref.Marketing); err != nil {
		return nil, fmt.Errorf("unmarshal marketing flags: %w", err)
	}
	return &pref, nil
}

// Save implements Storage.
func (s *PGStorage) Save(ctx context.Context, pref Preference) error {
	transactional, err := json.Marshal(pref.Transactional)
	if err != nil {
		return fmt.Errorf("marshal transactional flags: %w", err)
	}
	marketing, err := json.Marshal(pref.Marketing)
	if err != nil {
		return fmt.Errorf("marshal marketing flags: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO email_preferences (user_id, transactional, marketing, frequency, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			transactional = EXCLUDED.transactional,
			marketing = EXCLUDED.marketing,
			frequency = EXCLUDED.frequency,
			updated_at = EXCLUDED.updated_at`,
		pref.UserID, transactional, marketing, pref.Frequency, pref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save preferences for %s: %w", pref.UserID, err)
	}
	return nil
}
