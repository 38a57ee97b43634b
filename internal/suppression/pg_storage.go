package suppression

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blocmark/notifier/pkg/pg"
)

// PGStorage implements Storage on PostgreSQL.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a Postgres-backed suppression storage.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

// Upsert implements Storage. The history append happens inside the statement,
// so concurrent upserts for the same address stay consistent without a
// transaction.
func (s *PGStorage) Upsert(ctx context.Context, entry Entry) error {
	metadata, err := marshalJSON(entry.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO suppression_list (address, reason, added_at, metadata, history)
		VALUES ($1, $2, $3, $4, '[]'::jsonb)
		ON CONFLICT (address) DO UPDATE SET
			reason = EXCLUDED.reason,
			added_at = EXCLUDED.added_at,
			metadata = EXCLUDED.metadata,
			history = suppression_list.history || jsonb_build_object(
				'reason', suppression_list.reason,
				'added_at', suppression_list.added_at)`,
		entry.Address, entry.Reason, entry.AddedAt, metadata)
	if err != nil {
		return fmt.Errorf("upsert suppression for %s: %w", entry.Address, err)
	}
	return nil
}

// Get implements Storage.
func (s *PGStorage) Get(ctx context.Context, address string) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT address, reason, added_at, metadata, history
		FROM suppression_list
		WHERE address = $1`, address)

	entry, err := scanEntry(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get suppression for %s: %w", address, err)
	}
	return entry, nil
}

// Delete implements Storage.
func (s *PGStorage) Delete(ctx context.Context, address string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM suppression_list WHERE address = $1`, address); err != nil {
		return fmt.Errorf("delete suppression for %s: %w", address, err)
	}
	return nil
}

// DeleteByReason implements Storage.
func (s *PGStorage) DeleteByReason(ctx context.Context, address string, reason Reason) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM suppression_list WHERE address = $1 AND reason = $2`, address, reason); err != nil {
		return fmt.Errorf("delete suppression for %s by reason %s: %w", address, reason, err)
	}
	return nil
}

// List implements Storage.
func (s *PGStorage) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, reason, added_at, metadata, history
		FROM suppression_list
		ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list suppression entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var entry Entry
	var metadata, history []byte
	if err := row.Scan(&entry.Address, &entry.Reason, &entry.AddedAt, &metadata, &history); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal suppression metadata: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &entry.History); err != nil {
			return nil, fmt.Errorf("unmarshal suppression history: %w", err)
		}
	}
	return &entry, nil
}

func marshalJSON(m map[string]string) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal suppression metadata: %w", err)
	}
	return b, nil
}
