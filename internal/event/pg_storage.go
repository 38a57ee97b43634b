package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blocmark/notifier/pkg/pg"
)

// PGStorage implements Storage on PostgreSQL.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a Postgres-backed event storage.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

const eventColumns = `message_id, user_id, recipient, template_name, subject, tag, status,
	created_at, sent_at, delivered_at, opened_at, clicked_at, bounced_at, complained_at, metadata,
	version`

// Create implements Storage.
func (s *PGStorage) Create(ctx context.Context, ev *Event) error {
	metadata, err := marshalMetadata(ev.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO email_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		ev.MessageID, ev.UserID, ev.Recipient, ev.TemplateName, ev.Subject, ev.Tag, ev.Status,
		ev.CreatedAt, ev.SentAt, ev.DeliveredAt, ev.OpenedAt, ev.ClickedAt, ev.BouncedAt,
		ev.ComplainedAt, metadata, ev.version)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert email event %s: %w", ev.MessageID, err)
	}
	return nil
}

// Get implements Storage.
func (s *PGStorage) Get(ctx context.Context, messageID string) (*Event, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM email_events
		WHERE message_id = $1`, messageID)

	ev, err := scanEvent(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get email event %s: %w", messageID, err)
	}
	return ev, nil
}

// Update implements Storage.
func (s *PGStorage) Update(ctx context.Context, ev *Event) error {
	metadata, err := marshalMetadata(ev.Metadata)
	if err != nil {
		return err
	}

	// The version guard makes the write conditional: a row touched by a
	// concurrent writer no longer matches and the update affects zero rows.
	tag, err := s.pool.Exec(ctx, `
		UPDATE email_events
		SET status = $2, sent_at = $3, delivered_at = $4, opened_at = $5,
			clicked_at = $6, bounced_at = $7, complained_at = $8, metadata = $9,
			version = version + 1
		WHERE message_id = $1 AND version = $10`,
		ev.MessageID, ev.Status, ev.SentAt, ev.DeliveredAt, ev.OpenedAt,
		ev.ClickedAt, ev.BouncedAt, ev.ComplainedAt, metadata, ev.version)
	if err != nil {
		return fmt.Errorf("update email event %s: %w", ev.MessageID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM email_events WHERE message_id = $1)`,
			ev.MessageID).Scan(&exists); err != nil {
			return fmt.Errorf("update email event %s: %w", ev.MessageID, err)
		}
		if exists {
			return ErrVersionConflict
		}
		return ErrNotFound
	}
	return nil
}

// ListByStatus implements Storage.
func (s *PGStorage) ListByStatus(ctx context.Context, status Status, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM email_events
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`, status, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list email events by status %s: %w", status, err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListByUser implements Storage.
func (s *PGStorage) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM email_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list email events by user %s: %w", userID, err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal event metadata: %w", err)
	}
	return b, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	var metadata []byte
	if err := row.Scan(&ev.MessageID, &ev.UserID, &ev.Recipient, &ev.TemplateName,
		&ev.Subject, &ev.Tag, &ev.Status, &ev.CreatedAt, &ev.SentAt, &ev.DeliveredAt,
		&ev.OpenedAt, &ev.ClickedAt, &ev.BouncedAt, &ev.ComplainedAt, &metadata,
		&ev.version); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal event metadata: %w", err)
		}
	}
	return &ev, nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}
