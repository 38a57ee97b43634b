package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blocmark/notifier/pkg/pg"
)

const jobColumns = `id, queue, type, payload, status, priority, attempt_count, max_attempts,
	next_attempt_at, locked_until, locked_by, processed_at, last_error, created_at`

// PGStorage is the Postgres-backed queue storage. Claims are serialized with
// FOR UPDATE SKIP LOCKED so concurrent workers never receive the same job.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a Postgres queue storage backed by the given pool.
func NewPGStorage(pool *pgxpool.Pool) (*PGStorage, error) {
	if pool == nil {
		return nil, ErrStorageNil
	}
	return &PGStorage{pool: pool}, nil
}

// Ping reports whether the queue backend is reachable.
func (s *PGStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateJob implements EnqueuerRepository.
func (s *PGStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrPayloadNil
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.pool.Exec(ctx, query,
		job.ID, job.Queue, job.Type, job.Payload, job.Status, job.Priority,
		job.AttemptCount, job.MaxAttempts, job.NextAttemptAt,
		job.LockedUntil, job.LockedBy, job.ProcessedAt, job.LastError, job.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("job with ID %s already exists", job.ID)
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// ClaimJob implements WorkerRepository. A job is claimable when it is pending
// and due, or when a previous claim's lease has expired. Expired leases do not
// count as an attempt; the handler either finished (completed) or failed
// (attempt recorded) before the lease mattered.
func (s *PGStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*Job, error) {
	query := `
		UPDATE jobs
		SET status = $1, locked_until = now() + ($2 * interval '1 second'), locked_by = $3
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = ANY($4)
			  AND (
				(status = $5 AND next_attempt_at <= now())
				OR (status = $1 AND locked_until < now())
			  )
			ORDER BY priority DESC, next_attempt_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns

	row := s.pool.QueryRow(ctx, query,
		StatusActive, lease.Seconds(), workerID, queues, StatusPending,
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoJobToClaim
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// CompleteJob implements WorkerRepository.
func (s *PGStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE jobs
		SET status = $1, processed_at = now(), locked_until = NULL, locked_by = NULL
		WHERE id = $2 AND status = $3`

	tag, err := s.pool.Exec(ctx, query, StatusCompleted, jobID, StatusActive)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.jobStateError(ctx, jobID)
	}
	return nil
}

// FailJob implements WorkerRepository. The retry delay grows exponentially
// with the attempt count: base · 2^(n−1) seconds after the n-th failure.
// Jobs that exhaust their attempts are parked as dead.
func (s *PGStorage) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	query := `
		UPDATE jobs
		SET attempt_count = attempt_count + 1,
		    last_error = $1,
		    locked_until = NULL,
		    locked_by = NULL,
		    status = CASE WHEN attempt_count + 1 >= max_attempts THEN $2 ELSE $3 END,
		    next_attempt_at = CASE WHEN attempt_count + 1 >= max_attempts
		        THEN next_attempt_at
		        ELSE now() + ($4 * interval '1 second') * power(2, attempt_count)
		    END
		WHERE id = $5 AND status = $6`

	baseSeconds := defaultBackoffBase.Seconds()
	tag, err := s.pool.Exec(ctx, query,
		errorMsg, StatusDead, StatusPending, baseSeconds, jobID, StatusActive,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.jobStateError(ctx, jobID)
	}
	return nil
}

// MoveToDeadLetter implements WorkerRepository. The move is transactional so
// the job never exists in both tables or in neither.
func (s *PGStorage) MoveToDeadLetter(ctx context.Context, jobID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin dead letter move: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO jobs_dlq (id, job_id, queue, type, payload, priority, attempt_count, error, failed_at, created_at)
		SELECT $1, id, queue, type, payload, priority, attempt_count, COALESCE(last_error, ''), now(), created_at
		FROM jobs WHERE id = $2`

	tag, err := tx.Exec(ctx, query, uuid.New(), jobID)
	if err != nil {
		return fmt.Errorf("copy job to dead letters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID); err != nil {
		return fmt.Errorf("delete dead job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dead letter move: %w", err)
	}
	return nil
}

// ListDeadLetters implements DeadLetterRepository, newest failures first.
func (s *PGStorage) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, job_id, queue, type, payload, priority, attempt_count, error, failed_at, created_at
		FROM jobs_dlq
		ORDER BY failed_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var d DeadLetter
		if err := rows.Scan(
			&d.ID, &d.JobID, &d.Queue, &d.Type, &d.Payload,
			&d.Priority, &d.AttemptCount, &d.Error, &d.FailedAt, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGStorage) jobStateError(ctx context.Context, jobID uuid.UUID) error {
	var status Status
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("check job state: %w", err)
	}
	return fmt.Errorf("%w: %s is %s", ErrJobNotActive, jobID, status)
}

func scanJob(row pgx.Row) (*Job, error) {
	var job Job
	err := row.Scan(
		&job.ID, &job.Queue, &job.Type, &job.Payload, &job.Status, &job.Priority,
		&job.AttemptCount, &job.MaxAttempts, &job.NextAttemptAt,
		&job.LockedUntil, &job.LockedBy, &job.ProcessedAt, &job.LastError, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
