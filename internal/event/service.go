package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blocmark/notifier/pkg/logger"
)

// Service coordinates event persistence with the status state machine.
// It is shared by the orchestrator, the delivery worker and the webhook
// ingestor; every mutation is a single-row update keyed by message ID.
type Service struct {
	storage Storage
	logger  *slog.Logger
}

// NewService creates an event service.
func NewService(storage Storage, logger *slog.Logger) (*Service, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{storage: storage, logger: logger}, nil
}

// Track creates the initial queued event for a new logical email.
// A duplicate message ID returns ErrAlreadyExists untouched so callers can
// treat the second call as a no-op.
func (s *Service) Track(ctx context.Context, ev Event) error {
	if ev.Status == "" {
		ev.Status = StatusQueued
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	return s.storage.Create(ctx, &ev)
}

// mutateAttempts bounds the optimistic-concurrency retry loop. Contention on
// a single message is at most a handful of writers (worker plus webhooks), so
// running out means something is livelocked, not busy.
const mutateAttempts = 5

// mutate runs a read-apply-write cycle, retrying when a concurrent writer
// bumped the row version between the read and the write. Each retry reapplies
// the mutation to the fresh row, so a recorded delivery outcome always
// survives a slower writer's stale snapshot.
func (s *Service) mutate(ctx context.Context, messageID string, apply func(*Event) error) error {
	var err error
	for attempt := 0; attempt < mutateAttempts; attempt++ {
		var ev *Event
		ev, err = s.storage.Get(ctx, messageID)
		if err != nil {
			return err
		}
		if err = apply(ev); err != nil {
			return err
		}
		err = s.storage.Update(ctx, ev)
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return err
}

// MarkSent transitions queued→sent after a confirmed handoff.
func (s *Service) MarkSent(ctx context.Context, messageID string, at time.Time) error {
	err := s.mutate(ctx, messageID, func(ev *Event) error {
		ev.MarkSent(at)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", messageID, err)
	}
	return nil
}

// ApplyCallback folds a provider callback into the stored event.
// A stale conflicting outcome is logged and swallowed: the first recorded
// outcome stays authoritative.
func (s *Service) ApplyCallback(ctx context.Context, messageID string, kind Kind, at time.Time) error {
	var staleStatus Status
	err := s.mutate(ctx, messageID, func(ev *Event) error {
		if applyErr := ev.Apply(kind, at); applyErr != nil {
			staleStatus = ev.Status
			return applyErr
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleOutcome) {
			s.logger.WarnContext(ctx, "stale delivery outcome ignored",
				logger.MessageID(messageID),
				slog.String("kind", string(kind)),
				slog.String("status", string(staleStatus)))
			return nil
		}
		return fmt.Errorf("apply %s callback for %s: %w", kind, messageID, err)
	}
	return nil
}

// Get returns the event for a message ID.
func (s *Service) Get(ctx context.Context, messageID string) (*Event, error) {
	return s.storage.Get(ctx, messageID)
}

// ListByStatus returns events in the given status, newest first.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]Event, error) {
	return s.storage.ListByStatus(ctx, status, limit)
}

// ListByUser returns events for one user, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Event, error) {
	return s.storage.ListByUser(ctx, userID, limit)
}
