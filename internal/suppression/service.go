package suppression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blocmark/notifier/pkg/logger"
)

// Service is the suppression list: addresses that must never be sent to.
// It is checked synchronously immediately before every external send. The
// contract with in-flight sends is eventual, not preventive; the provider
// remains the final authority on hard bounces.
type Service struct {
	storage Storage
	cache   Cache
	logger  *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithCache front-loads suppression checks with a read-through cache.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger supplies a logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a suppression service.
func NewService(storage Storage, opts ...Option) (*Service, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	s := &Service{storage: storage, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IsSuppressed reports whether an address is on the list.
// Cache errors fall through to storage so a dead cache never blocks sending.
func (s *Service) IsSuppressed(ctx context.Context, address string) (bool, error) {
	address = CanonicalAddress(address)
	if address == "" {
		return false, ErrInvalidAddress
	}

	if s.cache != nil {
		suppressed, found, err := s.cache.Get(ctx, address)
		if err != nil {
			s.logger.WarnContext(ctx, "suppression cache read failed", logger.Error(err))
		} else if found {
			return suppressed, nil
		}
	}

	_, err := s.storage.Get(ctx, address)
	switch {
	case err == nil:
		s.cacheSet(ctx, address, true)
		return true, nil
	case errors.Is(err, ErrNotFound):
		s.cacheSet(ctx, address, false)
		return false, nil
	default:
		return false, fmt.Errorf("suppression lookup for %s: %w", address, err)
	}
}

// Add upserts a suppression entry. The latest reason wins; the storage keeps
// the superseded reason in the entry history.
func (s *Service) Add(ctx context.Context, address string, reason Reason, metadata map[string]string) error {
	address = CanonicalAddress(address)
	if address == "" {
		return ErrInvalidAddress
	}
	if !reason.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}

	entry := Entry{
		Address:  address,
		Reason:   reason,
		AddedAt:  time.Now(),
		Metadata: metadata,
	}
	if err := s.storage.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("suppress %s: %w", address, err)
	}

	s.cacheInvalidate(ctx, address)
	s.logger.InfoContext(ctx, "address suppressed",
		logger.Recipient(address),
		slog.String("reason", string(reason)))
	return nil
}

// Remove deletes an address from the list unconditionally (admin unsuppress).
func (s *Service) Remove(ctx context.Context, address string) error {
	address = CanonicalAddress(address)
	if address == "" {
		return ErrInvalidAddress
	}
	if err := s.storage.Delete(ctx, address); err != nil {
		return fmt.Errorf("unsuppress %s: %w", address, err)
	}
	s.cacheInvalidate(ctx, address)
	return nil
}

// RemoveUnsubscribe clears a suppression only when its current reason is
// unsubscribe. Re-opt-in must never resurrect a bounced or complained address.
func (s *Service) RemoveUnsubscribe(ctx context.Context, address string) error {
	address = CanonicalAddress(address)
	if address == "" {
		return ErrInvalidAddress
	}
	if err := s.storage.DeleteByReason(ctx, address, ReasonUnsubscribe); err != nil {
		return fmt.Errorf("clear unsubscribe for %s: %w", address, err)
	}
	s.cacheInvalidate(ctx, address)
	return nil
}

// List returns all suppression entries, newest first.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	return s.storage.List(ctx)
}

func (s *Service) cacheSet(ctx context.Context, address string, suppressed bool) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, address, suppressed); err != nil {
		s.logger.WarnContext(ctx, "suppression cache write failed", logger.Error(err))
	}
}

func (s *Service) cacheInvalidate(ctx context.Context, address string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, address); err != nil {
		s.logger.WarnContext(ctx, "suppression cache invalidation failed", logger.Error(err))
	}
}
