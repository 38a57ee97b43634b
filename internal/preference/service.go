package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/blocmark/notifier/pkg/logger"
)

var (
	// ErrNotFound is returned by storages when a user has no stored preferences.
	ErrNotFound = errors.New("preferences not found")

	// ErrInvalidFrequency is returned for unknown frequency values.
	ErrInvalidFrequency = errors.New("invalid frequency")

	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("preference storage cannot be nil")
)

// Storage persists preferences keyed by user ID.
type Storage interface {
	// Get returns the preferences for a user or ErrNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*Preference, error)

	// Save upserts the preferences for a user.
	Save(ctx context.Context, pref Preference) error
}

// Service manages per-user email preferences.
type Service struct {
	storage Storage
	logger  *slog.Logger
}

// NewService creates a preference service.
func NewService(storage Storage, logger *slog.Logger) (*Service, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{storage: storage, logger: logger}, nil
}

// Get returns the user's preferences, creating and persisting defaults the
// first time a user is seen.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Preference, error) {
	pref, err := s.storage.Get(ctx, userID)
	switch {
	case err == nil:
		return *pref, nil
	case errors.Is(err, ErrNotFound):
		def := Default(userID)
		if err := s.storage.Save(ctx, def); err != nil {
			return Preference{}, fmt.Errorf("save default preferences for %s: %w", userID, err)
		}
		return def, nil
	default:
		return Preference{}, fmt.Errorf("get preferences for %s: %w", userID, err)
	}
}

// Update applies a partial patch on top of the stored (or default) preferences.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, patch Patch) (Preference, error) {
	if patch.Frequency != nil && !patch.Frequency.Valid() {
		return Preference{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, *patch.Frequency)
	}

	pref, err := s.Get(ctx, userID)
	if err != nil {
		return Preference{}, err
	}

	pref.apply(patch)
	if err := s.storage.Save(ctx, pref); err != nil {
		return Preference{}, fmt.Errorf("save preferences for %s: %w", userID, err)
	}
	return pref, nil
}

// AllowsTransactional reports whether the user accepts a transactional
// category. Users with no stored preferences get the defaults, which allow
// everything transactional; lookup failures also default to allowed, since a
// preference outage must not drop password resets.
func (s *Service) AllowsTransactional(ctx context.Context, userID uuid.UUID, category string) bool {
	pref, err := s.storage.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "preference lookup failed, allowing send",
				logger.UserID(userID),
				slog.String("category", category),
				logger.Error(err))
		}
		return true
	}
	return pref.TransactionalEnabled(category)
}
