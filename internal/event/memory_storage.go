package event

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage for testing and local development.
type MemoryStorage struct {
	mu     sync.RWMutex
	events map[string]*Event
}

// NewMemoryStorage creates a new in-memory storage implementation.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{events: make(map[string]*Event)}
}

// Create implements Storage.
func (ms *MemoryStorage) Create(ctx context.Context, ev *Event) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.events[ev.MessageID]; exists {
		return ErrAlreadyExists
	}

	clone := cloneEvent(ev)
	ms.events[ev.MessageID] = clone
	return nil
}

// Get implements Storage.
func (ms *MemoryStorage) Get(ctx context.Context, messageID string) (*Event, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ev, ok := ms.events[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEvent(ev), nil
}

// Update implements Storage.
func (ms *MemoryStorage) Update(ctx context.Context, ev *Event) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored, ok := ms.events[ev.MessageID]
	if !ok {
		return ErrNotFound
	}
	if stored.version != ev.version {
		return ErrVersionConflict
	}

	clone := cloneEvent(ev)
	clone.version++
	ms.events[ev.MessageID] = clone
	return nil
}

// ListByStatus implements Storage.
func (ms *MemoryStorage) ListByStatus(ctx context.Context, status Status, limit int) ([]Event, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []Event
	for _, ev := range ms.events {
		if ev.Status == status {
			out = append(out, *cloneEvent(ev))
		}
	}
	sortNewestFirst(out)
	return truncate(out, limit), nil
}

// ListByUser implements Storage.
func (ms *MemoryStorage) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Event, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []Event
	for _, ev := range ms.events {
		if ev.UserID != nil && *ev.UserID == userID {
			out = append(out, *cloneEvent(ev))
		}
	}
	sortNewestFirst(out)
	return truncate(out, limit), nil
}

func sortNewestFirst(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
}

func truncate(events []Event, limit int) []Event {
	if limit > 0 && len(events) > limit {
		return events[:limit]
	}
	return events
}

// cloneEvent copies the event so callers cannot mutate stored state.
func cloneEvent(ev *Event) *Event {
	clone := *ev
	if ev.Metadata != nil {
		clone.Metadata = make(map[string]string, len(ev.Metadata))
		for k, v := range ev.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
