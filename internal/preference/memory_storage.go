package preference

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage for testing and local development.
type MemoryStorage struct {
	mu    sync.RWMutex
	prefs map[uuid.UUID]*Preference
}

// NewMemoryStorage creates a new in-memory storage implementation.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{prefs: make(map[uuid.UUID]*Preference)}
}

// Get implements Storage.
func (ms *MemoryStorage) Get(ctx context.Context, userID uuid.UUID) (*Preference, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	pref, ok := ms.prefs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePreference(pref), nil
}

// Save implements Storage.
func (ms *MemoryStorage) Save(ctx context.Context, pref Preference) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.prefs[pref.UserID] = clonePreference(&pref)
	return nil
}

func clonePreference(p *Preference) *Preference {
	clone := *p
	clone.Transactional = make(map[string]bool, len(p.Transactional))
	for k, v := range p.Transactional {
		clone.Transactional[k] = v
	}
	clone.Marketing = make(map[string]bool, len(p.Marketing))
	for k, v := range p.Marketing {
		clone.Marketing[k] = v
	}
	return &clone
}
