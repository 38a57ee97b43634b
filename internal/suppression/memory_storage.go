package suppression

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage implements Storage for testing and local development.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStorage creates a new in-memory storage implementation.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]*Entry)}
}

// Upsert implements Storage.
func (ms *MemoryStorage) Upsert(ctx context.Context, entry Entry) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if prev, ok := ms.entries[entry.Address]; ok {
		entry.History = append(append([]HistoryItem{}, prev.History...), HistoryItem{
			Reason:  prev.Reason,
			AddedAt: prev.AddedAt,
		})
	}
	clone := entry
	ms.entries[entry.Address] = &clone
	return nil
}

// Get implements Storage.
func (ms *MemoryStorage) Get(ctx context.Context, address string) (*Entry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entry, ok := ms.entries[address]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

// Delete implements Storage.
func (ms *MemoryStorage) Delete(ctx context.Context, address string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.entries, address)
	return nil
}

// DeleteByReason implements Storage.
func (ms *MemoryStorage) DeleteByReason(ctx context.Context, address string, reason Reason) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if entry, ok := ms.entries[address]; ok && entry.Reason == reason {
		delete(ms.entries, address)
	}
	return nil
}

// List implements Storage.
func (ms *MemoryStorage) List(ctx context.Context) ([]Entry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]Entry, 0, len(ms.entries))
	for _, entry := range ms.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out, nil
}
