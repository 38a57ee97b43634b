package suppression

import "context"

// Storage persists suppression entries keyed by canonicalized address.
type Storage interface {
	// Upsert inserts or replaces the entry for an address. On replace, the
	// previous reason is appended to the entry's history. Idempotent.
	Upsert(ctx context.Context, entry Entry) error

	// Get returns the entry for an address or ErrNotFound.
	Get(ctx context.Context, address string) (*Entry, error)

	// Delete removes an address unconditionally. Missing address is not an error.
	Delete(ctx context.Context, address string) error

	// DeleteByReason removes an address only if its current reason matches.
	// Used by public re-opt-in, which may clear unsubscribes but never
	// bounces or complaints.
	DeleteByReason(ctx context.Context, address string, reason Reason) error

	// List returns all entries, newest first.
	List(ctx context.Context) ([]Entry, error)
}

// Cache is an optional read-through cache in front of Storage.
// Failures must degrade to storage reads, never block a send decision.
type Cache interface {
	// Get returns (suppressed, found). found=false means cache miss.
	Get(ctx context.Context, address string) (suppressed bool, found bool, err error)

	// Set records the suppression verdict for an address.
	Set(ctx context.Context, address string, suppressed bool) error

	// Invalidate drops the cached verdict for an address.
	Invalidate(ctx context.Context, address string) error
}
