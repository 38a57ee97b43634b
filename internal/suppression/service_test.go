package suppression_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocmark/notifier/internal/suppression"
)

func newService(t *testing.T, opts ...suppression.Option) *suppression.Service {
	t.Helper()
	svc, err := suppression.NewService(suppression.NewMemoryStorage(), opts...)
	require.NoError(t, err)
	return svc
}

func TestService_AddAndCheck(t *testing.T) {
	t.Parallel()

	t.Run("suppressed after add", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		require.NoError(t, svc.Add(context.Background(), "ada@example.com", suppression.ReasonBounce, nil))

		suppressed, err := svc.IsSuppressed(context.Background(), "ada@example.com")
		require.NoError(t, err)
		assert.True(t, suppressed)
	})

	t.Run("address matching is case-insensitive", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		require.NoError(t, svc.Add(context.Background(), "Ada@Example.COM ", suppression.ReasonBounce, nil))

		suppressed, err := svc.IsSuppressed(context.Background(), "ada@example.com")
		require.NoError(t, err)
		assert.True(t, suppressed)
	})

	t.Run("unknown address is not suppressed", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		suppressed, err := svc.IsSuppressed(context.Background(), "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, suppressed)
	})

	t.Run("invalid reason rejected", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		err := svc.Add(context.Background(), "ada@example.com", suppression.Reason("grudge"), nil)
		assert.Error(t, err)
	})

	t.Run("upsert keeps latest reason and history", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		require.NoError(t, svc.Add(context.Background(), "ada@example.com", suppression.ReasonUnsubscribe, nil))
		require.NoError(t, svc.Add(context.Background(), "ada@example.com", suppression.ReasonBounce, nil))

		entries, err := svc.List(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, suppression.ReasonBounce, entries[0].Reason)
		require.Len(t, entries[0].History, 1)
		assert.Equal(t, suppression.ReasonUnsubscribe, entries[0].History[0].Reason)
	})
}

func TestService_Remove(t *testing.T) {
	t.Parallel()

	t.Run("remove clears any reason", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		require.NoError(t, svc.Add(context.Background(), "ada@example.com", suppression.ReasonComplaint, nil))
		require.NoError(t, svc.Remove(context.Background(), "ada@example.com"))

		suppressed, err := svc.IsSuppressed(context.Background(), "ada@example.com")
		require.NoError(t, err)
		assert.False(t, suppressed)
	})

	t.Run("remove unsubscribe leaves bounce intact", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		require.NoError(t, svc.Add(context.Background(), "gone@example.com", suppression.ReasonBounce, nil))
		require.NoError(t, svc.RemoveUnsubscribe(context.Background(), "gone@example.com"))

		suppressed, err := svc.IsSuppressed(context.Background(), "gone@example.com")
		require.NoError(t, err)
		assert.True(t, suppressed)
	})

	t.Run("remove unsubscribe clears unsubscribe", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		require.NoError(t, svc.Add(context.Background(), "ada@example.com", suppression.ReasonUnsubscribe, nil))
		require.NoError(t, svc.RemoveUnsubscribe(context.Background(), "ada@example.com"))

		suppressed, err := svc.IsSuppressed(context.Background(), "ada@example.com")
		require.NoError(t, err)
		assert.False(t, suppressed)
	})
}

// memoryCache is a test double for the cache interface.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]bool
	hits    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]bool)}
}

func (c *memoryCache) Get(ctx context.Context, address string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[address]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, address string, suppressed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[address] = suppressed
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, address)
	return nil
}

func TestService_Cache(t *testing.T) {
	t.Parallel()

	t.Run("check populates and uses the cache", func(t *testing.T) {
		t.Parallel()

		cache := newMemoryCache()
		svc := newService(t, suppression.WithCache(cache))

		require.NoError(t, svc.Add(context.Background(), "ada@example.com", suppression.ReasonBounce, nil))

		for i := 0; i < 2; i++ {
			suppressed, err := svc.IsSuppressed(context.Background(), "ada@example.com")
			require.NoError(t, err)
			assert.True(t, suppressed)
		}
		assert.Equal(t, 1, cache.hits, "second check should hit the cache")
	})

	t.Run("add and remove invalidate the cache", func(t *testing.T) {
		t.Parallel()

		cache := newMemoryCache()
		svc := newService(t, suppression.WithCache(cache))

		_, err := svc.IsSuppressed(context.Background(), "ada@example.com")
		require.NoError(t, err)

		// The cached negative entry must not mask the new suppression.
		require.NoError(t, svc.Add(context.Background(), "ada@example.com", suppression.ReasonUnsubscribe, nil))

		suppressed, err := svc.IsSuppressed(context.Background(), "ada@example.com")
		require.NoError(t, err)
		assert.True(t, suppressed)

		require.NoError(t, svc.Remove(context.Background(), "ada@example.com"))
		suppressed, err = svc.IsSuppressed(context.Background(), "ada@example.com")
		require.NoError(t, err)
		assert.False(t, suppressed)
	})
}
