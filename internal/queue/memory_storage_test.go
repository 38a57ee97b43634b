package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocmark/notifier/internal/queue"
)

func newTestJob(t *testing.T, q string) *queue.Job {
	t.Helper()
	now := time.Now()
	return &queue.Job{
		ID:            uuid.New(),
		Queue:         q,
		Type:          "test.Payload",
		Payload:       []byte(`{}`),
		Status:        queue.StatusPending,
		Priority:      queue.PriorityDefault,
		MaxAttempts:   3,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

func TestMemoryStorage_ClaimJob(t *testing.T) {
	t.Parallel()

	t.Run("claims pending job", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		job := newTestJob(t, queue.DefaultQueueName)
		require.NoError(t, ms.CreateJob(context.Background(), job))

		workerID := uuid.New()
		claimed, err := ms.ClaimJob(context.Background(), workerID, []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, job.ID, claimed.ID)
		assert.Equal(t, queue.StatusActive, claimed.Status)
		require.NotNil(t, claimed.LockedBy)
		assert.Equal(t, workerID, *claimed.LockedBy)
		require.NotNil(t, claimed.LockedUntil)
		assert.True(t, claimed.LockedUntil.After(time.Now()))
	})

	t.Run("no claimable job", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		_, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
	})

	t.Run("skips delayed jobs", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		job := newTestJob(t, queue.DefaultQueueName)
		job.NextAttemptAt = time.Now().Add(time.Hour)
		require.NoError(t, ms.CreateJob(context.Background(), job))

		_, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
	})

	t.Run("skips other queues", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		job := newTestJob(t, "other")
		require.NoError(t, ms.CreateJob(context.Background(), job))

		_, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
	})

	t.Run("higher priority claimed first", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		low := newTestJob(t, queue.DefaultQueueName)
		low.Priority = queue.PriorityLow
		high := newTestJob(t, queue.DefaultQueueName)
		high.Priority = queue.PriorityHigh

		require.NoError(t, ms.CreateJob(context.Background(), low))
		require.NoError(t, ms.CreateJob(context.Background(), high))

		claimed, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, high.ID, claimed.ID)
	})

	t.Run("concurrent workers never share a job", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		const jobCount = 20
		for i := 0; i < jobCount; i++ {
			require.NoError(t, ms.CreateJob(context.Background(), newTestJob(t, queue.DefaultQueueName)))
		}

		var (
			mu      sync.Mutex
			claimed = make(map[uuid.UUID]int)
			wg      sync.WaitGroup
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				workerID := uuid.New()
				for {
					job, err := ms.ClaimJob(context.Background(), workerID, []string{queue.DefaultQueueName}, time.Minute)
					if err != nil {
						return
					}
					mu.Lock()
					claimed[job.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, jobCount)
		for id, n := range claimed {
			assert.Equal(t, 1, n, "job %s claimed more than once", id)
		}
	})
}

func TestMemoryStorage_FailJob(t *testing.T) {
	t.Parallel()

	t.Run("exponential backoff schedule", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage(queue.WithBackoffBase(2 * time.Second))
		defer ms.Close()

		job := newTestJob(t, queue.DefaultQueueName)
		require.NoError(t, ms.CreateJob(context.Background(), job))

		// First failure: retry after base * 2^0 = 2s.
		_, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)
		before := time.Now()
		require.NoError(t, ms.FailJob(context.Background(), job.ID, "transient"))

		got, ok := ms.GetJob(job.ID)
		require.True(t, ok)
		assert.Equal(t, queue.StatusPending, got.Status)
		assert.Equal(t, int8(1), got.AttemptCount)
		assert.WithinDuration(t, before.Add(2*time.Second), got.NextAttemptAt, 200*time.Millisecond)

		// Second failure: retry after base * 2^1 = 4s.
		waitUntilDue(t, ms, job.ID)

		_, err = ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)
		before = time.Now()
		require.NoError(t, ms.FailJob(context.Background(), job.ID, "transient"))

		got, ok = ms.GetJob(job.ID)
		require.True(t, ok)
		assert.Equal(t, queue.StatusPending, got.Status)
		assert.Equal(t, int8(2), got.AttemptCount)
		assert.WithinDuration(t, before.Add(4*time.Second), got.NextAttemptAt, 200*time.Millisecond)
	})

	t.Run("exhausted attempts mark job dead", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		job := newTestJob(t, queue.DefaultQueueName)
		job.MaxAttempts = 1
		require.NoError(t, ms.CreateJob(context.Background(), job))

		_, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, ms.FailJob(context.Background(), job.ID, "boom"))

		got, ok := ms.GetJob(job.ID)
		require.True(t, ok)
		assert.Equal(t, queue.StatusDead, got.Status)
		require.NotNil(t, got.LastError)
		assert.Equal(t, "boom", *got.LastError)
	})

	t.Run("failing a pending job is rejected", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		job := newTestJob(t, queue.DefaultQueueName)
		require.NoError(t, ms.CreateJob(context.Background(), job))

		err := ms.FailJob(context.Background(), job.ID, "boom")
		assert.ErrorIs(t, err, queue.ErrJobNotActive)
	})
}

func TestMemoryStorage_CompleteJob(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	defer ms.Close()

	job := newTestJob(t, queue.DefaultQueueName)
	require.NoError(t, ms.CreateJob(context.Background(), job))

	_, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, ms.CompleteJob(context.Background(), job.ID))

	got, ok := ms.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, queue.StatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	assert.Nil(t, got.LockedUntil)

	assert.ErrorIs(t, ms.CompleteJob(context.Background(), job.ID), queue.ErrJobNotActive)
	assert.ErrorIs(t, ms.CompleteJob(context.Background(), uuid.New()), queue.ErrJobNotFound)
}

func TestMemoryStorage_LeaseExpiry(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	defer ms.Close()

	job := newTestJob(t, queue.DefaultQueueName)
	require.NoError(t, ms.CreateJob(context.Background(), job))

	// Claim with a very short lease, simulating a worker that crashed
	// without completing or failing the job.
	_, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, 50*time.Millisecond)
	require.NoError(t, err)

	// The sweeper runs once a second; wait for it to release the lease.
	require.Eventually(t, func() bool {
		got, ok := ms.GetJob(job.ID)
		return ok && got.Status == queue.StatusPending
	}, 3*time.Second, 50*time.Millisecond)

	// Another worker can now claim the job; the attempt count is untouched.
	claimed, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, int8(0), claimed.AttemptCount)
}

func TestMemoryStorage_DeadLetters(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	defer ms.Close()

	job := newTestJob(t, queue.DefaultQueueName)
	job.MaxAttempts = 1
	require.NoError(t, ms.CreateJob(context.Background(), job))

	_, err := ms.ClaimJob(context.Background(), uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, ms.FailJob(context.Background(), job.ID, "permanent failure"))
	require.NoError(t, ms.MoveToDeadLetter(context.Background(), job.ID))

	_, ok := ms.GetJob(job.ID)
	assert.False(t, ok, "dead-lettered job should leave the jobs table")

	letters, err := ms.ListDeadLetters(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, job.ID, letters[0].JobID)
	assert.Equal(t, "permanent failure", letters[0].Error)
	assert.Equal(t, int8(1), letters[0].AttemptCount)
}

// waitUntilDue blocks until the job's backoff delay has elapsed and it is
// claimable again.
func waitUntilDue(t *testing.T, ms *queue.MemoryStorage, jobID uuid.UUID) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, ok := ms.GetJob(jobID)
		if !ok {
			return false
		}
		return !got.NextAttemptAt.After(time.Now())
	}, 10*time.Second, 100*time.Millisecond)
}
