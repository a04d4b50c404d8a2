package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesWithBackoff(t *testing.T) {
	var calls atomic.Int32
	q := NewQueue("test", func(context.Context, Job) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	assert.Eventually(t, func() bool { return q.Stats().Processed == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), q.Stats().Retried)
}

func TestQueueDropsAfterMaxRetries(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return errors.New("permanent") },
		QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	assert.Eventually(t, func() bool { return q.Stats().Dropped == 1 }, time.Second, 5*time.Millisecond)
}

func TestQueueEnqueueErrors(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("test", func(context.Context, Job) error { <-block; return nil }, QueueConfig{Workers: 1, BufferSize: 1, DrainTimeout: 50 * time.Millisecond})

	assert.ErrorIs(t, q.Enqueue(Job{}), ErrNotStarted)

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	// the worker may not have picked up the first job yet, so fill until full
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(Job{ID: "buffered"})
	}
	assert.ErrorIs(t, err, ErrFull)

	close(block)
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{}), ErrStopped)
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	release := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, j Job) error {
		if j.ID == "first" {
			<-release
		}
		mu.Lock()
		seen = append(seen, j.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "first"}))
	require.NoError(t, q.Enqueue(Job{ID: "second"}))
	require.NoError(t, q.Enqueue(Job{ID: "third"}))
	close(release)
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"first", "second", "third"}, seen)
}
