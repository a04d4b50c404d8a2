package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/pkg/jobs"
	"github.com/noah-isme/storefront-api/pkg/middleware/requestid"
)

type recordingSink struct {
	mu       sync.Mutex
	failures int
	events   []Event
}

func (s *recordingSink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestAsyncPublisherDeliversWithRetry(t *testing.T) {
	sink := &recordingSink{failures: 1}
	pub := NewAsyncPublisher(sink, jobs.QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	pub.Start(context.Background())
	defer pub.Stop()

	require.NoError(t, pub.Publish(context.Background(), Event{Type: TypeSessionBreach, UserID: "u1"}))

	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, TypeSessionBreach, sink.events[0].Type)
}

func TestAsyncPublisherStampsRequestID(t *testing.T) {
	sink := &recordingSink{}
	pub := NewAsyncPublisher(sink, jobs.QueueConfig{Workers: 1})
	pub.Start(context.Background())
	defer pub.Stop()

	ctx := requestid.NewContext(context.Background(), "req-42")
	require.NoError(t, pub.Publish(ctx, Event{Type: TypeLogout, UserID: "u1"}))

	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "req-42", sink.events[0].RequestID)
}

func TestAsyncPublisherNotStartedSwallowsError(t *testing.T) {
	pub := NewAsyncPublisher(NopPublisher{}, jobs.QueueConfig{})
	assert.NoError(t, pub.Publish(context.Background(), Event{Type: TypeLogin}))
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(context.Background(), KafkaConfig{Topic: "t"})
	assert.Error(t, err)
}
