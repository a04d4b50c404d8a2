package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/pkg/jobs"
	"github.com/noah-isme/storefront-api/pkg/middleware/requestid"
)

const jobType = "security_event"

// AsyncPublisher hands events to a worker queue so request paths never block on the broker.
type AsyncPublisher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAsyncPublisher wraps sink with a retrying worker queue. Call Start before publishing.
func NewAsyncPublisher(sink Publisher, cfg jobs.QueueConfig) *AsyncPublisher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(Event)
		if !ok {
			return fmt.Errorf("unexpected payload %T", job.Payload)
		}
		return sink.Publish(ctx, event)
	}
	return &AsyncPublisher{
		queue:  jobs.NewQueue("security-events", handler, cfg),
		logger: cfg.Logger,
	}
}

// Start launches the workers bound to ctx.
func (p *AsyncPublisher) Start(ctx context.Context) { p.queue.Start(ctx) }

// Stop drains the workers.
func (p *AsyncPublisher) Stop() { p.queue.Stop() }

// Publish enqueues the event. Enqueue failures are logged and swallowed. The
// request id is copied from ctx since workers run detached from the request.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	if event.RequestID == "" {
		event.RequestID = requestid.FromContext(ctx)
	}
	err := p.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: event})
	if err != nil {
		p.logger.Warn("security event dropped", zap.String("type", event.Type), zap.Error(err))
	}
	return nil
}
