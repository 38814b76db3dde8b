// Package notify is the engine's boundary to the external notification
// dispatcher. The engine only enqueues requests; delivery, retries and
// status tracking belong to the consumer on the other side of the queue.
package notify

import (
	"context"
	"sync"

	"github.com/spec-kit/escalation-engine/internal/domain"
)

// Dispatcher enqueues notification requests for external delivery.
// Enqueue is fire-and-forget from the engine's point of view: failures
// are logged by callers and never roll back ticket mutations.
type Dispatcher interface {
	Enqueue(ctx context.Context, req domain.NotificationRequest) error
}

// MemoryDispatcher captures requests in memory. It backs the DSN-less
// development mode and the test suites.
type MemoryDispatcher struct {
	mu       sync.Mutex
	requests []domain.NotificationRequest

	// FailEnqueue forces Enqueue to fail, for best-effort semantics tests.
	FailEnqueue bool
}

// NewMemoryDispatcher builds an empty dispatcher.
func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

func (d *MemoryDispatcher) Enqueue(ctx context.Context, req domain.NotificationRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailEnqueue {
		return context.DeadlineExceeded
	}
	d.requests = append(d.requests, req)
	return nil
}

// Requests returns a snapshot of captured requests.
func (d *MemoryDispatcher) Requests() []domain.NotificationRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.NotificationRequest{}, d.requests...)
}
