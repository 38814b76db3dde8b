package engine

import (
	"context"
	"sync"
	"time"
)

// FiringTracker records which (rule, ticket) pairs already fired for a
// given reference time, so a continuously-true condition fires once
// and re-arms only when the reference clock resets. State is marked
// only after a confirmed commit.
type FiringTracker interface {
	AlreadyFired(ctx context.Context, ruleID, ticketID string, ref time.Time) (bool, error)
	MarkFired(ctx context.Context, ruleID, ticketID string, ref time.Time) error
	Clear(ctx context.Context, ruleID, ticketID string) error
}

// MemoryFiringTracker keeps dedup state in process memory.
type MemoryFiringTracker struct {
	mu    sync.Mutex
	fired map[string]int64
}

// NewMemoryFiringTracker builds an empty tracker.
func NewMemoryFiringTracker() *MemoryFiringTracker {
	return &MemoryFiringTracker{fired: make(map[string]int64)}
}

func pairKey(ruleID, ticketID string) string {
	return ruleID + ":" + ticketID
}

func (t *MemoryFiringTracker) AlreadyFired(ctx context.Context, ruleID, ticketID string, ref time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stored, ok := t.fired[pairKey(ruleID, ticketID)]
	return ok && stored == ref.UnixNano(), nil
}

func (t *MemoryFiringTracker) MarkFired(ctx context.Context, ruleID, ticketID string, ref time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fired[pairKey(ruleID, ticketID)] = ref.UnixNano()
	return nil
}

func (t *MemoryFiringTracker) Clear(ctx context.Context, ruleID, ticketID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.fired, pairKey(ruleID, ticketID))
	return nil
}
