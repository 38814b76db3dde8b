package persistence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFiringTracker stores rule-firing dedup state in a Redis hash so
// continuously-matching pairs do not re-fire across engine restarts.
type RedisFiringTracker struct {
	client *redis.Client
	key    string
}

// NewRedisFiringTracker builds a tracker over the given client.
func NewRedisFiringTracker(client *redis.Client) *RedisFiringTracker {
	return &RedisFiringTracker{client: client, key: "escalation:fired"}
}

func pairField(ruleID, ticketID string) string {
	return fmt.Sprintf("%s:%s", ruleID, ticketID)
}

// AlreadyFired reports whether the pair fired for the given reference time.
func (t *RedisFiringTracker) AlreadyFired(ctx context.Context, ruleID, ticketID string, ref time.Time) (bool, error) {
	val, err := t.client.HGet(ctx, t.key, pairField(ruleID, ticketID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	stored, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, nil
	}
	return stored == ref.UnixNano(), nil
}

// MarkFired records the reference time the pair fired against.
func (t *RedisFiringTracker) MarkFired(ctx context.Context, ruleID, ticketID string, ref time.Time) error {
	return t.client.HSet(ctx, t.key, pairField(ruleID, ticketID), ref.UnixNano()).Err()
}

// Clear resets the pair, re-arming the rule for the ticket.
func (t *RedisFiringTracker) Clear(ctx context.Context, ruleID, ticketID string) error {
	return t.client.HDel(ctx, t.key, pairField(ruleID, ticketID)).Err()
}
