package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/escalation-engine/internal/domain"
)

// RedisDispatcher pushes JSON-encoded requests onto a Redis list
// consumed by the external delivery worker.
type RedisDispatcher struct {
	client   *redis.Client
	queueKey string
}

// NewRedisDispatcher builds a dispatcher writing to queueKey.
func NewRedisDispatcher(client *redis.Client, queueKey string) *RedisDispatcher {
	return &RedisDispatcher{client: client, queueKey: queueKey}
}

func (d *RedisDispatcher) Enqueue(ctx context.Context, req domain.NotificationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return d.client.LPush(ctx, d.queueKey, payload).Err()
}
