package queue

import (
	"LINKR-Backend/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventsKey = "analytics:events"

// RedisQueue implements Queue over a Redis list (LPUSH head, RPOP tail).
type RedisQueue struct {
	client         *redis.Client
	enqueueTimeout time.Duration
	log            *zap.Logger
}

// NewRedisQueue wraps an already-connected Redis client. enqueueTimeout
// bounds how long an enqueue may take before it is dropped; it must be
// short enough that a queue-store outage is imperceptible on the
// redirect path.
func NewRedisQueue(client *redis.Client, enqueueTimeout time.Duration, log *zap.Logger) *RedisQueue {
	if enqueueTimeout <= 0 {
		enqueueTimeout = 250 * time.Millisecond
	}
	return &RedisQueue{
		client:         client,
		enqueueTimeout: enqueueTimeout,
		log:            log,
	}
}

// Enqueue appends the event to the queue. Failures are logged and the
// event is dropped; the caller never sees an error.
func (q *RedisQueue) Enqueue(ctx context.Context, event domain.AnalyticsEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		q.log.Error("failed to encode analytics event", zap.Int64("link_id", event.LinkID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, q.enqueueTimeout)
	defer cancel()

	if err := q.client.LPush(ctx, eventsKey, data).Err(); err != nil {
		q.log.Error("failed to enqueue analytics event, dropping",
			zap.Int64("link_id", event.LinkID), zap.Error(err))
	}
}

// Dequeue pops up to batchSize events from the tail of the queue.
func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]domain.AnalyticsEvent, error) {
	if batchSize <= 0 {
		return nil, nil
	}

	raw, err := q.client.RPopCount(ctx, eventsKey, batchSize).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue analytics events: %w", err)
	}

	events := make([]domain.AnalyticsEvent, 0, len(raw))
	for _, item := range raw {
		var event domain.AnalyticsEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			// Malformed items are dropped, not retried.
			q.log.Warn("failed to decode analytics event, skipping", zap.Error(err))
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// Length returns the queue depth, for observability only.
func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, eventsKey).Result()
}
