// Package queue implements the append-only analytics buffer that
// decouples visit recording from the redirect response.
package queue

import (
	"LINKR-Backend/internal/domain"
	"context"
)

// Queue is a durable, ordered, at-least-once FIFO of analytics events.
// Enqueue is best-effort: failures are logged and dropped so a queue
// outage can never affect redirect latency or success. Dequeue is
// destructive with no ack step; an aggregator crash between dequeue and
// commit loses or double-applies at most one batch, an accepted
// tradeoff for approximate analytics.
type Queue interface {
	Enqueue(ctx context.Context, event domain.AnalyticsEvent)
	Dequeue(ctx context.Context, batchSize int) ([]domain.AnalyticsEvent, error)
	Length(ctx context.Context) (int64, error)
}
