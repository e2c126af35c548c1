package queue

import (
	"LINKR-Backend/internal/domain"
	"context"
	"sync"
)

// MemQueue is an in-memory Queue for tests and local runs without Redis.
type MemQueue struct {
	mu     sync.Mutex
	events []domain.AnalyticsEvent
}

func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

func (q *MemQueue) Enqueue(_ context.Context, event domain.AnalyticsEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
}

func (q *MemQueue) Dequeue(_ context.Context, batchSize int) ([]domain.AnalyticsEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if batchSize <= 0 || len(q.events) == 0 {
		return nil, nil
	}
	if batchSize > len(q.events) {
		batchSize = len(q.events)
	}

	batch := make([]domain.AnalyticsEvent, batchSize)
	copy(batch, q.events[:batchSize])
	q.events = q.events[batchSize:]

	return batch, nil
}

func (q *MemQueue) Length(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.events)), nil
}
