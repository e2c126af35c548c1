package queue

import (
	"LINKR-Backend/internal/domain"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(linkID int64, referrer, country string) domain.AnalyticsEvent {
	return domain.AnalyticsEvent{
		LinkID:           linkID,
		ReferrerHost:     referrer,
		CountryCode:      country,
		OccurredAtMillis: 1757000000000,
	}
}

func TestMemQueue_FIFOOrder(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()

	q.Enqueue(ctx, event(1, "Direct", "US"))
	q.Enqueue(ctx, event(2, "google.com", "DE"))
	q.Enqueue(ctx, event(3, "Direct", "Unknown"))

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)

	batch, err := q.Dequeue(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].LinkID)
	assert.Equal(t, int64(2), batch[1].LinkID)

	// Remaining event, then empty.
	batch, err = q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, int64(3), batch[0].LinkID)

	batch, err = q.Dequeue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	length, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)
}

func TestMemQueue_DequeueIsDestructive(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()

	q.Enqueue(ctx, event(1, "Direct", "US"))

	first, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, second, "an event must only be delivered once")
}

func TestMemQueue_ZeroBatchSize(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()
	q.Enqueue(ctx, event(1, "Direct", "US"))

	batch, err := q.Dequeue(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, batch)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}
