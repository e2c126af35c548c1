// Package analytics turns queued visit events into per-day rollups.
// Batching and day-bucketing amortize a potential write-per-click storm
// into a handful of upserts per aggregation pass.
package analytics

import (
	"LINKR-Backend/internal/queue"
	"LINKR-Backend/internal/repository"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Result describes one aggregation pass, for observability.
type Result struct {
	Processed        int   `json:"processed"`
	LinksAffected    int   `json:"links_affected"`
	QueueLengthAfter int64 `json:"queue_length_after"`
}

// Aggregator drains the analytics queue in bounded batches and folds
// the events into visit counters and daily rollup rows.
type Aggregator struct {
	queue   queue.Queue
	storage repository.Storage
	log     *zap.Logger
}

// NewAggregator creates an Aggregator over the given queue and storage.
func NewAggregator(q queue.Queue, storage repository.Storage, log *zap.Logger) *Aggregator {
	return &Aggregator{
		queue:   q,
		storage: storage,
		log:     log,
	}
}

// dayTally collects one link's counts within a single UTC day.
type dayTally struct {
	count     int64
	referrers map[string]int64
	countries map[string]int64
}

// RunBatch drains up to maxEvents from the queue and applies the
// aggregated increments. Per-link writes run concurrently; individual
// failures are logged and absorbed, never propagated, since losing
// analytics is acceptable and losing redirects is not. Safe to invoke
// on any cadence and from overlapping runs: all counter writes go
// through store-level atomic increment-or-create upserts.
func (a *Aggregator) RunBatch(ctx context.Context, maxEvents int) (Result, error) {
	events, err := a.queue.Dequeue(ctx, maxEvents)
	if err != nil {
		return Result{}, err
	}

	if len(events) == 0 {
		length, _ := a.queue.Length(ctx)
		return Result{QueueLengthAfter: length}, nil
	}

	// Group by link, bucket by the event's own UTC calendar day.
	groups := make(map[int64]map[time.Time]*dayTally)
	for _, event := range events {
		day := event.Day()
		days, ok := groups[event.LinkID]
		if !ok {
			days = make(map[time.Time]*dayTally)
			groups[event.LinkID] = days
		}
		tally, ok := days[day]
		if !ok {
			tally = &dayTally{
				referrers: make(map[string]int64),
				countries: make(map[string]int64),
			}
			days[day] = tally
		}
		tally.count++
		tally.referrers[event.ReferrerHost]++
		tally.countries[event.CountryCode]++
	}

	var wg sync.WaitGroup
	for linkID, days := range groups {
		wg.Add(1)
		go func(linkID int64, days map[time.Time]*dayTally) {
			defer wg.Done()
			a.applyLink(ctx, linkID, days)
		}(linkID, days)
	}
	wg.Wait()

	length, err := a.queue.Length(ctx)
	if err != nil {
		a.log.Warn("failed to read queue length after batch", zap.Error(err))
		length = -1
	}

	result := Result{
		Processed:        len(events),
		LinksAffected:    len(groups),
		QueueLengthAfter: length,
	}

	a.log.Info("aggregation batch complete",
		zap.Int("processed", result.Processed),
		zap.Int("links_affected", result.LinksAffected),
		zap.Int64("queue_length_after", result.QueueLengthAfter))

	return result, nil
}

// applyLink writes one link's aggregated increments.
func (a *Aggregator) applyLink(ctx context.Context, linkID int64, days map[time.Time]*dayTally) {
	var total int64
	for _, tally := range days {
		total += tally.count
	}

	if err := a.storage.IncrementVisits(ctx, linkID, total); err != nil {
		a.log.Error("failed to increment visits", zap.Int64("link_id", linkID), zap.Error(err))
	}

	for day, tally := range days {
		if err := a.storage.UpsertDailyClicks(ctx, linkID, day, tally.count); err != nil {
			a.log.Error("failed to upsert daily clicks", zap.Int64("link_id", linkID), zap.Error(err))
		}
		for referrer, count := range tally.referrers {
			if err := a.storage.UpsertDailyReferrer(ctx, linkID, day, referrer, count); err != nil {
				a.log.Error("failed to upsert daily referrer",
					zap.Int64("link_id", linkID), zap.String("referrer", referrer), zap.Error(err))
			}
		}
		for country, count := range tally.countries {
			if err := a.storage.UpsertDailyGeo(ctx, linkID, day, country, count); err != nil {
				a.log.Error("failed to upsert daily geo",
					zap.Int64("link_id", linkID), zap.String("country", country), zap.Error(err))
			}
		}
	}
}
