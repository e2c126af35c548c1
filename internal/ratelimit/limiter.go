// Package ratelimit implements sliding-window request limiting keyed by
// (operation class, caller identity) over a shared counter store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// WindowStore records request timestamps per key and counts how many
// fall inside the trailing window. Implementations must be atomic at
// the store level and expire idle keys after the window elapses.
type WindowStore interface {
	// Slide prunes entries older than now-window, records now as a new
	// request, and returns the resulting count inside the window.
	Slide(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)
}

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is a conservative upper bound on when capacity frees up.
	// The window slides continuously, so actual capacity may return
	// earlier than this.
	ResetAt time.Time
}

// Limiter applies a sliding-window policy per key.
type Limiter struct {
	store WindowStore
	log   *zap.Logger
	now   func() time.Time
}

// New creates a Limiter over the given window store.
func New(store WindowStore, log *zap.Logger) *Limiter {
	return &Limiter{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Key builds a limiter key from an operation class and caller identity
// parts, e.g. Key("redirect", ip) or Key("verify-password", ip, code).
func Key(class string, parts ...string) string {
	key := class
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Check records the request and decides whether it is within the limit.
// On any counting-store error the limiter fails open: rate limiting is
// defense in depth, and a store outage must not become its own denial
// of service.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) Decision {
	now := l.now()

	count, err := l.store.Slide(ctx, key, now, window)
	if err != nil {
		l.log.Warn("rate limit store unavailable, failing open",
			zap.String("key", key), zap.Error(err))
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: now.Add(window)}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}
}

// RetryAfter returns the wait the caller should be told about, rounded
// up to whole seconds for the Retry-After header.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait.Round(time.Second)
}

// String makes limiter decisions readable in logs.
func (d Decision) String() string {
	return fmt.Sprintf("allowed=%t limit=%d remaining=%d reset_at=%s",
		d.Allowed, d.Limit, d.Remaining, d.ResetAt.Format(time.RFC3339))
}
