package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindowStore keeps each key's request timestamps in a sorted set
// scored by unix milliseconds.
type RedisWindowStore struct {
	client *redis.Client
}

// NewRedisWindowStore wraps an already-connected Redis client.
func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

func (s *RedisWindowStore) Slide(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	nowMillis := now.UnixMilli()
	windowStart := nowMillis - window.Milliseconds()
	redisKey := "rate:sliding:" + key

	pipe := s.client.TxPipeline()
	// UnixNano members keep concurrent requests within the same
	// millisecond distinct.
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(nowMillis),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return card.Val(), nil
}
