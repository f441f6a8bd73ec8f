package rateguard

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisWindowKeyPrefix = "rateguard:window:"

// RedisWindow keeps the sliding window in a Redis sorted set so the advisory
// count covers every replica sharing the client. Same contract as
// MemoryWindow; the guard stays advisory-only either way.
type RedisWindow struct {
	client *redis.Client
	key    string
	window time.Duration
}

func NewRedisWindow(client *redis.Client, name string, window time.Duration) *RedisWindow {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisWindow{
		client: client,
		key:    redisWindowKeyPrefix + name,
		window: window,
	}
}

func (w *RedisWindow) Add(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-w.window).UnixNano()

	pipe := w.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, w.key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, w.key, redis.Z{
		Score: float64(now.UnixNano()),
		// Unique member so simultaneous calls are not collapsed.
		Member: strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString(),
	})
	card := pipe.ZCard(ctx, w.key)
	pipe.Expire(ctx, w.key, w.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}
