package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tokoline/sales-api/internal/ordernumber"
)

// Sequencer allocates the per-day order-number counter. It runs inside the
// create transaction; the unique constraint on order_number is the final
// arbiter and CreateOrder retries on conflict.
type Sequencer interface {
	Next(ctx context.Context, store OrderStore, day time.Time) (int, error)
}

// PostgresSequencer derives the next counter from the highest number already
// issued for the day.
type PostgresSequencer struct{}

func (PostgresSequencer) Next(ctx context.Context, store OrderStore, day time.Time) (int, error) {
	last, err := store.LastOrderNumber(ctx, ordernumber.DayPrefix(day))
	if err != nil {
		return 0, fmt.Errorf("last order number: %w", err)
	}
	return ordernumber.NextSequence(last, day)
}

// RedisCounter is the subset of *redis.Client used by RedisSequencer.
type RedisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

const sequenceKeyTTL = 48 * time.Hour

// RedisSequencer hands out counters with INCR on one key per day, so
// concurrent creators never compute the same MAX.
type RedisSequencer struct {
	client RedisCounter
	prefix string
}

func NewRedisSequencer(client RedisCounter) *RedisSequencer {
	return &RedisSequencer{client: client, prefix: "orders:seq:"}
}

func (s *RedisSequencer) Next(ctx context.Context, _ OrderStore, day time.Time) (int, error) {
	key := s.prefix + day.Format("20060102")
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, sequenceKeyTTL).Err(); err != nil {
			return 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	if n > ordernumber.MaxSequence {
		return 0, fmt.Errorf("%w: %d", ordernumber.ErrSequenceExhausted, n)
	}
	return int(n), nil
}
