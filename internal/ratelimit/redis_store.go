package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servizephyr/internal/config"
	"servizephyr/internal/model"

	"github.com/redis/go-redis/v9"
)

// counterTTL outlives the minute bucket so late readers still see it.
const counterTTL = 2 * time.Minute

// RedisStore keeps counters in Redis using an optimistic WATCH/MULTI transaction.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Increment bumps the counter while it is below limit. A concurrent writer
// aborts the transaction and surfaces as ErrContention.
func (s *RedisStore) Increment(ctx context.Context, counter model.RateLimitCounter, limit int) (int, bool, error) {
	var count int
	var allowed bool

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Get(ctx, counter.Key).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if n >= limit {
			count, allowed = n, false
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, counter.Key)
			pipe.Expire(ctx, counter.Key, counterTTL)
			return nil
		})
		if err != nil {
			return err
		}

		count, allowed = n+1, true
		return nil
	}, counter.Key)

	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return 0, false, fmt.Errorf("%w: %v", ErrContention, err)
		}
		return 0, false, fmt.Errorf("failed to increment redis counter: %w", err)
	}

	return count, allowed, nil
}
