package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servizephyr/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// rateLimitRepository implements the RateLimitRepository interface using PostgreSQL.
type rateLimitRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewRateLimitRepository creates a new PostgreSQL-backed rate-limit counter repository.
func NewRateLimitRepository(pool *pgxpool.Pool, logger zerolog.Logger) RateLimitRepository {
	return &rateLimitRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "ratelimit").Logger(),
	}
}

// Increment creates the counter at 1 or bumps it while it is below limit,
// all in one statement. No row comes back when the counter is already full.
func (r *rateLimitRepository) Increment(ctx context.Context, counter model.RateLimitCounter, limit int) (int, bool, error) {
	query := `
		INSERT INTO rate_limit_counters (key, identity, bucket, count, created_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (key) DO UPDATE
		SET count = rate_limit_counters.count + 1
		WHERE rate_limit_counters.count < $5
		RETURNING count
	`

	var count int
	err := r.pool.QueryRow(ctx, query, counter.Key, counter.Identity, counter.Bucket, counter.CreatedAt, limit).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return limit, false, nil
		}
		r.logger.Error().Err(err).Str("key", counter.Key).Msg("failed to increment rate limit counter")
		return 0, false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return count, true, nil
}

// DeleteBefore removes counters created before cutoff.
func (r *rateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rate_limit_counters WHERE created_at < $1`, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to delete expired rate limit counters")
		return 0, fmt.Errorf("failed to delete expired rate limit counters: %w", err)
	}
	return tag.RowsAffected(), nil
}
