// Package ratelimit throttles callers with fixed one-minute counters kept in
// a shared store, so every API instance sees the same budget.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servizephyr/internal/database"
	"servizephyr/internal/model"

	"github.com/rs/zerolog"
)

// Key namespaces. Each namespace has its own limit.
const (
	NamespaceTenantOrder = "tenant-order"
	NamespaceIP          = "ip"
)

const bucketLayout = "200601021504"

// ErrContention marks a store conflict that is safe to retry.
var ErrContention = errors.New("rate limit counter contention")

// Store increments one per-minute counter atomically.
type Store interface {
	// Increment creates the counter at 1 or bumps it while below limit. A
	// denied call must leave the counter untouched.
	Increment(ctx context.Context, counter model.RateLimitCounter, limit int) (int, bool, error)
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed    bool
	Count      int
	Limit      int
	Bucket     string
	RetryAfter time.Duration
}

// Limiter checks callers against per-minute budgets.
type Limiter struct {
	store    Store
	attempts int
	backoff  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewLimiter creates a limiter that retries transient store failures up to
// attempts times before failing closed.
func NewLimiter(store Store, attempts int, logger zerolog.Logger) *Limiter {
	if attempts < 1 {
		attempts = database.DefaultRetryAttempts
	}
	return &Limiter{
		store:    store,
		attempts: attempts,
		backoff:  database.DefaultRetryBackoff,
		now:      time.Now,
		logger:   logger.With().Str("component", "ratelimit").Logger(),
	}
}

// Allow counts one call by identity in namespace. When the store keeps
// failing the call is denied and the error wraps model.ErrRateLimiterUnavailable.
func (l *Limiter) Allow(ctx context.Context, namespace, identity string, limit int) (Decision, error) {
	now := l.now().UTC()
	bucket := now.Format(bucketLayout)
	decision := Decision{
		Limit:      limit,
		Bucket:     bucket,
		RetryAfter: now.Truncate(time.Minute).Add(time.Minute).Sub(now),
	}

	counter := model.RateLimitCounter{
		Key:       namespace + ":" + identity + ":" + bucket,
		Identity:  identity,
		Bucket:    bucket,
		CreatedAt: now,
	}

	var err error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		var count int
		var allowed bool
		count, allowed, err = l.store.Increment(ctx, counter, limit)
		if err == nil {
			decision.Count = count
			decision.Allowed = allowed
			if !allowed {
				l.logger.Warn().
					Str("namespace", namespace).
					Str("identity", identity).
					Int("limit", limit).
					Msg("rate limit exceeded")
			}
			return decision, nil
		}

		if !retryable(err) || attempt == l.attempts {
			break
		}

		if waitErr := sleep(ctx, l.backoff*time.Duration(attempt)); waitErr != nil {
			err = waitErr
			break
		}
	}

	l.logger.Error().Err(err).
		Str("namespace", namespace).
		Str("identity", identity).
		Msg("rate limiter store failed, denying request")

	return decision, fmt.Errorf("%w: %v", model.ErrRateLimiterUnavailable, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrContention) || database.IsTransient(err)
}
