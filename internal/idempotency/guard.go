// Package idempotency deduplicates order creation under client retries.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"servizephyr/internal/database"
	"servizephyr/internal/model"
	"servizephyr/internal/repository"

	"github.com/rs/zerolog"
)

// DefaultStaleAfter is how long a reservation may stay in flight before
// another attempt may take it over.
const DefaultStaleAfter = 30 * time.Second

// Metadata describes the attempt that reserves a key.
type Metadata struct {
	TenantID    string
	RequestHash string
	Attributes  json.RawMessage
}

// Reservation is the outcome of Reserve.
type Reservation struct {
	IsDuplicate    bool
	OrderID        string
	GatewayOrderID string
	Response       json.RawMessage
}

// Result is recorded by Complete.
type Result struct {
	OrderID        string
	GatewayOrderID *string
	Response       json.RawMessage
}

// Guard reserves, completes and fails idempotency keys.
type Guard struct {
	repo       repository.IdempotencyRepository
	staleAfter time.Duration
	attempts   int
	backoff    time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewGuard creates a guard that treats reservations older than staleAfter as abandoned.
func NewGuard(repo repository.IdempotencyRepository, staleAfter time.Duration, logger zerolog.Logger) *Guard {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Guard{
		repo:       repo,
		staleAfter: staleAfter,
		attempts:   database.DefaultRetryAttempts,
		backoff:    database.DefaultRetryBackoff,
		now:        time.Now,
		logger:     logger.With().Str("component", "idempotency").Logger(),
	}
}

// Reserve claims key for one creation attempt.
//
// A completed key returns IsDuplicate with the stored result. A key reserved
// less than staleAfter ago fails with model.ErrRequestInProgress. Stale and
// failed reservations are taken over. A completed key presented with a
// different request body fails with model.ErrIdempotencyKeyReused.
func (g *Guard) Reserve(ctx context.Context, key string, meta Metadata) (Reservation, error) {
	var res Reservation
	err := database.Retry(ctx, g.attempts, g.backoff, func(ctx context.Context) error {
		var err error
		res, err = g.reserveOnce(ctx, key, meta)
		return err
	})
	return res, err
}

func (g *Guard) reserveOnce(ctx context.Context, key string, meta Metadata) (Reservation, error) {
	tx, err := g.repo.BeginTx(ctx)
	if err != nil {
		return Reservation{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	existing, err := g.repo.GetForUpdate(ctx, tx, key)
	if err != nil {
		return Reservation{}, err
	}

	now := g.now().UTC()
	fresh := &model.IdempotencyRecord{
		Key:         key,
		TenantID:    meta.TenantID,
		RequestHash: meta.RequestHash,
		Status:      model.IdempotencyReserved,
		Metadata:    meta.Attributes,
		CreatedAt:   now,
	}

	if existing == nil {
		inserted, err := g.repo.Insert(ctx, tx, fresh)
		if err != nil {
			return Reservation{}, err
		}
		if !inserted {
			g.logger.Debug().Str("key", key).Msg("lost reservation race")
			return Reservation{}, model.ErrRequestInProgress
		}
		if err := tx.Commit(ctx); err != nil {
			return Reservation{}, fmt.Errorf("failed to commit reservation: %w", err)
		}
		return Reservation{}, nil
	}

	switch existing.Status {
	case model.IdempotencyCompleted:
		if existing.RequestHash != "" && meta.RequestHash != "" && existing.RequestHash != meta.RequestHash {
			g.logger.Warn().Str("key", key).Msg("idempotency key reused with a different request")
			return Reservation{}, model.ErrIdempotencyKeyReused
		}
		res := Reservation{IsDuplicate: true, Response: existing.Response}
		if existing.OrderID != nil {
			res.OrderID = *existing.OrderID
		}
		if existing.GatewayOrderID != nil {
			res.GatewayOrderID = *existing.GatewayOrderID
		}
		g.logger.Info().Str("key", key).Str("order_id", res.OrderID).Msg("duplicate request replayed")
		return res, nil

	case model.IdempotencyReserved:
		age := now.Sub(existing.CreatedAt)
		if age < g.staleAfter {
			return Reservation{}, model.ErrRequestInProgress
		}
		g.logger.Warn().
			Str("key", key).
			Dur("age", age).
			Msg("taking over abandoned reservation")
	}

	if err := g.repo.Reserve(ctx, tx, fresh); err != nil {
		return Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return Reservation{}, nil
}

// Complete records the result of a successful creation under key.
func (g *Guard) Complete(ctx context.Context, key string, result Result) error {
	if err := g.repo.Complete(ctx, key, result.OrderID, result.GatewayOrderID, result.Response, g.now().UTC()); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

// Fail records a failed attempt. The key stays usable for a retry.
func (g *Guard) Fail(ctx context.Context, key string, cause error) error {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	if err := g.repo.Fail(ctx, key, reason, g.now().UTC()); err != nil {
		g.logger.Error().Err(err).Str("key", key).Msg("failed to record failed attempt")
		return fmt.Errorf("failed to fail idempotency key: %w", err)
	}
	return nil
}

// HashRequest returns a stable fingerprint of a request body.
func HashRequest(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode request for hashing: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
