package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"servizephyr/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// idempotencyRepository implements the IdempotencyRepository interface using PostgreSQL.
type idempotencyRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewIdempotencyRepository creates a new PostgreSQL-backed idempotency key repository.
func NewIdempotencyRepository(pool *pgxpool.Pool, logger zerolog.Logger) IdempotencyRepository {
	return &idempotencyRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "idempotency").Logger(),
	}
}

func (r *idempotencyRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

// GetForUpdate returns the record for key locked for the rest of tx.
func (r *idempotencyRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, key string) (*model.IdempotencyRecord, error) {
	query := `
		SELECT key, tenant_id, request_hash, status, metadata, order_id, gateway_order_id,
		       response, last_error, created_at, completed_at, failed_at, updated_at
		FROM idempotency_keys
		WHERE key = $1
		FOR UPDATE
	`

	var rec model.IdempotencyRecord
	var metadata, response []byte
	err := tx.QueryRow(ctx, query, key).Scan(
		&rec.Key, &rec.TenantID, &rec.RequestHash, &rec.Status, &metadata, &rec.OrderID, &rec.GatewayOrderID,
		&response, &rec.LastError, &rec.CreatedAt, &rec.CompletedAt, &rec.FailedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("key", key).Msg("failed to query idempotency key")
		return nil, fmt.Errorf("failed to query idempotency key: %w", err)
	}

	if len(metadata) > 0 {
		rec.Metadata = metadata
	}
	if len(response) > 0 {
		rec.Response = response
	}
	return &rec, nil
}

// Insert creates a reserved record unless the key already exists.
func (r *idempotencyRepository) Insert(ctx context.Context, tx pgx.Tx, rec *model.IdempotencyRecord) (bool, error) {
	query := `
		INSERT INTO idempotency_keys (key, tenant_id, request_hash, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (key) DO NOTHING
	`

	tag, err := tx.Exec(ctx, query, rec.Key, rec.TenantID, rec.RequestHash, rec.Status, nullableJSON(rec.Metadata), rec.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("key", rec.Key).Msg("failed to insert idempotency key")
		return false, fmt.Errorf("failed to insert idempotency key: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Reserve overwrites an abandoned or failed record with a fresh reservation.
func (r *idempotencyRepository) Reserve(ctx context.Context, tx pgx.Tx, rec *model.IdempotencyRecord) error {
	query := `
		UPDATE idempotency_keys
		SET tenant_id = $2,
		    request_hash = $3,
		    status = $4,
		    metadata = $5,
		    order_id = NULL,
		    gateway_order_id = NULL,
		    response = NULL,
		    last_error = NULL,
		    created_at = $6,
		    completed_at = NULL,
		    failed_at = NULL,
		    updated_at = $6
		WHERE key = $1
	`

	_, err := tx.Exec(ctx, query, rec.Key, rec.TenantID, rec.RequestHash, rec.Status, nullableJSON(rec.Metadata), rec.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("key", rec.Key).Msg("failed to re-reserve idempotency key")
		return fmt.Errorf("failed to re-reserve idempotency key: %w", err)
	}
	return nil
}

// Complete records the outcome of a successful creation.
func (r *idempotencyRepository) Complete(ctx context.Context, key string, orderID string, gatewayOrderID *string, response json.RawMessage, at time.Time) error {
	query := `
		UPDATE idempotency_keys
		SET status = $2,
		    order_id = $3,
		    gateway_order_id = $4,
		    response = $5,
		    completed_at = $6,
		    updated_at = $6
		WHERE key = $1
	`

	tag, err := r.pool.Exec(ctx, query, key, model.IdempotencyCompleted, orderID, gatewayOrderID, nullableJSON(response), at)
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Str("order_id", orderID).Msg("failed to complete idempotency key")
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idempotency key %q not found", key)
	}
	return nil
}

// Fail records a failed creation attempt.
func (r *idempotencyRepository) Fail(ctx context.Context, key string, reason string, at time.Time) error {
	query := `
		UPDATE idempotency_keys
		SET status = $2,
		    last_error = $3,
		    failed_at = $4,
		    updated_at = $4
		WHERE key = $1 AND status = 'reserved'
	`

	_, err := r.pool.Exec(ctx, query, key, model.IdempotencyFailed, reason, at)
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("failed to mark idempotency key failed")
		return fmt.Errorf("failed to mark idempotency key failed: %w", err)
	}
	return nil
}

// DeleteBefore removes records created before cutoff.
func (r *idempotencyRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to delete old idempotency keys")
		return 0, fmt.Errorf("failed to delete old idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
