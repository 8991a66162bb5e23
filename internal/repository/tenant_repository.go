package repository

import (
	"context"
	"errors"
	"fmt"

	"servizephyr/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type tenantRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewTenantRepository creates a new PostgreSQL-backed tenant repository.
func NewTenantRepository(pool *pgxpool.Pool, logger zerolog.Logger) TenantRepository {
	return &tenantRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "tenant").Logger(),
	}
}

func (r *tenantRepository) GetByID(ctx context.Context, tenantID string) (*model.Tenant, error) {
	var t model.Tenant
	err := r.pool.QueryRow(ctx, `SELECT id, name, business_type FROM tenants WHERE id = $1`, tenantID).
		Scan(&t.ID, &t.Name, &t.BusinessType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to query tenant")
		return nil, fmt.Errorf("failed to query tenant: %w", err)
	}
	return &t, nil
}

func (r *tenantRepository) ListByBusinessTypes(ctx context.Context, types []model.BusinessType) ([]model.Tenant, error) {
	if len(types) == 0 {
		return []model.Tenant{}, nil
	}

	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, business_type FROM tenants WHERE business_type = ANY($1) ORDER BY id`, names)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query tenants")
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.BusinessType); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}

	return tenants, nil
}
