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

// tableRepository implements the TableRepository interface using PostgreSQL.
type tableRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewTableRepository creates a new PostgreSQL-backed restaurant table repository.
func NewTableRepository(pool *pgxpool.Pool, logger zerolog.Logger) TableRepository {
	return &tableRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "table").Logger(),
	}
}

// GetAll retrieves all tables of a tenant.
func (r *tableRepository) GetAll(ctx context.Context, tenantID string) ([]model.RestaurantTable, error) {
	query := `
		SELECT tenant_id, id, label, capacity, current_pax, state, updated_at
		FROM restaurant_tables
		WHERE tenant_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		r.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to query tables")
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []model.RestaurantTable
	for rows.Next() {
		var t model.RestaurantTable
		err := rows.Scan(&t.TenantID, &t.ID, &t.Label, &t.Capacity, &t.CurrentPax, &t.State, &t.UpdatedAt)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan table row")
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating table rows")
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

// GetForUpdate retrieves and row-locks a single table.
func (r *tableRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, tenantID, tableID string) (*model.RestaurantTable, error) {
	query := `
		SELECT tenant_id, id, label, capacity, current_pax, state, updated_at
		FROM restaurant_tables
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE
	`

	var t model.RestaurantTable
	err := tx.QueryRow(ctx, query, tenantID, tableID).
		Scan(&t.TenantID, &t.ID, &t.Label, &t.Capacity, &t.CurrentPax, &t.State, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("table_id", tableID).Msg("table not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("table_id", tableID).Msg("failed to query table")
		return nil, fmt.Errorf("failed to query table: %w", err)
	}

	return &t, nil
}

// UpdateOccupancy writes the headcount of a table and its derived state.
func (r *tableRepository) UpdateOccupancy(ctx context.Context, tx pgx.Tx, tenantID, tableID string, pax int) error {
	if pax < 0 {
		pax = 0
	}

	query := `
		UPDATE restaurant_tables
		SET current_pax = $3,
		    state = CASE WHEN $3 <= 0 THEN 'available' WHEN $3 >= capacity THEN 'full' ELSE 'occupied' END,
		    updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`

	tag, err := tx.Exec(ctx, query, tenantID, tableID, pax)
	if err != nil {
		r.logger.Error().Err(err).Str("table_id", tableID).Int("pax", pax).Msg("failed to update table occupancy")
		return fmt.Errorf("failed to update table occupancy: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Str("tenant_id", tenantID).
			Str("table_id", tableID).
			Msg("no table row to update")
	}

	return nil
}
