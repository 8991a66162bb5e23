package repository

import (
	"context"
	"fmt"
	"time"

	"servizephyr/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// riderRepository implements the RiderRepository interface using PostgreSQL.
type riderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewRiderRepository creates a new PostgreSQL-backed rider repository.
func NewRiderRepository(pool *pgxpool.Pool, logger zerolog.Logger) RiderRepository {
	return &riderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "rider").Logger(),
	}
}

// SetProfileAvailability writes the global profile value.
func (r *riderRepository) SetProfileAvailability(ctx context.Context, riderID string, value model.RiderAvailability, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE riders SET availability = $2, updated_at = $3 WHERE id = $1`,
		riderID, value, at)
	if err != nil {
		r.logger.Error().Err(err).Str("rider_id", riderID).Msg("failed to update rider profile availability")
		return fmt.Errorf("failed to update rider profile availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRiderNotFound
	}
	return nil
}

// SetRosterAvailability writes the tenant-scoped roster value, creating the
// roster entry when it does not exist yet.
func (r *riderRepository) SetRosterAvailability(ctx context.Context, tenantID, riderID string, value model.RiderAvailability, at time.Time) error {
	query := `
		INSERT INTO tenant_riders (tenant_id, rider_id, availability, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, rider_id) DO UPDATE
		SET availability = EXCLUDED.availability, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.pool.Exec(ctx, query, tenantID, riderID, value, at); err != nil {
		r.logger.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("rider_id", riderID).
			Msg("failed to update roster availability")
		return fmt.Errorf("failed to update roster availability: %w", err)
	}
	return nil
}

// ListDivergent returns roster entries that disagree with the rider profile.
func (r *riderRepository) ListDivergent(ctx context.Context) ([]model.AvailabilityDivergence, error) {
	query := `
		SELECT tr.tenant_id, tr.rider_id, r.availability, tr.availability
		FROM tenant_riders tr
		JOIN riders r ON r.id = tr.rider_id
		WHERE tr.availability <> r.availability
		ORDER BY tr.tenant_id, tr.rider_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query divergent roster entries")
		return nil, fmt.Errorf("failed to query divergent roster entries: %w", err)
	}
	defer rows.Close()

	var out []model.AvailabilityDivergence
	for rows.Next() {
		var d model.AvailabilityDivergence
		if err := rows.Scan(&d.TenantID, &d.RiderID, &d.Profile, &d.Roster); err != nil {
			return nil, fmt.Errorf("failed to scan divergent roster entry: %w", err)
		}
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating divergent roster entries: %w", err)
	}

	return out, nil
}
