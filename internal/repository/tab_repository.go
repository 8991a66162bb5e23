package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"servizephyr/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const tabColumns = `
	id, tenant_id, table_id, capacity, occupied_seats, available_seats, status, token,
	total_amount, paid_amount, pending_amount, created_by, created_at, updated_at, closed_at`

// tabRepository implements the TabRepository interface using PostgreSQL.
type tabRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewTabRepository creates a new PostgreSQL-backed tab repository.
func NewTabRepository(pool *pgxpool.Pool, logger zerolog.Logger) TabRepository {
	return &tabRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "tab").Logger(),
	}
}

func (r *tabRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

// LockTable takes a transaction-scoped advisory lock on the (tenant, table) pair.
func (r *tabRepository) LockTable(ctx context.Context, tx pgx.Tx, tenantID, tableID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`, tenantID, tableID)
	if err != nil {
		r.logger.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("table_id", tableID).
			Msg("failed to lock table")
		return fmt.Errorf("failed to lock table: %w", err)
	}
	return nil
}

// FindActive returns the active tab of a table, or nil when there is none.
func (r *tabRepository) FindActive(ctx context.Context, tx pgx.Tx, tenantID, tableID string) (*model.DineInTab, error) {
	query := `
		SELECT ` + tabColumns + `
		FROM dine_in_tabs
		WHERE tenant_id = $1 AND table_id = $2 AND status = 'active'
		LIMIT 1
	`

	tab, err := scanTab(tx.QueryRow(ctx, query, tenantID, tableID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("table_id", tableID).Msg("failed to query active tab")
		return nil, fmt.Errorf("failed to query active tab: %w", err)
	}
	return tab, nil
}

// Create inserts a new tab within the provided transaction.
func (r *tabRepository) Create(ctx context.Context, tx pgx.Tx, tab *model.DineInTab) error {
	query := `
		INSERT INTO dine_in_tabs (` + tabColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := tx.Exec(ctx, query,
		tab.ID, tab.TenantID, tab.TableID, tab.Capacity, tab.OccupiedSeats, tab.AvailableSeats,
		tab.Status, tab.Token, tab.TotalAmount, tab.PaidAmount, tab.PendingAmount,
		tab.CreatedBy, tab.CreatedAt, tab.UpdatedAt, tab.ClosedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).
			Str("tab_id", tab.ID).
			Str("table_id", tab.TableID).
			Bool("unique_violation", isUniqueViolation(err)).
			Msg("failed to create tab")
		return fmt.Errorf("failed to create tab: %w", err)
	}

	r.logger.Debug().Str("tab_id", tab.ID).Str("table_id", tab.TableID).Msg("tab created successfully")
	return nil
}

// GetByID retrieves a tab scoped to its tenant.
func (r *tabRepository) GetByID(ctx context.Context, tenantID, tabID string) (*model.DineInTab, error) {
	query := `SELECT ` + tabColumns + ` FROM dine_in_tabs WHERE tenant_id = $1 AND id = $2`

	tab, err := scanTab(r.pool.QueryRow(ctx, query, tenantID, tabID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("tab_id", tabID).Msg("tab not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("tab_id", tabID).Msg("failed to query tab")
		return nil, fmt.Errorf("failed to query tab: %w", err)
	}
	return tab, nil
}

// LockByID retrieves and row-locks a tab.
func (r *tabRepository) LockByID(ctx context.Context, tx pgx.Tx, tenantID, tabID string) (*model.DineInTab, error) {
	query := `SELECT ` + tabColumns + ` FROM dine_in_tabs WHERE tenant_id = $1 AND id = $2 FOR UPDATE`

	tab, err := scanTab(tx.QueryRow(ctx, query, tenantID, tabID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("tab_id", tabID).Msg("failed to lock tab")
		return nil, fmt.Errorf("failed to lock tab: %w", err)
	}
	return tab, nil
}

// Close marks the tab closed and caches its final totals.
func (r *tabRepository) Close(ctx context.Context, tx pgx.Tx, tab *model.DineInTab) error {
	query := `
		UPDATE dine_in_tabs
		SET status = 'closed',
		    total_amount = $2,
		    paid_amount = $3,
		    pending_amount = $4,
		    closed_at = $5,
		    updated_at = $5
		WHERE id = $1
	`

	_, err := tx.Exec(ctx, query, tab.ID, tab.TotalAmount, tab.PaidAmount, tab.PendingAmount, tab.ClosedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("tab_id", tab.ID).Msg("failed to close tab")
		return fmt.Errorf("failed to close tab: %w", err)
	}
	return nil
}

// ListOpen returns every active or inactive tab of a tenant.
func (r *tabRepository) ListOpen(ctx context.Context, tenantID string) ([]model.DineInTab, error) {
	query := `
		SELECT ` + tabColumns + `
		FROM dine_in_tabs
		WHERE tenant_id = $1 AND status = ANY($2)
		ORDER BY table_id, created_at
	`

	rows, err := r.pool.Query(ctx, query, tenantID, model.TabStatusStrings(model.LiveTabStatuses))
	if err != nil {
		r.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to query open tabs")
		return nil, fmt.Errorf("failed to query open tabs: %w", err)
	}
	defer rows.Close()

	var tabs []model.DineInTab
	for rows.Next() {
		tab, err := scanTab(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan tab row")
			return nil, fmt.Errorf("failed to scan tab: %w", err)
		}
		tabs = append(tabs, *tab)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating tab rows")
		return nil, fmt.Errorf("error iterating tabs: %w", err)
	}

	return tabs, nil
}

// DeleteAndRecount deletes the given tabs that are still open and idle
// since cutoff, then rewrites table occupancy from the tabs left behind.
// It holds the same per-table locks as tab creation, so a tab that was
// joined or ordered on after classification survives. It returns the
// deleted tab ids and the tables whose occupancy changed.
func (r *tabRepository) DeleteAndRecount(ctx context.Context, tenantID string, staleTabIDs []string, cutoff time.Time) ([]string, []model.RestaurantTable, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin sweep: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error().Err(rbErr).Msg("failed to rollback sweep")
		}
	}()

	// ordered so concurrent sweeps cannot deadlock
	_, err = tx.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || ids.id, 0))
		FROM (
			SELECT id FROM restaurant_tables WHERE tenant_id = $1
			UNION
			SELECT table_id FROM dine_in_tabs WHERE tenant_id = $1 AND id = ANY($2)
			ORDER BY 1
		) AS ids
	`, tenantID, staleTabIDs)
	if err != nil {
		r.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to lock tables for sweep")
		return nil, nil, fmt.Errorf("failed to lock tables: %w", err)
	}

	deleted := []string{}
	if len(staleTabIDs) > 0 {
		rows, err := tx.Query(ctx, `
			DELETE FROM dine_in_tabs t
			WHERE t.tenant_id = $1
			  AND t.id = ANY($2)
			  AND t.status = ANY($4)
			  AND COALESCE(
			        (SELECT MAX(o.created_at) FROM orders o WHERE o.dine_in_tab_id = t.id),
			        t.created_at
			      ) < $3
			RETURNING t.id
		`, tenantID, staleTabIDs, cutoff, model.TabStatusStrings(model.LiveTabStatuses))
		if err != nil {
			r.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to delete stale tabs")
			return nil, nil, fmt.Errorf("failed to delete stale tabs: %w", err)
		}
		deleted, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read deleted tabs: %w", err)
		}
	}

	rows, err := tx.Query(ctx, `
		WITH pax AS (
			SELECT rt.id, COALESCE(SUM(d.occupied_seats), 0)::int AS seated
			FROM restaurant_tables rt
			LEFT JOIN dine_in_tabs d
			  ON d.tenant_id = rt.tenant_id AND d.table_id = rt.id AND d.status = ANY($2)
			WHERE rt.tenant_id = $1
			GROUP BY rt.id
		)
		UPDATE restaurant_tables rt
		SET current_pax = pax.seated,
		    state = CASE
		        WHEN pax.seated <= 0 THEN 'available'
		        WHEN pax.seated >= rt.capacity THEN 'full'
		        ELSE 'occupied'
		    END,
		    updated_at = NOW()
		FROM pax
		WHERE rt.tenant_id = $1 AND rt.id = pax.id
		  AND (rt.current_pax <> pax.seated OR rt.state <> CASE
		        WHEN pax.seated <= 0 THEN 'available'
		        WHEN pax.seated >= rt.capacity THEN 'full'
		        ELSE 'occupied'
		    END)
		RETURNING rt.tenant_id, rt.id, rt.label, rt.capacity, rt.current_pax, rt.state, rt.updated_at
	`, tenantID, model.TabStatusStrings(model.LiveTabStatuses))
	if err != nil {
		r.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to recount tables")
		return nil, nil, fmt.Errorf("failed to recount tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RestaurantTable, error) {
		var t model.RestaurantTable
		err := row.Scan(&t.TenantID, &t.ID, &t.Label, &t.Capacity, &t.CurrentPax, &t.State, &t.UpdatedAt)
		return t, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read recounted tables: %w", err)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit sweep: %w", err)
	}

	r.logger.Info().
		Str("tenant_id", tenantID).
		Int("tabs_classified", len(staleTabIDs)).
		Int("tabs_deleted", len(deleted)).
		Int("tables_updated", len(tables)).
		Msg("stale tab sweep applied")

	return deleted, tables, nil
}

func scanTab(row pgx.Row) (*model.DineInTab, error) {
	var t model.DineInTab
	err := row.Scan(
		&t.ID, &t.TenantID, &t.TableID, &t.Capacity, &t.OccupiedSeats, &t.AvailableSeats,
		&t.Status, &t.Token, &t.TotalAmount, &t.PaidAmount, &t.PendingAmount,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &t.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
