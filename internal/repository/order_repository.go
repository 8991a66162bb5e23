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

const orderColumns = `
	id, short_id, tenant_id, business_type, delivery_type, status, status_history,
	delivery_boy_id, dine_in_tab_id, table_id, customer_name, items,
	subtotal, cgst, sgst, delivery_charge, grand_total,
	payment_status, payment_method, payment_details, paid_at,
	failure_reason, failed_at, idempotency_key, created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

// Create inserts a new order within the provided transaction.
func (r *orderRepository) Create(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`

	var details any
	if len(order.PaymentDetails) > 0 {
		details = order.PaymentDetails
	}

	_, err := tx.Exec(ctx, query,
		order.ID, order.ShortID, order.TenantID, order.BusinessType, order.DeliveryType,
		order.Status, order.StatusHistory,
		order.DeliveryBoyID, order.DineInTabID, order.TableID, order.CustomerName, order.Items,
		order.Subtotal, order.Cgst, order.Sgst, order.DeliveryCharge, order.GrandTotal,
		order.PaymentStatus, order.PaymentMethod, details, order.PaidAt,
		order.FailureReason, order.FailedAt, order.IdempotencyKey, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID).
		Str("short_id", order.ShortID).
		Msg("order created successfully")

	return nil
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

// LockByIDs loads and row-locks the given orders in id order.
func (r *orderRepository) LockByIDs(ctx context.Context, tx pgx.Tx, ids []string) ([]model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	orders, err := r.queryOrders(ctx, tx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock orders: %w", err)
	}
	return orders, nil
}

// UpdateStatuses applies every status update as one batch inside tx.
func (r *orderRepository) UpdateStatuses(ctx context.Context, tx pgx.Tx, updates []StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	query := `
		UPDATE orders
		SET status = $2,
		    status_history = status_history || $3::jsonb,
		    failure_reason = COALESCE($4, failure_reason),
		    failed_at = COALESCE($5, failed_at),
		    updated_at = $6
		WHERE id = $1
	`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.OrderID, u.Status, []model.StatusChange{u.Entry}, u.FailureReason, u.FailedAt, u.Entry.Timestamp)
	}

	if err := execBatch(ctx, tx, batch); err != nil {
		r.logger.Error().Err(err).Int("count", len(updates)).Msg("failed to update order statuses")
		return fmt.Errorf("failed to update order statuses: %w", err)
	}

	r.logger.Debug().
		Int("count", len(updates)).
		Str("status", string(updates[0].Status)).
		Msg("order statuses updated")

	return nil
}

// CountActiveForRider counts rider-active orders per tenant.
func (r *orderRepository) CountActiveForRider(ctx context.Context, riderID string, exclude []string) (map[string]int, error) {
	query := `
		SELECT tenant_id, COUNT(*)
		FROM orders
		WHERE delivery_boy_id = $1
		  AND status = ANY($2)
		  AND NOT (id = ANY($3))
		GROUP BY tenant_id
	`

	if exclude == nil {
		exclude = []string{}
	}

	rows, err := r.pool.Query(ctx, query, riderID, model.StatusStrings(model.RiderActiveStatuses), exclude)
	if err != nil {
		r.logger.Error().Err(err).Str("rider_id", riderID).Msg("failed to count active orders")
		return nil, fmt.Errorf("failed to count active orders: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tenantID string
		var n int
		if err := rows.Scan(&tenantID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan active order count: %w", err)
		}
		counts[tenantID] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active order counts: %w", err)
	}

	return counts, nil
}

// ListByTab returns the tab's orders in the given statuses, oldest first.
func (r *orderRepository) ListByTab(ctx context.Context, tenantID, tabID string, statuses []model.OrderStatus) ([]model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = $1 AND dine_in_tab_id = $2 AND status = ANY($3)
		ORDER BY created_at, id
	`

	orders, err := r.queryOrders(ctx, r.pool, query, tenantID, tabID, model.StatusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to list tab orders: %w", err)
	}
	return orders, nil
}

// ListByTabForUpdate locks the tab's orders that are not in an excluded status.
func (r *orderRepository) ListByTabForUpdate(ctx context.Context, tx pgx.Tx, tenantID, tabID string, excluded []model.OrderStatus) ([]model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = $1 AND dine_in_tab_id = $2 AND NOT (status = ANY($3))
		ORDER BY created_at, id
		FOR UPDATE
	`

	orders, err := r.queryOrders(ctx, tx, query, tenantID, tabID, model.StatusStrings(excluded))
	if err != nil {
		return nil, fmt.Errorf("failed to lock tab orders: %w", err)
	}
	return orders, nil
}

// MarkPaid marks every order paid as one batch inside tx.
func (r *orderRepository) MarkPaid(ctx context.Context, tx pgx.Tx, update PaymentUpdate) error {
	if len(update.OrderIDs) == 0 {
		return nil
	}

	query := `
		UPDATE orders
		SET payment_status = $2,
		    paid_at = $3,
		    payment_details = COALESCE($4, payment_details),
		    updated_at = $3
		WHERE id = $1
	`

	var details any
	if len(update.PaymentDetails) > 0 {
		details = update.PaymentDetails
	}

	batch := &pgx.Batch{}
	for _, id := range update.OrderIDs {
		batch.Queue(query, id, model.PaymentPaid, update.PaidAt, details)
	}

	if err := execBatch(ctx, tx, batch); err != nil {
		r.logger.Error().Err(err).Int("count", len(update.OrderIDs)).Msg("failed to mark orders paid")
		return fmt.Errorf("failed to mark orders paid: %w", err)
	}

	return nil
}

// LatestOrderTimes returns the newest order creation time per tab.
func (r *orderRepository) LatestOrderTimes(ctx context.Context, tabIDs []string) (map[string]time.Time, error) {
	latest := make(map[string]time.Time, len(tabIDs))
	if len(tabIDs) == 0 {
		return latest, nil
	}

	query := `
		SELECT dine_in_tab_id, MAX(created_at)
		FROM orders
		WHERE dine_in_tab_id = ANY($1)
		GROUP BY dine_in_tab_id
	`

	rows, err := r.pool.Query(ctx, query, tabIDs)
	if err != nil {
		r.logger.Error().Err(err).Int("tabs", len(tabIDs)).Msg("failed to query latest order times")
		return nil, fmt.Errorf("failed to query latest order times: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tabID string
		var at time.Time
		if err := rows.Scan(&tabID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan latest order time: %w", err)
		}
		latest[tabID] = at
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating latest order times: %w", err)
	}

	return latest, nil
}

func (r *orderRepository) queryOrders(ctx context.Context, db DBTX, query string, args ...any) ([]model.Order, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, err
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var details []byte
	err := row.Scan(
		&o.ID, &o.ShortID, &o.TenantID, &o.BusinessType, &o.DeliveryType, &o.Status, &o.StatusHistory,
		&o.DeliveryBoyID, &o.DineInTabID, &o.TableID, &o.CustomerName, &o.Items,
		&o.Subtotal, &o.Cgst, &o.Sgst, &o.DeliveryCharge, &o.GrandTotal,
		&o.PaymentStatus, &o.PaymentMethod, &details, &o.PaidAt,
		&o.FailureReason, &o.FailedAt, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		o.PaymentDetails = details
	}
	return &o, nil
}
