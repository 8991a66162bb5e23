package repository

import (
	"context"
	"encoding/json"
	"time"

	"servizephyr/internal/model"

	"github.com/jackc/pgx/v5"
)

// StatusUpdate is one order write produced by a delivery transition.
type StatusUpdate struct {
	OrderID       string
	Status        model.OrderStatus
	Entry         model.StatusChange
	FailureReason *string
	FailedAt      *time.Time
}

// PaymentUpdate marks a set of orders paid in one batch.
type PaymentUpdate struct {
	OrderIDs       []string
	PaidAt         time.Time
	PaymentDetails json.RawMessage
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Create inserts a new order within the provided transaction.
	Create(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// GetByID retrieves an order by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// LockByIDs loads and row-locks the given orders. Missing ids are simply
	// absent from the result.
	LockByIDs(ctx context.Context, tx pgx.Tx, ids []string) ([]model.Order, error)

	// UpdateStatuses applies every update in one batch inside tx.
	UpdateStatuses(ctx context.Context, tx pgx.Tx, updates []StatusUpdate) error

	// CountActiveForRider counts the rider's orders in a rider-active status
	// per tenant, ignoring the excluded ids.
	CountActiveForRider(ctx context.Context, riderID string, exclude []string) (map[string]int, error)

	// ListByTab returns the tab's orders whose status is in statuses, oldest first.
	ListByTab(ctx context.Context, tenantID, tabID string, statuses []model.OrderStatus) ([]model.Order, error)

	// ListByTabForUpdate locks the tab's orders whose status is not excluded.
	ListByTabForUpdate(ctx context.Context, tx pgx.Tx, tenantID, tabID string, excluded []model.OrderStatus) ([]model.Order, error)

	// MarkPaid marks the orders paid in one batch inside tx.
	MarkPaid(ctx context.Context, tx pgx.Tx, update PaymentUpdate) error

	// LatestOrderTimes returns the newest order creation time per tab id.
	LatestOrderTimes(ctx context.Context, tabIDs []string) (map[string]time.Time, error)
}

// TabRepository defines the interface for dine-in tab data access operations.
type TabRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// LockTable serialises tab creation for one (tenant, table) pair until tx ends.
	LockTable(ctx context.Context, tx pgx.Tx, tenantID, tableID string) error

	// FindActive returns the active tab of a table, or nil.
	FindActive(ctx context.Context, tx pgx.Tx, tenantID, tableID string) (*model.DineInTab, error)

	Create(ctx context.Context, tx pgx.Tx, tab *model.DineInTab) error

	// GetByID retrieves a tab scoped to its tenant. Returns nil when absent.
	GetByID(ctx context.Context, tenantID, tabID string) (*model.DineInTab, error)

	LockByID(ctx context.Context, tx pgx.Tx, tenantID, tabID string) (*model.DineInTab, error)

	// Close marks the tab closed and caches its final totals.
	Close(ctx context.Context, tx pgx.Tx, tab *model.DineInTab) error

	// ListOpen returns every active or inactive tab of a tenant.
	ListOpen(ctx context.Context, tenantID string) ([]model.DineInTab, error)

	// DeleteAndRecount deletes those of the given tabs that are still open
	// and idle since cutoff, then recomputes table occupancy from the tabs
	// that remain. It returns the deleted ids and the changed tables.
	DeleteAndRecount(ctx context.Context, tenantID string, staleTabIDs []string, cutoff time.Time) ([]string, []model.RestaurantTable, error)
}

// TableRepository defines the interface for restaurant table data access operations.
type TableRepository interface {
	// GetAll retrieves all tables of a tenant ordered by id.
	GetAll(ctx context.Context, tenantID string) ([]model.RestaurantTable, error)

	// GetForUpdate row-locks one table. Returns nil when absent.
	GetForUpdate(ctx context.Context, tx pgx.Tx, tenantID, tableID string) (*model.RestaurantTable, error)

	// UpdateOccupancy writes current_pax and the derived state.
	UpdateOccupancy(ctx context.Context, tx pgx.Tx, tenantID, tableID string, pax int) error
}

// IdempotencyRepository defines the interface for idempotency key storage.
type IdempotencyRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// GetForUpdate returns the record for key locked for tx, or nil.
	GetForUpdate(ctx context.Context, tx pgx.Tx, key string) (*model.IdempotencyRecord, error)

	// Insert creates a reserved record. It reports false when another
	// transaction inserted the same key first.
	Insert(ctx context.Context, tx pgx.Tx, rec *model.IdempotencyRecord) (bool, error)

	// Reserve overwrites an abandoned or failed record with a fresh reservation.
	Reserve(ctx context.Context, tx pgx.Tx, rec *model.IdempotencyRecord) error

	Complete(ctx context.Context, key string, orderID string, gatewayOrderID *string, response json.RawMessage, at time.Time) error

	Fail(ctx context.Context, key string, reason string, at time.Time) error

	// DeleteBefore removes records created before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitRepository defines the interface for per-minute counters.
type RateLimitRepository interface {
	// Increment bumps the counter when it is below limit, creating it at 1
	// when absent. It reports the resulting count and whether the call was
	// allowed; a denied call leaves the counter untouched.
	Increment(ctx context.Context, counter model.RateLimitCounter, limit int) (int, bool, error)

	// DeleteBefore removes counters created before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RiderRepository defines the interface for rider profile and roster storage.
type RiderRepository interface {
	// SetProfileAvailability returns ErrRiderNotFound for an unknown rider.
	SetProfileAvailability(ctx context.Context, riderID string, value model.RiderAvailability, at time.Time) error

	SetRosterAvailability(ctx context.Context, tenantID, riderID string, value model.RiderAvailability, at time.Time) error

	// ListDivergent returns roster entries whose value differs from the profile.
	ListDivergent(ctx context.Context) ([]model.AvailabilityDivergence, error)
}

// TenantRepository defines the interface for tenant lookups.
type TenantRepository interface {
	GetByID(ctx context.Context, tenantID string) (*model.Tenant, error)

	ListByBusinessTypes(ctx context.Context, types []model.BusinessType) ([]model.Tenant, error)
}
