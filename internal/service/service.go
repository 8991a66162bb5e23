package service

import (
	"context"
	"errors"
	"math"

	"servizephyr/internal/idempotency"
	"servizephyr/internal/model"
	"servizephyr/internal/ratelimit"

	"github.com/jackc/pgx/v5"
)

// OrderService defines operations for order creation and lookup.
type OrderService interface {
	// CreateOrder creates an order exactly once per idempotency key. A
	// duplicate key returns the first response with Replayed set.
	CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.CreateOrderResult, error)

	// GetOrder retrieves an order scoped to its tenant.
	GetOrder(ctx context.Context, tenantID, id string) (*model.Order, error)
}

// TabService defines operations for dine-in tabs and table occupancy.
type TabService interface {
	// CreateOrJoinTab returns the active tab of a table, opening one when
	// there is none. Concurrent callers for the same table share one tab.
	CreateOrJoinTab(ctx context.Context, req *model.CreateTabRequest) (*model.TabResult, error)

	// GetTabStatus aggregates every open order of a tab into one bill.
	GetTabStatus(ctx context.Context, tenantID, tabID string) (*model.TabStatusResponse, error)

	// MarkTabPaid settles every eligible order of a tab and closes it.
	MarkTabPaid(ctx context.Context, req *model.MarkTabPaidRequest) (*model.MarkTabPaidResult, error)

	// CleanupStaleTabs finds tabs without recent orders. Nothing is written
	// when dryRun is set.
	CleanupStaleTabs(ctx context.Context, tenantID string, dryRun bool) (*model.CleanupReport, error)

	// ListTables returns live occupancy of every table of a tenant.
	ListTables(ctx context.Context, tenantID string) ([]model.RestaurantTable, error)
}

// DeliveryService defines the rider-driven order transitions.
type DeliveryService interface {
	// Transition moves every listed order along one named edge, or none of them.
	Transition(ctx context.Context, req *model.TransitionRequest) (*model.TransitionResult, error)

	// UpdateStatus resolves the transition from the target status.
	UpdateStatus(ctx context.Context, riderID, actor string, req *model.UpdateStatusRequest) (*model.TransitionResult, error)
}

// RiderService owns rider availability.
type RiderService interface {
	// SetAvailability writes the rider profile and the tenant roster entry.
	// It is the only code path that changes availability.
	SetAvailability(ctx context.Context, riderID, tenantID string, value model.RiderAvailability) error

	// AuditAvailability rewrites roster entries that drifted from the
	// profile and reports how many were repaired.
	AuditAvailability(ctx context.Context) (int, error)
}

// RateLimiter is satisfied by *ratelimit.Limiter.
type RateLimiter interface {
	Allow(ctx context.Context, namespace, identity string, limit int) (ratelimit.Decision, error)
}

// IdempotencyGuard is satisfied by *idempotency.Guard.
type IdempotencyGuard interface {
	Reserve(ctx context.Context, key string, meta idempotency.Metadata) (idempotency.Reservation, error)
	Complete(ctx context.Context, key string, result idempotency.Result) error
	Fail(ctx context.Context, key string, cause error) error
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// isTxClosed reports the expected error of a deferred rollback after commit.
func isTxClosed(err error) bool {
	return errors.Is(err, pgx.ErrTxClosed)
}
