// Package mocks provides testify mocks of the repository interfaces for
// service-level unit tests.
package mocks

import (
	"context"
	"encoding/json"
	"time"

	"servizephyr/internal/model"
	"servizephyr/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// Tx is a minimal mock implementation of pgx.Tx. Only Commit and Rollback
// are recorded; Rollback after Commit is expected and allowed.
type Tx struct {
	mock.Mock
	Committed  bool
	RolledBack bool
}

func (m *Tx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.Committed = true
	return args.Error(0)
}

func (m *Tx) Rollback(ctx context.Context) error {
	if !m.Committed {
		m.RolledBack = true
	}
	return nil
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *Tx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *Tx) Conn() *pgx.Conn                                               { return nil }

func txOrNil(v any) pgx.Tx {
	if tx, ok := v.(pgx.Tx); ok {
		return tx
	}
	return nil
}

// OrderRepository is a mock implementation of repository.OrderRepository.
type OrderRepository struct {
	mock.Mock
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

func (m *OrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	return txOrNil(args.Get(0)), args.Error(1)
}

func (m *OrderRepository) Create(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *OrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *OrderRepository) LockByIDs(ctx context.Context, tx pgx.Tx, ids []string) ([]model.Order, error) {
	args := m.Called(ctx, tx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *OrderRepository) UpdateStatuses(ctx context.Context, tx pgx.Tx, updates []repository.StatusUpdate) error {
	return m.Called(ctx, tx, updates).Error(0)
}

func (m *OrderRepository) CountActiveForRider(ctx context.Context, riderID string, exclude []string) (map[string]int, error) {
	args := m.Called(ctx, riderID, exclude)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *OrderRepository) ListByTab(ctx context.Context, tenantID, tabID string, statuses []model.OrderStatus) ([]model.Order, error) {
	args := m.Called(ctx, tenantID, tabID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *OrderRepository) ListByTabForUpdate(ctx context.Context, tx pgx.Tx, tenantID, tabID string, excluded []model.OrderStatus) ([]model.Order, error) {
	args := m.Called(ctx, tx, tenantID, tabID, excluded)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *OrderRepository) MarkPaid(ctx context.Context, tx pgx.Tx, update repository.PaymentUpdate) error {
	return m.Called(ctx, tx, update).Error(0)
}

func (m *OrderRepository) LatestOrderTimes(ctx context.Context, tabIDs []string) (map[string]time.Time, error) {
	args := m.Called(ctx, tabIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]time.Time), args.Error(1)
}

// TabRepository is a mock implementation of repository.TabRepository.
type TabRepository struct {
	mock.Mock
}

var _ repository.TabRepository = (*TabRepository)(nil)

func (m *TabRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	return txOrNil(args.Get(0)), args.Error(1)
}

func (m *TabRepository) LockTable(ctx context.Context, tx pgx.Tx, tenantID, tableID string) error {
	return m.Called(ctx, tx, tenantID, tableID).Error(0)
}

func (m *TabRepository) FindActive(ctx context.Context, tx pgx.Tx, tenantID, tableID string) (*model.DineInTab, error) {
	args := m.Called(ctx, tx, tenantID, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DineInTab), args.Error(1)
}

func (m *TabRepository) Create(ctx context.Context, tx pgx.Tx, tab *model.DineInTab) error {
	return m.Called(ctx, tx, tab).Error(0)
}

func (m *TabRepository) GetByID(ctx context.Context, tenantID, tabID string) (*model.DineInTab, error) {
	args := m.Called(ctx, tenantID, tabID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DineInTab), args.Error(1)
}

func (m *TabRepository) LockByID(ctx context.Context, tx pgx.Tx, tenantID, tabID string) (*model.DineInTab, error) {
	args := m.Called(ctx, tx, tenantID, tabID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DineInTab), args.Error(1)
}

func (m *TabRepository) Close(ctx context.Context, tx pgx.Tx, tab *model.DineInTab) error {
	return m.Called(ctx, tx, tab).Error(0)
}

func (m *TabRepository) ListOpen(ctx context.Context, tenantID string) ([]model.DineInTab, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DineInTab), args.Error(1)
}

func (m *TabRepository) DeleteAndRecount(ctx context.Context, tenantID string, staleTabIDs []string, cutoff time.Time) ([]string, []model.RestaurantTable, error) {
	args := m.Called(ctx, tenantID, staleTabIDs, cutoff)
	var deleted []string
	if v := args.Get(0); v != nil {
		deleted = v.([]string)
	}
	var tables []model.RestaurantTable
	if v := args.Get(1); v != nil {
		tables = v.([]model.RestaurantTable)
	}
	return deleted, tables, args.Error(2)
}

// TableRepository is a mock implementation of repository.TableRepository.
type TableRepository struct {
	mock.Mock
}

var _ repository.TableRepository = (*TableRepository)(nil)

func (m *TableRepository) GetAll(ctx context.Context, tenantID string) ([]model.RestaurantTable, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RestaurantTable), args.Error(1)
}

func (m *TableRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, tenantID, tableID string) (*model.RestaurantTable, error) {
	args := m.Called(ctx, tx, tenantID, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RestaurantTable), args.Error(1)
}

func (m *TableRepository) UpdateOccupancy(ctx context.Context, tx pgx.Tx, tenantID, tableID string, pax int) error {
	return m.Called(ctx, tx, tenantID, tableID, pax).Error(0)
}

// IdempotencyRepository is a mock implementation of repository.IdempotencyRepository.
type IdempotencyRepository struct {
	mock.Mock
}

var _ repository.IdempotencyRepository = (*IdempotencyRepository)(nil)

func (m *IdempotencyRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	return txOrNil(args.Get(0)), args.Error(1)
}

func (m *IdempotencyRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, key string) (*model.IdempotencyRecord, error) {
	args := m.Called(ctx, tx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IdempotencyRecord), args.Error(1)
}

func (m *IdempotencyRepository) Insert(ctx context.Context, tx pgx.Tx, rec *model.IdempotencyRecord) (bool, error) {
	args := m.Called(ctx, tx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *IdempotencyRepository) Reserve(ctx context.Context, tx pgx.Tx, rec *model.IdempotencyRecord) error {
	return m.Called(ctx, tx, rec).Error(0)
}

func (m *IdempotencyRepository) Complete(ctx context.Context, key string, orderID string, gatewayOrderID *string, response json.RawMessage, at time.Time) error {
	return m.Called(ctx, key, orderID, gatewayOrderID, response, at).Error(0)
}

func (m *IdempotencyRepository) Fail(ctx context.Context, key string, reason string, at time.Time) error {
	return m.Called(ctx, key, reason, at).Error(0)
}

func (m *IdempotencyRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// RateLimitRepository is a mock implementation of repository.RateLimitRepository.
type RateLimitRepository struct {
	mock.Mock
}

var _ repository.RateLimitRepository = (*RateLimitRepository)(nil)

func (m *RateLimitRepository) Increment(ctx context.Context, counter model.RateLimitCounter, limit int) (int, bool, error) {
	args := m.Called(ctx, counter, limit)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *RateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// RiderRepository is a mock implementation of repository.RiderRepository.
type RiderRepository struct {
	mock.Mock
}

var _ repository.RiderRepository = (*RiderRepository)(nil)

func (m *RiderRepository) SetProfileAvailability(ctx context.Context, riderID string, value model.RiderAvailability, at time.Time) error {
	return m.Called(ctx, riderID, value, at).Error(0)
}

func (m *RiderRepository) SetRosterAvailability(ctx context.Context, tenantID, riderID string, value model.RiderAvailability, at time.Time) error {
	return m.Called(ctx, tenantID, riderID, value, at).Error(0)
}

func (m *RiderRepository) ListDivergent(ctx context.Context) ([]model.AvailabilityDivergence, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AvailabilityDivergence), args.Error(1)
}

// TenantRepository is a mock implementation of repository.TenantRepository.
type TenantRepository struct {
	mock.Mock
}

var _ repository.TenantRepository = (*TenantRepository)(nil)

func (m *TenantRepository) GetByID(ctx context.Context, tenantID string) (*model.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *TenantRepository) ListByBusinessTypes(ctx context.Context, types []model.BusinessType) ([]model.Tenant, error) {
	args := m.Called(ctx, types)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Tenant), args.Error(1)
}
