package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"servizephyr/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestOrder(tenantID string, status model.OrderStatus, createdAt time.Time) *model.Order {
	return &model.Order{
		ID:           uuid.NewString(),
		ShortID:      model.NewShortID(createdAt),
		TenantID:     tenantID,
		BusinessType: model.BusinessRestaurant,
		DeliveryType: model.DeliveryTypeDelivery,
		Status:       status,
		StatusHistory: []model.StatusChange{
			{Status: status, Timestamp: createdAt, Actor: "test"},
		},
		CustomerName: "Asha",
		Items: []model.OrderItem{
			{Name: "Masala Dosa", Quantity: 2, UnitPrice: 50, LineTotal: 100},
		},
		Subtotal:      100,
		Cgst:          2.5,
		Sgst:          2.5,
		GrandTotal:    105,
		PaymentStatus: model.PaymentPending,
		PaymentMethod: "cod",
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func insertOrders(t *testing.T, pool *pgxpool.Pool, repo OrderRepository, orders ...*model.Order) {
	ctx := context.Background()
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	for _, o := range orders {
		require.NoError(t, repo.Create(ctx, tx, o))
	}
	require.NoError(t, tx.Commit(ctx))
}

func TestOrderRepository_BeginTx(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)

	require.NoError(t, err)
	require.NotNil(t, tx)

	err = tx.Rollback(ctx)
	assert.NoError(t, err)
}

func TestOrderRepository_CreateAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := newTestOrder("tenant-1", model.StatusPending, now)
	order.DineInTabID = strPtr("tab-1")
	order.TableID = strPtr("T1")
	order.IdempotencyKey = strPtr("key-1")
	order.PaymentDetails = json.RawMessage(`{"method":"upi"}`)

	insertOrders(t, pool, repo, order)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, order.ShortID, got.ShortID)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, order.Items, got.Items)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, "test", got.StatusHistory[0].Actor)
	assert.InDelta(t, 105, got.GrandTotal, 0.001)
	require.NotNil(t, got.DineInTabID)
	assert.Equal(t, "tab-1", *got.DineInTabID)
	assert.Nil(t, got.DeliveryBoyID)
	assert.JSONEq(t, `{"method":"upi"}`, string(got.PaymentDetails))
	assert.True(t, now.Equal(got.CreatedAt))

	missing, err := repo.GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepository_Create_DuplicateShortID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	first := newTestOrder("tenant-1", model.StatusPending, time.Now())
	second := newTestOrder("tenant-1", model.StatusPending, time.Now())
	second.ShortID = first.ShortID

	insertOrders(t, pool, repo, first)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = repo.Create(ctx, tx, second)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}

func TestOrderRepository_LockAndUpdateStatuses(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	now := time.Now().UTC()
	a := newTestOrder("tenant-1", model.StatusOnTheWay, now)
	a.DeliveryBoyID = strPtr("rider-1")
	b := newTestOrder("tenant-1", model.StatusOnTheWay, now)
	b.DeliveryBoyID = strPtr("rider-1")
	insertOrders(t, pool, repo, a, b)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	locked, err := repo.LockByIDs(ctx, tx, []string{a.ID, b.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, locked, 2)

	at := now.Add(time.Minute)
	reason := "customer not reachable"
	err = repo.UpdateStatuses(ctx, tx, []StatusUpdate{
		{OrderID: a.ID, Status: model.StatusDeliveryAttempted, Entry: model.StatusChange{Status: model.StatusDeliveryAttempted, Timestamp: at, Actor: "rider-1"}, FailureReason: &reason, FailedAt: &at},
		{OrderID: b.ID, Status: model.StatusDelivered, Entry: model.StatusChange{Status: model.StatusDelivered, Timestamp: at, Actor: "rider-1"}},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	gotA, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeliveryAttempted, gotA.Status)
	require.Len(t, gotA.StatusHistory, 2)
	assert.Equal(t, model.StatusDeliveryAttempted, gotA.StatusHistory[1].Status)
	require.NotNil(t, gotA.FailureReason)
	assert.Equal(t, reason, *gotA.FailureReason)

	gotB, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, gotB.Status)
	assert.Nil(t, gotB.FailureReason)
}

func TestOrderRepository_CountActiveForRider(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	now := time.Now()
	a := newTestOrder("tenant-1", model.StatusPickedUp, now)
	a.DeliveryBoyID = strPtr("rider-1")
	b := newTestOrder("tenant-1", model.StatusOnTheWay, now)
	b.DeliveryBoyID = strPtr("rider-1")
	c := newTestOrder("tenant-2", model.StatusDelivered, now)
	c.DeliveryBoyID = strPtr("rider-1")
	d := newTestOrder("tenant-2", model.StatusDispatched, now)
	d.DeliveryBoyID = strPtr("rider-2")
	insertOrders(t, pool, repo, a, b, c, d)

	counts, err := repo.CountActiveForRider(ctx, "rider-1", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tenant-1": 2}, counts)

	counts, err = repo.CountActiveForRider(ctx, "rider-1", []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestOrderRepository_TabQueries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	first := newTestOrder("tenant-1", model.StatusPending, base)
	first.DineInTabID = strPtr("tab-1")
	second := newTestOrder("tenant-1", model.StatusReady, base.Add(10*time.Minute))
	second.DineInTabID = strPtr("tab-1")
	cancelled := newTestOrder("tenant-1", model.StatusCancelled, base.Add(20*time.Minute))
	cancelled.DineInTabID = strPtr("tab-1")
	other := newTestOrder("tenant-1", model.StatusPending, base.Add(30*time.Minute))
	other.DineInTabID = strPtr("tab-2")
	insertOrders(t, pool, repo, first, second, cancelled, other)

	open, err := repo.ListByTab(ctx, "tenant-1", "tab-1", model.OpenTabStatuses)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, first.ID, open[0].ID)
	assert.Equal(t, second.ID, open[1].ID)

	latest, err := repo.LatestOrderTimes(ctx, []string{"tab-1", "tab-2", "tab-3"})
	require.NoError(t, err)
	assert.Len(t, latest, 2)
	assert.WithinDuration(t, cancelled.CreatedAt, latest["tab-1"], time.Millisecond)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	eligible, err := repo.ListByTabForUpdate(ctx, tx, "tenant-1", "tab-1", model.SettlementExcludedStatuses)
	require.NoError(t, err)
	require.Len(t, eligible, 2)

	paidAt := time.Now().UTC()
	err = repo.MarkPaid(ctx, tx, PaymentUpdate{
		OrderIDs:       []string{eligible[0].ID, eligible[1].ID},
		PaidAt:         paidAt,
		PaymentDetails: json.RawMessage(`{"mode":"cash"}`),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
	require.NotNil(t, got.PaidAt)

	untouched, err := repo.GetByID(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, untouched.PaymentStatus)
}
