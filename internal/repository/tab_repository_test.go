package repository

import (
	"context"
	"testing"
	"time"

	"servizephyr/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTab(tenantID, tableID string, capacity, seats int) *model.DineInTab {
	now := time.Now().UTC()
	return &model.DineInTab{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		TableID:        tableID,
		Capacity:       capacity,
		OccupiedSeats:  seats,
		AvailableSeats: capacity - seats,
		Status:         model.TabActive,
		Token:          uuid.NewString(),
		CreatedBy:      "waiter",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestTabRepository_CreateFindAndClose(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTabRepository(pool, zerolog.Nop())
	ctx := context.Background()

	tab := newTestTab("tenant-1", "T1", 4, 2)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.LockTable(ctx, tx, "tenant-1", "T1"))

	existing, err := repo.FindActive(ctx, tx, "tenant-1", "T1")
	require.NoError(t, err)
	assert.Nil(t, existing)

	require.NoError(t, repo.Create(ctx, tx, tab))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetByID(ctx, "tenant-1", tab.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.OccupiedSeats)
	assert.Equal(t, 2, got.AvailableSeats)
	assert.Equal(t, tab.Token, got.Token)

	wrongTenant, err := repo.GetByID(ctx, "tenant-2", tab.ID)
	require.NoError(t, err)
	assert.Nil(t, wrongTenant)

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	locked, err := repo.LockByID(ctx, tx, "tenant-1", tab.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)

	closedAt := time.Now().UTC()
	locked.TotalAmount = 150
	locked.PaidAmount = 150
	locked.ClosedAt = &closedAt
	require.NoError(t, repo.Close(ctx, tx, locked))
	require.NoError(t, tx.Commit(ctx))

	closed, err := repo.GetByID(ctx, "tenant-1", tab.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TabClosed, closed.Status)
	assert.InDelta(t, 150, closed.PaidAmount, 0.001)
	require.NotNil(t, closed.ClosedAt)
}

func TestTabRepository_SecondActiveTabRejected(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTabRepository(pool, zerolog.Nop())
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, newTestTab("tenant-1", "T1", 4, 2)))
	require.NoError(t, tx.Commit(ctx))

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = repo.Create(ctx, tx, newTestTab("tenant-1", "T1", 4, 1))
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}

func TestTabRepository_ListOpenAndDeleteAndRecount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedTenant(t, pool, "tenant-1", "restaurant", map[string]int{"T1": 4, "T2": 2, "T3": 4})

	repo := NewTabRepository(pool, zerolog.Nop())
	tables := NewTableRepository(pool, zerolog.Nop())
	orders := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	stale := newTestTab("tenant-1", "T1", 4, 3)
	stale.CreatedAt = old
	// classified stale, then ordered on before the delete
	revived := newTestTab("tenant-1", "T2", 2, 2)
	revived.CreatedAt = old
	revived.Status = model.TabInactive
	closed := newTestTab("tenant-1", "T3", 4, 1)
	closed.CreatedAt = old
	closed.Status = model.TabClosed

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	for _, tab := range []*model.DineInTab{stale, revived, closed} {
		require.NoError(t, repo.Create(ctx, tx, tab))
	}
	require.NoError(t, tx.Commit(ctx))

	open, err := repo.ListOpen(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, open, 2)

	order := newTestOrder("tenant-1", model.StatusPending, time.Now().UTC())
	order.DineInTabID = strPtr(revived.ID)
	insertOrders(t, pool, orders, order)

	// drifted counters
	_, err = pool.Exec(ctx, `UPDATE restaurant_tables SET current_pax = 3, state = 'occupied' WHERE id = 'T1'`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE restaurant_tables SET current_pax = 0, state = 'available' WHERE id = 'T2'`)
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	deleted, changed, err := repo.DeleteAndRecount(ctx, "tenant-1", []string{stale.ID, revived.ID, closed.ID}, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, deleted)
	require.Len(t, changed, 2)
	assert.Equal(t, "T1", changed[0].ID)
	assert.Equal(t, "T2", changed[1].ID)

	open, err = repo.ListOpen(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, revived.ID, open[0].ID)

	all, err := tables.GetAll(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 0, all[0].CurrentPax)
	assert.Equal(t, model.TableAvailable, all[0].State)
	assert.Equal(t, 2, all[1].CurrentPax)
	assert.Equal(t, model.TableFull, all[1].State)
	assert.Equal(t, 0, all[2].CurrentPax)

	// nothing left to do
	deleted, changed, err = repo.DeleteAndRecount(ctx, "tenant-1", nil, cutoff)
	require.NoError(t, err)
	assert.Empty(t, deleted)
	assert.Empty(t, changed)
}

func TestTabRepository_DeleteAndRecountWaitsForTabCreation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedTenant(t, pool, "tenant-1", "restaurant", map[string]int{"T1": 4})

	repo := NewTabRepository(pool, zerolog.Nop())
	tables := NewTableRepository(pool, zerolog.Nop())
	ctx := context.Background()

	// a creator holds the table lock with an uncommitted tab
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.LockTable(ctx, tx, "tenant-1", "T1"))
	require.NoError(t, repo.Create(ctx, tx, newTestTab("tenant-1", "T1", 4, 2)))
	require.NoError(t, tables.UpdateOccupancy(ctx, tx, "tenant-1", "T1", 2))

	done := make(chan error, 1)
	go func() {
		_, _, err := repo.DeleteAndRecount(ctx, "tenant-1", nil, time.Now().UTC())
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("sweep finished while the table was locked: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, <-done)

	all, err := tables.GetAll(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].CurrentPax)
	assert.Equal(t, model.TableOccupied, all[0].State)
}
