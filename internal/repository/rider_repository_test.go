package repository

import (
	"context"
	"testing"
	"time"

	"servizephyr/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiderRepository_Availability(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRiderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO riders (id, name, phone, availability) VALUES ('rider-1', 'Ravi', '999', 'on_delivery')`)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, repo.SetRosterAvailability(ctx, "tenant-1", "rider-1", model.RiderOnDelivery, now))
	require.NoError(t, repo.SetRosterAvailability(ctx, "tenant-2", "rider-1", model.RiderOnDelivery, now))

	divergent, err := repo.ListDivergent(ctx)
	require.NoError(t, err)
	assert.Empty(t, divergent)

	require.NoError(t, repo.SetProfileAvailability(ctx, "rider-1", model.RiderOnline, now))
	require.NoError(t, repo.SetRosterAvailability(ctx, "tenant-1", "rider-1", model.RiderOnline, now))

	var profile string
	require.NoError(t, pool.QueryRow(ctx, `SELECT availability FROM riders WHERE id = 'rider-1'`).Scan(&profile))
	assert.Equal(t, string(model.RiderOnline), profile)

	divergent, err = repo.ListDivergent(ctx)
	require.NoError(t, err)
	require.Len(t, divergent, 1)
	assert.Equal(t, model.AvailabilityDivergence{
		TenantID: "tenant-2",
		RiderID:  "rider-1",
		Profile:  model.RiderOnline,
		Roster:   model.RiderOnDelivery,
	}, divergent[0])
}

func TestRiderRepository_UnknownRider(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRiderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	err := repo.SetProfileAvailability(ctx, "ghost", model.RiderOnline, time.Now())
	assert.ErrorIs(t, err, model.ErrRiderNotFound)
}

func TestTenantRepository_Lookups(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	seedTenant(t, pool, "cafe", "restaurant", nil)
	seedTenant(t, pool, "kirana", "shop", nil)
	seedTenant(t, pool, "chaat", "street_vendor", nil)

	repo := NewTenantRepository(pool, zerolog.Nop())
	ctx := context.Background()

	tenant, err := repo.GetByID(ctx, "kirana")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, model.BusinessShop, tenant.BusinessType)

	missing, err := repo.GetByID(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	dineIn, err := repo.ListByBusinessTypes(ctx, model.DineInBusinessTypes())
	require.NoError(t, err)
	require.Len(t, dineIn, 2)
	assert.Equal(t, "cafe", dineIn[0].ID)
	assert.Equal(t, "chaat", dineIn[1].ID)
}
