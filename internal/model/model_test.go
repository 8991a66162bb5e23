package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewShortID(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	id := NewShortID(now)

	assert.Len(t, id, 14)
	assert.True(t, strings.HasPrefix(id, "SZ261017"), id)
	for _, c := range id[8:] {
		assert.Contains(t, shortIDAlphabet, string(c))
	}
	assert.NotEqual(t, id, NewShortID(now))
}

func TestTableStateFor(t *testing.T) {
	tests := []struct {
		pax, capacity int
		expected      TableState
	}{
		{0, 4, TableAvailable},
		{-1, 4, TableAvailable},
		{2, 4, TableOccupied},
		{4, 4, TableFull},
		{6, 4, TableFull},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d of %d", tt.pax, tt.capacity), func(t *testing.T) {
			assert.Equal(t, tt.expected, TableStateFor(tt.pax, tt.capacity))
		})
	}
}

func TestTabStatus_IsLive(t *testing.T) {
	assert.True(t, TabActive.IsLive())
	assert.True(t, TabInactive.IsLive())
	assert.False(t, TabClosed.IsLive())
	assert.False(t, TabStatus("").IsLive())
	assert.Equal(t, []string{"active", "inactive"}, TabStatusStrings(LiveTabStatuses))
}

func TestBusinessProfiles(t *testing.T) {
	restaurant, ok := BusinessProfileFor(BusinessRestaurant)
	assert.True(t, ok)
	assert.True(t, restaurant.Supports(DeliveryTypeDineIn))

	shop, ok := BusinessProfileFor(BusinessShop)
	assert.True(t, ok)
	assert.False(t, shop.Supports(DeliveryTypeDineIn))
	assert.True(t, shop.Supports(DeliveryTypeTakeaway))

	_, ok = BusinessProfileFor("cloud_kitchen")
	assert.False(t, ok)

	assert.Equal(t, []BusinessType{BusinessRestaurant, BusinessStreetVendor}, DineInBusinessTypes())
}

func TestIsRiderActive(t *testing.T) {
	assert.True(t, IsRiderActive(StatusOnTheWay))
	assert.True(t, IsRiderActive(StatusDeliveryAttempted))
	assert.False(t, IsRiderActive(StatusDelivered))
	assert.False(t, IsRiderActive(StatusFailedDelivery))
	assert.Equal(t, []string{"pending", "ready"}, StatusStrings([]OrderStatus{StatusPending, StatusReady}))
}

func TestDomainError(t *testing.T) {
	specific := NewNotFoundError(ErrCodeOrderNotFound, "order o1 not found")
	wrapped := fmt.Errorf("lookup: %w", specific)

	assert.True(t, errors.Is(wrapped, ErrOrderNotFound))
	assert.False(t, errors.Is(wrapped, ErrTabNotFound))
	assert.Equal(t, "order o1 not found", specific.Error())

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindRateLimited, KindOf(ErrRateLimited))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestDomainError_InvalidStateIsConflict(t *testing.T) {
	err := fmt.Errorf("deliver: %w", NewInvalidStateError("order o1 is picked_up"))

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, KindInvalidState, KindOf(err))

	// the reverse does not hold
	assert.NotErrorIs(t, ErrConflict, ErrInvalidState)
	assert.NotErrorIs(t, ErrRequestInProgress, ErrConflict)
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name      string
		identity  Identity
		tenant    string
		canManage bool
	}{
		{"admin manages any tenant", Identity{Role: RoleAdmin}, "t2", true},
		{"owner manages own tenant", Identity{Role: RoleOwner, TenantID: "t1"}, "t1", true},
		{"owner of another tenant", Identity{Role: RoleOwner, TenantID: "t1"}, "t2", false},
		{"operator manages own tenant", Identity{Role: RoleOperator, TenantID: "t1"}, "t1", true},
		{"customer never manages", Identity{Role: RoleCustomer, TenantID: "t1"}, "t1", false},
		{"rider never manages", Identity{Role: RoleRider, TenantID: "t1"}, "t1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canManage, tt.identity.CanManageTenant(tt.tenant))
		})
	}

	assert.Equal(t, "Arjun", Identity{UserID: "u1", Name: "Arjun"}.ActorName())
	assert.Equal(t, "u1", Identity{UserID: "u1"}.ActorName())
}
