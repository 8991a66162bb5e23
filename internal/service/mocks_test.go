package service

import (
	"context"
	"sync"

	"servizephyr/internal/events"
	"servizephyr/internal/idempotency"
	"servizephyr/internal/model"
	"servizephyr/internal/ratelimit"

	"github.com/stretchr/testify/mock"
)

// MockLimiter is a mock implementation of RateLimiter.
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, namespace, identity string, limit int) (ratelimit.Decision, error) {
	args := m.Called(ctx, namespace, identity, limit)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}

// MockGuard is a mock implementation of IdempotencyGuard.
type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) Reserve(ctx context.Context, key string, meta idempotency.Metadata) (idempotency.Reservation, error) {
	args := m.Called(ctx, key, meta)
	return args.Get(0).(idempotency.Reservation), args.Error(1)
}

func (m *MockGuard) Complete(ctx context.Context, key string, result idempotency.Result) error {
	return m.Called(ctx, key, result).Error(0)
}

func (m *MockGuard) Fail(ctx context.Context, key string, cause error) error {
	return m.Called(ctx, key, cause).Error(0)
}

// MockTabService is a mock implementation of TabService.
type MockTabService struct {
	mock.Mock
}

func (m *MockTabService) CreateOrJoinTab(ctx context.Context, req *model.CreateTabRequest) (*model.TabResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TabResult), args.Error(1)
}

func (m *MockTabService) GetTabStatus(ctx context.Context, tenantID, tabID string) (*model.TabStatusResponse, error) {
	args := m.Called(ctx, tenantID, tabID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TabStatusResponse), args.Error(1)
}

func (m *MockTabService) MarkTabPaid(ctx context.Context, req *model.MarkTabPaidRequest) (*model.MarkTabPaidResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MarkTabPaidResult), args.Error(1)
}

func (m *MockTabService) CleanupStaleTabs(ctx context.Context, tenantID string, dryRun bool) (*model.CleanupReport, error) {
	args := m.Called(ctx, tenantID, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CleanupReport), args.Error(1)
}

func (m *MockTabService) ListTables(ctx context.Context, tenantID string) ([]model.RestaurantTable, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RestaurantTable), args.Error(1)
}

// MockRiderService is a mock implementation of RiderService.
type MockRiderService struct {
	mock.Mock
}

func (m *MockRiderService) SetAvailability(ctx context.Context, riderID, tenantID string, value model.RiderAvailability) error {
	return m.Called(ctx, riderID, tenantID, value).Error(0)
}

func (m *MockRiderService) AuditAvailability(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
