package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"servizephyr/internal/auth"
	"servizephyr/internal/handler"
	"servizephyr/internal/model"
	"servizephyr/internal/ratelimit"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey = "test-api-key"
	testSecret = "test-secret"
)

type stubOrders struct{ lastTenant, lastID string }

func (s *stubOrders) CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.CreateOrderResult, error) {
	return &model.CreateOrderResult{OrderID: "o1", Body: []byte(`{"orderId":"o1"}`)}, nil
}

func (s *stubOrders) GetOrder(ctx context.Context, tenantID, id string) (*model.Order, error) {
	s.lastTenant, s.lastID = tenantID, id
	return &model.Order{ID: id, TenantID: tenantID}, nil
}

type stubTabs struct{ lastTab string }

func (s *stubTabs) CreateOrJoinTab(ctx context.Context, req *model.CreateTabRequest) (*model.TabResult, error) {
	return &model.TabResult{TabID: "tab-1"}, nil
}

func (s *stubTabs) GetTabStatus(ctx context.Context, tenantID, tabID string) (*model.TabStatusResponse, error) {
	s.lastTab = tabID
	return &model.TabStatusResponse{}, nil
}

func (s *stubTabs) MarkTabPaid(ctx context.Context, req *model.MarkTabPaidRequest) (*model.MarkTabPaidResult, error) {
	s.lastTab = req.TabID
	return &model.MarkTabPaidResult{}, nil
}

func (s *stubTabs) CleanupStaleTabs(ctx context.Context, tenantID string, dryRun bool) (*model.CleanupReport, error) {
	s.lastTab = "cleanup"
	return &model.CleanupReport{TenantID: tenantID, DryRun: dryRun}, nil
}

func (s *stubTabs) ListTables(ctx context.Context, tenantID string) ([]model.RestaurantTable, error) {
	return []model.RestaurantTable{}, nil
}

type stubDelivery struct{ lastTransition string }

func (s *stubDelivery) Transition(ctx context.Context, req *model.TransitionRequest) (*model.TransitionResult, error) {
	s.lastTransition = req.Transition
	return &model.TransitionResult{OrderIDs: req.OrderIDs}, nil
}

func (s *stubDelivery) UpdateStatus(ctx context.Context, riderID, actor string, req *model.UpdateStatusRequest) (*model.TransitionResult, error) {
	s.lastTransition = "update-status"
	return &model.TransitionResult{OrderIDs: req.OrderIDs, Status: req.Status}, nil
}

// denyAll lets the first n calls through.
type denyAll struct {
	n     int
	calls int
}

func (d *denyAll) Allow(ctx context.Context, namespace, identity string, limit int) (ratelimit.Decision, error) {
	d.calls++
	if d.calls > d.n {
		return ratelimit.Decision{Allowed: false, Limit: limit, RetryAfter: 30 * time.Second}, nil
	}
	return ratelimit.Decision{Allowed: true, Limit: limit, Count: d.calls}, nil
}

type fixture struct {
	handler  http.Handler
	orders   *stubOrders
	tabs     *stubTabs
	delivery *stubDelivery
}

func newFixture(limiter *denyAll) *fixture {
	f := &fixture{orders: &stubOrders{}, tabs: &stubTabs{}, delivery: &stubDelivery{}}
	logger := zerolog.Nop()
	opts := Options{
		APIKey:      testAPIKey,
		Verifier:    auth.NewVerifier(testSecret),
		IPPerMinute: 1,
	}
	if limiter != nil {
		opts.Limiter = limiter
	}
	f.handler = New(Handlers{
		Orders: handler.NewOrderHandler(f.orders, logger),
		Tabs:   handler.NewTabHandler(f.tabs, logger),
		Riders: handler.NewRiderHandler(f.delivery, logger),
	}, opts, logger)
	return f
}

func bearer(t *testing.T, id model.Identity) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, id, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_Health(t *testing.T) {
	f := newFixture(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_APIKey(t *testing.T) {
	tests := []struct {
		name           string
		key            string
		expectedStatus int
	}{
		{"Missing key", "", http.StatusUnauthorized},
		{"Wrong key", "nope", http.StatusUnauthorized},
		{"Valid key", testAPIKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			req := httptest.NewRequest(http.MethodGet, "/api/tables?tenantId=t1", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()

			f.handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRouter_Dispatch(t *testing.T) {
	rider := model.Identity{UserID: "rider-1", Role: model.RoleRider, Name: "Arjun"}
	owner := model.Identity{UserID: "owner-1", TenantID: "t1", Role: model.RoleOwner}

	t.Run("order by id", func(t *testing.T) {
		f := newFixture(nil)
		req := httptest.NewRequest(http.MethodGet, "/api/orders/o42?tenantId=t1", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "o42", f.orders.lastID)
		assert.Equal(t, "t1", f.orders.lastTenant)
	})

	t.Run("cleanup is not captured by tab id", func(t *testing.T) {
		f := newFixture(nil)
		req := httptest.NewRequest(http.MethodPost, "/api/tabs/cleanup", strings.NewReader(`{"tenantId":"t1"}`))
		req.Header.Set("X-API-Key", testAPIKey)
		req.Header.Set("Authorization", bearer(t, owner))
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "cleanup", f.tabs.lastTab)
	})

	t.Run("pay uses path tab id", func(t *testing.T) {
		f := newFixture(nil)
		req := httptest.NewRequest(http.MethodPost, "/api/tabs/tab-9/pay", strings.NewReader(`{"tenantId":"t1"}`))
		req.Header.Set("X-API-Key", testAPIKey)
		req.Header.Set("Authorization", bearer(t, owner))
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tab-9", f.tabs.lastTab)
	})

	riderRoutes := map[string]string{
		"/api/rider/reached-restaurant": "reached_restaurant",
		"/api/rider/deliver":            "deliver",
		"/api/rider/update-status":      "update-status",
	}
	for path, expected := range riderRoutes {
		t.Run(path, func(t *testing.T) {
			f := newFixture(nil)
			body := `{"orderIds":["o1"],"status":"delivered"}`
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
			req.Header.Set("X-API-Key", testAPIKey)
			req.Header.Set("Authorization", bearer(t, rider))
			w := httptest.NewRecorder()

			f.handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, expected, f.delivery.lastTransition)
		})
	}

	t.Run("bad bearer token", func(t *testing.T) {
		f := newFixture(nil)
		req := httptest.NewRequest(http.MethodPost, "/api/rider/deliver", strings.NewReader(`{"orderIds":["o1"]}`))
		req.Header.Set("X-API-Key", testAPIKey)
		req.Header.Set("Authorization", "Bearer garbage")
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, f.delivery.lastTransition)
	})

	t.Run("unknown route", func(t *testing.T) {
		f := newFixture(nil)
		req := httptest.NewRequest(http.MethodGet, "/api/menu", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		w := httptest.NewRecorder()

		f.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRouter_IPRateLimitOnlyOnPost(t *testing.T) {
	limiter := &denyAll{n: 1}
	f := newFixture(limiter)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
		req.Header.Set("X-API-Key", testAPIKey)
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		return w
	}

	// first POST passes the limiter and fails validation
	assert.Equal(t, http.StatusBadRequest, post().Code)

	w := post()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodGet, "/api/tables?tenantId=t1", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	get := httptest.NewRecorder()
	f.handler.ServeHTTP(get, req)

	assert.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, 2, limiter.calls)
}
