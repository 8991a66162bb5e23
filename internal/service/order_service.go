package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"servizephyr/internal/events"
	"servizephyr/internal/idempotency"
	"servizephyr/internal/model"
	"servizephyr/internal/ratelimit"
	"servizephyr/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTenantOrdersPerMinute caps order creation per tenant.
const DefaultTenantOrdersPerMinute = 120

// orderService implements OrderService.
type orderService struct {
	orderRepo   repository.OrderRepository
	tenantRepo  repository.TenantRepository
	tabs        TabService
	limiter     RateLimiter
	guard       IdempotencyGuard
	publisher   events.Publisher
	tenantLimit int
	now         func() time.Time
	logger      zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	tenantRepo repository.TenantRepository,
	tabs TabService,
	limiter RateLimiter,
	guard IdempotencyGuard,
	publisher events.Publisher,
	tenantLimit int,
	logger zerolog.Logger,
) OrderService {
	if tenantLimit <= 0 {
		tenantLimit = DefaultTenantOrdersPerMinute
	}
	return &orderService{
		orderRepo:   orderRepo,
		tenantRepo:  tenantRepo,
		tabs:        tabs,
		limiter:     limiter,
		guard:       guard,
		publisher:   publisher,
		tenantLimit: tenantLimit,
		now:         time.Now,
		logger:      logger.With().Str("service", "order").Logger(),
	}
}

// CreateOrder creates an order behind the tenant rate limit and the
// idempotency guard.
func (s *orderService) CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.CreateOrderResult, error) {
	if err := s.validateOrderRequest(req); err != nil {
		return nil, err
	}

	decision, err := s.limiter.Allow(ctx, ratelimit.NamespaceTenantOrder, req.TenantID, s.tenantLimit)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, model.ErrRateLimited
	}

	hash, err := idempotency.HashRequest(req)
	if err != nil {
		return nil, err
	}
	attrs, _ := json.Marshal(map[string]string{
		"deliveryType": string(req.DeliveryType),
		"tableId":      req.TableID,
	})

	reservation, err := s.guard.Reserve(ctx, req.IdempotencyKey, idempotency.Metadata{
		TenantID:    req.TenantID,
		RequestHash: hash,
		Attributes:  attrs,
	})
	if err != nil {
		return nil, err
	}
	if reservation.IsDuplicate {
		return &model.CreateOrderResult{
			OrderID:  reservation.OrderID,
			Body:     reservation.Response,
			Replayed: true,
		}, nil
	}

	result, err := s.create(ctx, req)
	if err != nil {
		if failErr := s.guard.Fail(ctx, req.IdempotencyKey, err); failErr != nil {
			s.logger.Error().Err(failErr).Str("key", req.IdempotencyKey).Msg("failed to release idempotency key")
		}
		return nil, err
	}

	// the order is committed, so a failed completion is only logged
	if err := s.guard.Complete(ctx, req.IdempotencyKey, idempotency.Result{
		OrderID:  result.OrderID,
		Response: result.Body,
	}); err != nil {
		s.logger.Error().Err(err).
			Str("key", req.IdempotencyKey).
			Str("order_id", result.OrderID).
			Msg("failed to complete idempotency key")
	}

	return result, nil
}

func (s *orderService) create(ctx context.Context, req *model.CreateOrderRequest) (*model.CreateOrderResult, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, model.ErrTenantNotFound
	}

	profile, ok := model.BusinessProfileFor(tenant.BusinessType)
	if !ok || !profile.Supports(req.DeliveryType) {
		s.logger.Warn().
			Str("tenant_id", tenant.ID).
			Str("business_type", string(tenant.BusinessType)).
			Str("delivery_type", string(req.DeliveryType)).
			Msg("unsupported delivery type")
		return nil, model.ErrUnsupportedDeliveryType
	}

	now := s.now().UTC()
	order := &model.Order{
		ID:           uuid.NewString(),
		ShortID:      model.NewShortID(now),
		TenantID:     tenant.ID,
		BusinessType: tenant.BusinessType,
		DeliveryType: req.DeliveryType,
		Status:       model.StatusPending,
		StatusHistory: []model.StatusChange{
			{Status: model.StatusPending, Timestamp: now, Actor: actorOrDefault(req.Actor)},
		},
		CustomerName:   req.CustomerName,
		Cgst:           req.Cgst,
		Sgst:           req.Sgst,
		DeliveryCharge: req.DeliveryCharge,
		PaymentStatus:  model.PaymentPending,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: &req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	order.Items = make([]model.OrderItem, len(req.Items))
	for i, item := range req.Items {
		line := roundMoney(float64(item.Quantity) * item.UnitPrice)
		order.Items[i] = model.OrderItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: line,
		}
		order.Subtotal += line
	}
	order.Subtotal = roundMoney(order.Subtotal)
	order.GrandTotal = roundMoney(order.Subtotal + order.Cgst + order.Sgst + order.DeliveryCharge)

	var tab *model.TabResult
	if req.DeliveryType == model.DeliveryTypeDineIn {
		tab, err = s.tabs.CreateOrJoinTab(ctx, &model.CreateTabRequest{
			TenantID:  req.TenantID,
			TableID:   req.TableID,
			Capacity:  req.Capacity,
			GroupSize: req.GroupSize,
			ActorName: req.Actor,
		})
		if err != nil {
			return nil, err
		}
		order.DineInTabID = &tab.TabID
		order.TableID = &req.TableID
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !isTxClosed(rbErr) {
			s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	resp := model.OrderResponse{
		OrderID:    order.ID,
		ShortID:    order.ShortID,
		Status:     order.Status,
		GrandTotal: order.GrandTotal,
		CreatedAt:  order.CreatedAt,
	}
	if tab != nil {
		resp.DineInTabID = tab.TabID
		resp.TabToken = tab.Token
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order response: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("short_id", order.ShortID).
		Str("tenant_id", order.TenantID).
		Str("delivery_type", string(order.DeliveryType)).
		Int("item_count", len(order.Items)).
		Msg("order created successfully")

	payload := events.OrderCreatedPayload{
		OrderID:      order.ID,
		ShortID:      order.ShortID,
		TenantID:     order.TenantID,
		DeliveryType: order.DeliveryType,
		GrandTotal:   order.GrandTotal,
	}
	if tab != nil {
		payload.DineInTabID = tab.TabID
	}
	if err := s.publisher.Publish(ctx, events.Event{Type: events.TypeOrderCreated, Key: order.ID, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to publish event")
	}

	return &model.CreateOrderResult{OrderID: order.ID, Body: body}, nil
}

// GetOrder retrieves an order scoped to its tenant.
func (s *orderService) GetOrder(ctx context.Context, tenantID, id string) (*model.Order, error) {
	if id == "" {
		return nil, model.NewValidationError("order id is required")
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	// another tenant's order is reported as missing
	if order == nil || (tenantID != "" && order.TenantID != tenantID) {
		s.logger.Debug().Str("order_id", id).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	return order, nil
}

// validateOrderRequest validates the order request.
func (s *orderService) validateOrderRequest(req *model.CreateOrderRequest) error {
	if req == nil {
		return model.NewValidationError("order request is nil")
	}
	if req.IdempotencyKey == "" {
		return model.NewDomainError(model.KindValidation, model.ErrCodeMissingField, "idempotency key is required")
	}
	if req.TenantID == "" {
		return model.NewDomainError(model.KindValidation, model.ErrCodeMissingField, "tenantId is required")
	}
	if len(req.Items) == 0 {
		return model.NewValidationError("order must contain at least one item")
	}

	for i, item := range req.Items {
		if item.Name == "" {
			return model.NewValidationError(fmt.Sprintf("item %d: name is required", i))
		}
		if item.Quantity <= 0 {
			s.logger.Warn().
				Int("item_index", i).
				Int("quantity", item.Quantity).
				Msg("invalid quantity")
			return model.NewValidationError(fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if item.UnitPrice < 0 {
			return model.NewValidationError(fmt.Sprintf("item %d: unit price must not be negative", i))
		}
	}

	switch req.DeliveryType {
	case model.DeliveryTypeDineIn:
		if req.TableID == "" || req.GroupSize <= 0 {
			return model.NewValidationError("dine-in orders need tableId and a positive groupSize")
		}
	case model.DeliveryTypeDelivery, model.DeliveryTypeCar, model.DeliveryTypeTakeaway:
	default:
		return model.NewValidationError(fmt.Sprintf("unknown delivery type %q", req.DeliveryType))
	}

	return nil
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "customer"
	}
	return actor
}
