package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"servizephyr/internal/delivery"
	"servizephyr/internal/events"
	"servizephyr/internal/model"
	"servizephyr/internal/repository"

	"github.com/rs/zerolog"
)

const defaultFailureReason = "not specified"

// deliveryService implements DeliveryService.
type deliveryService struct {
	orderRepo repository.OrderRepository
	riders    RiderService
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// NewDeliveryService creates a new delivery service.
func NewDeliveryService(
	orderRepo repository.OrderRepository,
	riders RiderService,
	publisher events.Publisher,
	logger zerolog.Logger,
) DeliveryService {
	return &deliveryService{
		orderRepo: orderRepo,
		riders:    riders,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With().Str("service", "delivery").Logger(),
	}
}

// Transition locks every order, validates all of them, then writes all of
// them in the same transaction.
func (s *deliveryService) Transition(ctx context.Context, req *model.TransitionRequest) (*model.TransitionResult, error) {
	if req == nil {
		return nil, model.NewValidationError("transition request is nil")
	}
	tr, ok := delivery.Lookup(req.Transition)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("unknown transition %q", req.Transition))
	}
	if req.RiderID == "" {
		return nil, model.ErrUnauthorised
	}

	ids := dedupe(req.OrderIDs)
	if len(ids) == 0 {
		return nil, model.NewValidationError("orderIds must not be empty")
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transition: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !isTxClosed(rbErr) {
			s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	locked, err := s.orderRepo.LockByIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Order, len(locked))
	for _, o := range locked {
		byID[o.ID] = o
	}

	for _, id := range ids {
		o, ok := byID[id]
		if !ok {
			return nil, model.NewNotFoundError(model.ErrCodeOrderNotFound, fmt.Sprintf("order %s not found", id))
		}
		if o.DeliveryBoyID == nil || *o.DeliveryBoyID != req.RiderID {
			s.logger.Warn().
				Str("order_id", id).
				Str("rider_id", req.RiderID).
				Msg("rider does not own order")
			return nil, model.NewForbiddenError(model.ErrCodeNotOrderOwner, fmt.Sprintf("order %s is not assigned to this rider", id))
		}
		if !tr.Allows(o.Status) {
			return nil, model.NewInvalidStateError(
				fmt.Sprintf("cannot %s order %s in status %s", tr.Name, id, o.Status))
		}
	}

	now := s.now().UTC()
	actor := req.Actor
	if actor == "" {
		actor = req.RiderID
	}

	updates := make([]repository.StatusUpdate, len(ids))
	for i, id := range ids {
		u := repository.StatusUpdate{
			OrderID: id,
			Status:  tr.To,
			Entry:   model.StatusChange{Status: tr.To, Timestamp: now, Actor: actor},
		}
		if tr.RecordsFailure {
			reason := req.Reason
			if reason == "" {
				reason = defaultFailureReason
			}
			u.FailureReason = &reason
			u.FailedAt = &now
		}
		updates[i] = u
	}

	if err := s.orderRepo.UpdateStatuses(ctx, tx, updates); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	s.logger.Info().
		Str("rider_id", req.RiderID).
		Str("transition", tr.Name).
		Strs("order_ids", ids).
		Msg("orders transitioned")

	tenants := map[string]bool{}
	for _, id := range ids {
		o := byID[id]
		tenants[o.TenantID] = true
		if err := s.publisher.Publish(ctx, events.Event{
			Type: events.TypeOrderStatusChanged,
			Key:  id,
			Payload: events.OrderStatusChangedPayload{
				OrderID:  id,
				TenantID: o.TenantID,
				From:     o.Status,
				To:       tr.To,
				Actor:    actor,
				At:       now,
			},
		}); err != nil {
			s.logger.Warn().Err(err).Str("order_id", id).Msg("failed to publish event")
		}
	}

	result := &model.TransitionResult{OrderIDs: ids, Status: tr.To}
	if tr.ReleasesRider() {
		result.RiderReleased = s.releaseRider(ctx, req.RiderID, ids, tenants)
	}
	return result, nil
}

// UpdateStatus resolves the transition that ends in the requested status.
func (s *deliveryService) UpdateStatus(ctx context.Context, riderID, actor string, req *model.UpdateStatusRequest) (*model.TransitionResult, error) {
	if req == nil {
		return nil, model.NewValidationError("status request is nil")
	}
	tr, ok := delivery.TransitionTo(req.Status)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("status %q cannot be set by a rider", req.Status))
	}

	return s.Transition(ctx, &model.TransitionRequest{
		RiderID:    riderID,
		Actor:      actor,
		OrderIDs:   req.OrderIDs,
		Transition: tr.Name,
		Reason:     req.Reason,
	})
}

// releaseRider flips the rider back online when nothing else keeps them busy.
// The transition is already committed, so failures are logged only.
func (s *deliveryService) releaseRider(ctx context.Context, riderID string, moved []string, tenants map[string]bool) bool {
	active, err := s.orderRepo.CountActiveForRider(ctx, riderID, moved)
	if err != nil {
		s.logger.Error().Err(err).Str("rider_id", riderID).Msg("failed to count active orders for rider")
		return false
	}

	remaining := 0
	for _, n := range active {
		remaining += n
	}
	if remaining > 0 {
		s.logger.Debug().Str("rider_id", riderID).Int("active", remaining).Msg("rider still busy")
		return false
	}

	ids := make([]string, 0, len(tenants))
	for t := range tenants {
		ids = append(ids, t)
	}
	sort.Strings(ids)

	released := true
	for _, tenantID := range ids {
		if err := s.riders.SetAvailability(ctx, riderID, tenantID, model.RiderOnline); err != nil {
			s.logger.Error().Err(err).
				Str("rider_id", riderID).
				Str("tenant_id", tenantID).
				Msg("failed to release rider")
			released = false
		}
	}
	return released
}

// dedupe drops empty and repeated ids, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
