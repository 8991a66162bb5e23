package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servizephyr/internal/events"
	"servizephyr/internal/model"
	"servizephyr/internal/repository"

	"github.com/rs/zerolog"
)

// riderService implements RiderService.
type riderService struct {
	riderRepo repository.RiderRepository
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// NewRiderService creates a new rider service.
func NewRiderService(riderRepo repository.RiderRepository, publisher events.Publisher, logger zerolog.Logger) RiderService {
	return &riderService{
		riderRepo: riderRepo,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With().Str("service", "rider").Logger(),
	}
}

// SetAvailability writes the profile first, then the tenant roster. The
// two writes are not atomic; AuditAvailability repairs drift.
func (s *riderService) SetAvailability(ctx context.Context, riderID, tenantID string, value model.RiderAvailability) error {
	if riderID == "" || tenantID == "" {
		return model.NewValidationError("riderId and tenantId are required")
	}
	switch value {
	case model.RiderOnline, model.RiderOffline, model.RiderOnDelivery:
	default:
		return model.NewValidationError(fmt.Sprintf("unknown availability %q", value))
	}

	now := s.now().UTC()
	if err := s.riderRepo.SetProfileAvailability(ctx, riderID, value, now); err != nil {
		return err
	}

	if err := s.riderRepo.SetRosterAvailability(ctx, tenantID, riderID, value, now); err != nil {
		s.logger.Error().Err(err).
			Str("rider_id", riderID).
			Str("tenant_id", tenantID).
			Str("availability", string(value)).
			Msg("rider availability diverged: profile updated, roster not")
		return fmt.Errorf("failed to update rider roster: %w", err)
	}

	s.logger.Info().
		Str("rider_id", riderID).
		Str("tenant_id", tenantID).
		Str("availability", string(value)).
		Msg("rider availability updated")

	if err := s.publisher.Publish(ctx, events.Event{
		Type: events.TypeRiderAvailabilityChanged,
		Key:  riderID,
		Payload: events.RiderAvailabilityPayload{
			RiderID:      riderID,
			TenantID:     tenantID,
			Availability: value,
		},
	}); err != nil {
		s.logger.Warn().Err(err).Str("rider_id", riderID).Msg("failed to publish event")
	}

	return nil
}

// AuditAvailability copies the profile value onto every drifted roster entry.
func (s *riderService) AuditAvailability(ctx context.Context) (int, error) {
	divergent, err := s.riderRepo.ListDivergent(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list divergent riders: %w", err)
	}

	now := s.now().UTC()
	repaired := 0
	var errs []error
	for _, d := range divergent {
		if err := s.riderRepo.SetRosterAvailability(ctx, d.TenantID, d.RiderID, d.Profile, now); err != nil {
			errs = append(errs, fmt.Errorf("rider %s tenant %s: %w", d.RiderID, d.TenantID, err))
			continue
		}
		repaired++
		s.logger.Warn().
			Str("rider_id", d.RiderID).
			Str("tenant_id", d.TenantID).
			Str("profile", string(d.Profile)).
			Str("roster", string(d.Roster)).
			Msg("repaired rider roster availability")
	}

	return repaired, errors.Join(errs...)
}
