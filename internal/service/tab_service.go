package service

import (
	"context"
	"fmt"
	"time"

	"servizephyr/internal/archive"
	"servizephyr/internal/database"
	"servizephyr/internal/events"
	"servizephyr/internal/model"
	"servizephyr/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultStaleWindow is how long a tab may go without orders before the
// sweep classifies it as abandoned.
const DefaultStaleWindow = 24 * time.Hour

// tabService implements TabService.
type tabService struct {
	tabRepo     repository.TabRepository
	tableRepo   repository.TableRepository
	orderRepo   repository.OrderRepository
	tenantRepo  repository.TenantRepository
	archiver    archive.Archiver
	publisher   events.Publisher
	staleWindow time.Duration
	attempts    int
	backoff     time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewTabService creates a new tab service. archiver may be nil, in which
// case applied sweeps are only logged.
func NewTabService(
	tabRepo repository.TabRepository,
	tableRepo repository.TableRepository,
	orderRepo repository.OrderRepository,
	tenantRepo repository.TenantRepository,
	archiver archive.Archiver,
	publisher events.Publisher,
	staleWindow time.Duration,
	logger zerolog.Logger,
) TabService {
	if staleWindow <= 0 {
		staleWindow = DefaultStaleWindow
	}
	return &tabService{
		tabRepo:     tabRepo,
		tableRepo:   tableRepo,
		orderRepo:   orderRepo,
		tenantRepo:  tenantRepo,
		archiver:    archiver,
		publisher:   publisher,
		staleWindow: staleWindow,
		attempts:    database.DefaultRetryAttempts,
		backoff:     database.DefaultRetryBackoff,
		now:         time.Now,
		logger:      logger.With().Str("service", "tab").Logger(),
	}
}

// CreateOrJoinTab returns the active tab of a table or opens a new one.
func (s *tabService) CreateOrJoinTab(ctx context.Context, req *model.CreateTabRequest) (*model.TabResult, error) {
	if err := validateTabRequest(req); err != nil {
		return nil, err
	}

	tenant, err := s.tenantRepo.GetByID(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, model.ErrTenantNotFound
	}
	if profile, ok := model.BusinessProfileFor(tenant.BusinessType); !ok || !profile.Supports(model.DeliveryTypeDineIn) {
		s.logger.Warn().
			Str("tenant_id", tenant.ID).
			Str("business_type", string(tenant.BusinessType)).
			Msg("dine-in not supported")
		return nil, model.ErrUnsupportedDeliveryType
	}

	var result *model.TabResult
	err = database.Retry(ctx, s.attempts, s.backoff, func(ctx context.Context) error {
		var err error
		result, err = s.createOrJoinOnce(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !result.Existed {
		s.publish(ctx, events.Event{
			Type: events.TypeTabOpened,
			Key:  result.TabID,
			Payload: events.TabOpenedPayload{
				TabID:         result.TabID,
				TenantID:      req.TenantID,
				TableID:       req.TableID,
				OccupiedSeats: result.OccupiedSeats,
			},
		})
	}

	return result, nil
}

func (s *tabService) createOrJoinOnce(ctx context.Context, req *model.CreateTabRequest) (*model.TabResult, error) {
	tx, err := s.tabRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !isTxClosed(rbErr) {
			s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	if err := s.tabRepo.LockTable(ctx, tx, req.TenantID, req.TableID); err != nil {
		return nil, err
	}

	existing, err := s.tabRepo.FindActive(ctx, tx, req.TenantID, req.TableID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.logger.Debug().Str("tab_id", existing.ID).Str("table_id", req.TableID).Msg("joined existing tab")
		return &model.TabResult{
			TabID:          existing.ID,
			Token:          existing.Token,
			OccupiedSeats:  existing.OccupiedSeats,
			AvailableSeats: existing.AvailableSeats,
			Capacity:       existing.Capacity,
			Existed:        true,
		}, nil
	}

	table, err := s.tableRepo.GetForUpdate(ctx, tx, req.TenantID, req.TableID)
	if err != nil {
		return nil, err
	}

	capacity := req.Capacity
	if capacity == 0 {
		if table == nil {
			return nil, model.ErrTableNotFound
		}
		capacity = table.Capacity
	}
	if req.GroupSize > capacity {
		return nil, model.NewDomainError(model.KindValidation, model.ErrCodeGroupExceedsCapacity,
			fmt.Sprintf("group of %d exceeds table capacity %d", req.GroupSize, capacity))
	}

	now := s.now().UTC()
	tab := &model.DineInTab{
		ID:             uuid.NewString(),
		TenantID:       req.TenantID,
		TableID:        req.TableID,
		Capacity:       capacity,
		OccupiedSeats:  req.GroupSize,
		AvailableSeats: capacity - req.GroupSize,
		Status:         model.TabActive,
		Token:          uuid.NewString(),
		CreatedBy:      req.ActorName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.tabRepo.Create(ctx, tx, tab); err != nil {
		return nil, err
	}

	if table != nil {
		if err := s.tableRepo.UpdateOccupancy(ctx, tx, req.TenantID, req.TableID, table.CurrentPax+req.GroupSize); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("tab_id", tab.ID).
		Str("tenant_id", tab.TenantID).
		Str("table_id", tab.TableID).
		Int("group_size", req.GroupSize).
		Msg("tab opened")

	return &model.TabResult{
		TabID:          tab.ID,
		Token:          tab.Token,
		OccupiedSeats:  tab.OccupiedSeats,
		AvailableSeats: tab.AvailableSeats,
		Capacity:       tab.Capacity,
	}, nil
}

// GetTabStatus aggregates the open orders of a tab.
func (s *tabService) GetTabStatus(ctx context.Context, tenantID, tabID string) (*model.TabStatusResponse, error) {
	if tenantID == "" || tabID == "" {
		return nil, model.NewValidationError("tenantId and tabId are required")
	}

	tab, err := s.tabRepo.GetByID(ctx, tenantID, tabID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tab: %w", err)
	}
	if tab == nil {
		return nil, model.ErrTabNotFound
	}

	orders, err := s.orderRepo.ListByTab(ctx, tenantID, tabID, model.OpenTabStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list tab orders: %w", err)
	}
	if len(orders) == 0 {
		s.logger.Debug().Str("tab_id", tabID).Msg("tab has no open orders")
		return nil, model.ErrTabNotFound
	}

	bill := model.TabBill{Items: []model.OrderItem{}}
	var paid float64
	latest := orders[0]
	for _, o := range orders {
		bill.Items = append(bill.Items, o.Items...)
		bill.Subtotal += o.Subtotal
		bill.Cgst += o.Cgst
		bill.Sgst += o.Sgst
		bill.GrandTotal += o.GrandTotal
		if o.PaymentStatus == model.PaymentPaid {
			paid += o.GrandTotal
		}
		if o.UpdatedAt.After(latest.UpdatedAt) {
			latest = o
		}
	}
	bill.Subtotal = roundMoney(bill.Subtotal)
	bill.Cgst = roundMoney(bill.Cgst)
	bill.Sgst = roundMoney(bill.Sgst)
	bill.GrandTotal = roundMoney(bill.GrandTotal)

	tab.TotalAmount = bill.GrandTotal
	tab.PaidAmount = roundMoney(paid)
	tab.PendingAmount = roundMoney(bill.GrandTotal - paid)

	return &model.TabStatusResponse{
		Tab:        *tab,
		Status:     latest.Status,
		Aggregated: bill,
		Orders:     orders,
	}, nil
}

// MarkTabPaid settles a tab in one transaction.
func (s *tabService) MarkTabPaid(ctx context.Context, req *model.MarkTabPaidRequest) (*model.MarkTabPaidResult, error) {
	if req == nil || req.TabID == "" || req.TenantID == "" {
		return nil, model.NewValidationError("tabId and tenantId are required")
	}
	if !req.Actor.CanManageTenant(req.TenantID) {
		s.logger.Warn().
			Str("user_id", req.Actor.UserID).
			Str("role", string(req.Actor.Role)).
			Str("tenant_id", req.TenantID).
			Msg("settlement not allowed")
		return nil, model.ErrForbidden
	}

	tx, err := s.tabRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to settle tab: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !isTxClosed(rbErr) {
			s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	tab, err := s.tabRepo.LockByID(ctx, tx, req.TenantID, req.TabID)
	if err != nil {
		return nil, err
	}
	if tab == nil {
		return nil, model.ErrTabNotFound
	}
	if !tab.Status.IsLive() {
		return nil, model.NewInvalidStateError("tab is already settled")
	}

	orders, err := s.orderRepo.ListByTabForUpdate(ctx, tx, req.TenantID, req.TabID, model.SettlementExcludedStatuses)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, model.ErrNoEligibleOrders
	}

	now := s.now().UTC()
	ids := make([]string, len(orders))
	var total float64
	for i, o := range orders {
		ids[i] = o.ID
		total += o.GrandTotal
	}
	total = roundMoney(total)

	if err := s.orderRepo.MarkPaid(ctx, tx, repository.PaymentUpdate{
		OrderIDs:       ids,
		PaidAt:         now,
		PaymentDetails: req.PaymentDetails,
	}); err != nil {
		return nil, err
	}

	tab.TotalAmount = total
	tab.PaidAmount = total
	tab.PendingAmount = 0
	tab.ClosedAt = &now
	if err := s.tabRepo.Close(ctx, tx, tab); err != nil {
		return nil, err
	}

	table, err := s.tableRepo.GetForUpdate(ctx, tx, req.TenantID, tab.TableID)
	if err != nil {
		return nil, err
	}
	if table != nil {
		if err := s.tableRepo.UpdateOccupancy(ctx, tx, req.TenantID, tab.TableID, max(0, table.CurrentPax-tab.OccupiedSeats)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	s.logger.Info().
		Str("tab_id", tab.ID).
		Str("tenant_id", tab.TenantID).
		Int("orders", len(ids)).
		Float64("amount", total).
		Str("actor", req.Actor.ActorName()).
		Msg("tab settled")

	s.publish(ctx, events.Event{
		Type: events.TypeTabSettled,
		Key:  tab.ID,
		Payload: events.TabSettledPayload{
			TabID:         tab.ID,
			TenantID:      tab.TenantID,
			OrdersUpdated: len(ids),
			AmountPaid:    total,
			PaidAt:        now,
		},
	})

	return &model.MarkTabPaidResult{
		TabID:         tab.ID,
		OrdersUpdated: len(ids),
		AmountPaid:    total,
		PaidAt:        now,
	}, nil
}

// CleanupStaleTabs classifies abandoned tabs and, unless dryRun, deletes
// them and recomputes table occupancy from the tabs that remain.
func (s *tabService) CleanupStaleTabs(ctx context.Context, tenantID string, dryRun bool) (*model.CleanupReport, error) {
	if tenantID == "" {
		return nil, model.NewValidationError("tenantId is required")
	}

	open, err := s.tabRepo.ListOpen(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tabs: %w", err)
	}

	latest := map[string]time.Time{}
	if len(open) > 0 {
		ids := make([]string, len(open))
		for i, t := range open {
			ids[i] = t.ID
		}
		latest, err = s.orderRepo.LatestOrderTimes(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load tab activity: %w", err)
		}
	}

	now := s.now().UTC()
	cutoff := now.Add(-s.staleWindow)
	report := &model.CleanupReport{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		DryRun:      dryRun,
		Scanned:     len(open),
		Stale:       []model.StaleTab{},
		GeneratedAt: now,
	}

	var staleIDs []string
	for _, t := range open {
		last, ok := latest[t.ID]
		activity := t.CreatedAt
		if ok {
			activity = last
		}
		if !activity.Before(cutoff) {
			continue
		}

		entry := model.StaleTab{
			TabID:         t.ID,
			TableID:       t.TableID,
			Status:        t.Status,
			OccupiedSeats: t.OccupiedSeats,
		}
		if ok {
			at := last
			entry.LastOrderAt = &at
		}
		report.Stale = append(report.Stale, entry)
		staleIDs = append(staleIDs, t.ID)
	}
	report.StaleCount = len(staleIDs)

	if dryRun {
		s.logger.Info().
			Str("tenant_id", tenantID).
			Int("scanned", report.Scanned).
			Int("stale", report.StaleCount).
			Msg("stale tab sweep (dry run)")
		return report, nil
	}

	// the repository re-checks staleness under the table locks
	deleted, corrected, err := s.tabRepo.DeleteAndRecount(ctx, tenantID, staleIDs, cutoff)
	if err != nil {
		return nil, err
	}
	if len(deleted) < len(staleIDs) {
		s.logger.Info().
			Str("tenant_id", tenantID).
			Int("skipped", len(staleIDs)-len(deleted)).
			Msg("tabs became active during sweep")
		gone := make(map[string]bool, len(deleted))
		for _, id := range deleted {
			gone[id] = true
		}
		kept := report.Stale[:0]
		for _, entry := range report.Stale {
			if gone[entry.TabID] {
				kept = append(kept, entry)
			}
		}
		report.Stale = kept
		report.StaleCount = len(kept)
	}
	report.DeletedCount = len(deleted)
	report.TablesUpdated = len(corrected)

	if s.archiver != nil && report.DeletedCount > 0 {
		location, err := s.archiver.Store(ctx, *report)
		if err != nil {
			s.logger.Error().Err(err).Str("report_id", report.ID).Msg("failed to archive sweep report")
		} else {
			report.Archive = location
		}
	}

	s.publish(ctx, events.Event{
		Type: events.TypeTabsSwept,
		Key:  tenantID,
		Payload: events.TabsSweptPayload{
			TenantID:      tenantID,
			ReportID:      report.ID,
			DeletedCount:  report.DeletedCount,
			TablesUpdated: report.TablesUpdated,
		},
	})

	return report, nil
}

// ListTables returns live table occupancy.
func (s *tabService) ListTables(ctx context.Context, tenantID string) ([]model.RestaurantTable, error) {
	if tenantID == "" {
		return nil, model.NewValidationError("tenantId is required")
	}
	tables, err := s.tableRepo.GetAll(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	if tables == nil {
		tables = []model.RestaurantTable{}
	}
	return tables, nil
}

func (s *tabService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event_type", e.Type).Msg("failed to publish event")
	}
}

func validateTabRequest(req *model.CreateTabRequest) error {
	if req == nil {
		return model.NewValidationError("tab request is nil")
	}
	if req.TenantID == "" || req.TableID == "" {
		return model.NewValidationError("tenantId and tableId are required")
	}
	if req.GroupSize <= 0 {
		return model.NewValidationError("groupSize must be positive")
	}
	if req.Capacity < 0 {
		return model.NewValidationError("capacity must not be negative")
	}
	return nil
}
