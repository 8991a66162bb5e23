package service

import (
	"context"
	"time"

	"servizephyr/internal/model"
	"servizephyr/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// counterTTL is how long a rate-limit bucket is kept after its minute.
	counterTTL = 10 * time.Minute

	sweepConcurrency = 4
)

// ReconcileReport summarises one reconciler pass.
type ReconcileReport struct {
	Sweeps          []model.CleanupReport
	SweepErrors     int
	RidersRepaired  int
	CountersDeleted int64
	KeysDeleted     int64
}

// Reconciler runs the periodic compensating jobs: stale-tab sweeps, rider
// availability audit, and garbage collection of counters and idempotency keys.
type Reconciler struct {
	tabs            TabService
	riders          RiderService
	tenantRepo      repository.TenantRepository
	rateLimitRepo   repository.RateLimitRepository
	idempotencyRepo repository.IdempotencyRepository
	interval        time.Duration
	dryRun          bool
	keyRetention    time.Duration
	now             func() time.Time
	logger          zerolog.Logger
}

// NewReconciler creates a reconciler. An interval of zero disables Run.
func NewReconciler(
	tabs TabService,
	riders RiderService,
	tenantRepo repository.TenantRepository,
	rateLimitRepo repository.RateLimitRepository,
	idempotencyRepo repository.IdempotencyRepository,
	interval time.Duration,
	dryRun bool,
	keyRetention time.Duration,
	logger zerolog.Logger,
) *Reconciler {
	if keyRetention <= 0 {
		keyRetention = 24 * time.Hour
	}
	return &Reconciler{
		tabs:            tabs,
		riders:          riders,
		tenantRepo:      tenantRepo,
		rateLimitRepo:   rateLimitRepo,
		idempotencyRepo: idempotencyRepo,
		interval:        interval,
		dryRun:          dryRun,
		keyRetention:    keyRetention,
		now:             time.Now,
		logger:          logger.With().Str("component", "reconciler").Logger(),
	}
}

// Run blocks, reconciling every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info().Msg("reconciler disabled")
		return
	}

	r.logger.Info().
		Dur("interval", r.interval).
		Bool("dry_run", r.dryRun).
		Msg("reconciler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass. Failures of one step do not stop the others.
func (r *Reconciler) RunOnce(ctx context.Context) ReconcileReport {
	var report ReconcileReport

	tenants, err := r.tenantRepo.ListByBusinessTypes(ctx, model.DineInBusinessTypes())
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list tenants for sweep")
	} else {
		report.Sweeps, report.SweepErrors = r.sweep(ctx, tenants)
	}

	repaired, err := r.riders.AuditAvailability(ctx)
	report.RidersRepaired = repaired
	if err != nil {
		r.logger.Error().Err(err).Msg("rider availability audit incomplete")
	}

	now := r.now().UTC()
	if n, err := r.rateLimitRepo.DeleteBefore(ctx, now.Add(-counterTTL)); err != nil {
		r.logger.Error().Err(err).Msg("failed to purge rate limit counters")
	} else {
		report.CountersDeleted = n
	}
	if n, err := r.idempotencyRepo.DeleteBefore(ctx, now.Add(-r.keyRetention)); err != nil {
		r.logger.Error().Err(err).Msg("failed to purge idempotency keys")
	} else {
		report.KeysDeleted = n
	}

	r.logger.Info().
		Int("tenants", len(report.Sweeps)+report.SweepErrors).
		Int("sweep_errors", report.SweepErrors).
		Int("riders_repaired", report.RidersRepaired).
		Int64("counters_deleted", report.CountersDeleted).
		Int64("keys_deleted", report.KeysDeleted).
		Msg("reconcile pass finished")

	return report
}

// sweep runs CleanupStaleTabs for every tenant with bounded fan-out and
// returns the reports in tenant order.
func (r *Reconciler) sweep(ctx context.Context, tenants []model.Tenant) ([]model.CleanupReport, int) {
	results := make([]*model.CleanupReport, len(tenants))

	var g errgroup.Group
	g.SetLimit(sweepConcurrency)
	for i, t := range tenants {
		i, t := i, t
		g.Go(func() error {
			rep, err := r.tabs.CleanupStaleTabs(ctx, t.ID, r.dryRun)
			if err != nil {
				r.logger.Error().Err(err).Str("tenant_id", t.ID).Msg("stale tab sweep failed")
				return nil
			}
			results[i] = rep
			return nil
		})
	}
	_ = g.Wait()

	reports := make([]model.CleanupReport, 0, len(tenants))
	failed := 0
	for _, rep := range results {
		if rep == nil {
			failed++
			continue
		}
		reports = append(reports, *rep)
	}
	return reports, failed
}
