package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"servizephyr/internal/archive"
	"servizephyr/internal/auth"
	"servizephyr/internal/config"
	"servizephyr/internal/database"
	"servizephyr/internal/events"
	"servizephyr/internal/handler"
	"servizephyr/internal/idempotency"
	"servizephyr/internal/ratelimit"
	"servizephyr/internal/repository"
	"servizephyr/internal/router"
	"servizephyr/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting servizephyr API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(pool, logger); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	// Repositories
	orderRepo := repository.NewOrderRepository(pool, logger)
	tabRepo := repository.NewTabRepository(pool, logger)
	tableRepo := repository.NewTableRepository(pool, logger)
	tenantRepo := repository.NewTenantRepository(pool, logger)
	riderRepo := repository.NewRiderRepository(pool, logger)
	idempotencyRepo := repository.NewIdempotencyRepository(pool, logger)
	rateLimitRepo := repository.NewRateLimitRepository(pool, logger)

	var store ratelimit.Store = rateLimitRepo
	if cfg.RateLimit.Backend == "redis" {
		rdb, err := ratelimit.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		store = ratelimit.NewRedisStore(rdb)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis rate limit counters")
	}
	limiter := ratelimit.NewLimiter(store, cfg.RateLimit.Retries, logger)
	guard := idempotency.NewGuard(idempotencyRepo, cfg.Idempotency.StaleAfter, logger)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, 256, logger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing lifecycle events to kafka")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	archiver := newArchiver(ctx, cfg, logger)

	// Services
	riderService := service.NewRiderService(riderRepo, publisher, logger)
	tabService := service.NewTabService(tabRepo, tableRepo, orderRepo, tenantRepo, archiver, publisher, cfg.Tabs.StaleWindow, logger)
	orderService := service.NewOrderService(orderRepo, tenantRepo, tabService, limiter, guard, publisher, cfg.RateLimit.TenantOrdersPerMin, logger)
	deliveryService := service.NewDeliveryService(orderRepo, riderService, publisher, logger)

	reconciler := service.NewReconciler(
		tabService, riderService, tenantRepo, rateLimitRepo, idempotencyRepo,
		cfg.Reconcile.Interval, cfg.Reconcile.DryRun, cfg.Idempotency.Retention, logger,
	)
	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		reconciler.Run(ctx)
	}()
	// runs before the publisher is closed
	defer func() {
		cancel()
		background.Wait()
	}()

	mux := router.New(router.Handlers{
		Orders: handler.NewOrderHandler(orderService, logger),
		Tabs:   handler.NewTabHandler(tabService, logger),
		Riders: handler.NewRiderHandler(deliveryService, logger),
	}, router.Options{
		APIKey:         cfg.Auth.APIKey,
		Verifier:       auth.NewVerifier(cfg.Auth.JWTSecret),
		Limiter:        limiter,
		IPPerMinute:    cfg.RateLimit.IPRequestsPerMin,
		RequestTimeout: 10 * time.Second,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// stop the reconciler before draining requests
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newArchiver prefers S3 and keeps the local directory as a fallback.
func newArchiver(ctx context.Context, cfg *config.Config, logger zerolog.Logger) archive.Archiver {
	fileArchiver := archive.NewFileArchiver(cfg.Archive.Dir, logger)
	if !cfg.S3.Enabled {
		logger.Info().Str("dir", cfg.Archive.Dir).Msg("archiving sweep reports locally (S3 disabled)")
		return fileArchiver
	}

	s3Archiver, err := archive.NewS3Archiver(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 archiver, falling back to local file system only")
		return fileArchiver
	}
	return archive.NewFallbackArchiver(s3Archiver, fileArchiver, true, logger)
}
