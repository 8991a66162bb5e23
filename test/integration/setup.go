package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"servizephyr/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, a connection pool and
// the application schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	poolConfig.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	if err := database.Migrate(pool, zerolog.Nop()); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedTenant inserts a restaurant with the given tables and their capacities.
func SeedTenant(t *testing.T, pool *pgxpool.Pool, tenantID string, tables map[string]int) {
	t.Helper()

	ctx := context.Background()

	if _, err := pool.Exec(ctx,
		`INSERT INTO tenants (id, name, business_type) VALUES ($1, $1, 'restaurant')`, tenantID,
	); err != nil {
		t.Fatalf("failed to seed tenant %s: %v", tenantID, err)
	}

	for id, capacity := range tables {
		if _, err := pool.Exec(ctx,
			`INSERT INTO restaurant_tables (tenant_id, id, label, capacity) VALUES ($1, $2, $2, $3)`,
			tenantID, id, capacity,
		); err != nil {
			t.Fatalf("failed to seed table %s: %v", id, err)
		}
	}
}

// SeedRider inserts a rider who is on a delivery for tenantID.
func SeedRider(t *testing.T, pool *pgxpool.Pool, riderID, tenantID string) {
	t.Helper()

	ctx := context.Background()

	if _, err := pool.Exec(ctx,
		`INSERT INTO riders (id, name, availability) VALUES ($1, $1, 'on_delivery')`, riderID,
	); err != nil {
		t.Fatalf("failed to seed rider %s: %v", riderID, err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO tenant_riders (tenant_id, rider_id, availability) VALUES ($1, $2, 'on_delivery')`,
		tenantID, riderID,
	); err != nil {
		t.Fatalf("failed to seed roster entry for %s: %v", riderID, err)
	}
}

// Dispatch hands an order to a rider the way the kitchen dashboard does.
func Dispatch(t *testing.T, pool *pgxpool.Pool, orderID, riderID string) {
	t.Helper()

	if _, err := pool.Exec(context.Background(),
		`UPDATE orders SET status = 'dispatched', delivery_boy_id = $2 WHERE id = $1`, orderID, riderID,
	); err != nil {
		t.Fatalf("failed to dispatch order %s: %v", orderID, err)
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{
		"orders", "dine_in_tabs", "restaurant_tables", "idempotency_keys",
		"rate_limit_counters", "tenant_riders", "riders", "tenants",
	}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
