package testhelpers

import (
	"context"
	"os"
	"testing"

	"cellarledger/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB connects to TEST_DATABASE_URL, applies the schema and
// empties every table. The test is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	truncate := `
		TRUNCATE inventory_exceptions, inventory_movements, serialized_bottles, inventory_cases,
			vouchers, allocations, locations, user_roles, role_permissions, permissions, roles
	`
	// the append-only trigger does not fire on TRUNCATE
	if _, err := pool.Exec(ctx, truncate); err != nil {
		pool.Close()
		t.Fatalf("Failed to reset test database: %v", err)
	}

	db := &TestDB{
		Pool: pool,
		Cleanup: func() error {
			pool.Close()
			return nil
		},
	}
	t.Cleanup(func() { _ = db.Cleanup() })
	return db
}

// SetupTestAllocation inserts an allocation with issued vouchers.
func SetupTestAllocation(t *testing.T, db *TestDB, issuedVouchers int) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	allocationID := uuid.New()
	if _, err := db.Pool.Exec(ctx, `INSERT INTO allocations (id) VALUES ($1)`, allocationID); err != nil {
		t.Fatalf("Failed to create test allocation: %v", err)
	}
	for i := 0; i < issuedVouchers; i++ {
		_, err := db.Pool.Exec(ctx,
			`INSERT INTO vouchers (id, allocation_id, status) VALUES ($1, $2, 'issued')`,
			uuid.New(), allocationID)
		if err != nil {
			t.Fatalf("Failed to create test voucher: %v", err)
		}
	}
	return allocationID
}
