package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/opiniondw/opinions-etl/pkg/database"
)

// PostgresTestImage is the image used for warehouse integration tests.
const PostgresTestImage = "postgres:16-alpine"

// WarehouseDB holds a shared warehouse container with the star schema
// migrated, plus a connection pool. It is created once and reused across
// all tests in the run.
type WarehouseDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

var (
	sharedWarehouseDB     *WarehouseDB
	sharedWarehouseDBOnce sync.Once
	sharedWarehouseDBErr  error
)

// GetWarehouseDB returns a shared PostgreSQL container with the star
// schema applied, for repository and loader integration tests.
func GetWarehouseDB(t *testing.T) *WarehouseDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedWarehouseDBOnce.Do(func() {
		sharedWarehouseDB, sharedWarehouseDBErr = setupWarehouseDB()
	})

	if sharedWarehouseDBErr != nil {
		t.Fatalf("Failed to setup warehouse database: %v", sharedWarehouseDBErr)
	}

	return sharedWarehouseDB
}

// ResetWarehouse empties all star schema tables so a test starts from a
// clean warehouse without paying for a new container.
func ResetWarehouse(t *testing.T, db *WarehouseDB) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(),
		`TRUNCATE TABLE fact_opinions, dim_product, dim_customer, dim_date, dim_channel RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("Failed to reset warehouse tables: %v", err)
	}
}

func setupWarehouseDB() (*WarehouseDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "dw_opinions_test",
			"POSTGRES_USER":     "opiniondw",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://opiniondw:test_password@%s:%s/dw_opinions_test?sslmode=disable",
		host, port.Port())

	// Run migrations using database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, migrationsDir(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &WarehouseDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}, nil
}

// migrationsDir resolves the migrations directory relative to this source
// file so integration tests work regardless of the package under test.
func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
