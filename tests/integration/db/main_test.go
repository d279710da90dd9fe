package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/openscrutiny/tallyx/pkg/db/clickhouse"
	ledgerstore "github.com/openscrutiny/tallyx/pkg/db/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
	rosterstore "github.com/openscrutiny/tallyx/pkg/db/postgres/roster"
	"go.uber.org/zap"
)

// Shared store handles for the whole package. They stay nil when the
// databases are not configured, and every test skips.
var (
	testLedger *ledgerstore.DB
	testRoster *rosterstore.DB
	testLogger *zap.Logger
)

// TestMain connects to the databases named by CLICKHOUSE_ADDR and
// POSTGRES_URL and initializes the schema. Point both at throwaway
// databases: the suite truncates tables between tests.
func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testLogger, err = zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test logger: %v\n", err)
		os.Exit(1)
	}

	if os.Getenv("CLICKHOUSE_ADDR") == "" || os.Getenv("POSTGRES_URL") == "" {
		testLogger.Info("CLICKHOUSE_ADDR or POSTGRES_URL not set, integration tests will skip")
		os.Exit(m.Run())
	}

	// Keep the suite away from the production database name.
	if os.Getenv("CLICKHOUSE_DB") == "" {
		os.Setenv("CLICKHOUSE_DB", "tallyx_test")
	}

	testLogger.Info("Connecting to ledger database...")
	testLedger, err = ledgerstore.NewWithPoolConfig(ctx, testLogger, clickhouse.PoolConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Second,
		Component:       "integration",
	})
	if err != nil {
		testLogger.Fatal("Unable to initialize ledger database", zap.Error(err))
	}

	testLogger.Info("Connecting to roster database...")
	testRoster, err = rosterstore.NewWithPoolConfig(ctx, testLogger, postgres.PoolConfig{
		MinConns:        1,
		MaxConns:        5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		Component:       "integration",
	})
	if err != nil {
		testLogger.Fatal("Unable to initialize roster database", zap.Error(err))
	}

	code := m.Run()

	if err := testLedger.Close(); err != nil {
		testLogger.Error("Failed to close ledger connection", zap.Error(err))
	}
	if err := testRoster.Close(); err != nil {
		testLogger.Error("Failed to close roster connection", zap.Error(err))
	}
	_ = testLogger.Sync()
	os.Exit(code)
}
