package admin

import (
	"context"

	"github.com/openscrutiny/tallyx/app/admin/types"
	"github.com/openscrutiny/tallyx/pkg/db/clickhouse"
	ledgerstore "github.com/openscrutiny/tallyx/pkg/db/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
	rosterstore "github.com/openscrutiny/tallyx/pkg/db/postgres/roster"
	"github.com/openscrutiny/tallyx/pkg/logging"
	"github.com/openscrutiny/tallyx/pkg/reconcile"
	"github.com/openscrutiny/tallyx/pkg/redis"
	"github.com/openscrutiny/tallyx/pkg/utils"
	"go.uber.org/zap"
)

// Initialize wires the admin service and bootstraps the first admin account
// from ADMIN_USER / ADMIN_PASSWORD when the operators table has no row for
// it yet.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.NewFor("admin")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	ledgerDb, err := ledgerstore.NewWithPoolConfig(ctx, logger, *clickhouse.GetPoolConfigForComponent("admin"))
	if err != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(err))
	}

	rosterDb, err := rosterstore.NewWithPoolConfig(ctx, logger, *postgres.GetPoolConfigForComponent("admin"))
	if err != nil {
		logger.Fatal("Unable to initialize roster database", zap.Error(err))
	}

	// Initialize Redis client for reconcile notifications (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - reconcile notifications will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for reconcile notifications")
		}
	} else {
		logger.Info("Redis disabled - reconcile notifications will not be published")
	}

	bootstrapAdmin(ctx, logger, rosterDb)

	return &types.App{
		LedgerDB:    ledgerDb,
		RosterDB:    rosterDb,
		RedisClient: redisClient,
		Reconciler:  reconcile.New(logger, ledgerDb, rosterDb, redisClient),
		Logger:      logger,
	}
}

// bootstrapAdmin ensures an admin account exists so a fresh deployment can
// be logged into. Existing accounts are never overwritten.
func bootstrapAdmin(ctx context.Context, logger *zap.Logger, rosterDb *rosterstore.DB) {
	adminUser := utils.Env("ADMIN_USER", "admin")
	adminPass := utils.Env("ADMIN_PASSWORD", "admin")

	if _, err := rosterDb.GetOperator(ctx, adminUser); err == nil {
		return
	}

	phash, err := utils.HashOrRead(adminPass)
	if err != nil {
		logger.Fatal("Unable to hash admin password", zap.Error(err))
	}

	if _, err := rosterDb.CreateOperator(ctx, adminUser, phash, roster.RoleAdmin); err != nil {
		logger.Warn("Failed to bootstrap admin operator", zap.String("username", adminUser), zap.Error(err))
		return
	}
	logger.Info("Bootstrapped admin operator", zap.String("username", adminUser))
}
