package scores

import (
	"context"

	"github.com/openscrutiny/tallyx/app/scores/types"
	"github.com/openscrutiny/tallyx/pkg/db/clickhouse"
	ledgerstore "github.com/openscrutiny/tallyx/pkg/db/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
	rosterstore "github.com/openscrutiny/tallyx/pkg/db/postgres/roster"
	"github.com/openscrutiny/tallyx/pkg/logging"
	"github.com/openscrutiny/tallyx/pkg/redis"
	"github.com/openscrutiny/tallyx/pkg/utils"
	"go.uber.org/zap"
)

// Initialize wires the scores service.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.NewFor("scores")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	ledgerDb, err := ledgerstore.NewWithPoolConfig(ctx, logger, *clickhouse.GetPoolConfigForComponent("scores"))
	if err != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(err))
	}

	rosterDb, err := rosterstore.NewWithPoolConfig(ctx, logger, *postgres.GetPoolConfigForComponent("scores"))
	if err != nil {
		logger.Fatal("Unable to initialize roster database", zap.Error(err))
	}

	// Initialize Redis client for real-time WebSocket events (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - WebSocket real-time events will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for WebSocket real-time events")
		}
	} else {
		logger.Info("Redis disabled - WebSocket real-time events will not be available")
	}

	return &types.App{
		LedgerDB:    ledgerDb,
		RosterDB:    rosterDb,
		RedisClient: redisClient,
		Logger:      logger,
	}
}
