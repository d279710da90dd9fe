package station

import (
	"context"

	"github.com/openscrutiny/tallyx/app/station/types"
	"github.com/openscrutiny/tallyx/pkg/ballotid"
	"github.com/openscrutiny/tallyx/pkg/db/clickhouse"
	ledgerstore "github.com/openscrutiny/tallyx/pkg/db/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
	rosterstore "github.com/openscrutiny/tallyx/pkg/db/postgres/roster"
	"github.com/openscrutiny/tallyx/pkg/logging"
	"github.com/openscrutiny/tallyx/pkg/redis"
	"github.com/openscrutiny/tallyx/pkg/session"
	"github.com/openscrutiny/tallyx/pkg/utils"
	"go.uber.org/zap"
)

// Initialize wires the station service. STATION_ID identifies this station
// in every ballot id it mints; two stations sharing an id would collide, so
// it has no usable default beyond local development.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.NewFor("station")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	stationID := utils.EnvInt("STATION_ID", 1)
	idGen, err := ballotid.New(uint16(stationID))
	if err != nil {
		logger.Fatal("Invalid STATION_ID", zap.Int("station_id", stationID), zap.Error(err))
	}

	ledgerDb, err := ledgerstore.NewWithPoolConfig(ctx, logger, *clickhouse.GetPoolConfigForComponent("station"))
	if err != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(err))
	}

	rosterDb, err := rosterstore.NewWithPoolConfig(ctx, logger, *postgres.GetPoolConfigForComponent("station"))
	if err != nil {
		logger.Fatal("Unable to initialize roster database", zap.Error(err))
	}

	// Redis is optional: postings still succeed without it, the read side
	// just loses live updates and the reconciler falls back to its cron pass.
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - posting events will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for posting events")
		}
	} else {
		logger.Info("Redis disabled - posting events will not be published")
	}

	sessions := session.NewRegistry(logger)
	sessions.StartPruning(ctx)

	return &types.App{
		LedgerDB:    ledgerDb,
		RosterDB:    rosterDb,
		RedisClient: redisClient,
		Sessions:    sessions,
		IDGen:       idGen,
		Logger:      logger,
	}
}
