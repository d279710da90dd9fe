// Package reconciler is the daemon that keeps the denormalized score
// counters honest. It consumes posting events from the ballot stream and
// debounces them into reconciliation passes on a cron tick, with a slower
// periodic pass as a backstop for the windows where Redis is down and no
// events arrive at all.
package reconciler

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/openscrutiny/tallyx/pkg/db"
	"github.com/openscrutiny/tallyx/pkg/db/clickhouse"
	ledgerstore "github.com/openscrutiny/tallyx/pkg/db/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
	rosterstore "github.com/openscrutiny/tallyx/pkg/db/postgres/roster"
	"github.com/openscrutiny/tallyx/pkg/logging"
	"github.com/openscrutiny/tallyx/pkg/reconcile"
	"github.com/openscrutiny/tallyx/pkg/redis"
	"github.com/openscrutiny/tallyx/pkg/utils"
)

// App runs reconciliation passes against the ballot ledger, every Cron tick.
// A tick reconciles only when the ballot stream flagged new postings since
// the last pass, or when Interval has elapsed without one.
type App struct {
	LedgerDB db.LedgerStore
	RosterDB db.RosterStore

	// RedisClient feeds the ballot stream consumer; nil disables it and
	// leaves only the periodic pass.
	RedisClient *redis.Client
	Consumer    *redis.StreamConsumer

	Reconciler *reconcile.Reconciler

	// Cron is the scheduler that evaluates whether a pass is due, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	// Interval is the longest the daemon lets the counters go unchecked.
	Interval time.Duration

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server is the HTTP server that serves the probes.
	Server *http.Server

	// dirty flips when the stream delivers a posting; the next tick drains it.
	dirty    atomic.Bool
	lastPass atomic.Int64
}

// Initialize initializes the App.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.NewFor("reconciler")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	ledgerDb, err := ledgerstore.NewWithPoolConfig(ctx, logger, *clickhouse.GetPoolConfigForComponent("reconciler"))
	if err != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(err))
	}

	rosterDb, err := rosterstore.NewWithPoolConfig(ctx, logger, *postgres.GetPoolConfigForComponent("reconciler"))
	if err != nil {
		logger.Fatal("Unable to initialize roster database", zap.Error(err))
	}

	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - falling back to periodic passes only",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for ballot stream consumption")
		}
	} else {
		logger.Info("Redis disabled - ballot stream consumption is off")
	}

	app := &App{
		LedgerDB:    ledgerDb,
		RosterDB:    rosterDb,
		RedisClient: redisClient,
		Reconciler:  reconcile.New(logger, ledgerDb, rosterDb, redisClient),
		Cron:        nil,
		CronSpec:    utils.Env("RECONCILE_CRON", "*/15 * * * * *"),
		Interval:    utils.EnvDuration("RECONCILE_INTERVAL", 10*time.Minute),
		Logger:      logger,
	}

	if redisClient != nil {
		if err := app.setupConsumer(); err != nil {
			logger.Fatal("Unable to initialize ballot stream consumer", zap.Error(err))
		}
	}

	scheduleErr := app.SetupScheduler(ctx, cron.DefaultLogger, app.CronSpec)
	if scheduleErr != nil {
		return nil, scheduleErr
	}

	return app, nil
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3003")

	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if a.Ready(req.Context()) {
			w.WriteHeader(200)
		} else {
			w.WriteHeader(503)
		}
	})).Methods("GET")

	a.Server = &http.Server{Addr: addr, Handler: r}
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	_, err := a.Cron.AddFunc(cronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		a.tick(rctx)
	})
	if err != nil {
		return err
	}

	return nil
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("Cron started",
		zap.String("cronSpec", a.CronSpec),
		zap.Duration("interval", a.Interval))
}

// StopCron stops the cron scheduler.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// tick decides whether this cron firing owes a pass. Stream postings win
// over the periodic backstop, so a burst of ballots collapses into a single
// run per tick instead of one run per ballot.
func (a *App) tick(ctx context.Context) {
	switch {
	case a.dirty.Swap(false):
		a.runPass(ctx, roster.TriggerStream)
	case time.Since(a.lastPassAt()) >= a.Interval:
		a.runPass(ctx, roster.TriggerCron)
	}
}

func (a *App) runPass(ctx context.Context, trigger string) {
	run, err := a.Reconciler.Run(ctx, trigger)
	if err != nil {
		// A stream-triggered pass that failed still owes the repair; put the
		// flag back so the next tick retries.
		if trigger == roster.TriggerStream {
			a.dirty.Store(true)
		}
		a.Logger.Error("Reconciliation pass failed",
			zap.String("trigger", trigger),
			zap.Error(err))
		return
	}

	a.lastPass.Store(time.Now().UnixNano())

	if run.CandidatesRepaired > 0 {
		a.Logger.Warn("Counters had drifted from the ledger",
			zap.String("trigger", trigger),
			zap.Int64("repaired", run.CandidatesRepaired))
	}
}

func (a *App) lastPassAt() time.Time {
	return time.Unix(0, a.lastPass.Load())
}

// ReconcileOnce runs one unbounded pass, for startup.
func (a *App) ReconcileOnce(ctx context.Context) {
	a.runPass(ctx, roster.TriggerCron)
}

// Ready reports whether both stores answer.
func (a *App) Ready(ctx context.Context) bool {
	if err := a.LedgerDB.Health(ctx); err != nil {
		return false
	}
	return a.RosterDB.Health(ctx) == nil
}

// Alive indicates whether the application is alive, returning true if alive.
func (a *App) Alive() bool { return true }

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()

	if a.Consumer != nil {
		go a.consumeStream(ctx)
	}

	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("shutting down reconciler")
	a.StopCron()

	if a.LedgerDB != nil {
		if err := a.LedgerDB.Close(); err != nil {
			a.Logger.Error("Failed to close ledger connection", zap.Error(err))
		}
	}
	if a.RosterDB != nil {
		if err := a.RosterDB.Close(); err != nil {
			a.Logger.Error("Failed to close roster connection", zap.Error(err))
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
