package types

import (
	"context"
	"net/http"
	"time"

	"github.com/openscrutiny/tallyx/pkg/db"
	"github.com/openscrutiny/tallyx/pkg/redis"
	"go.uber.org/zap"
)

// App holds the scores service dependencies. The service is read-only: it
// renders the scoreboard, the counter buckets and the classified ballot
// pages, and relays posting events over WebSocket.
type App struct {
	// Database client wrappers
	LedgerDB db.LedgerStore
	RosterDB db.RosterStore

	// Redis Client (for WebSocket real-time events)
	RedisClient *redis.Client

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	if a.LedgerDB != nil {
		a.Logger.Info("closing ledger database connection")
		if err := a.LedgerDB.Close(); err != nil {
			a.Logger.Error("Failed to close ledger connection", zap.Error(err))
		}
	}

	if a.RosterDB != nil {
		a.Logger.Info("closing roster database connection")
		if err := a.RosterDB.Close(); err != nil {
			a.Logger.Error("Failed to close roster connection", zap.Error(err))
		}
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
