// Package roster is the PostgreSQL store for everything that is not the
// ballot ledger: candidate lists, the voter roll, operator accounts,
// counting rights and the denormalized candidate score counters, plus the
// reconcile-run audit trail.
package roster

import (
	"context"

	"github.com/openscrutiny/tallyx/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB represents the PostgreSQL roster database. It implements RosterStore.
type DB struct {
	postgres.Client
}

// NewWithPoolConfig creates and initializes the roster database with custom
// pool configuration.
func NewWithPoolConfig(ctx context.Context, logger *zap.Logger, poolConfig postgres.PoolConfig) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(
		zap.String("component", poolConfig.Component),
	), &poolConfig)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client}

	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// Close terminates the underlying PostgreSQL connection.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// Health pings the PostgreSQL pool.
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// InitializeDB ensures the roster tables exist. Order matters: candidates
// and counting_rights reference the tables created before them.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing roster database")

	if err := db.initLists(ctx); err != nil {
		return err
	}
	if err := db.initVoters(ctx); err != nil {
		return err
	}
	if err := db.initCandidates(ctx); err != nil {
		return err
	}
	if err := db.initOperators(ctx); err != nil {
		return err
	}
	if err := db.initCountingRights(ctx); err != nil {
		return err
	}
	if err := db.initReconcileRuns(ctx); err != nil {
		return err
	}

	return nil
}
