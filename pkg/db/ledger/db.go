// Package ledger is the ClickHouse store for the append-only ballot ledger.
// Every posting becomes one batch of ballot_lines rows; nothing here updates
// or deletes, which is what makes the ledger the source of truth the
// denormalized score counters are reconciled against.
package ledger

import (
	"context"
	"fmt"

	"github.com/openscrutiny/tallyx/pkg/db/clickhouse"
	"github.com/openscrutiny/tallyx/pkg/utils"
	"go.uber.org/zap"
)

// DB is the ballot-ledger database handle. It implements LedgerStore.
type DB struct {
	clickhouse.Client
	Name string
}

// NewWithPoolConfig creates the ledger store with explicit pool settings and
// ensures the database and tables exist.
func NewWithPoolConfig(ctx context.Context, logger *zap.Logger, poolConfig clickhouse.PoolConfig) (*DB, error) {
	dbName := clickhouse.SanitizeName(utils.Env("CLICKHOUSE_DB", "tallyx"))

	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", dbName),
		zap.String("component", poolConfig.Component),
	), dbName, &poolConfig)
	if err != nil {
		return nil, err
	}

	db := &DB{
		Client: client,
		Name:   dbName,
	}

	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// Close terminates the underlying ClickHouse connection.
func (db *DB) Close() error {
	return db.Db.Close()
}

// DatabaseName returns the ClickHouse database backing the ledger.
func (db *DB) DatabaseName() string {
	return db.Name
}

// Health pings the ClickHouse connection.
func (db *DB) Health(ctx context.Context) error {
	return db.Db.Ping(ctx)
}

// InitializeDB ensures the ledger database and its tables exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	db.Logger.Info("Initialize ballot_lines table", zap.String("database", db.Name))
	if err := db.initBallotLines(ctx); err != nil {
		return err
	}

	return nil
}
