package roster

import (
	"context"
	"fmt"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
)

// initCountingRights creates the counting_rights table using PostgreSQL DDL.
// One right per operator: granting again replaces the previous assignment.
func (db *DB) initCountingRights(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS counting_rights (
			operator TEXT PRIMARY KEY REFERENCES operators(username) ON DELETE CASCADE,
			source TEXT NOT NULL,
			station_id INTEGER NOT NULL,
			granted_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`

	return db.Exec(ctx, query)
}

// GrantCountingRight assigns an operator its source attribution and station.
// Upserts, so re-granting moves the operator.
func (db *DB) GrantCountingRight(ctx context.Context, operator, source string, stationID uint16) (*roster.CountingRight, error) {
	if !ledger.ValidSource(source) {
		return nil, fmt.Errorf("unknown counting source %q", source)
	}

	query := `
		INSERT INTO counting_rights (operator, source, station_id, granted_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (operator) DO UPDATE SET
			source = EXCLUDED.source,
			station_id = EXCLUDED.station_id,
			granted_at = EXCLUDED.granted_at
		RETURNING operator, source, station_id, granted_at
	`

	var right roster.CountingRight
	err := db.QueryRow(ctx, query, operator, source, int32(stationID)).Scan(
		&right.Operator,
		&right.Source,
		&right.StationID,
		&right.GrantedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to grant counting right to %q: %w", operator, err)
	}

	return &right, nil
}

// GetCountingRight returns the operator's right. The posting operation takes
// this as an explicit parameter; it is fetched once per request, never read
// from ambient session state.
func (db *DB) GetCountingRight(ctx context.Context, operator string) (*roster.CountingRight, error) {
	query := `
		SELECT operator, source, station_id, granted_at
		FROM counting_rights
		WHERE operator = $1
	`

	var right roster.CountingRight
	err := db.QueryRow(ctx, query, operator).Scan(
		&right.Operator,
		&right.Source,
		&right.StationID,
		&right.GrantedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("operator %q has no counting right", operator)
		}
		return nil, fmt.Errorf("failed to query counting right for %q: %w", operator, err)
	}

	return &right, nil
}

// ListCountingRights returns all grants ordered by station then operator.
func (db *DB) ListCountingRights(ctx context.Context) ([]roster.CountingRight, error) {
	query := `
		SELECT operator, source, station_id, granted_at
		FROM counting_rights
		ORDER BY station_id, operator
	`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rights []roster.CountingRight
	for rows.Next() {
		var right roster.CountingRight
		err := rows.Scan(
			&right.Operator,
			&right.Source,
			&right.StationID,
			&right.GrantedAt,
		)
		if err != nil {
			return nil, err
		}
		rights = append(rights, right)
	}

	return rights, rows.Err()
}

// RevokeCountingRight removes an operator's grant.
func (db *DB) RevokeCountingRight(ctx context.Context, operator string) error {
	query := `DELETE FROM counting_rights WHERE operator = $1`
	return db.Exec(ctx, query, operator)
}
