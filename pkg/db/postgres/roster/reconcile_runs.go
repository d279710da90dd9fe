package roster

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
)

// initReconcileRuns creates the reconcile_runs audit table using PostgreSQL
// DDL. Every reconciliation leaves a row, drift or not, so operators can see
// the repair loop is alive.
func (db *DB) initReconcileRuns(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS reconcile_runs (
			id UUID PRIMARY KEY,
			triggered_by TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			ballots_replayed BIGINT NOT NULL DEFAULT 0,
			candidates_checked BIGINT NOT NULL DEFAULT 0,
			candidates_repaired BIGINT NOT NULL DEFAULT 0,
			drift JSONB NOT NULL DEFAULT '[]'
		)
	`

	return db.Exec(ctx, query)
}

// InsertReconcileRun records one completed reconciliation.
func (db *DB) InsertReconcileRun(ctx context.Context, run *roster.ReconcileRun) error {
	drift, err := json.Marshal(run.Drift)
	if err != nil {
		return fmt.Errorf("failed to marshal drift: %w", err)
	}

	query := `
		INSERT INTO reconcile_runs (
			id, triggered_by, started_at, finished_at,
			ballots_replayed, candidates_checked, candidates_repaired, drift
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	err = db.Exec(ctx, query,
		run.ID,
		run.Trigger,
		run.StartedAt,
		run.FinishedAt,
		run.BallotsReplayed,
		run.CandidatesChecked,
		run.CandidatesRepaired,
		drift,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reconcile run %s: %w", run.ID, err)
	}

	return nil
}

// ListReconcileRuns returns the most recent runs, newest first.
func (db *DB) ListReconcileRuns(ctx context.Context, limit int) ([]roster.ReconcileRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, triggered_by, started_at, finished_at,
			   ballots_replayed, candidates_checked, candidates_repaired, drift
		FROM reconcile_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []roster.ReconcileRun
	for rows.Next() {
		var run roster.ReconcileRun
		var drift []byte
		err := rows.Scan(
			&run.ID,
			&run.Trigger,
			&run.StartedAt,
			&run.FinishedAt,
			&run.BallotsReplayed,
			&run.CandidatesChecked,
			&run.CandidatesRepaired,
			&drift,
		)
		if err != nil {
			return nil, err
		}

		if len(drift) > 0 {
			if err := json.Unmarshal(drift, &run.Drift); err != nil {
				return nil, fmt.Errorf("failed to unmarshal drift for run %s: %w", run.ID, err)
			}
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}
