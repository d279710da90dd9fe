package ledger

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/openscrutiny/tallyx/pkg/db/clickhouse"
	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/tally"
	"go.uber.org/zap"
)

// initBallotLines creates the ballot_lines table.
// MergeTree ordered by (ballot_id, candidate_id): the single-ballot lookup
// is a primary-key scan and the fan-out rows of one ballot stay physically
// together. Append-only, so no version column and no deduplication engine.
func (db *DB) initBallotLines(ctx context.Context) error {
	schemaSQL := ledger.ColumnsToSchemaSQL(ledger.BallotLineColumns)

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s
		ORDER BY (ballot_id, candidate_id)
	`, db.Name, ledger.BallotLinesTableName, schemaSQL, clickhouse.MergeTree)

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", ledger.BallotLinesTableName, err)
	}

	return nil
}

// InsertBallotLines appends one ballot's fan-out as a single batch. The batch
// either lands whole or not at all; there is no partial ballot in the ledger.
func (db *DB) InsertBallotLines(ctx context.Context, lines []*ledger.BallotLine) error {
	if len(lines) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		ballot_id, candidate_id, vote, ballot_type, ballot_source,
		station_id, operator, post_date
	) VALUES`, db.Name, ledger.BallotLinesTableName)

	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, line := range lines {
		err = batch.Append(
			line.BallotID,
			line.CandidateID,
			line.Vote,
			line.BallotType,
			line.BallotSource,
			line.StationID,
			line.Operator,
			line.PostDate,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// GetBallotLines returns every line of one ballot, ordered by candidate id.
// An unknown ballot id comes back as an empty slice, not an error.
func (db *DB) GetBallotLines(ctx context.Context, ballotID uint64) ([]ledger.BallotLine, error) {
	query := fmt.Sprintf(`
		SELECT ballot_id, candidate_id, vote, ballot_type, ballot_source,
		       station_id, operator, post_date
		FROM "%s"."%s"
		WHERE ballot_id = ?
		ORDER BY candidate_id ASC
	`, db.Name, ledger.BallotLinesTableName)

	var lines []ledger.BallotLine
	if err := db.Select(ctx, &lines, query, ballotID); err != nil {
		return nil, fmt.Errorf("get ballot %d: %w", ballotID, err)
	}

	return lines, nil
}

// ListBallotLines returns the lines of up to limit ballots with
// ballot_id < before, newest ballots first. Pass before = 0 for the newest
// page; the caller feeds the smallest returned ballot_id back in as the next
// cursor. Ballot ids are time-ordered, so this walks the ledger backwards
// through time.
func (db *DB) ListBallotLines(ctx context.Context, before uint64, limit int) ([]ledger.BallotLine, error) {
	if limit <= 0 {
		limit = 50
	}
	cursor := before
	if cursor == 0 {
		cursor = ^uint64(0)
	}

	query := fmt.Sprintf(`
		SELECT ballot_id, candidate_id, vote, ballot_type, ballot_source,
		       station_id, operator, post_date
		FROM "%s"."%s"
		WHERE ballot_id IN (
			SELECT DISTINCT ballot_id
			FROM "%s"."%s"
			WHERE ballot_id < ?
			ORDER BY ballot_id DESC
			LIMIT ?
		)
		ORDER BY ballot_id DESC, candidate_id ASC
	`, db.Name, ledger.BallotLinesTableName, db.Name, ledger.BallotLinesTableName)

	var lines []ledger.BallotLine
	if err := db.Select(ctx, &lines, query, cursor, limit); err != nil {
		return nil, fmt.Errorf("list ballots before %d: %w", before, err)
	}

	return lines, nil
}

// Counters aggregates the three ballot buckets per source directly in
// ClickHouse. The inner query collapses each ballot to one row; blankness is
// sum(vote) = 0, matching the in-memory classification exactly.
func (db *DB) Counters(ctx context.Context) (tally.Counters, error) {
	query := fmt.Sprintf(`
		SELECT
			ballot_source,
			countIf(is_blank = 1)                            AS blank,
			countIf(is_blank = 0 AND ballot_type = 'valid')  AS valid,
			countIf(is_blank = 0 AND ballot_type != 'valid') AS invalid
		FROM (
			SELECT
				ballot_id,
				any(ballot_type)   AS ballot_type,
				any(ballot_source) AS ballot_source,
				sum(vote) = 0      AS is_blank
			FROM "%s"."%s"
			GROUP BY ballot_id
		)
		GROUP BY ballot_source
	`, db.Name, ledger.BallotLinesTableName)

	rows, err := db.Query(ctx, query)
	if err != nil {
		return tally.Counters{}, fmt.Errorf("count ballot buckets: %w", err)
	}
	defer rows.Close()

	var counters tally.Counters
	for rows.Next() {
		var source string
		var blank, valid, invalid uint64
		if err := rows.Scan(&source, &blank, &valid, &invalid); err != nil {
			return tally.Counters{}, fmt.Errorf("scan ballot buckets: %w", err)
		}

		if source == ledger.SourceFemale {
			counters.Blank.Female += blank
			counters.Valid.Female += valid
			counters.Invalid.Female += invalid
		} else {
			counters.Blank.Male += blank
			counters.Valid.Male += valid
			counters.Invalid.Male += invalid
		}
		counters.DistinctBallots += blank + valid + invalid
	}

	if err := rows.Err(); err != nil {
		return tally.Counters{}, fmt.Errorf("iterate ballot buckets: %w", err)
	}

	return counters, nil
}

// ReplayScores recomputes every candidate's score split from the ledger:
// sum of vote over valid ballots, grouped by candidate and source. This is
// the reconciliation ground truth for the denormalized counters.
func (db *DB) ReplayScores(ctx context.Context) (map[int64]tally.SourceCount, error) {
	query := fmt.Sprintf(`
		SELECT candidate_id, ballot_source, sum(vote) AS score
		FROM "%s"."%s"
		WHERE ballot_type = 'valid'
		GROUP BY candidate_id, ballot_source
	`, db.Name, ledger.BallotLinesTableName)

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("replay scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[int64]tally.SourceCount)
	for rows.Next() {
		var candidateID int64
		var source string
		var score uint64
		if err := rows.Scan(&candidateID, &source, &score); err != nil {
			return nil, fmt.Errorf("scan replayed score: %w", err)
		}

		sc := scores[candidateID]
		if source == ledger.SourceFemale {
			sc.Female += score
		} else {
			sc.Male += score
		}
		scores[candidateID] = sc
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replayed scores: %w", err)
	}

	return scores, nil
}

// DistinctBallots counts ballots, not lines.
func (db *DB) DistinctBallots(ctx context.Context) (uint64, error) {
	query := fmt.Sprintf(`SELECT uniqExact(ballot_id) FROM "%s"."%s"`,
		db.Name, ledger.BallotLinesTableName)

	var count uint64
	if err := db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count distinct ballots: %w", err)
	}
	return count, nil
}

// DistinctValidBallots counts ballots typed valid, i.e. the ballots a score
// replay walks.
func (db *DB) DistinctValidBallots(ctx context.Context) (uint64, error) {
	query := fmt.Sprintf(`
		SELECT uniqExact(ballot_id)
		FROM "%s"."%s"
		WHERE ballot_type = 'valid'
	`, db.Name, ledger.BallotLinesTableName)

	var count uint64
	if err := db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count valid ballots: %w", err)
	}
	return count, nil
}

// StreamBallotLines walks the whole ledger in (ballot_id, candidate_id)
// order, invoking fn per line. Used by exports so the full ledger never sits
// in memory at once.
func (db *DB) StreamBallotLines(ctx context.Context, fn func(ledger.BallotLine) error) error {
	query := fmt.Sprintf(`
		SELECT ballot_id, candidate_id, vote, ballot_type, ballot_source,
		       station_id, operator, post_date
		FROM "%s"."%s"
		ORDER BY ballot_id ASC, candidate_id ASC
	`, db.Name, ledger.BallotLinesTableName)

	rows, err := db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("stream ballot lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line ledger.BallotLine
		if err := rows.ScanStruct(&line); err != nil {
			return fmt.Errorf("scan ballot line: %w", err)
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate ballot lines: %w", err)
	}

	db.Logger.Debug("Streamed ballot lines", zap.String("table", ledger.BallotLinesTableName))
	return nil
}
