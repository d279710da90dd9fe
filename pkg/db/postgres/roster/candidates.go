package roster

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
	"go.uber.org/zap"
)

// initCandidates creates the candidates table using PostgreSQL DDL.
// score_from_female / score_from_male are the denormalized live counters:
// fast to read, mutated only by the plain-post path and by reconciliation.
func (db *DB) initCandidates(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS candidates (
			id BIGSERIAL PRIMARY KEY,
			voter_id BIGINT NOT NULL UNIQUE REFERENCES voters(id),
			list_id BIGINT NOT NULL REFERENCES lists(id),
			candidate_order INTEGER NOT NULL DEFAULT 0,
			score_from_female BIGINT NOT NULL DEFAULT 0,
			score_from_male BIGINT NOT NULL DEFAULT 0
		)
	`

	return db.Exec(ctx, query)
}

const candidateSelect = `
	SELECT c.id, c.voter_id, c.list_id, c.candidate_order,
		   v.full_name, l.name,
		   c.score_from_female, c.score_from_male
	FROM candidates c
	JOIN voters v ON v.id = c.voter_id
	JOIN lists l ON l.id = c.list_id
`

func scanCandidate(row pgx.Row, c *roster.Candidate) error {
	return row.Scan(
		&c.ID,
		&c.VoterID,
		&c.ListID,
		&c.CandidateOrder,
		&c.FullName,
		&c.ListName,
		&c.ScoreFromFemale,
		&c.ScoreFromMale,
	)
}

// CreateCandidate registers a voter as a candidate on a list and returns the
// candidate with joined display fields.
func (db *DB) CreateCandidate(ctx context.Context, voterID, listID int64, candidateOrder int32) (*roster.Candidate, error) {
	query := `
		INSERT INTO candidates (voter_id, list_id, candidate_order)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	if err := db.QueryRow(ctx, query, voterID, listID, candidateOrder).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to create candidate for voter %d: %w", voterID, err)
	}

	return db.GetCandidate(ctx, id)
}

// GetCandidate returns one candidate with display fields and live scores.
func (db *DB) GetCandidate(ctx context.Context, id int64) (*roster.Candidate, error) {
	query := candidateSelect + ` WHERE c.id = $1`

	var c roster.Candidate
	if err := scanCandidate(db.QueryRow(ctx, query, id), &c); err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("candidate %d not found", id)
		}
		return nil, fmt.Errorf("failed to query candidate %d: %w", id, err)
	}

	return &c, nil
}

// ListCandidates returns the full roster in display order: lists by their
// configured order, candidates by their order within the list. This ordering
// is what the posting fan-out and the ballot views consume.
func (db *DB) ListCandidates(ctx context.Context) ([]roster.Candidate, error) {
	query := candidateSelect + ` ORDER BY l.list_order, c.candidate_order, c.id`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []roster.Candidate
	for rows.Next() {
		var c roster.Candidate
		if err := scanCandidate(rows, &c); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// ListCandidatesByList returns one list's candidates in display order.
func (db *DB) ListCandidatesByList(ctx context.Context, listID int64) ([]roster.Candidate, error) {
	query := candidateSelect + ` WHERE c.list_id = $1 ORDER BY c.candidate_order, c.id`

	rows, err := db.Query(ctx, query, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []roster.Candidate
	for rows.Next() {
		var c roster.Candidate
		if err := scanCandidate(rows, &c); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// DeleteCandidate removes a candidate and its counters. Ledger lines keep
// the candidate id; historic ballots replay fine without the roster row.
func (db *DB) DeleteCandidate(ctx context.Context, id int64) error {
	query := `DELETE FROM candidates WHERE id = $1`
	return db.Exec(ctx, query, id)
}

// IncrementScores adds one vote to each listed candidate's counter for the
// given source. A single UPDATE, so the increments of one ballot land
// atomically. Only the plain-post path calls this; blank and invalid
// postings leave the counters alone.
func (db *DB) IncrementScores(ctx context.Context, source string, candidateIDs []int64) error {
	if len(candidateIDs) == 0 {
		return nil
	}

	var query string
	switch source {
	case ledger.SourceFemale:
		query = `UPDATE candidates SET score_from_female = score_from_female + 1 WHERE id = ANY($1)`
	case ledger.SourceMale:
		query = `UPDATE candidates SET score_from_male = score_from_male + 1 WHERE id = ANY($1)`
	default:
		return fmt.Errorf("unknown counting source %q", source)
	}

	if err := db.Exec(ctx, query, candidateIDs); err != nil {
		return fmt.Errorf("failed to increment %s scores: %w", source, err)
	}

	db.Logger.Debug("Incremented candidate scores",
		zap.String("source", source),
		zap.Int("candidates", len(candidateIDs)))

	return nil
}

// CandidateScores returns the current denormalized counters keyed by
// candidate id, the reconciler's view of what the counters claim.
func (db *DB) CandidateScores(ctx context.Context) (map[int64]roster.Score, error) {
	query := `SELECT id, score_from_female, score_from_male FROM candidates`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[int64]roster.Score)
	for rows.Next() {
		var id int64
		var s roster.Score
		if err := rows.Scan(&id, &s.FromFemale, &s.FromMale); err != nil {
			return nil, err
		}
		scores[id] = s
	}

	return scores, rows.Err()
}

// SetCandidateScores overwrites counters for the given candidates in one
// batch inside one transaction, used by reconciliation to repair drift.
// Candidates absent from scores are left untouched.
func (db *DB) SetCandidateScores(ctx context.Context, scores map[int64]roster.Score) error {
	if len(scores) == 0 {
		return nil
	}

	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for id, s := range scores {
			batch.Queue(
				`UPDATE candidates SET score_from_female = $1, score_from_male = $2 WHERE id = $3`,
				s.FromFemale, s.FromMale, id,
			)
		}

		results := tx.SendBatch(ctx, batch)
		defer func() {
			_ = results.Close()
		}()

		for range scores {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to repair candidate scores: %w", err)
			}
		}

		return nil
	})
}
