package roster

import (
	"context"
	"fmt"

	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
)

// initVoters creates the voters table using PostgreSQL DDL
func (db *DB) initVoters(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS voters (
			id BIGSERIAL PRIMARY KEY,
			full_name TEXT NOT NULL,
			national_id TEXT NOT NULL UNIQUE,
			eligible BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`

	return db.Exec(ctx, query)
}

// CreateVoter inserts a voter and returns it with its assigned id.
func (db *DB) CreateVoter(ctx context.Context, fullName, nationalID string, eligible bool) (*roster.Voter, error) {
	query := `
		INSERT INTO voters (full_name, national_id, eligible)
		VALUES ($1, $2, $3)
		RETURNING id, full_name, national_id, eligible, created_at
	`

	var voter roster.Voter
	err := db.QueryRow(ctx, query, fullName, nationalID, eligible).Scan(
		&voter.ID,
		&voter.FullName,
		&voter.NationalID,
		&voter.Eligible,
		&voter.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create voter %q: %w", nationalID, err)
	}

	return &voter, nil
}

// GetVoter returns the voter for the given id
func (db *DB) GetVoter(ctx context.Context, id int64) (*roster.Voter, error) {
	query := `
		SELECT id, full_name, national_id, eligible, created_at
		FROM voters
		WHERE id = $1
	`

	var voter roster.Voter
	err := db.QueryRow(ctx, query, id).Scan(
		&voter.ID,
		&voter.FullName,
		&voter.NationalID,
		&voter.Eligible,
		&voter.CreatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("voter %d not found", id)
		}
		return nil, fmt.Errorf("failed to query voter %d: %w", id, err)
	}

	return &voter, nil
}

// ListVoters returns a page of the voter roll ordered by id.
func (db *DB) ListVoters(ctx context.Context, offset, limit int) ([]roster.Voter, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, full_name, national_id, eligible, created_at
		FROM voters
		ORDER BY id
		OFFSET $1 LIMIT $2
	`

	rows, err := db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var voters []roster.Voter
	for rows.Next() {
		var voter roster.Voter
		err := rows.Scan(
			&voter.ID,
			&voter.FullName,
			&voter.NationalID,
			&voter.Eligible,
			&voter.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		voters = append(voters, voter)
	}

	return voters, rows.Err()
}

// UpdateVoter updates a voter's name and eligibility.
func (db *DB) UpdateVoter(ctx context.Context, voter *roster.Voter) error {
	query := `UPDATE voters SET full_name = $1, eligible = $2 WHERE id = $3`
	return db.Exec(ctx, query, voter.FullName, voter.Eligible, voter.ID)
}

// DeleteVoter removes a voter. Fails while a candidate references it.
func (db *DB) DeleteVoter(ctx context.Context, id int64) error {
	query := `DELETE FROM voters WHERE id = $1`
	return db.Exec(ctx, query, id)
}

// CountEligibleVoters returns the turnout denominator.
func (db *DB) CountEligibleVoters(ctx context.Context) (uint64, error) {
	query := `SELECT count(*) FROM voters WHERE eligible`

	var count uint64
	if err := db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count eligible voters: %w", err)
	}

	return count, nil
}
