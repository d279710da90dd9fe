package roster

import (
	"context"
	"fmt"

	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
)

// initOperators creates the operators table using PostgreSQL DDL
func (db *DB) initOperators(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS operators (
			username TEXT PRIMARY KEY,
			password_hash BYTEA NOT NULL,
			role TEXT NOT NULL DEFAULT 'operator',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`

	return db.Exec(ctx, query)
}

// CreateOperator inserts an operator account. The hash is bcrypt, produced
// by the caller; plaintext never reaches the store.
func (db *DB) CreateOperator(ctx context.Context, username string, passwordHash []byte, role string) (*roster.Operator, error) {
	query := `
		INSERT INTO operators (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING username, password_hash, role, created_at
	`

	var op roster.Operator
	err := db.QueryRow(ctx, query, username, passwordHash, role).Scan(
		&op.Username,
		&op.PasswordHash,
		&op.Role,
		&op.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operator %q: %w", username, err)
	}

	return &op, nil
}

// GetOperator returns the operator for the given username
func (db *DB) GetOperator(ctx context.Context, username string) (*roster.Operator, error) {
	query := `
		SELECT username, password_hash, role, created_at
		FROM operators
		WHERE username = $1
	`

	var op roster.Operator
	err := db.QueryRow(ctx, query, username).Scan(
		&op.Username,
		&op.PasswordHash,
		&op.Role,
		&op.CreatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("operator %q not found", username)
		}
		return nil, fmt.Errorf("failed to query operator %q: %w", username, err)
	}

	return &op, nil
}

// ListOperators returns all operator accounts ordered by username.
func (db *DB) ListOperators(ctx context.Context) ([]roster.Operator, error) {
	query := `
		SELECT username, password_hash, role, created_at
		FROM operators
		ORDER BY username
	`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var operators []roster.Operator
	for rows.Next() {
		var op roster.Operator
		err := rows.Scan(
			&op.Username,
			&op.PasswordHash,
			&op.Role,
			&op.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}

	return operators, rows.Err()
}

// UpdateOperatorPassword replaces an operator's bcrypt hash.
func (db *DB) UpdateOperatorPassword(ctx context.Context, username string, passwordHash []byte) error {
	query := `UPDATE operators SET password_hash = $1 WHERE username = $2`
	return db.Exec(ctx, query, passwordHash, username)
}

// DeleteOperator removes an operator account. The counting right, if any,
// cascades with it.
func (db *DB) DeleteOperator(ctx context.Context, username string) error {
	query := `DELETE FROM operators WHERE username = $1`
	return db.Exec(ctx, query, username)
}
