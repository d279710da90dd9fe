package roster

import (
	"context"
	"fmt"

	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/db/postgres"
)

// initLists creates the lists table using PostgreSQL DDL
func (db *DB) initLists(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS lists (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			list_order INTEGER NOT NULL DEFAULT 0
		)
	`

	return db.Exec(ctx, query)
}

// CreateList inserts a new list and returns it with its assigned id.
func (db *DB) CreateList(ctx context.Context, name string, listOrder int32) (*roster.List, error) {
	query := `
		INSERT INTO lists (name, list_order)
		VALUES ($1, $2)
		RETURNING id, name, list_order
	`

	var list roster.List
	err := db.QueryRow(ctx, query, name, listOrder).Scan(&list.ID, &list.Name, &list.ListOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to create list %q: %w", name, err)
	}

	return &list, nil
}

// GetList returns the list for the given id
func (db *DB) GetList(ctx context.Context, id int64) (*roster.List, error) {
	query := `SELECT id, name, list_order FROM lists WHERE id = $1`

	var list roster.List
	err := db.QueryRow(ctx, query, id).Scan(&list.ID, &list.Name, &list.ListOrder)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("list %d not found", id)
		}
		return nil, fmt.Errorf("failed to query list %d: %w", id, err)
	}

	return &list, nil
}

// ListLists returns all lists ordered by their display order.
func (db *DB) ListLists(ctx context.Context) ([]roster.List, error) {
	query := `SELECT id, name, list_order FROM lists ORDER BY list_order, id`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []roster.List
	for rows.Next() {
		var list roster.List
		if err := rows.Scan(&list.ID, &list.Name, &list.ListOrder); err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}

	return lists, rows.Err()
}

// UpdateList updates a list's name and display order.
func (db *DB) UpdateList(ctx context.Context, list *roster.List) error {
	query := `UPDATE lists SET name = $1, list_order = $2 WHERE id = $3`
	return db.Exec(ctx, query, list.Name, list.ListOrder, list.ID)
}

// DeleteList removes a list. Fails while candidates still reference it.
func (db *DB) DeleteList(ctx context.Context, id int64) error {
	query := `DELETE FROM lists WHERE id = $1`
	return db.Exec(ctx, query, id)
}
