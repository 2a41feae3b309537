package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CategoryKind selects one of the three category tables.
type CategoryKind string

const (
	LiveCategoryKind   CategoryKind = "live_categories"
	SeriesCategoryKind CategoryKind = "series_categories"
	FilmCategoryKind   CategoryKind = "film_categories"
)

// table guards against anything but the three known names reaching SQL.
func (k CategoryKind) table() (string, error) {
	switch k {
	case LiveCategoryKind, SeriesCategoryKind, FilmCategoryKind:
		return string(k), nil
	}
	return "", fmt.Errorf("unknown category kind %q", k)
}

// ReplaceCategories clears the kind's table and inserts rows.
func ReplaceCategories(ctx context.Context, q Querier, kind CategoryKind, rows []Category) error {
	table, err := kind.table()
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return batched(rows, func(batch []Category) error {
		query := `INSERT INTO ` + table + ` (category_id, category_name, parent_id) VALUES ` +
			valuesClause(len(batch), 3)
		args := make([]any, 0, len(batch)*3)
		for _, c := range batch {
			args = append(args, c.CategoryID, c.Name, c.ParentID)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
		return nil
	})
}

// HasCategories reports whether the kind's table has any rows.
func HasCategories(ctx context.Context, q Querier, kind CategoryKind) (bool, error) {
	table, err := kind.table()
	if err != nil {
		return false, err
	}
	return exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM `+table+`)`)
}

// ListCategories returns the kind's rows in insertion order.
func ListCategories(ctx context.Context, q Querier, kind CategoryKind) ([]Category, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		`SELECT id, category_id, category_name, parent_id FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.CategoryID, &c.Name, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategoryName returns the display name for a category id, or "".
func GetCategoryName(ctx context.Context, q Querier, kind CategoryKind, categoryID string) (string, error) {
	table, err := kind.table()
	if err != nil {
		return "", err
	}
	var name string
	err = q.QueryRowContext(ctx,
		`SELECT category_name FROM `+table+` WHERE category_id = ?`, categoryID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("category name %s/%s: %w", table, categoryID, err)
	}
	return name, nil
}
