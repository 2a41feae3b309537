package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const userCols = `username, hashed_password, is_active, is_admin, streams_access,
	series_access, films_access, created_at`

// CreateUser inserts a new user and sets its ID.
func CreateUser(ctx context.Context, q Querier, u *User) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO users (username, hashed_password, is_active, is_admin,
			streams_access, series_access, films_access) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.HashedPassword, u.IsActive, u.IsAdmin,
		u.StreamsAccess, u.SeriesAccess, u.FilmsAccess)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	u.ID = id
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.HashedPassword, &u.IsActive, &u.IsAdmin,
		&u.StreamsAccess, &u.SeriesAccess, &u.FilmsAccess, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetUserByUsername returns the user, or nil when unknown.
func GetUserByUsername(ctx context.Context, q Querier, username string) (*User, error) {
	return scanUser(q.QueryRowContext(ctx,
		`SELECT id, `+userCols+` FROM users WHERE username = ?`, username))
}

// GetUserByID returns the user, or nil when unknown.
func GetUserByID(ctx context.Context, q Querier, id int64) (*User, error) {
	return scanUser(q.QueryRowContext(ctx,
		`SELECT id, `+userCols+` FROM users WHERE id = ?`, id))
}

// ListUsers returns all users ordered by name.
func ListUsers(ctx context.Context, q Querier) ([]User, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+userCols+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.HashedPassword, &u.IsActive,
			&u.IsAdmin, &u.StreamsAccess, &u.SeriesAccess, &u.FilmsAccess,
			&u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUser removes a user by id; missing ids are an error.
func DeleteUser(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// CountUsers returns the users table's row count.
func CountUsers(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
