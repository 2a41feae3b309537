package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IsStale reports whether the freshness record for key is missing or
// older than ttl at now. Force-refresh is the caller's concern.
func IsStale(ctx context.Context, q Querier, key string, ttl time.Duration, now time.Time) (bool, error) {
	var last int64
	err := q.QueryRowContext(ctx,
		`SELECT last_refresh FROM refresh_data WHERE data_type = ?`, key).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("freshness %s: %w", key, err)
	}
	return now.Unix()-last > int64(ttl/time.Second), nil
}

// Touch upserts the freshness record for key to now.
func Touch(ctx context.Context, q Querier, key string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO refresh_data (data_type, last_refresh) VALUES (?, ?)
		ON CONFLICT(data_type) DO UPDATE SET last_refresh = excluded.last_refresh`,
		key, now.Unix())
	if err != nil {
		return fmt.Errorf("touch %s: %w", key, err)
	}
	return nil
}

// LastRefresh returns the recorded refresh time for key, with ok=false
// when no record exists.
func LastRefresh(ctx context.Context, q Querier, key string) (time.Time, bool, error) {
	var last int64
	err := q.QueryRowContext(ctx,
		`SELECT last_refresh FROM refresh_data WHERE data_type = ?`, key).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last refresh %s: %w", key, err)
	}
	return time.Unix(last, 0).UTC(), true, nil
}
