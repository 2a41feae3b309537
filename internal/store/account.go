package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const accountCols = `username, password, message, auth, status, exp_date, is_trial,
	active_cons, created_at, max_connections, allowed_output_formats, server_url,
	server_port, server_https_port, server_protocol, server_rtmp_port, server_timezone,
	server_timestamp_now, server_time_now`

// UpsertAccountProfile overwrites the singleton provider account row.
func UpsertAccountProfile(ctx context.Context, q Querier, p *AccountProfile) error {
	query := `INSERT OR REPLACE INTO account_profile (id, ` + accountCols + `) VALUES ` +
		valuesClause(1, 20)
	_, err := q.ExecContext(ctx, query,
		1, p.Username, p.Password, p.Message, p.Auth, p.Status, p.ExpDate, p.IsTrial,
		p.ActiveCons, p.CreatedAt, p.MaxConnections, p.AllowedOutputFormats,
		p.ServerURL, p.ServerPort, p.ServerHTTPSPort, p.ServerProtocol, p.ServerRTMPPort,
		p.ServerTimezone, p.ServerTimestampNow, p.ServerTimeNow)
	if err != nil {
		return fmt.Errorf("upsert account profile: %w", err)
	}
	return nil
}

// HasAccountProfile reports whether the singleton row exists.
func HasAccountProfile(ctx context.Context, q Querier) (bool, error) {
	return exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM account_profile WHERE id = 1)`)
}

// GetAccountProfile returns the provider account row, or nil when the
// account has never been fetched.
func GetAccountProfile(ctx context.Context, q Querier) (*AccountProfile, error) {
	var p AccountProfile
	err := q.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM account_profile WHERE id = 1`).
		Scan(&p.Username, &p.Password, &p.Message, &p.Auth, &p.Status, &p.ExpDate,
			&p.IsTrial, &p.ActiveCons, &p.CreatedAt, &p.MaxConnections,
			&p.AllowedOutputFormats, &p.ServerURL, &p.ServerPort, &p.ServerHTTPSPort,
			&p.ServerProtocol, &p.ServerRTMPPort, &p.ServerTimezone,
			&p.ServerTimestampNow, &p.ServerTimeNow)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account profile: %w", err)
	}
	return &p, nil
}
