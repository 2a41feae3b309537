// Package store is the SQLite persistence layer: catalog tables, the
// refresh_data freshness tracker, and user accounts. All helpers take
// a Querier so they compose into one transaction with the freshness
// touch.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertBatchSize caps multi-row VALUES inserts well under SQLite's
// bind-parameter limit.
const insertBatchSize = 500

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One pooled connection: sqlite serializes writers anyway, and a
	// single conn avoids SQLITE_BUSY between page reads and refreshes.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	is_admin INTEGER NOT NULL DEFAULT 0,
	streams_access INTEGER NOT NULL DEFAULT 1,
	series_access INTEGER NOT NULL DEFAULT 1,
	films_access INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS refresh_data (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	data_type TEXT NOT NULL UNIQUE,
	last_refresh INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS account_profile (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	username TEXT NOT NULL DEFAULT '',
	password TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	auth INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT '',
	exp_date TEXT NOT NULL DEFAULT '',
	is_trial TEXT NOT NULL DEFAULT '',
	active_cons TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT '',
	max_connections TEXT NOT NULL DEFAULT '',
	allowed_output_formats TEXT NOT NULL DEFAULT '[]',
	server_url TEXT NOT NULL DEFAULT '',
	server_port TEXT NOT NULL DEFAULT '',
	server_https_port TEXT NOT NULL DEFAULT '',
	server_protocol TEXT NOT NULL DEFAULT '',
	server_rtmp_port TEXT NOT NULL DEFAULT '',
	server_timezone TEXT NOT NULL DEFAULT '',
	server_timestamp_now INTEGER NOT NULL DEFAULT 0,
	server_time_now TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS live_categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id TEXT NOT NULL UNIQUE,
	category_name TEXT NOT NULL DEFAULT '',
	parent_id INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS series_categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id TEXT NOT NULL UNIQUE,
	category_name TEXT NOT NULL DEFAULT '',
	parent_id INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS film_categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id TEXT NOT NULL UNIQUE,
	category_name TEXT NOT NULL DEFAULT '',
	parent_id INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS live_channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	num INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL DEFAULT '',
	stream_type TEXT NOT NULL DEFAULT '',
	stream_id INTEGER NOT NULL UNIQUE,
	stream_icon TEXT NOT NULL DEFAULT '',
	epg_channel_id TEXT NOT NULL DEFAULT '',
	added TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL DEFAULT '',
	custom_sid TEXT NOT NULL DEFAULT '',
	tv_archive INTEGER NOT NULL DEFAULT 0,
	direct_source TEXT NOT NULL DEFAULT '',
	tv_archive_duration INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_live_channels_category ON live_channels(category_id);

CREATE TABLE IF NOT EXISTS film_streams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	num INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL DEFAULT '',
	stream_type TEXT NOT NULL DEFAULT '',
	stream_id INTEGER NOT NULL UNIQUE,
	stream_icon TEXT NOT NULL DEFAULT '',
	rating TEXT NOT NULL DEFAULT '',
	rating_5based REAL NOT NULL DEFAULT 0,
	added TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL DEFAULT '',
	container_extension TEXT NOT NULL DEFAULT '',
	custom_sid TEXT NOT NULL DEFAULT '',
	direct_source TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_film_streams_category ON film_streams(category_id);

CREATE TABLE IF NOT EXISTS film_details (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stream_id INTEGER NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	o_name TEXT NOT NULL DEFAULT '',
	stream_icon TEXT NOT NULL DEFAULT '',
	cover_big TEXT NOT NULL DEFAULT '',
	movie_image TEXT NOT NULL DEFAULT '',
	plot TEXT NOT NULL DEFAULT '',
	"cast" TEXT NOT NULL DEFAULT '',
	director TEXT NOT NULL DEFAULT '',
	genre TEXT NOT NULL DEFAULT '',
	release_date TEXT NOT NULL DEFAULT '',
	rating TEXT NOT NULL DEFAULT '',
	rating_5based REAL NOT NULL DEFAULT 0,
	duration_secs INTEGER NOT NULL DEFAULT 0,
	duration TEXT NOT NULL DEFAULT '',
	youtube_trailer TEXT NOT NULL DEFAULT '',
	tmdb_id TEXT NOT NULL DEFAULT '',
	kinopoisk_url TEXT NOT NULL DEFAULT '',
	episode_run_time TEXT NOT NULL DEFAULT '',
	actors TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	age TEXT NOT NULL DEFAULT '',
	mpaa_rating TEXT NOT NULL DEFAULT '',
	rating_count_kinopoisk INTEGER NOT NULL DEFAULT 0,
	country TEXT NOT NULL DEFAULT '',
	backdrop_path TEXT NOT NULL DEFAULT '[]',
	bitrate INTEGER NOT NULL DEFAULT 0,
	video TEXT NOT NULL DEFAULT '{}',
	audio TEXT NOT NULL DEFAULT '{}',
	container_extension TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS series (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	series_id INTEGER NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	cover TEXT NOT NULL DEFAULT '',
	plot TEXT NOT NULL DEFAULT '',
	"cast" TEXT NOT NULL DEFAULT '',
	director TEXT NOT NULL DEFAULT '',
	genre TEXT NOT NULL DEFAULT '',
	release_date TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	rating TEXT NOT NULL DEFAULT '',
	rating_5based REAL NOT NULL DEFAULT 0,
	backdrop_path TEXT NOT NULL DEFAULT '[]',
	youtube_trailer TEXT NOT NULL DEFAULT '',
	episode_run_time TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_series_category ON series(category_id);

CREATE TABLE IF NOT EXISTS series_episodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	series_id INTEGER NOT NULL,
	season INTEGER NOT NULL DEFAULT 0,
	episode_id TEXT NOT NULL DEFAULT '',
	episode_num INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL DEFAULT '',
	container_extension TEXT NOT NULL DEFAULT '',
	plot TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	rating REAL NOT NULL DEFAULT 0,
	info TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_series_episodes_series ON series_episodes(series_id);

CREATE TABLE IF NOT EXISTS epg_listings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	epg_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	lang TEXT NOT NULL DEFAULT '',
	start TEXT NOT NULL DEFAULT '',
	"end" TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	channel_id TEXT NOT NULL DEFAULT '',
	start_timestamp INTEGER NOT NULL DEFAULT 0,
	stop_timestamp INTEGER NOT NULL DEFAULT 0,
	now_playing INTEGER NOT NULL DEFAULT 0,
	has_archive INTEGER NOT NULL DEFAULT 0,
	stream_id INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_epg_listings_stream ON epg_listings(stream_id);
`

// batched runs fn over rows in insertBatchSize chunks.
func batched[T any](rows []T, fn func(batch []T) error) error {
	for i := 0; i < len(rows); i += insertBatchSize {
		end := min(i+insertBatchSize, len(rows))
		if err := fn(rows[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// valuesClause returns "(?,..),(?,..)" for n rows of width cols.
func valuesClause(n, cols int) string {
	row := "(" + strings.Repeat("?,", cols-1) + "?)"
	var sb strings.Builder
	sb.Grow(n * (len(row) + 1))
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(row)
	}
	return sb.String()
}

// exists wraps the SELECT EXISTS probe shared by the Has helpers.
func exists(ctx context.Context, q Querier, query string, args ...any) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n != 0, nil
}
