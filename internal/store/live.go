package store

import (
	"context"
	"database/sql"
	"fmt"
)

const liveChannelCols = `num, name, stream_type, stream_id, stream_icon, epg_channel_id,
	added, category_id, custom_sid, tv_archive, direct_source, tv_archive_duration`

func insertLiveChannels(ctx context.Context, q Querier, rows []LiveChannel) error {
	return batched(rows, func(batch []LiveChannel) error {
		query := `INSERT OR REPLACE INTO live_channels (` + liveChannelCols + `) VALUES ` +
			valuesClause(len(batch), 12)
		args := make([]any, 0, len(batch)*12)
		for _, c := range batch {
			args = append(args, c.Num, c.Name, c.StreamType, c.StreamID, c.StreamIcon,
				c.EPGChannelID, c.Added, c.CategoryID, c.CustomSID, c.TVArchive,
				c.DirectSource, c.TVArchiveDuration)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert live channels: %w", err)
		}
		return nil
	})
}

// ReplaceLiveChannels swaps the rows of one category. Other
// categories' rows are untouched, with one exception: stream_id is
// unique table-wide, so a stream the provider now reports under this
// category supersedes its row under any previous category.
func ReplaceLiveChannels(ctx context.Context, q Querier, categoryID string, rows []LiveChannel) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM live_channels WHERE category_id = ?`, categoryID); err != nil {
		return fmt.Errorf("clear live channels %s: %w", categoryID, err)
	}
	return insertLiveChannels(ctx, q, rows)
}

// ReplaceAllLiveChannels swaps the whole table.
func ReplaceAllLiveChannels(ctx context.Context, q Querier, rows []LiveChannel) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM live_channels`); err != nil {
		return fmt.Errorf("clear live channels: %w", err)
	}
	return insertLiveChannels(ctx, q, rows)
}

// HasLiveChannels reports whether the category has any rows.
func HasLiveChannels(ctx context.Context, q Querier, categoryID string) (bool, error) {
	return exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM live_channels WHERE category_id = ?)`, categoryID)
}

// HasAnyLiveChannels reports whether the table has any rows at all.
func HasAnyLiveChannels(ctx context.Context, q Querier) (bool, error) {
	return exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM live_channels)`)
}

func scanLiveChannels(rows *sql.Rows) ([]LiveChannel, error) {
	defer rows.Close()
	var out []LiveChannel
	for rows.Next() {
		var c LiveChannel
		if err := rows.Scan(&c.ID, &c.Num, &c.Name, &c.StreamType, &c.StreamID,
			&c.StreamIcon, &c.EPGChannelID, &c.Added, &c.CategoryID, &c.CustomSID,
			&c.TVArchive, &c.DirectSource, &c.TVArchiveDuration); err != nil {
			return nil, fmt.Errorf("scan live channel: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListLiveChannels returns one category's channels in insertion order.
func ListLiveChannels(ctx context.Context, q Querier, categoryID string) ([]LiveChannel, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+liveChannelCols+` FROM live_channels WHERE category_id = ? ORDER BY id`,
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("list live channels %s: %w", categoryID, err)
	}
	return scanLiveChannels(rows)
}

// ListAllLiveChannels returns every channel in insertion order.
func ListAllLiveChannels(ctx context.Context, q Querier) ([]LiveChannel, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+liveChannelCols+` FROM live_channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list live channels: %w", err)
	}
	return scanLiveChannels(rows)
}

// GetLiveChannel returns one channel by stream id, or nil.
func GetLiveChannel(ctx context.Context, q Querier, streamID int) (*LiveChannel, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+liveChannelCols+` FROM live_channels WHERE stream_id = ?`, streamID)
	if err != nil {
		return nil, fmt.Errorf("get live channel %d: %w", streamID, err)
	}
	out, err := scanLiveChannels(rows)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// SearchLiveChannels matches name or stream_type, case-insensitively.
func SearchLiveChannels(ctx context.Context, q Querier, term string) ([]LiveChannel, error) {
	pat := "%" + term + "%"
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+liveChannelCols+` FROM live_channels
		 WHERE name LIKE ? OR stream_type LIKE ? ORDER BY id`, pat, pat)
	if err != nil {
		return nil, fmt.Errorf("search live channels: %w", err)
	}
	return scanLiveChannels(rows)
}

// CountLiveChannels returns the table's row count.
func CountLiveChannels(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM live_channels`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count live channels: %w", err)
	}
	return n, nil
}
