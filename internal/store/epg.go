package store

import (
	"context"
	"fmt"
)

const epgCols = `epg_id, title, lang, start, "end", description, channel_id,
	start_timestamp, stop_timestamp, now_playing, has_archive, stream_id`

// ReplaceEPG swaps one stream's listings.
func ReplaceEPG(ctx context.Context, q Querier, streamID int, rows []EpgListing) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM epg_listings WHERE stream_id = ?`, streamID); err != nil {
		return fmt.Errorf("clear epg %d: %w", streamID, err)
	}
	return batched(rows, func(batch []EpgListing) error {
		query := `INSERT INTO epg_listings (` + epgCols + `) VALUES ` +
			valuesClause(len(batch), 12)
		args := make([]any, 0, len(batch)*12)
		for _, l := range batch {
			args = append(args, l.EPGID, l.Title, l.Lang, l.Start, l.End, l.Description,
				l.ChannelID, l.StartTimestamp, l.StopTimestamp, l.NowPlaying,
				l.HasArchive, l.StreamID)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert epg %d: %w", streamID, err)
		}
		return nil
	})
}

// HasEPG reports whether the stream has any listings.
func HasEPG(ctx context.Context, q Querier, streamID int) (bool, error) {
	return exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM epg_listings WHERE stream_id = ?)`, streamID)
}

// ListEPG returns one stream's listings in broadcast order.
func ListEPG(ctx context.Context, q Querier, streamID int) ([]EpgListing, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+epgCols+` FROM epg_listings
		 WHERE stream_id = ? ORDER BY start_timestamp, id`, streamID)
	if err != nil {
		return nil, fmt.Errorf("list epg %d: %w", streamID, err)
	}
	defer rows.Close()

	var out []EpgListing
	for rows.Next() {
		var l EpgListing
		if err := rows.Scan(&l.ID, &l.EPGID, &l.Title, &l.Lang, &l.Start, &l.End,
			&l.Description, &l.ChannelID, &l.StartTimestamp, &l.StopTimestamp,
			&l.NowPlaying, &l.HasArchive, &l.StreamID); err != nil {
			return nil, fmt.Errorf("scan epg listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
