package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const filmStreamCols = `num, name, stream_type, stream_id, stream_icon, rating,
	rating_5based, added, category_id, container_extension, custom_sid, direct_source`

func insertFilmStreams(ctx context.Context, q Querier, rows []FilmStream) error {
	return batched(rows, func(batch []FilmStream) error {
		query := `INSERT OR REPLACE INTO film_streams (` + filmStreamCols + `) VALUES ` +
			valuesClause(len(batch), 12)
		args := make([]any, 0, len(batch)*12)
		for _, f := range batch {
			args = append(args, f.Num, f.Name, f.StreamType, f.StreamID, f.StreamIcon,
				f.Rating, f.Rating5Based, f.Added, f.CategoryID, f.ContainerExtension,
				f.CustomSID, f.DirectSource)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert film streams: %w", err)
		}
		return nil
	})
}

// ReplaceFilmStreams swaps the rows of one category. stream_id is
// unique table-wide, so a film reported under a new category
// supersedes its row under the old one.
func ReplaceFilmStreams(ctx context.Context, q Querier, categoryID string, rows []FilmStream) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM film_streams WHERE category_id = ?`, categoryID); err != nil {
		return fmt.Errorf("clear film streams %s: %w", categoryID, err)
	}
	return insertFilmStreams(ctx, q, rows)
}

// ReplaceAllFilmStreams swaps the whole table.
func ReplaceAllFilmStreams(ctx context.Context, q Querier, rows []FilmStream) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM film_streams`); err != nil {
		return fmt.Errorf("clear film streams: %w", err)
	}
	return insertFilmStreams(ctx, q, rows)
}

// HasFilmStreams reports whether the category has any rows.
func HasFilmStreams(ctx context.Context, q Querier, categoryID string) (bool, error) {
	return exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM film_streams WHERE category_id = ?)`, categoryID)
}

// HasAnyFilmStreams reports whether the table has any rows at all.
func HasAnyFilmStreams(ctx context.Context, q Querier) (bool, error) {
	return exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM film_streams)`)
}

func scanFilmStreams(rows *sql.Rows) ([]FilmStream, error) {
	defer rows.Close()
	var out []FilmStream
	for rows.Next() {
		var f FilmStream
		if err := rows.Scan(&f.ID, &f.Num, &f.Name, &f.StreamType, &f.StreamID,
			&f.StreamIcon, &f.Rating, &f.Rating5Based, &f.Added, &f.CategoryID,
			&f.ContainerExtension, &f.CustomSID, &f.DirectSource); err != nil {
			return nil, fmt.Errorf("scan film stream: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListFilmStreams returns one category's films in insertion order.
func ListFilmStreams(ctx context.Context, q Querier, categoryID string) ([]FilmStream, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+filmStreamCols+` FROM film_streams WHERE category_id = ? ORDER BY id`,
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("list film streams %s: %w", categoryID, err)
	}
	return scanFilmStreams(rows)
}

// ListAllFilmStreams returns the whole table in insertion order.
func ListAllFilmStreams(ctx context.Context, q Querier) ([]FilmStream, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+filmStreamCols+` FROM film_streams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list film streams: %w", err)
	}
	return scanFilmStreams(rows)
}

// SearchFilmStreams matches name or stream_type, case-insensitively.
func SearchFilmStreams(ctx context.Context, q Querier, term string) ([]FilmStream, error) {
	pat := "%" + term + "%"
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+filmStreamCols+` FROM film_streams
		 WHERE name LIKE ? OR stream_type LIKE ? ORDER BY id`, pat, pat)
	if err != nil {
		return nil, fmt.Errorf("search film streams: %w", err)
	}
	return scanFilmStreams(rows)
}

// CountFilmStreams returns the table's row count.
func CountFilmStreams(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM film_streams`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count film streams: %w", err)
	}
	return n, nil
}

const filmDetailCols = `stream_id, name, o_name, stream_icon, cover_big, movie_image, plot,
	"cast", director, genre, release_date, rating, rating_5based, duration_secs, duration,
	youtube_trailer, tmdb_id, kinopoisk_url, episode_run_time, actors, description, age,
	mpaa_rating, rating_count_kinopoisk, country, backdrop_path, bitrate, video, audio,
	container_extension`

// UpsertFilmDetail writes one film's detail row keyed by stream id.
func UpsertFilmDetail(ctx context.Context, q Querier, d *FilmDetail) error {
	query := `INSERT OR REPLACE INTO film_details (` + filmDetailCols + `) VALUES ` +
		valuesClause(1, 30)
	_, err := q.ExecContext(ctx, query,
		d.StreamID, d.Name, d.OName, d.StreamIcon, d.CoverBig, d.MovieImage, d.Plot,
		d.Cast, d.Director, d.Genre, d.ReleaseDate, d.Rating, d.Rating5Based,
		d.DurationSecs, d.Duration, d.YoutubeTrailer, d.TMDBID, d.KinopoiskURL,
		d.EpisodeRunTime, d.Actors, d.Description, d.Age, d.MPAARating,
		d.RatingCountKinopoisk, d.Country, d.BackdropPath, d.Bitrate, d.Video, d.Audio,
		d.ContainerExtension)
	if err != nil {
		return fmt.Errorf("upsert film detail %d: %w", d.StreamID, err)
	}
	return nil
}

// HasFilmDetail reports whether a detail row exists for the stream id.
func HasFilmDetail(ctx context.Context, q Querier, streamID int) (bool, error) {
	return exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM film_details WHERE stream_id = ?)`, streamID)
}

// GetFilmDetail returns one film's detail row, or nil when absent.
func GetFilmDetail(ctx context.Context, q Querier, streamID int) (*FilmDetail, error) {
	var d FilmDetail
	err := q.QueryRowContext(ctx,
		`SELECT id, `+filmDetailCols+` FROM film_details WHERE stream_id = ?`, streamID).
		Scan(&d.ID, &d.StreamID, &d.Name, &d.OName, &d.StreamIcon, &d.CoverBig,
			&d.MovieImage, &d.Plot, &d.Cast, &d.Director, &d.Genre, &d.ReleaseDate,
			&d.Rating, &d.Rating5Based, &d.DurationSecs, &d.Duration, &d.YoutubeTrailer,
			&d.TMDBID, &d.KinopoiskURL, &d.EpisodeRunTime, &d.Actors, &d.Description,
			&d.Age, &d.MPAARating, &d.RatingCountKinopoisk, &d.Country, &d.BackdropPath,
			&d.Bitrate, &d.Video, &d.Audio, &d.ContainerExtension)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get film detail %d: %w", streamID, err)
	}
	return &d, nil
}
