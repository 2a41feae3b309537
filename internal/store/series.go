package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const seriesCols = `series_id, name, cover, plot, "cast", director, genre, release_date,
	last_modified, rating, rating_5based, backdrop_path, youtube_trailer,
	episode_run_time, category_id`

func insertSeries(ctx context.Context, q Querier, rows []Series) error {
	return batched(rows, func(batch []Series) error {
		query := `INSERT OR REPLACE INTO series (` + seriesCols + `) VALUES ` +
			valuesClause(len(batch), 15)
		args := make([]any, 0, len(batch)*15)
		for _, s := range batch {
			args = append(args, s.SeriesID, s.Name, s.Cover, s.Plot, s.Cast, s.Director,
				s.Genre, s.ReleaseDate, s.LastModified, s.Rating, s.Rating5Based,
				s.BackdropPath, s.YoutubeTrailer, s.EpisodeRunTime, s.CategoryID)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert series: %w", err)
		}
		return nil
	})
}

// ReplaceSeriesByCategory swaps one category's series rows. series_id
// is unique table-wide, so a series reported under a new category
// supersedes its row under the old one.
func ReplaceSeriesByCategory(ctx context.Context, q Querier, categoryID string, rows []Series) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM series WHERE category_id = ?`, categoryID); err != nil {
		return fmt.Errorf("clear series %s: %w", categoryID, err)
	}
	return insertSeries(ctx, q, rows)
}

// ReplaceAllSeries swaps the whole series table.
func ReplaceAllSeries(ctx context.Context, q Querier, rows []Series) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM series`); err != nil {
		return fmt.Errorf("clear series: %w", err)
	}
	return insertSeries(ctx, q, rows)
}

// UpdateSeriesInfo rewrites one series row's detail fields in place,
// keeping its category assignment. No-op when the row is absent.
func UpdateSeriesInfo(ctx context.Context, q Querier, s *Series) error {
	_, err := q.ExecContext(ctx, `
		UPDATE series SET name = ?, cover = ?, plot = ?, "cast" = ?, director = ?,
			genre = ?, release_date = ?, last_modified = ?, rating = ?,
			rating_5based = ?, backdrop_path = ?, youtube_trailer = ?,
			episode_run_time = ?
		WHERE series_id = ?`,
		s.Name, s.Cover, s.Plot, s.Cast, s.Director, s.Genre, s.ReleaseDate,
		s.LastModified, s.Rating, s.Rating5Based, s.BackdropPath, s.YoutubeTrailer,
		s.EpisodeRunTime, s.SeriesID)
	if err != nil {
		return fmt.Errorf("update series %d: %w", s.SeriesID, err)
	}
	return nil
}

// HasSeriesByCategory reports whether the category has any series.
func HasSeriesByCategory(ctx context.Context, q Querier, categoryID string) (bool, error) {
	return exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM series WHERE category_id = ?)`, categoryID)
}

// HasAnySeries reports whether the table has any rows at all.
func HasAnySeries(ctx context.Context, q Querier) (bool, error) {
	return exists(ctx, q, `SELECT EXISTS(SELECT 1 FROM series)`)
}

// HasSeries reports whether one series row exists.
func HasSeries(ctx context.Context, q Querier, seriesID int) (bool, error) {
	return exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM series WHERE series_id = ?)`, seriesID)
}

func scanSeries(rows *sql.Rows) ([]Series, error) {
	defer rows.Close()
	var out []Series
	for rows.Next() {
		var s Series
		if err := rows.Scan(&s.ID, &s.SeriesID, &s.Name, &s.Cover, &s.Plot, &s.Cast,
			&s.Director, &s.Genre, &s.ReleaseDate, &s.LastModified, &s.Rating,
			&s.Rating5Based, &s.BackdropPath, &s.YoutubeTrailer, &s.EpisodeRunTime,
			&s.CategoryID); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSeriesByCategory returns one category's series in insertion order.
func ListSeriesByCategory(ctx context.Context, q Querier, categoryID string) ([]Series, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+seriesCols+` FROM series WHERE category_id = ? ORDER BY id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list series %s: %w", categoryID, err)
	}
	return scanSeries(rows)
}

// ListAllSeries returns the whole series table in insertion order.
func ListAllSeries(ctx context.Context, q Querier) ([]Series, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, `+seriesCols+` FROM series ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return scanSeries(rows)
}

// GetSeries returns one series row by provider id, or nil when absent.
func GetSeries(ctx context.Context, q Querier, seriesID int) (*Series, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+seriesCols+` FROM series WHERE series_id = ?`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("get series %d: %w", seriesID, err)
	}
	out, err := scanSeries(rows)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// SearchSeries matches name or plot, case-insensitively.
func SearchSeries(ctx context.Context, q Querier, term string) ([]Series, error) {
	pat := "%" + term + "%"
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+seriesCols+` FROM series WHERE name LIKE ? OR plot LIKE ? ORDER BY id`,
		pat, pat)
	if err != nil {
		return nil, fmt.Errorf("search series: %w", err)
	}
	return scanSeries(rows)
}

// CountSeries returns the series table's row count.
func CountSeries(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM series`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count series: %w", err)
	}
	return n, nil
}

const episodeCols = `series_id, season, episode_id, episode_num, title,
	container_extension, plot, duration, rating, info`

// ReplaceEpisodes swaps one series' episode rows.
func ReplaceEpisodes(ctx context.Context, q Querier, seriesID int, rows []SeriesEpisode) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM series_episodes WHERE series_id = ?`, seriesID); err != nil {
		return fmt.Errorf("clear episodes %d: %w", seriesID, err)
	}
	return batched(rows, func(batch []SeriesEpisode) error {
		query := `INSERT INTO series_episodes (` + episodeCols + `) VALUES ` +
			valuesClause(len(batch), 10)
		args := make([]any, 0, len(batch)*10)
		for _, e := range batch {
			args = append(args, e.SeriesID, e.Season, e.EpisodeID, e.EpisodeNum, e.Title,
				e.ContainerExtension, e.Plot, e.Duration, e.Rating, e.Info)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert episodes %d: %w", seriesID, err)
		}
		return nil
	})
}

// HasEpisodes reports whether a series has any episode rows.
func HasEpisodes(ctx context.Context, q Querier, seriesID int) (bool, error) {
	return exists(ctx, q,
		`SELECT EXISTS(SELECT 1 FROM series_episodes WHERE series_id = ?)`, seriesID)
}

// ListEpisodes returns a series' episodes ordered by season then number.
func ListEpisodes(ctx context.Context, q Querier, seriesID int) ([]SeriesEpisode, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+episodeCols+` FROM series_episodes
		 WHERE series_id = ? ORDER BY season, episode_num, id`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list episodes %d: %w", seriesID, err)
	}
	defer rows.Close()

	var out []SeriesEpisode
	for rows.Next() {
		var e SeriesEpisode
		if err := rows.Scan(&e.ID, &e.SeriesID, &e.Season, &e.EpisodeID, &e.EpisodeNum,
			&e.Title, &e.ContainerExtension, &e.Plot, &e.Duration, &e.Rating,
			&e.Info); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEpisode returns one episode of a series by provider episode id,
// or nil when absent.
func GetEpisode(ctx context.Context, q Querier, seriesID int, episodeID string) (*SeriesEpisode, error) {
	var e SeriesEpisode
	err := q.QueryRowContext(ctx,
		`SELECT id, `+episodeCols+` FROM series_episodes
		 WHERE series_id = ? AND episode_id = ?`, seriesID, episodeID).
		Scan(&e.ID, &e.SeriesID, &e.Season, &e.EpisodeID, &e.EpisodeNum, &e.Title,
			&e.ContainerExtension, &e.Plot, &e.Duration, &e.Rating, &e.Info)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode %d/%s: %w", seriesID, episodeID, err)
	}
	return &e, nil
}
