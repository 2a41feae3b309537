package catalog

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"

	"github.com/telecast/telecast/internal/store"
)

// Series is a show shaped for the series list and detail pages.
type Series struct {
	SeriesID       int
	Name           string
	Cover          string
	CachedCover    string
	Plot           string
	Cast           string
	Director       string
	Genre          string
	ReleaseDate    string
	LastModified   string
	Rating         string
	Rating5        float64
	Backdrops      []string
	CachedBackdrop string
	Trailer        string
	EpisodeRunTime string
	CategoryID     string
}

// Season holds one season's episodes, ordered by episode number.
type Season struct {
	Number   int
	Episodes []Episode
}

// Episode is one playable episode. ID is the provider's episode stream
// id; playback URLs are built from it.
type Episode struct {
	ID         string
	Season     int
	EpisodeNum int
	Title      string
	Extension  string
	Plot       string
	Duration   string
	Rating     float64
	PlayLink   string
}

// SeriesDetail is the detail page payload: the series row plus its
// episodes regrouped into seasons.
type SeriesDetail struct {
	Info    Series
	Seasons []Season
}

func (s *Service) seriesPlayLink(episodeID, ext string) string {
	return fmt.Sprintf("%s/series/%s/%s/%s.%s",
		s.Client.BaseURL, s.Client.Username, s.Client.Password, episodeID, ext)
}

func (s *Service) shapeSeries(ctx context.Context, row store.Series, downloadCover bool) Series {
	cover := ""
	if downloadCover {
		cover = s.iconPath(ctx, row.Cover)
	} else {
		cover = s.cachedIconPath(row.Cover)
	}
	return Series{
		SeriesID:       row.SeriesID,
		Name:           row.Name,
		Cover:          row.Cover,
		CachedCover:    cover,
		Plot:           row.Plot,
		Cast:           row.Cast,
		Director:       row.Director,
		Genre:          row.Genre,
		ReleaseDate:    row.ReleaseDate,
		LastModified:   row.LastModified,
		Rating:         row.Rating,
		Rating5:        row.Rating5Based,
		Backdrops:      decodeStringList(row.BackdropPath),
		Trailer:        url.QueryEscape(row.YoutubeTrailer),
		EpisodeRunTime: row.EpisodeRunTime,
		CategoryID:     row.CategoryID,
	}
}

// SeriesCategories returns the series category list, refreshing it
// from the provider when stale.
func (s *Service) SeriesCategories(ctx context.Context, force bool) ([]Category, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "series_categories",
		resource: "series_categories",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			return store.HasCategories(ctx, q, store.SeriesCategoryKind)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			cats, err := s.Client.SeriesCategories(ctx)
			if err != nil {
				return nil, err
			}
			rows := categoryRows(cats)
			return func(ctx context.Context, q store.Querier) error {
				return store.ReplaceCategories(ctx, q, store.SeriesCategoryKind, rows)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}
	return s.readCategories(ctx, store.SeriesCategoryKind, fr)
}

// SeriesByCategory returns the series of one category.
func (s *Service) SeriesByCategory(ctx context.Context, categoryID string, force bool) ([]Series, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "series_" + categoryID,
		resource: "series_by_category",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			return store.HasSeriesByCategory(ctx, q, categoryID)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			list, err := s.Client.SeriesByCategory(ctx, categoryID)
			if err != nil {
				return nil, err
			}
			rows := seriesRows(list)
			for i := range rows {
				rows[i].CategoryID = categoryID
			}
			return func(ctx context.Context, q store.Querier) error {
				return store.ReplaceSeriesByCategory(ctx, q, categoryID, rows)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	rows, err := store.ListSeriesByCategory(ctx, s.DB, categoryID)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: "series_" + categoryID, Err: err}
	}
	out := make([]Series, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shapeSeries(ctx, row, true))
	}
	return out, fr, nil
}

// AllSeries returns every series across categories. Covers come from
// the local cache only; the refresh-all prewarm fills it.
func (s *Service) AllSeries(ctx context.Context, force bool) ([]Series, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "all_series",
		resource: "all_series",
		present:  store.HasAnySeries,
		fetch: func(ctx context.Context) (applyFunc, error) {
			list, err := s.Client.AllSeries(ctx)
			if err != nil {
				return nil, err
			}
			rows := seriesRows(list)
			log.Printf("catalog: fetched %d series", len(rows))
			return func(ctx context.Context, q store.Querier) error {
				if err := store.ReplaceAllSeries(ctx, q, rows); err != nil {
					return err
				}
				n, err := store.CountSeries(ctx, q)
				if err != nil {
					return err
				}
				if n != len(rows) {
					log.Printf("catalog: series count mismatch after refresh: inserted %d, counted %d", len(rows), n)
				}
				return nil
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	rows, err := store.ListAllSeries(ctx, s.DB)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: "all_series", Err: err}
	}
	out := make([]Series, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shapeSeries(ctx, row, false))
	}
	return out, fr, nil
}

// SeriesDetail returns one series with its episodes grouped by season,
// refreshing when stale or when the series row is missing. The refresh
// replaces the episode rows and folds the provider's updated info back
// into the series row; a series the provider does not know yields
// NotFoundError.
func (s *Service) SeriesDetail(ctx context.Context, seriesID int, force bool) (*SeriesDetail, Freshness, error) {
	key := "series_streams_" + strconv.Itoa(seriesID)
	fr, err := s.refreshOrRead(ctx, unit{
		key:      key,
		resource: "series_detail",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			ok, err := store.HasSeries(ctx, q, seriesID)
			if err != nil || !ok {
				return false, err
			}
			return store.HasEpisodes(ctx, q, seriesID)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			info, err := s.Client.SeriesInfo(ctx, seriesID)
			if err != nil {
				return nil, err
			}
			episodes := episodeRows(seriesID, info.Episodes)
			upd := seriesRow(info.Info)
			upd.SeriesID = seriesID
			return func(ctx context.Context, q store.Querier) error {
				if err := store.ReplaceEpisodes(ctx, q, seriesID, episodes); err != nil {
					return err
				}
				return store.UpdateSeriesInfo(ctx, q, &upd)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	row, err := store.GetSeries(ctx, s.DB, seriesID)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: key, Err: err}
	}
	if row == nil {
		return nil, Freshness{}, &NotFoundError{Kind: "series", ID: strconv.Itoa(seriesID)}
	}

	episodes, err := store.ListEpisodes(ctx, s.DB, seriesID)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: key, Err: err}
	}

	info := s.shapeSeries(ctx, *row, true)
	info.CachedBackdrop = s.backdropPath(ctx, info.Backdrops)
	return &SeriesDetail{Info: info, Seasons: s.groupSeasons(episodes)}, fr, nil
}

// groupSeasons regroups flat episode rows into seasons ordered by
// number. Row order within a season is already season, episode_num.
func (s *Service) groupSeasons(rows []store.SeriesEpisode) []Season {
	bySeason := make(map[int][]Episode)
	for _, row := range rows {
		bySeason[row.Season] = append(bySeason[row.Season], s.shapeEpisode(row))
	}
	numbers := make([]int, 0, len(bySeason))
	for n := range bySeason {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	seasons := make([]Season, 0, len(numbers))
	for _, n := range numbers {
		seasons = append(seasons, Season{Number: n, Episodes: bySeason[n]})
	}
	return seasons
}

// FindEpisode returns one episode of a series by provider episode id,
// refreshing the series first when stale. Missing episodes yield
// NotFoundError.
func (s *Service) FindEpisode(ctx context.Context, seriesID int, episodeID string) (*SeriesDetail, *Episode, error) {
	detail, _, err := s.SeriesDetail(ctx, seriesID, false)
	if err != nil {
		return nil, nil, err
	}
	row, err := store.GetEpisode(ctx, s.DB, seriesID, episodeID)
	if err != nil {
		return nil, nil, &StoreError{Op: "episode " + episodeID, Err: err}
	}
	if row == nil {
		return nil, nil, &NotFoundError{Kind: "episode", ID: episodeID}
	}
	ep := s.shapeEpisode(*row)
	return detail, &ep, nil
}

func (s *Service) shapeEpisode(row store.SeriesEpisode) Episode {
	return Episode{
		ID:         row.EpisodeID,
		Season:     row.Season,
		EpisodeNum: row.EpisodeNum,
		Title:      row.Title,
		Extension:  row.ContainerExtension,
		Plot:       row.Plot,
		Duration:   row.Duration,
		Rating:     row.Rating,
		PlayLink:   s.seriesPlayLink(row.EpisodeID, row.ContainerExtension),
	}
}

// SearchSeries matches series by name or plot.
func (s *Service) SearchSeries(ctx context.Context, term string) ([]Series, error) {
	rows, err := store.SearchSeries(ctx, s.DB, term)
	if err != nil {
		return nil, &StoreError{Op: "search series", Err: err}
	}
	out := make([]Series, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shapeSeries(ctx, row, false))
	}
	return out, nil
}
