package catalog

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/telecast/telecast/internal/store"
)

// Film is a VOD stream shaped for the film list pages.
type Film struct {
	Num        int
	Name       string
	StreamType string
	StreamID   int
	Icon       string
	CachedIcon string
	Rating     string
	Rating5    float64
	Added      string
	AddedDate  string
	CategoryID string
	Extension  string
	PlayLink   string
}

// FilmDetail is the full VOD record shaped for the detail page.
type FilmDetail struct {
	StreamID       int
	Name           string
	OName          string
	MovieImage     string
	CoverBig       string
	Plot           string
	Cast           string
	Director       string
	Genre          string
	ReleaseDate    string
	Rating         string
	Rating5        float64
	DurationSecs   int
	Duration       string
	Trailer        string
	TMDBID         string
	KinopoiskURL   string
	EpisodeRunTime string
	Actors         string
	Description    string
	Age            string
	MPAARating     string
	KinopoiskVotes int
	Country        string
	Backdrops      []string
	CachedBackdrop string
	Bitrate        int
	Extension      string
	PlayLink       string
}

func (s *Service) moviePlayLink(streamID int, ext string) string {
	return fmt.Sprintf("%s/movie/%s/%s/%d.%s",
		s.Client.BaseURL, s.Client.Username, s.Client.Password, streamID, ext)
}

func (s *Service) shapeFilm(row store.FilmStream, cachedIcon string) Film {
	return Film{
		Num:        row.Num,
		Name:       row.Name,
		StreamType: row.StreamType,
		StreamID:   row.StreamID,
		Icon:       row.StreamIcon,
		CachedIcon: cachedIcon,
		Rating:     row.Rating,
		Rating5:    row.Rating5Based,
		Added:      row.Added,
		AddedDate:  epochString(row.Added),
		CategoryID: row.CategoryID,
		Extension:  row.ContainerExtension,
		PlayLink:   s.moviePlayLink(row.StreamID, row.ContainerExtension),
	}
}

// FilmCategories returns the film category list, refreshing it from
// the provider when stale.
func (s *Service) FilmCategories(ctx context.Context, force bool) ([]Category, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "film_categories",
		resource: "film_categories",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			return store.HasCategories(ctx, q, store.FilmCategoryKind)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			cats, err := s.Client.VODCategories(ctx)
			if err != nil {
				return nil, err
			}
			rows := categoryRows(cats)
			return func(ctx context.Context, q store.Querier) error {
				return store.ReplaceCategories(ctx, q, store.FilmCategoryKind, rows)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}
	return s.readCategories(ctx, store.FilmCategoryKind, fr)
}

// FilmStreams returns the films of one category.
func (s *Service) FilmStreams(ctx context.Context, categoryID string, force bool) ([]Film, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "film_streams_" + categoryID,
		resource: "film_streams",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			return store.HasFilmStreams(ctx, q, categoryID)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			list, err := s.Client.VODStreams(ctx, categoryID)
			if err != nil {
				return nil, err
			}
			rows := filmStreamRows(list)
			for i := range rows {
				rows[i].CategoryID = categoryID
			}
			return func(ctx context.Context, q store.Querier) error {
				return store.ReplaceFilmStreams(ctx, q, categoryID, rows)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	rows, err := store.ListFilmStreams(ctx, s.DB, categoryID)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: "film_streams_" + categoryID, Err: err}
	}
	out := make([]Film, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shapeFilm(row, s.iconPath(ctx, row.StreamIcon)))
	}
	return out, fr, nil
}

// AllFilms returns every film across categories. Icons come from the
// local cache only.
func (s *Service) AllFilms(ctx context.Context, force bool) ([]Film, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "all_films",
		resource: "all_films",
		present:  store.HasAnyFilmStreams,
		fetch: func(ctx context.Context) (applyFunc, error) {
			list, err := s.Client.AllVODStreams(ctx)
			if err != nil {
				return nil, err
			}
			rows := filmStreamRows(list)
			log.Printf("catalog: fetched %d films", len(rows))
			return func(ctx context.Context, q store.Querier) error {
				if err := store.ReplaceAllFilmStreams(ctx, q, rows); err != nil {
					return err
				}
				n, err := store.CountFilmStreams(ctx, q)
				if err != nil {
					return err
				}
				if n != len(rows) {
					log.Printf("catalog: film count mismatch after refresh: inserted %d, counted %d", len(rows), n)
				}
				return nil
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	rows, err := store.ListAllFilmStreams(ctx, s.DB)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: "all_films", Err: err}
	}
	out := make([]Film, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shapeFilm(row, s.cachedIconPath(row.StreamIcon)))
	}
	return out, fr, nil
}

// FilmInfo returns the full record for one film, refreshing it when
// stale or missing. A film unknown to the provider yields NotFoundError.
func (s *Service) FilmInfo(ctx context.Context, vodID int, force bool) (*FilmDetail, Freshness, error) {
	key := "film_details_" + strconv.Itoa(vodID)
	fr, err := s.refreshOrRead(ctx, unit{
		key:      key,
		resource: "film_detail",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			return store.HasFilmDetail(ctx, q, vodID)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			info, err := s.Client.VODInfo(ctx, vodID)
			if err != nil {
				return nil, err
			}
			row := filmDetailRow(vodID, info)
			return func(ctx context.Context, q store.Querier) error {
				return store.UpsertFilmDetail(ctx, q, &row)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	row, err := store.GetFilmDetail(ctx, s.DB, vodID)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: key, Err: err}
	}
	if row == nil {
		return nil, Freshness{}, &NotFoundError{Kind: "film", ID: strconv.Itoa(vodID)}
	}

	backdrops := decodeStringList(row.BackdropPath)
	return &FilmDetail{
		StreamID:       row.StreamID,
		Name:           row.Name,
		OName:          row.OName,
		MovieImage:     row.MovieImage,
		CoverBig:       row.CoverBig,
		Plot:           row.Plot,
		Cast:           row.Cast,
		Director:       row.Director,
		Genre:          row.Genre,
		ReleaseDate:    row.ReleaseDate,
		Rating:         row.Rating,
		Rating5:        row.Rating5Based,
		DurationSecs:   row.DurationSecs,
		Duration:       row.Duration,
		Trailer:        url.QueryEscape(row.YoutubeTrailer),
		TMDBID:         row.TMDBID,
		KinopoiskURL:   row.KinopoiskURL,
		EpisodeRunTime: row.EpisodeRunTime,
		Actors:         row.Actors,
		Description:    row.Description,
		Age:            row.Age,
		MPAARating:     row.MPAARating,
		KinopoiskVotes: row.RatingCountKinopoisk,
		Country:        row.Country,
		Backdrops:      backdrops,
		CachedBackdrop: s.backdropPath(ctx, backdrops),
		Bitrate:        row.Bitrate,
		Extension:      row.ContainerExtension,
		PlayLink:       s.moviePlayLink(row.StreamID, row.ContainerExtension),
	}, fr, nil
}

// SearchFilms matches films by name or stream type.
func (s *Service) SearchFilms(ctx context.Context, term string) ([]Film, error) {
	rows, err := store.SearchFilmStreams(ctx, s.DB, term)
	if err != nil {
		return nil, &StoreError{Op: "search films", Err: err}
	}
	out := make([]Film, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shapeFilm(row, s.cachedIconPath(row.StreamIcon)))
	}
	return out, nil
}
