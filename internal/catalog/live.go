package catalog

import (
	"context"
	"fmt"
	"log"

	"github.com/telecast/telecast/internal/store"
)

// Channel is a live channel shaped for the streams pages.
type Channel struct {
	Num          int
	Name         string
	StreamType   string
	StreamID     int
	Icon         string
	CachedIcon   string
	EPGChannelID string
	Added        string
	AddedDate    string
	CategoryID   string
	TVArchive    int
	PlayLink     string
}

func (s *Service) livePlayLink(streamID int) string {
	return fmt.Sprintf("%s/live/%s/%s/%d.ts",
		s.Client.BaseURL, s.Client.Username, s.Client.Password, streamID)
}

func (s *Service) shapeChannel(row store.LiveChannel, cachedIcon string) Channel {
	return Channel{
		Num:          row.Num,
		Name:         row.Name,
		StreamType:   row.StreamType,
		StreamID:     row.StreamID,
		Icon:         row.StreamIcon,
		CachedIcon:   cachedIcon,
		EPGChannelID: row.EPGChannelID,
		Added:        row.Added,
		AddedDate:    epochString(row.Added),
		CategoryID:   row.CategoryID,
		TVArchive:    row.TVArchive,
		PlayLink:     s.livePlayLink(row.StreamID),
	}
}

// LiveCategories returns the live category list, refreshing it from
// the provider when stale.
func (s *Service) LiveCategories(ctx context.Context, force bool) ([]Category, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "live_categories",
		resource: "live_categories",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			return store.HasCategories(ctx, q, store.LiveCategoryKind)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			cats, err := s.Client.LiveCategories(ctx)
			if err != nil {
				return nil, err
			}
			rows := categoryRows(cats)
			return func(ctx context.Context, q store.Querier) error {
				return store.ReplaceCategories(ctx, q, store.LiveCategoryKind, rows)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}
	return s.readCategories(ctx, store.LiveCategoryKind, fr)
}

func (s *Service) readCategories(ctx context.Context, kind store.CategoryKind, fr Freshness) ([]Category, Freshness, error) {
	rows, err := store.ListCategories(ctx, s.DB, kind)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: string(kind), Err: err}
	}
	out := make([]Category, 0, len(rows))
	for _, c := range rows {
		out = append(out, Category{CategoryID: c.CategoryID, Name: c.Name, ParentID: c.ParentID})
	}
	return out, fr, nil
}

// LiveChannels returns the channels of one category. Icons are cached
// on first use, so a category's first render downloads them.
func (s *Service) LiveChannels(ctx context.Context, categoryID string, force bool) ([]Channel, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "live_channels_" + categoryID,
		resource: "live_channels",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			return store.HasLiveChannels(ctx, q, categoryID)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			list, err := s.Client.LiveStreams(ctx, categoryID)
			if err != nil {
				return nil, err
			}
			rows := liveChannelRows(list)
			for i := range rows {
				rows[i].CategoryID = categoryID
			}
			return func(ctx context.Context, q store.Querier) error {
				return store.ReplaceLiveChannels(ctx, q, categoryID, rows)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	rows, err := store.ListLiveChannels(ctx, s.DB, categoryID)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: "live_channels_" + categoryID, Err: err}
	}
	out := make([]Channel, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shapeChannel(row, s.iconPath(ctx, row.StreamIcon)))
	}
	return out, fr, nil
}

// AllLiveChannels returns every channel across categories. Icons are
// resolved only from the local cache; the refresh-all prewarm fills it.
func (s *Service) AllLiveChannels(ctx context.Context, force bool) ([]Channel, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "all_live_channels",
		resource: "all_live_channels",
		present:  store.HasAnyLiveChannels,
		fetch: func(ctx context.Context) (applyFunc, error) {
			list, err := s.Client.AllLiveStreams(ctx)
			if err != nil {
				return nil, err
			}
			rows := liveChannelRows(list)
			log.Printf("catalog: fetched %d live channels", len(rows))
			return func(ctx context.Context, q store.Querier) error {
				if err := store.ReplaceAllLiveChannels(ctx, q, rows); err != nil {
					return err
				}
				n, err := store.CountLiveChannels(ctx, q)
				if err != nil {
					return err
				}
				if n != len(rows) {
					log.Printf("catalog: live channel count mismatch after refresh: inserted %d, counted %d", len(rows), n)
				}
				return nil
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	rows, err := store.ListAllLiveChannels(ctx, s.DB)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: "all_live_channels", Err: err}
	}
	out := make([]Channel, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shapeChannel(row, s.cachedIconPath(row.StreamIcon)))
	}
	return out, fr, nil
}

// SearchChannels matches channels by name or stream type.
func (s *Service) SearchChannels(ctx context.Context, term string) ([]Channel, error) {
	rows, err := store.SearchLiveChannels(ctx, s.DB, term)
	if err != nil {
		return nil, &StoreError{Op: "search live channels", Err: err}
	}
	out := make([]Channel, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.shapeChannel(row, s.cachedIconPath(row.StreamIcon)))
	}
	return out, nil
}
