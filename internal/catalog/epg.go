package catalog

import (
	"context"
	"strconv"

	"github.com/telecast/telecast/internal/store"
)

// EPGItem is one programme listing with its base64 text decoded. The
// JSON tags match the provider's field names so the /epg endpoint
// serves the shape clients already expect.
type EPGItem struct {
	ID             string `json:"id"`
	EPGID          string `json:"epg_id"`
	Title          string `json:"title"`
	Lang           string `json:"lang"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Description    string `json:"description"`
	ChannelID      string `json:"channel_id"`
	StartTimestamp int64  `json:"start_timestamp"`
	StopTimestamp  int64  `json:"stop_timestamp"`
	NowPlaying     bool   `json:"now_playing"`
	HasArchive     bool   `json:"has_archive"`
}

// EPG returns the programme guide for one stream, refreshing it when
// stale. Text fields are stored base64-encoded as received and decoded
// here; undecodable text passes through rather than erroring.
func (s *Service) EPG(ctx context.Context, streamID int, force bool) ([]EPGItem, Freshness, error) {
	key := "epg_" + strconv.Itoa(streamID)
	fr, err := s.refreshOrRead(ctx, unit{
		key:      key,
		resource: "epg",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			return store.HasEPG(ctx, q, streamID)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			list, err := s.Client.EPG(ctx, streamID)
			if err != nil {
				return nil, err
			}
			rows := epgRows(streamID, list)
			return func(ctx context.Context, q store.Querier) error {
				return store.ReplaceEPG(ctx, q, streamID, rows)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	rows, err := store.ListEPG(ctx, s.DB, streamID)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: key, Err: err}
	}
	out := make([]EPGItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, EPGItem{
			ID:             strconv.FormatInt(row.ID, 10),
			EPGID:          row.EPGID,
			Title:          decodeBase64Text(row.Title),
			Lang:           row.Lang,
			Start:          row.Start,
			End:            row.End,
			Description:    decodeBase64Text(row.Description),
			ChannelID:      row.ChannelID,
			StartTimestamp: row.StartTimestamp,
			StopTimestamp:  row.StopTimestamp,
			NowPlaying:     row.NowPlaying,
			HasArchive:     row.HasArchive,
		})
	}
	return out, fr, nil
}
