package catalog

import (
	"context"

	"github.com/telecast/telecast/internal/store"
)

// Stats is the statistics page payload: local row counts.
type Stats struct {
	Films        int
	Series       int
	LiveChannels int
	Users        int
}

// Stats counts the stored catalog rows and login accounts. It never
// refreshes anything.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.Films, err = store.CountFilmStreams(ctx, s.DB); err != nil {
		return Stats{}, &StoreError{Op: "stats", Err: err}
	}
	if st.Series, err = store.CountSeries(ctx, s.DB); err != nil {
		return Stats{}, &StoreError{Op: "stats", Err: err}
	}
	if st.LiveChannels, err = store.CountLiveChannels(ctx, s.DB); err != nil {
		return Stats{}, &StoreError{Op: "stats", Err: err}
	}
	if st.Users, err = store.CountUsers(ctx, s.DB); err != nil {
		return Stats{}, &StoreError{Op: "stats", Err: err}
	}
	return st, nil
}
