// Package catalog keeps provider catalog data fresh in the local store
// and shapes it for display. Every operation follows the same cycle:
// when the stored copy is stale or absent it is refetched from the
// provider and swapped into the store in one transaction, then the
// operation answers from the store.
package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/telecast/telecast/internal/metrics"
	"github.com/telecast/telecast/internal/store"
	"github.com/telecast/telecast/internal/xtream"
)

// DefaultTTL is how long cached catalog data stays fresh.
const DefaultTTL = 24 * time.Hour

// Freshness reports when a resource was last refreshed and when a read
// past that point will refresh it again.
type Freshness struct {
	FetchedAt time.Time
	ExpiresAt time.Time
}

// ArtResolver maps remote artwork URLs to locally cached web paths.
// Implementations never fail; unknown or broken URLs map to "".
type ArtResolver interface {
	// IconPath returns the cached path for url, downloading it first
	// when needed.
	IconPath(ctx context.Context, url string) string
	// CachedIconPath returns the cached path for url, or "" when the
	// file has not been downloaded yet. It never touches the network.
	CachedIconPath(url string) string
	// BackdropPath caches the first entry of a backdrop list.
	BackdropPath(ctx context.Context, urls []string) string
}

// Service answers catalog reads from the local store, refreshing from
// the provider when the stored copy is stale. One instance is shared
// by all requests.
type Service struct {
	DB     *sql.DB
	Client *xtream.Client
	Art    ArtResolver      // optional; nil leaves artwork paths empty
	TTL    time.Duration    // zero means DefaultTTL
	Now    func() time.Time // zero means time.Now
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// applyFunc installs fetched rows against one Querier, inside the
// refresh transaction.
type applyFunc func(context.Context, store.Querier) error

// unit is one refreshable resource: a freshness key, an optional
// presence probe (absent rows force a refresh), and a fetch that
// returns the store mutation to run.
type unit struct {
	key      string // freshness key, may embed a category/entity id
	resource string // metric label, one per resource family
	present  func(ctx context.Context, q store.Querier) (bool, error)
	fetch    func(ctx context.Context) (applyFunc, error)
}

// refreshOrRead brings one resource up to date and returns its
// freshness window. The provider fetch happens before the transaction
// opens; the row swap and the freshness touch commit together or not
// at all, so a failed refresh leaves the previous rows readable.
func (s *Service) refreshOrRead(ctx context.Context, u unit, force bool) (Freshness, error) {
	now := s.now()

	stale := force
	if !stale {
		st, err := store.IsStale(ctx, s.DB, u.key, s.ttl(), now)
		if err != nil {
			return Freshness{}, &StoreError{Op: u.key, Err: err}
		}
		stale = st
	}
	if !stale && u.present != nil {
		have, err := u.present(ctx, s.DB)
		if err != nil {
			return Freshness{}, &StoreError{Op: u.key, Err: err}
		}
		stale = !have
	}

	if stale {
		apply, err := u.fetch(ctx)
		if err != nil {
			metrics.Refreshes.WithLabelValues(u.resource, "fetch_error").Inc()
			return Freshness{}, err
		}
		if err := s.swap(ctx, u.key, apply, now); err != nil {
			metrics.Refreshes.WithLabelValues(u.resource, "store_error").Inc()
			return Freshness{}, err
		}
		metrics.Refreshes.WithLabelValues(u.resource, "ok").Inc()
	}

	fetched, ok, err := store.LastRefresh(ctx, s.DB, u.key)
	if err != nil {
		return Freshness{}, &StoreError{Op: u.key, Err: err}
	}
	if !ok {
		fetched = now
	}
	return Freshness{FetchedAt: fetched, ExpiresAt: fetched.Add(s.ttl())}, nil
}

// swap runs apply and the freshness touch in one transaction.
func (s *Service) swap(ctx context.Context, key string, apply applyFunc, now time.Time) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: key, Err: err}
	}
	defer tx.Rollback()

	if err := apply(ctx, tx); err != nil {
		return &StoreError{Op: key, Err: err}
	}
	if err := store.Touch(ctx, tx, key, now); err != nil {
		return &StoreError{Op: key, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: key, Err: err}
	}
	return nil
}

func (s *Service) iconPath(ctx context.Context, url string) string {
	if s.Art == nil || url == "" {
		return ""
	}
	return s.Art.IconPath(ctx, url)
}

func (s *Service) cachedIconPath(url string) string {
	if s.Art == nil || url == "" {
		return ""
	}
	return s.Art.CachedIconPath(url)
}

func (s *Service) backdropPath(ctx context.Context, urls []string) string {
	if s.Art == nil || len(urls) == 0 {
		return ""
	}
	return s.Art.BackdropPath(ctx, urls)
}
