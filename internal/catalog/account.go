package catalog

import (
	"context"

	"github.com/telecast/telecast/internal/store"
)

// Account is the provider account snapshot shown on the home page.
type Account struct {
	User   AccountUser
	Server AccountServer
}

// AccountUser mirrors the provider's user_info block.
type AccountUser struct {
	Username             string
	Password             string
	Message              string
	Auth                 int
	Status               string
	ExpDate              string
	IsTrial              string
	ActiveCons           string
	CreatedAt            string
	MaxConnections       string
	AllowedOutputFormats []string
}

// AccountServer mirrors the provider's server_info block.
type AccountServer struct {
	URL          string
	Port         string
	HTTPSPort    string
	Protocol     string
	RTMPPort     string
	Timezone     string
	TimestampNow int64
	TimeNow      string
}

// AccountInfo returns the provider account snapshot, refreshing it
// when stale or missing.
func (s *Service) AccountInfo(ctx context.Context, force bool) (*Account, Freshness, error) {
	fr, err := s.refreshOrRead(ctx, unit{
		key:      "user_info",
		resource: "account",
		present: func(ctx context.Context, q store.Querier) (bool, error) {
			return store.HasAccountProfile(ctx, q)
		},
		fetch: func(ctx context.Context) (applyFunc, error) {
			info, err := s.Client.AccountInfo(ctx)
			if err != nil {
				return nil, err
			}
			row := accountRow(info)
			return func(ctx context.Context, q store.Querier) error {
				return store.UpsertAccountProfile(ctx, q, &row)
			}, nil
		},
	}, force)
	if err != nil {
		return nil, Freshness{}, err
	}

	row, err := store.GetAccountProfile(ctx, s.DB)
	if err != nil {
		return nil, Freshness{}, &StoreError{Op: "user_info", Err: err}
	}
	if row == nil {
		return nil, Freshness{}, &NotFoundError{Kind: "account profile", ID: "singleton"}
	}
	return shapeAccount(row), fr, nil
}

func shapeAccount(row *store.AccountProfile) *Account {
	return &Account{
		User: AccountUser{
			Username:             row.Username,
			Password:             row.Password,
			Message:              row.Message,
			Auth:                 row.Auth,
			Status:               row.Status,
			ExpDate:              row.ExpDate,
			IsTrial:              row.IsTrial,
			ActiveCons:           row.ActiveCons,
			CreatedAt:            row.CreatedAt,
			MaxConnections:       row.MaxConnections,
			AllowedOutputFormats: decodeStringList(row.AllowedOutputFormats),
		},
		Server: AccountServer{
			URL:          row.ServerURL,
			Port:         row.ServerPort,
			HTTPSPort:    row.ServerHTTPSPort,
			Protocol:     row.ServerProtocol,
			RTMPPort:     row.ServerRTMPPort,
			Timezone:     row.ServerTimezone,
			TimestampNow: row.ServerTimestampNow,
			TimeNow:      row.ServerTimeNow,
		},
	}
}
