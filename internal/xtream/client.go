// Package xtream is the client for an Xtream Codes style player_api.php
// endpoint. One method per provider action; no retries and no pacing —
// callers decide when to fetch.
package xtream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/telecast/telecast/internal/httpclient"
	"github.com/telecast/telecast/internal/metrics"
)

// Client talks to one provider account.
type Client struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client
}

// New returns a client on the shared HTTP client.
func New(baseURL, username, password string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Username:   username,
		Password:   password,
		HTTPClient: httpclient.Default(),
	}
}

// AccountInfo performs the bare authentication call.
func (c *Client) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	var out AccountInfo
	if err := c.get(ctx, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LiveCategories fetches get_live_categories.
func (c *Client) LiveCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := c.get(ctx, "get_live_categories", nil, &out)
	return out, err
}

// LiveStreams fetches get_live_streams for one category.
func (c *Client) LiveStreams(ctx context.Context, categoryID string) ([]LiveStream, error) {
	var out []LiveStream
	err := c.get(ctx, "get_live_streams", url.Values{"category_id": {categoryID}}, &out)
	return out, err
}

// AllLiveStreams fetches the full get_live_streams catalog.
func (c *Client) AllLiveStreams(ctx context.Context) ([]LiveStream, error) {
	var out []LiveStream
	err := c.get(ctx, "get_live_streams", nil, &out)
	return out, err
}

// SeriesCategories fetches get_series_categories.
func (c *Client) SeriesCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := c.get(ctx, "get_series_categories", nil, &out)
	return out, err
}

// SeriesByCategory fetches get_series for one category.
func (c *Client) SeriesByCategory(ctx context.Context, categoryID string) ([]Series, error) {
	var out []Series
	err := c.get(ctx, "get_series", url.Values{"category_id": {categoryID}}, &out)
	return out, err
}

// AllSeries fetches the full get_series catalog.
func (c *Client) AllSeries(ctx context.Context) ([]Series, error) {
	var out []Series
	err := c.get(ctx, "get_series", nil, &out)
	return out, err
}

// SeriesInfo fetches get_series_info for one series.
func (c *Client) SeriesInfo(ctx context.Context, seriesID int) (*SeriesInfo, error) {
	var out SeriesInfo
	if err := c.get(ctx, "get_series_info", url.Values{"series_id": {strconv.Itoa(seriesID)}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VODCategories fetches get_vod_categories.
func (c *Client) VODCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := c.get(ctx, "get_vod_categories", nil, &out)
	return out, err
}

// VODStreams fetches get_vod_streams for one category.
func (c *Client) VODStreams(ctx context.Context, categoryID string) ([]FilmStream, error) {
	var out []FilmStream
	err := c.get(ctx, "get_vod_streams", url.Values{"category_id": {categoryID}}, &out)
	return out, err
}

// AllVODStreams fetches the full get_vod_streams catalog.
func (c *Client) AllVODStreams(ctx context.Context) ([]FilmStream, error) {
	var out []FilmStream
	err := c.get(ctx, "get_vod_streams", nil, &out)
	return out, err
}

// VODInfo fetches get_vod_info for one film.
func (c *Client) VODInfo(ctx context.Context, vodID int) (*VODInfo, error) {
	var out VODInfo
	if err := c.get(ctx, "get_vod_info", url.Values{"vod_id": {strconv.Itoa(vodID)}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EPG fetches get_simple_data_table for one stream and unwraps the
// epg_listings envelope.
func (c *Client) EPG(ctx context.Context, streamID int) ([]EPGListing, error) {
	var out struct {
		Listings []EPGListing `json:"epg_listings"`
	}
	err := c.get(ctx, "get_simple_data_table", url.Values{"stream_id": {strconv.Itoa(streamID)}}, &out)
	return out.Listings, err
}

// apiURL assembles the player_api.php URL (credentials query-escaped).
func (c *Client) apiURL(action string, extra url.Values) string {
	u := strings.TrimSuffix(c.BaseURL, "/") + "/player_api.php?username=" +
		url.QueryEscape(c.Username) + "&password=" + url.QueryEscape(c.Password)
	if action != "" {
		u += "&action=" + action
	}
	if len(extra) > 0 {
		u += "&" + extra.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, action string, extra url.Values, out any) error {
	label := action
	if label == "" {
		label = "account_info"
	}
	err := c.doGet(ctx, action, extra, out)
	switch {
	case err == nil:
		metrics.UpstreamFetches.WithLabelValues(label, "ok").Inc()
	case isTransport(err):
		metrics.UpstreamFetches.WithLabelValues(label, "transport_error").Inc()
	default:
		metrics.UpstreamFetches.WithLabelValues(label, "format_error").Inc()
	}
	return err
}

func (c *Client) doGet(ctx context.Context, action string, extra url.Values, out any) error {
	label := action
	if label == "" {
		label = "account_info"
	}
	reqURL := c.apiURL(action, extra)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &TransportError{Action: label, Err: err}
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)

	client := c.HTTPClient
	if client == nil {
		client = httpclient.Default()
	}
	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Action: label, Err: redactErr(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &FormatError{Action: label, Status: resp.StatusCode}
	}
	body, err := httpclient.DecodeBody(resp)
	if err != nil {
		return &FormatError{Action: label, Status: resp.StatusCode, Err: err}
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return &TransportError{Action: label, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &FormatError{Action: label, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func isTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// redactErr strips request URLs from transport errors. url.Error
// carries the full URL, credentials included.
func redactErr(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
