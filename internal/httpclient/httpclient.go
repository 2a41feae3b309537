package httpclient

import (
	"net/http"
	"time"
)

// UserAgent identifies telecast to the provider panel and image hosts.
const UserAgent = "telecast/1.0"

const (
	defaultTimeout  = 30 * time.Second
	idleConnTimeout = 90 * time.Second
)

// Two traffic shapes share this client: a handful of large catalog GETs
// against the provider panel and many small artwork downloads spread across
// image hosts.
var defaultClient = &http.Client{
	Timeout: defaultTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     idleConnTimeout,
		ForceAttemptHTTP2:   true,
	},
}

// Default returns the shared client used by the xtream client and the artwork cache.
func Default() *http.Client { return defaultClient }

// WithTimeout returns a client sharing Default's transport settings with a
// different overall timeout, for one-off calls like the startup health probe.
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{Timeout: timeout, Transport: t.Clone()}
}
