// Package health checks that the configured provider answers before a
// refresh is attempted or the server reports itself ready.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/telecast/telecast/internal/httpclient"
	"github.com/telecast/telecast/internal/safeurl"
)

// CheckProvider performs the bare player_api.php authentication call
// and reports whether the provider answered 200. The body is drained
// and discarded; errors never carry credentials.
func CheckProvider(ctx context.Context, baseURL, username, password string) error {
	if baseURL == "" {
		return fmt.Errorf("no provider URL configured")
	}
	checkURL := baseURL + "/player_api.php?username=" + url.QueryEscape(username) +
		"&password=" + url.QueryEscape(password)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return fmt.Errorf("provider check %s: %w", safeurl.Redact(checkURL), err)
	}
	resp, err := httpclient.WithTimeout(15 * time.Second).Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("provider unreachable: %s: %w", safeurl.Redact(uerr.URL), uerr.Err)
		}
		return fmt.Errorf("provider unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
	}
	return nil
}
