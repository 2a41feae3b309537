// Package safeurl guards the two places URLs cross a trust boundary:
// provider-supplied artwork URLs before we download them, and
// credential-bearing API URLs before they reach a log line.
package safeurl

import "net/url"

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// Redact masks the username and password query parameters of a
// player_api-style URL so it is safe to log. Userinfo in the authority
// is masked too; unparseable input is replaced entirely rather than
// leaked as-is.
func Redact(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	q := parsed.Query()
	changed := false
	for _, key := range []string{"username", "password"} {
		if q.Has(key) {
			q.Set(key, "xxx")
			changed = true
		}
	}
	if changed {
		parsed.RawQuery = q.Encode()
	}
	if parsed.User != nil {
		parsed.User = url.User("xxx")
	}
	return parsed.String()
}
