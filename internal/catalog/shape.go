package catalog

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const displayTimeLayout = "2006-01-02 15:04:05"

// FormatTime renders a timestamp the way the pages display it.
func FormatTime(t time.Time) string {
	return t.Format(displayTimeLayout)
}

// RefreshIn renders the time left until expires as the "X hours and
// Y minutes" string shown under every catalog page.
func RefreshIn(expires, now time.Time) string {
	d := expires.Sub(now)
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%d hours and %d minutes", h, m)
}

// epochString renders provider "added" epoch-second strings as display
// timestamps. Unparseable input renders as "".
func epochString(epoch string) string {
	secs, err := strconv.ParseInt(strings.TrimSpace(epoch), 10, 64)
	if err != nil || secs <= 0 {
		return ""
	}
	return time.Unix(secs, 0).UTC().Format(displayTimeLayout)
}

// decodeBase64Text decodes provider EPG text. Providers send standard
// base64, sometimes unpadded; anything undecodable passes through
// as-is rather than erroring, with invalid UTF-8 replaced.
func decodeBase64Text(s string) string {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(s)
	}
	if err != nil {
		return strings.ToValidUTF8(s, "�")
	}
	return strings.ToValidUTF8(string(raw), "�")
}

// decodeStringList parses a JSON-encoded string list column. A bare
// string or garbage yields at most the raw value.
func decodeStringList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
		return nil
	}
	return []string{s}
}

// Category is a category shaped for the listing pages.
type Category struct {
	CategoryID string
	Name       string
	ParentID   int
}
