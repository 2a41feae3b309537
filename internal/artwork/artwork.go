// Package artwork caches remote channel icons, covers, and film
// backdrops on disk so pages serve them locally. Files are named by
// the MD5 of the source URL; a non-empty file on disk is never
// refetched.
package artwork

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/telecast/telecast/internal/catalog"
	"github.com/telecast/telecast/internal/httpclient"
	"github.com/telecast/telecast/internal/metrics"
	"github.com/telecast/telecast/internal/safeurl"
)

// WebPrefix is the URL prefix the web layer serves the cache dir under.
const WebPrefix = "/static/icons"

const (
	iconExt     = ".png"
	backdropExt = ".jpg"

	userAgent = "telecast/1.0"

	// DefaultWorkers bounds the prewarm pool.
	DefaultWorkers = 10

	progressEvery = 25
)

// Cache is a download-once artwork store rooted at Dir. Lookups map a
// URL to a local web path, fetching the file first when absent; every
// failure maps to "" so pages render without the image.
type Cache struct {
	Dir     string
	Client  *http.Client  // nil means httpclient.Default
	Limiter *rate.Limiter // optional; paces prewarm downloads
	Workers int           // prewarm pool size; zero means DefaultWorkers

	mu       sync.Mutex
	inFlight map[string]chan struct{} // file name -> done; dedupes concurrent downloads
}

var _ catalog.ArtResolver = (*Cache)(nil)

// New opens the cache directory, creating it when missing.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artwork dir: %w", err)
	}
	return &Cache{Dir: dir}, nil
}

// IconPath returns the cached web path for url, downloading the icon
// first when needed. Failures return "".
func (c *Cache) IconPath(ctx context.Context, url string) string {
	return c.ensure(ctx, url, iconExt)
}

// CachedIconPath returns the cached web path for url, or "" when the
// icon has not been downloaded yet. It never touches the network.
func (c *Cache) CachedIconPath(url string) string {
	if url == "" {
		return ""
	}
	name := hashName(url, iconExt)
	fi, err := os.Stat(filepath.Join(c.Dir, name))
	if err != nil || fi.Size() == 0 {
		return ""
	}
	return webPath(name)
}

// BackdropPath caches the first entry of a backdrop list.
func (c *Cache) BackdropPath(ctx context.Context, urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return c.ensure(ctx, urls[0], backdropExt)
}

// Prewarm fetches every icon in urls that is not already cached, on a
// bounded worker pool. Failures are logged and skipped; browsing fills
// the gaps later.
func (c *Cache) Prewarm(ctx context.Context, urls []string) {
	seen := make(map[string]struct{}, len(urls))
	misses := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if c.CachedIconPath(u) == "" {
			misses = append(misses, u)
		}
	}
	if len(misses) == 0 {
		return
	}

	workers := c.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log.Printf("artwork: prewarming %d icons on %d workers", len(misses), workers)

	var wg sync.WaitGroup
	var done, failed int32
	sem := make(chan struct{}, workers)
	for _, u := range misses {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if c.Limiter != nil {
				if err := c.Limiter.Wait(ctx); err != nil {
					return
				}
			}
			if c.ensure(ctx, u, iconExt) == "" {
				atomic.AddInt32(&failed, 1)
			}
			if n := atomic.AddInt32(&done, 1); n%progressEvery == 0 {
				log.Printf("artwork: prewarm %d/%d", n, len(misses))
			}
		}(u)
	}
	wg.Wait()
	ok := int(atomic.LoadInt32(&done)) - int(atomic.LoadInt32(&failed))
	log.Printf("artwork: prewarm finished: %d cached, %d failed", ok, atomic.LoadInt32(&failed))
}

// ensure returns the web path for url, downloading it first when the
// cache misses. Concurrent callers for the same file share one
// download. URLs come from provider payloads, so anything that is not
// plain http(s) is refused.
func (c *Cache) ensure(ctx context.Context, url, ext string) string {
	if url == "" || !safeurl.IsHTTPOrHTTPS(url) {
		return ""
	}
	name := hashName(url, ext)
	final := filepath.Join(c.Dir, name)
	if fi, err := os.Stat(final); err == nil && fi.Size() > 0 {
		return webPath(name)
	}

	c.mu.Lock()
	if c.inFlight == nil {
		c.inFlight = make(map[string]chan struct{})
	}
	wait, exists := c.inFlight[name]
	if exists {
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ""
		case <-wait:
			if fi, err := os.Stat(final); err == nil && fi.Size() > 0 {
				return webPath(name)
			}
			return ""
		}
	}
	done := make(chan struct{})
	c.inFlight[name] = done
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, name)
		close(done)
		c.mu.Unlock()
	}()

	if err := c.download(ctx, url, final); err != nil {
		metrics.ArtworkDownloads.WithLabelValues("error").Inc()
		log.Printf("artwork: download %q: %v", url, err)
		return ""
	}
	metrics.ArtworkDownloads.WithLabelValues("ok").Inc()
	return webPath(name)
}

// download fetches url into final via a .partial rename so a torn
// write never leaves a half file at the final name.
func (c *Cache) download(ctx context.Context, url, final string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	client := c.Client
	if client == nil {
		client = httpclient.Default()
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: %s", url, resp.Status)
	}

	partial := final + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(partial)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(partial)
		return err
	}
	return os.Rename(partial, final)
}

func hashName(url, ext string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:]) + ext
}

func webPath(name string) string {
	return WebPrefix + "/" + name
}
