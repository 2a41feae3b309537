// Package web serves the catalog UI: login and session pages, the
// browsing/detail pages for live TV, series and films, playback pages,
// search, statistics, the admin panel and the health/metrics endpoints.
package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/telecast/telecast/internal/artwork"
	"github.com/telecast/telecast/internal/auth"
	"github.com/telecast/telecast/internal/catalog"
	"github.com/telecast/telecast/internal/metrics"
)

// Server runs the web UI. Handlers answer from Catalog, which refreshes
// provider data behind the scenes; Auth resolves the session cookie on
// every page.
type Server struct {
	Addr       string
	BaseURL    string // external URL shown in logs; optional
	MaxConns   int    // accepted TCP connection cap; 0 = unlimited
	RequestLog bool
	Version    string

	DB      *sql.DB
	Catalog *catalog.Service
	Auth    *auth.Gate
	Art     *artwork.Cache // optional; nil disables icon serving and prewarm

	templates templateSet
}

// Run blocks until ctx is cancelled or the server fails to start. On
// shutdown it stops accepting new connections and waits briefly for
// in-flight requests to finish.
func (s *Server) Run(ctx context.Context) error {
	var err error
	s.templates, err = parseTemplates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	addr := s.Addr
	if addr == "" {
		addr = ":8080"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.MaxConns)
	}

	handler := metrics.Middleware(s.routes())
	if s.RequestLog {
		handler = logRequests(handler)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Web UI listening on %s (BaseURL %s)", addr, s.BaseURL)
		serverErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Print("Shutting down web server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Web shutdown: %v", err)
		}
		<-serverErr
		return nil
	}
}

// routes wires every page onto a method+pattern mux. Icons are served
// from the artwork directory on disk; the stylesheet ships embedded.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.FileServerFS(staticFS))
	if s.Art != nil {
		mux.Handle("GET /static/icons/", http.StripPrefix("/static/icons/",
			http.FileServer(http.Dir(s.Art.Dir))))
	}

	mux.HandleFunc("GET /{$}", s.requireUser(s.handleHome))
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("GET /logout", s.handleLogout)

	mux.HandleFunc("GET /admin", s.requireAdmin(s.handleAdmin))
	mux.HandleFunc("POST /admin/add_user", s.requireAdmin(s.handleAddUser))
	mux.HandleFunc("POST /admin/delete_user/{id}", s.requireAdmin(s.handleDeleteUser))

	mux.HandleFunc("GET /streams", s.requireAccess(streamsAccess, s.handleStreams))
	mux.HandleFunc("GET /streams/refresh-all", s.requireAccess(streamsAccess, s.handleRefreshAllStreams))

	mux.HandleFunc("GET /series", s.requireAccess(seriesAccess, s.handleSeries))
	mux.HandleFunc("GET /series/refresh-all", s.requireAccess(seriesAccess, s.handleRefreshAllSeries))
	mux.HandleFunc("GET /series-category/{id}", s.requireAccess(seriesAccess, s.handleSeriesCategory))
	mux.HandleFunc("GET /series/{id}", s.requireAccess(seriesAccess, s.handleSeriesDetail))

	mux.HandleFunc("GET /films", s.requireAccess(filmsAccess, s.handleFilms))
	mux.HandleFunc("GET /films/refresh-all", s.requireAccess(filmsAccess, s.handleRefreshAllFilms))
	mux.HandleFunc("GET /film-category/{id}", s.requireAccess(filmsAccess, s.handleFilmCategory))
	mux.HandleFunc("GET /film/{id}", s.requireAccess(filmsAccess, s.handleFilmDetail))

	mux.HandleFunc("GET /epg/{streamID}", s.requireUser(s.handleEPG))
	mux.HandleFunc("GET /epg_page/{streamID}", s.requireUser(s.handleEPGPage))

	mux.HandleFunc("GET /stream/{type}/{id}", s.requireUser(s.handlePlayer))
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /statistics", s.requireUser(s.handleStatistics))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

// handleHealth reports process health: store reachable and provider
// configured. It never calls the provider.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.DB.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","store":"unreachable"}`))
		return
	}
	body, _ := json.Marshal(map[string]interface{}{
		"status":              "ok",
		"provider_configured": s.Catalog != nil && s.Catalog.Client != nil && s.Catalog.Client.BaseURL != "",
		"version":             s.Version,
	})
	_, _ = w.Write(body)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *loggingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		status := lw.status
		if status == 0 {
			status = http.StatusOK
		}
		log.Printf(
			"http: %s %s status=%d bytes=%d dur=%s remote=%s",
			r.Method, r.URL.Path, status, lw.bytes, time.Since(start).Round(time.Millisecond), r.RemoteAddr,
		)
	})
}
