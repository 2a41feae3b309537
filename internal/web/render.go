package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/telecast/telecast/internal/catalog"
	"github.com/telecast/telecast/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*.css
var staticFS embed.FS

// templateSet maps a page file name to that page parsed together with
// the shared layout. Pages each define their own "content" block, so
// they cannot live in a single template set.
type templateSet map[string]*template.Template

func parseTemplates() (templateSet, error) {
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	set := make(templateSet, len(pages))
	for _, page := range pages {
		name := path.Base(page)
		if name == "layout.html" {
			continue
		}
		t, err := template.New(name).Funcs(templateFuncs()).
			ParseFS(templateFS, "templates/layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		set[name] = t
	}
	return set, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatTimestamp": formatTimestamp,
	}
}

// formatTimestamp renders an epoch second the way the guide pages show
// times. Zero stays empty so blank EPG rows do not show 1970.
func formatTimestamp(epoch int64) string {
	if epoch == 0 {
		return ""
	}
	return time.Unix(epoch, 0).UTC().Format("2006-01-02 15:04:05")
}

// render writes one page. The body is built in memory first so a
// template fault becomes a clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, status int, page string, data map[string]interface{}) {
	t, ok := s.templates[page]
	if !ok {
		log.Printf("render: no template %q", page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		log.Printf("render %s: %v", page, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderDegraded renders page with empty data and an error banner at
// 500. Navigation stays usable while the provider or store is down.
func (s *Server) renderDegraded(w http.ResponseWriter, page string, user *store.User, msg string) {
	s.render(w, http.StatusInternalServerError, page, map[string]interface{}{
		"CurrentUser": user,
		"Error":       msg,
		"FetchTime":   catalog.FormatTime(time.Now().UTC()),
		"RefreshTime": "24 hours",
	})
}
