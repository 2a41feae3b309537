package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/telecast/telecast/internal/auth"
	"github.com/telecast/telecast/internal/catalog"
	"github.com/telecast/telecast/internal/store"
	"github.com/telecast/telecast/internal/xtream"
)

// newTestServer wires the full page stack against a stub provider and a
// fresh store, and returns the routed handler for direct dispatch.
func newTestServer(t *testing.T, upstream http.Handler) (*Server, http.Handler) {
	t.Helper()
	stub := httptest.NewServer(upstream)
	t.Cleanup(stub.Close)

	db, err := store.Open(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := &Server{
		DB:      db,
		Catalog: &catalog.Service{DB: db, Client: xtream.New(stub.URL, "user", "secret")},
		Auth:    &auth.Gate{DB: db, Tokens: &auth.Tokens{Secret: []byte("test-secret")}},
	}
	srv.templates, err = parseTemplates()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	return srv, srv.routes()
}

// addUser creates a user row and returns a session cookie for it.
func addUser(t *testing.T, srv *Server, username string, admin bool, caps ...bool) *http.Cookie {
	t.Helper()
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	streams, series, films := true, true, true
	if len(caps) == 3 {
		streams, series, films = caps[0], caps[1], caps[2]
	}
	u := &store.User{
		Username:       username,
		HashedPassword: hash,
		IsActive:       true,
		IsAdmin:        admin,
		StreamsAccess:  streams,
		SeriesAccess:   series,
		FilmsAccess:    films,
	}
	if err := store.CreateUser(context.Background(), srv.DB, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := srv.Auth.Tokens.Issue(username)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return &http.Cookie{Name: auth.CookieName, Value: "Bearer " + token}
}

func get(h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(h http.Handler, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// emptyProvider answers every action with an empty JSON array.
var emptyProvider = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, `[]`)
})

func TestAnonymousRedirectsToLogin(t *testing.T) {
	_, h := newTestServer(t, emptyProvider)

	for _, path := range []string{"/", "/streams", "/series", "/films", "/series/5", "/epg_page/1", "/statistics", "/admin"} {
		rec := get(h, path, nil)
		if rec.Code != http.StatusFound {
			t.Errorf("GET %s: got %d, want 302", path, rec.Code)
			continue
		}
		if loc := rec.Header().Get("Location"); loc != "/login" {
			t.Errorf("GET %s: redirected to %q, want /login", path, loc)
		}
	}
}

func TestLoginFlow(t *testing.T) {
	srv, h := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"user_info":{"username":"acct","status":"Active","auth":1},"server_info":{"url":"prov.tv"}}`)
	}))
	addUser(t, srv, "alice", false)

	rec := postForm(h, "/token", url.Values{"username": {"alice"}, "password": {"wrong"}}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad password: got %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Incorrect username or password") {
		t.Errorf("bad password: error message missing")
	}

	rec = postForm(h, "/token", url.Values{"username": {"alice"}, "password": {"hunter2"}}, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("login: got %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("login: redirected to %q, want /", loc)
	}
	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("login: no session cookie set")
	}
	if !strings.HasPrefix(session.Value, "Bearer ") {
		t.Errorf("cookie value %q: want Bearer prefix", session.Value)
	}

	rec = get(h, "/", session)
	if rec.Code != http.StatusOK {
		t.Fatalf("home with session: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "acct") {
		t.Errorf("home: account username missing from page")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	srv, h := newTestServer(t, emptyProvider)
	cookie := addUser(t, srv, "alice", false)

	rec := get(h, "/logout", cookie)
	if rec.Code != http.StatusFound {
		t.Fatalf("logout: got %d, want 302", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout: session cookie not cleared")
	}
}

func TestAdminGate(t *testing.T) {
	srv, h := newTestServer(t, emptyProvider)
	plain := addUser(t, srv, "bob", false)
	admin := addUser(t, srv, "root", true)

	rec := get(h, "/admin", plain)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/?error=authfail" {
		t.Fatalf("non-admin: got %d -> %q, want 302 -> /?error=authfail", rec.Code, rec.Header().Get("Location"))
	}

	rec = get(h, "/admin", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: got %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "bob") || !strings.Contains(body, "root") {
		t.Errorf("admin page: user list incomplete")
	}
}

func TestAuthfailBanner(t *testing.T) {
	srv, h := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"user_info":{"username":"acct","auth":1},"server_info":{}}`)
	}))
	cookie := addUser(t, srv, "bob", false)

	rec := get(h, "/?error=authfail", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "You need to be admin") {
		t.Error("authfail banner missing")
	}
}

func TestAddAndDeleteUser(t *testing.T) {
	srv, h := newTestServer(t, emptyProvider)
	admin := addUser(t, srv, "root", true)

	form := url.Values{
		"username":       {"carol"},
		"password":       {"pw"},
		"streams_access": {"on"},
	}
	rec := postForm(h, "/admin/add_user", form, admin)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("add user: got %d, want 303", rec.Code)
	}
	created, err := store.GetUserByUsername(context.Background(), srv.DB, "carol")
	if err != nil || created == nil {
		t.Fatalf("created user not found: %v", err)
	}
	if created.IsAdmin || !created.StreamsAccess || created.SeriesAccess || created.FilmsAccess {
		t.Errorf("created flags: %+v", created)
	}

	rec = postForm(h, "/admin/delete_user/"+strconv.FormatInt(created.ID, 10), nil, admin)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete user: got %d, want 303", rec.Code)
	}
	gone, err := store.GetUserByUsername(context.Background(), srv.DB, "carol")
	if err != nil {
		t.Fatalf("lookup after delete: %v", err)
	}
	if gone != nil {
		t.Error("user still present after delete")
	}
}

func TestDeleteUser_selfAndMissing(t *testing.T) {
	srv, h := newTestServer(t, emptyProvider)
	admin := addUser(t, srv, "root", true)

	self, err := store.GetUserByUsername(context.Background(), srv.DB, "root")
	if err != nil || self == nil {
		t.Fatalf("admin row: %v", err)
	}

	rec := postForm(h, "/admin/delete_user/"+strconv.FormatInt(self.ID, 10), nil, admin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("self delete: got %d, want 400", rec.Code)
	}
	still, err := store.GetUserByID(context.Background(), srv.DB, self.ID)
	if err != nil || still == nil {
		t.Errorf("admin deleted own account: %v", err)
	}

	rec = postForm(h, "/admin/delete_user/9999", nil, admin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing user: got %d, want 404", rec.Code)
	}
}

func TestCategoryPagesShowCategoryName(t *testing.T) {
	srv, h := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "get_series":
			io.WriteString(w, `[{"series_id":5,"name":"Docs","category_id":"3"}]`)
		case "get_vod_streams":
			io.WriteString(w, `[{"stream_id":8,"name":"A Film","category_id":"4","container_extension":"mp4"}]`)
		default:
			io.WriteString(w, `[]`)
		}
	}))
	cookie := addUser(t, srv, "alice", false)
	ctx := context.Background()

	store.ReplaceCategories(ctx, srv.DB, store.SeriesCategoryKind,
		[]store.Category{{CategoryID: "3", Name: "Documentaries"}})
	store.ReplaceCategories(ctx, srv.DB, store.FilmCategoryKind,
		[]store.Category{{CategoryID: "4", Name: "Classics"}})

	rec := get(h, "/series-category/3", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("series category: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<h2>Documentaries</h2>") {
		t.Error("series page heading missing category name")
	}

	rec = get(h, "/film-category/4", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("film category: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<h2>Classics</h2>") {
		t.Error("film page heading missing category name")
	}
}

func TestEPGPageShowsChannelName(t *testing.T) {
	srv, h := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "get_simple_data_table" {
			io.WriteString(w, `{"epg_listings":[]}`)
			return
		}
		io.WriteString(w, `[]`)
	}))
	cookie := addUser(t, srv, "alice", false)

	store.ReplaceLiveChannels(context.Background(), srv.DB, "1",
		[]store.LiveChannel{{StreamID: 7, Name: "BBC One", CategoryID: "1"}})

	rec := get(h, "/epg_page/7", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("epg page: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "BBC One") {
		t.Error("epg page heading missing channel name")
	}

	// Unknown streams keep the numeric fallback.
	rec = get(h, "/epg_page/8", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("epg page fallback: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stream 8") {
		t.Error("epg page fallback heading missing")
	}
}

func TestCapabilityGates(t *testing.T) {
	srv, h := newTestServer(t, emptyProvider)
	cookie := addUser(t, srv, "bob", false, true, false, false)

	if rec := get(h, "/streams", cookie); rec.Code != http.StatusOK {
		t.Errorf("streams with access: got %d, want 200", rec.Code)
	}
	for _, path := range []string{"/series", "/films", "/series-category/1", "/film/5"} {
		rec := get(h, path, cookie)
		if rec.Code != http.StatusForbidden {
			t.Errorf("GET %s without access: got %d, want 403", path, rec.Code)
		}
	}
}

func TestStreamsPageDegradesOnProviderFailure(t *testing.T) {
	srv, h := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	cookie := addUser(t, srv, "alice", false)

	rec := get(h, "/streams", cookie)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "An error occurred while refreshing stream data.") {
		t.Error("degraded page: error banner missing")
	}
	if !strings.Contains(body, "<nav>") {
		t.Error("degraded page: navigation missing")
	}
}

func TestEPGJSON(t *testing.T) {
	srv, h := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "get_simple_data_table" {
			io.WriteString(w, `[]`)
			return
		}
		// "News" / "Talk" base64-encoded, as the provider sends them.
		io.WriteString(w, `{"epg_listings":[{"id":"9","epg_id":"4","title":"TmV3cw==","lang":"en",
			"start":"2024-05-01 10:00:00","end":"2024-05-01 11:00:00","description":"VGFsaw==",
			"channel_id":"bbc.uk","start_timestamp":"1714557600","stop_timestamp":"1714561200",
			"now_playing":1,"has_archive":0}]}`)
	}))
	cookie := addUser(t, srv, "alice", false)

	rec := get(h, "/epg/7", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"epg_listings"`) {
		t.Fatalf("missing epg_listings envelope: %s", body)
	}
	if !strings.Contains(body, `"title":"News"`) {
		t.Errorf("title not decoded: %s", body)
	}

	rec = get(h, "/epg_page/7", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("epg page: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "News") {
		t.Error("epg page: decoded title missing")
	}
}

func TestPlayerFilm(t *testing.T) {
	srv, h := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "get_vod_info" {
			io.WriteString(w, `[]`)
			return
		}
		io.WriteString(w, `{"info":{"name":"Heat","plot":"LA crime","duration_secs":10200},
			"movie_data":{"stream_id":77,"name":"Heat","container_extension":"mkv","category_id":"9"}}`)
	}))
	cookie := addUser(t, srv, "alice", false)

	rec := get(h, "/stream/film/77", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Heat") {
		t.Error("player: title missing")
	}
	if !strings.Contains(body, "/movie/user/secret/77.mkv") {
		t.Errorf("player: play link missing: %s", body)
	}

	if rec := get(h, "/stream/cartoon/77", cookie); rec.Code != http.StatusBadRequest {
		t.Errorf("bad type: got %d, want 400", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	srv, h := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "get_series" {
			io.WriteString(w, `[{"num":1,"name":"Dark Harbor","series_id":31,"plot":"fog",
				"cover":"","rating":"8","rating_5based":4,"category_id":"2"}]`)
			return
		}
		io.WriteString(w, `[]`)
	}))
	cookie := addUser(t, srv, "alice", false, true, true, false)

	// Populate the series table through a refresh.
	if rec := get(h, "/series/refresh-all", cookie); rec.Code != http.StatusOK {
		t.Fatalf("refresh-all: got %d", rec.Code)
	}

	if rec := get(h, "/search?q=dark&search_type=series", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous search: got %d, want 401", rec.Code)
	}
	if rec := get(h, "/search?q=dark&search_type=books", cookie); rec.Code != http.StatusBadRequest {
		t.Errorf("bad search type: got %d, want 400", rec.Code)
	}
	if rec := get(h, "/search?q=dark&search_type=films", cookie); rec.Code != http.StatusForbidden {
		t.Errorf("denied capability: got %d, want 403", rec.Code)
	}

	rec := get(h, "/search?q=dark&search_type=series", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Dark Harbor") {
		t.Error("search: matching series missing from results")
	}
}

func TestStatisticsPage(t *testing.T) {
	srv, h := newTestServer(t, emptyProvider)
	cookie := addUser(t, srv, "alice", false)

	rec := get(h, "/statistics", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Live channels", "Films", "Series", "Users", "never"} {
		if !strings.Contains(body, want) {
			t.Errorf("statistics page: %q missing", want)
		}
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, emptyProvider)

	rec := get(h, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health body: %s", rec.Body.String())
	}
}
