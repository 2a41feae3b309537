package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/telecast/telecast/internal/auth"
	"github.com/telecast/telecast/internal/catalog"
	"github.com/telecast/telecast/internal/store"
)

// pageFunc is a handler that runs with the resolved session user.
type pageFunc func(http.ResponseWriter, *http.Request, *store.User)

// requireUser redirects anonymous requests to the login page.
func (s *Server) requireUser(next pageFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Auth.CurrentUser(r)
		if err != nil {
			log.Printf("session lookup: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next(w, r, user)
	}
}

// requireAdmin sends non-admins back to the home page with the authfail
// banner; anonymous requests go to the login page.
func (s *Server) requireAdmin(next pageFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		if !user.IsAdmin {
			http.Redirect(w, r, "/?error=authfail", http.StatusFound)
			return
		}
		next(w, r, user)
	})
}

func streamsAccess(u *store.User) bool { return u.StreamsAccess }
func seriesAccess(u *store.User) bool  { return u.SeriesAccess }
func filmsAccess(u *store.User) bool   { return u.FilmsAccess }

// requireAccess gates a page family on one of the per-user capability
// flags. Signed-in users without the flag get a plain 403.
func (s *Server) requireAccess(allowed func(*store.User) bool, next pageFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request, user *store.User) {
		if !allowed(user) {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		next(w, r, user)
	})
}

func forceRefresh(r *http.Request) bool {
	v := r.URL.Query().Get("refresh")
	return v == "true" || v == "1"
}

func refreshIn(fr catalog.Freshness) string {
	return catalog.RefreshIn(fr.ExpiresAt, time.Now().UTC())
}

// prewarmIcons downloads artwork in the background; pages pick the
// cached files up on later loads.
func (s *Server) prewarmIcons(urls []string) {
	if s.Art == nil || len(urls) == 0 {
		return
	}
	go s.Art.Prewarm(context.Background(), urls)
}

func channelIcons(list []catalog.Channel) []string {
	urls := make([]string, 0, len(list))
	for _, c := range list {
		if c.Icon != "" {
			urls = append(urls, c.Icon)
		}
	}
	return urls
}

func seriesCovers(list []catalog.Series) []string {
	urls := make([]string, 0, len(list))
	for _, sr := range list {
		if sr.Cover != "" {
			urls = append(urls, sr.Cover)
		}
	}
	return urls
}

func filmIcons(list []catalog.Film) []string {
	urls := make([]string, 0, len(list))
	for _, f := range list {
		if f.Icon != "" {
			urls = append(urls, f.Icon)
		}
	}
	return urls
}

// handleHome renders the account overview. The error query parameter
// carries redirect reasons from other pages.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request, user *store.User) {
	banner := ""
	switch r.URL.Query().Get("error") {
	case "":
	case "authfail":
		banner = "You need to be admin"
	default:
		banner = "something broke"
	}

	account, fr, err := s.Catalog.AccountInfo(r.Context(), forceRefresh(r))
	if err != nil {
		log.Printf("home: account info: %v", err)
		s.renderDegraded(w, "index.html", user, "An error occurred while refreshing account data.")
		return
	}

	s.render(w, http.StatusOK, "index.html", map[string]interface{}{
		"CurrentUser": user,
		"Error":       banner,
		"UserInfo":    account.User,
		"ServerInfo":  account.Server,
		"FetchTime":   catalog.FormatTime(fr.FetchedAt),
		"RefreshTime": refreshIn(fr),
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login.html", map[string]interface{}{})
}

// handleToken checks the login form and installs the session cookie.
// Bad credentials re-render the form; the message never says which half
// was wrong.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	user, err := s.Auth.SignIn(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrBadCredentials) {
			log.Printf("sign in: %v", err)
		}
		s.render(w, http.StatusBadRequest, "login.html", map[string]interface{}{
			"Error": "Incorrect username or password",
		})
		return
	}
	if err := s.Auth.StartSession(w, user); err != nil {
		log.Printf("start session: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.EndSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request, user *store.User) {
	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		log.Printf("admin: list users: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.render(w, http.StatusOK, "admin.html", map[string]interface{}{
		"CurrentUser": user,
		"Users":       users,
	})
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request, user *store.User) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Printf("add user: hash: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	newUser := &store.User{
		Username:       username,
		HashedPassword: hash,
		IsActive:       true,
		IsAdmin:        r.FormValue("is_admin") != "",
		StreamsAccess:  r.FormValue("streams_access") != "",
		SeriesAccess:   r.FormValue("series_access") != "",
		FilmsAccess:    r.FormValue("films_access") != "",
	}
	if err := store.CreateUser(r.Context(), s.DB, newUser); err != nil {
		log.Printf("add user %q: %v", username, err)
		http.Error(w, "could not create user", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, user *store.User) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	target, err := store.GetUserByID(r.Context(), s.DB, id)
	if err != nil {
		log.Printf("delete user %d: lookup: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if target == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if target.ID == user.ID {
		http.Error(w, "cannot delete your own account", http.StatusBadRequest)
		return
	}
	if err := store.DeleteUser(r.Context(), s.DB, id); err != nil {
		log.Printf("delete user %d: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request, user *store.User) {
	force := forceRefresh(r)
	cats, fr, err := s.Catalog.LiveCategories(r.Context(), force)
	if err != nil {
		log.Printf("streams page: %v", err)
		s.renderDegraded(w, "streams.html", user, "An error occurred while refreshing stream data.")
		return
	}
	channels, _, err := s.Catalog.AllLiveChannels(r.Context(), false)
	if err != nil {
		log.Printf("streams page: all channels: %v", err)
		s.renderDegraded(w, "streams.html", user, "An error occurred while refreshing stream data.")
		return
	}
	s.render(w, http.StatusOK, "streams.html", map[string]interface{}{
		"CurrentUser": user,
		"Categories":  cats,
		"AllStreams":  channels,
		"FetchTime":   catalog.FormatTime(fr.FetchedAt),
		"RefreshTime": refreshIn(fr),
	})
}

func (s *Server) handleRefreshAllStreams(w http.ResponseWriter, r *http.Request, user *store.User) {
	cats, _, err := s.Catalog.LiveCategories(r.Context(), true)
	if err != nil {
		log.Printf("refresh all streams: categories: %v", err)
		s.renderDegraded(w, "streams.html", user, "An error occurred while refreshing stream data.")
		return
	}
	channels, fr, err := s.Catalog.AllLiveChannels(r.Context(), true)
	if err != nil {
		log.Printf("refresh all streams: channels: %v", err)
		s.renderDegraded(w, "streams.html", user, "An error occurred while refreshing stream data.")
		return
	}
	s.prewarmIcons(channelIcons(channels))
	s.render(w, http.StatusOK, "streams.html", map[string]interface{}{
		"CurrentUser":  user,
		"Categories":   cats,
		"AllStreams":   channels,
		"FetchTime":    catalog.FormatTime(fr.FetchedAt),
		"RefreshTime":  "24 hours",
		"AllRefreshed": true,
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request, user *store.User) {
	cats, fr, err := s.Catalog.SeriesCategories(r.Context(), forceRefresh(r))
	if err != nil {
		log.Printf("series page: %v", err)
		s.renderDegraded(w, "series.html", user, "An error occurred while refreshing series data.")
		return
	}
	s.render(w, http.StatusOK, "series.html", map[string]interface{}{
		"CurrentUser": user,
		"Categories":  cats,
		"FetchTime":   catalog.FormatTime(fr.FetchedAt),
		"RefreshTime": refreshIn(fr),
	})
}

func (s *Server) handleRefreshAllSeries(w http.ResponseWriter, r *http.Request, user *store.User) {
	cats, _, err := s.Catalog.SeriesCategories(r.Context(), true)
	if err != nil {
		log.Printf("refresh all series: categories: %v", err)
		s.renderDegraded(w, "series.html", user, "An error occurred while refreshing series data.")
		return
	}
	all, fr, err := s.Catalog.AllSeries(r.Context(), true)
	if err != nil {
		log.Printf("refresh all series: %v", err)
		s.renderDegraded(w, "series.html", user, "An error occurred while refreshing series data.")
		return
	}
	s.prewarmIcons(seriesCovers(all))
	s.render(w, http.StatusOK, "series.html", map[string]interface{}{
		"CurrentUser":  user,
		"Categories":   cats,
		"FetchTime":    catalog.FormatTime(fr.FetchedAt),
		"RefreshTime":  "24 hours",
		"AllRefreshed": true,
	})
}

func (s *Server) handleSeriesCategory(w http.ResponseWriter, r *http.Request, user *store.User) {
	id := r.PathValue("id")
	series, _, err := s.Catalog.SeriesByCategory(r.Context(), id, forceRefresh(r))
	if err != nil {
		log.Printf("series category %s: %v", id, err)
		s.renderDegraded(w, "series_list.html", user, "An error occurred while refreshing series data.")
		return
	}
	name, err := store.GetCategoryName(r.Context(), s.DB, store.SeriesCategoryKind, id)
	if err != nil {
		log.Printf("series category %s: name: %v", id, err)
	}
	s.render(w, http.StatusOK, "series_list.html", map[string]interface{}{
		"CurrentUser":  user,
		"CategoryName": name,
		"Series":       series,
	})
}

func (s *Server) handleSeriesDetail(w http.ResponseWriter, r *http.Request, user *store.User) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid series id", http.StatusBadRequest)
		return
	}
	detail, fr, err := s.Catalog.SeriesDetail(r.Context(), id, forceRefresh(r))
	if err != nil {
		var nf *catalog.NotFoundError
		if errors.As(err, &nf) {
			http.Error(w, "Series not found", http.StatusNotFound)
			return
		}
		log.Printf("series %d: %v", id, err)
		s.renderDegraded(w, "series_details.html", user, "An error occurred while refreshing series data.")
		return
	}
	s.render(w, http.StatusOK, "series_details.html", map[string]interface{}{
		"CurrentUser": user,
		"Info":        detail.Info,
		"Seasons":     detail.Seasons,
		"SeriesID":    id,
		"FetchTime":   catalog.FormatTime(fr.FetchedAt),
		"RefreshTime": refreshIn(fr),
	})
}

func (s *Server) handleFilms(w http.ResponseWriter, r *http.Request, user *store.User) {
	cats, fr, err := s.Catalog.FilmCategories(r.Context(), forceRefresh(r))
	if err != nil {
		log.Printf("films page: %v", err)
		s.renderDegraded(w, "films.html", user, "An error occurred while refreshing film data.")
		return
	}
	s.render(w, http.StatusOK, "films.html", map[string]interface{}{
		"CurrentUser": user,
		"Categories":  cats,
		"FetchTime":   catalog.FormatTime(fr.FetchedAt),
		"RefreshTime": refreshIn(fr),
	})
}

func (s *Server) handleRefreshAllFilms(w http.ResponseWriter, r *http.Request, user *store.User) {
	cats, fr, err := s.Catalog.FilmCategories(r.Context(), true)
	if err != nil {
		log.Printf("refresh all films: categories: %v", err)
		s.renderDegraded(w, "films.html", user, "An error occurred while refreshing film data.")
		return
	}
	all, _, err := s.Catalog.AllFilms(r.Context(), true)
	if err != nil {
		log.Printf("refresh all films: %v", err)
		s.renderDegraded(w, "films.html", user, "An error occurred while refreshing film data.")
		return
	}
	s.prewarmIcons(filmIcons(all))
	s.render(w, http.StatusOK, "films.html", map[string]interface{}{
		"CurrentUser":  user,
		"Categories":   cats,
		"FetchTime":    catalog.FormatTime(fr.FetchedAt),
		"RefreshTime":  refreshIn(fr),
		"AllRefreshed": true,
	})
}

func (s *Server) handleFilmCategory(w http.ResponseWriter, r *http.Request, user *store.User) {
	id := r.PathValue("id")
	films, _, err := s.Catalog.FilmStreams(r.Context(), id, forceRefresh(r))
	if err != nil {
		log.Printf("film category %s: %v", id, err)
		s.renderDegraded(w, "film_list.html", user, "An error occurred while refreshing film data.")
		return
	}
	name, err := store.GetCategoryName(r.Context(), s.DB, store.FilmCategoryKind, id)
	if err != nil {
		log.Printf("film category %s: name: %v", id, err)
	}
	s.render(w, http.StatusOK, "film_list.html", map[string]interface{}{
		"CurrentUser":  user,
		"CategoryName": name,
		"Streams":      films,
	})
}

func (s *Server) handleFilmDetail(w http.ResponseWriter, r *http.Request, user *store.User) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid film id", http.StatusBadRequest)
		return
	}
	film, fr, err := s.Catalog.FilmInfo(r.Context(), id, forceRefresh(r))
	if err != nil {
		var nf *catalog.NotFoundError
		if errors.As(err, &nf) {
			http.Error(w, "Film not found", http.StatusNotFound)
			return
		}
		log.Printf("film %d: %v", id, err)
		s.renderDegraded(w, "film_details.html", user, "An error occurred while refreshing film data.")
		return
	}
	s.render(w, http.StatusOK, "film_details.html", map[string]interface{}{
		"CurrentUser": user,
		"Film":        film,
		"FetchTime":   catalog.FormatTime(fr.FetchedAt),
		"RefreshTime": refreshIn(fr),
	})
}

// handleEPG returns the programme guide as JSON, in the shape the
// provider uses: an object with an epg_listings array.
func (s *Server) handleEPG(w http.ResponseWriter, r *http.Request, user *store.User) {
	streamID, err := strconv.Atoi(r.PathValue("streamID"))
	if err != nil {
		http.Error(w, "invalid stream id", http.StatusBadRequest)
		return
	}
	listings, _, err := s.Catalog.EPG(r.Context(), streamID, false)
	if err != nil {
		log.Printf("epg %d: %v", streamID, err)
		http.Error(w, "An error occurred while processing your request", http.StatusInternalServerError)
		return
	}
	if listings == nil {
		listings = []catalog.EPGItem{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"epg_listings": listings}); err != nil {
		log.Printf("epg %d: encode: %v", streamID, err)
	}
}

// handleEPGPage renders the guide for one stream. Fetch failures render
// the page with the error inline instead of failing the request.
func (s *Server) handleEPGPage(w http.ResponseWriter, r *http.Request, user *store.User) {
	streamID, err := strconv.Atoi(r.PathValue("streamID"))
	if err != nil {
		http.Error(w, "invalid stream id", http.StatusBadRequest)
		return
	}
	data := map[string]interface{}{
		"CurrentUser": user,
		"StreamID":    streamID,
	}
	if ch, err := store.GetLiveChannel(r.Context(), s.DB, streamID); err != nil {
		log.Printf("epg page %d: channel: %v", streamID, err)
	} else if ch != nil {
		data["ChannelName"] = ch.Name
	}
	listings, fr, err := s.Catalog.EPG(r.Context(), streamID, false)
	if err != nil {
		log.Printf("epg page %d: %v", streamID, err)
		data["Error"] = fmt.Sprintf("Failed to fetch EPG info: %v", err)
		data["FetchTime"] = catalog.FormatTime(time.Now().UTC())
		data["RefreshTime"] = "0 hours and 0 minutes"
		s.render(w, http.StatusOK, "epg_info.html", data)
		return
	}
	data["Listings"] = listings
	data["FetchTime"] = catalog.FormatTime(fr.FetchedAt)
	data["RefreshTime"] = refreshIn(fr)
	s.render(w, http.StatusOK, "epg_info.html", data)
}

// handlePlayer renders the inline player for a film or an episode.
// Episode ids arrive as {seriesID}_{episodeID}.
func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request, user *store.User) {
	var playLink, title string

	switch r.PathValue("type") {
	case "episode":
		seriesPart, episodeID, ok := strings.Cut(r.PathValue("id"), "_")
		seriesID, err := strconv.Atoi(seriesPart)
		if !ok || err != nil || episodeID == "" {
			http.Error(w, "Invalid episode id", http.StatusBadRequest)
			return
		}
		detail, episode, err := s.Catalog.FindEpisode(r.Context(), seriesID, episodeID)
		if err != nil {
			s.respondCatalogError(w, err, "Episode")
			return
		}
		playLink = episode.PlayLink
		title = fmt.Sprintf("%s - Episode %d", detail.Info.Name, episode.EpisodeNum)

	case "film":
		vodID, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			http.Error(w, "Invalid film id", http.StatusBadRequest)
			return
		}
		film, _, err := s.Catalog.FilmInfo(r.Context(), vodID, false)
		if err != nil {
			s.respondCatalogError(w, err, "Film")
			return
		}
		if film.PlayLink == "" {
			log.Printf("player: no play link for film %d", vodID)
			http.Error(w, "Unable to generate play link", http.StatusInternalServerError)
			return
		}
		playLink = film.PlayLink
		title = film.Name

	default:
		http.Error(w, "Invalid stream type", http.StatusBadRequest)
		return
	}

	s.render(w, http.StatusOK, "video_player.html", map[string]interface{}{
		"CurrentUser": user,
		"PlayLink":    playLink,
		"Title":       title,
	})
}

// respondCatalogError maps missing entities to 404 and everything else
// to a plain 500.
func (s *Server) respondCatalogError(w http.ResponseWriter, err error, what string) {
	var nf *catalog.NotFoundError
	if errors.As(err, &nf) {
		http.Error(w, what+" not found", http.StatusNotFound)
		return
	}
	log.Printf("player: %s: %v", what, err)
	http.Error(w, "An error occurred while processing your request", http.StatusInternalServerError)
}

// handleSearch queries the stored catalog. It never refreshes; results
// reflect whatever the listing pages have cached so far.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	user, err := s.Auth.CurrentUser(r)
	if err != nil {
		log.Printf("search: session lookup: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query().Get("q")
	searchType := r.URL.Query().Get("search_type")
	if q == "" || len(q) > 100 {
		http.Error(w, "invalid query", http.StatusBadRequest)
		return
	}

	data := map[string]interface{}{
		"CurrentUser": user,
		"Query":       q,
		"SearchType":  searchType,
	}
	switch searchType {
	case "series":
		if !user.SeriesAccess {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		results, err := s.Catalog.SearchSeries(r.Context(), q)
		if err != nil {
			log.Printf("search series %q: %v", q, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		data["SeriesResults"] = results
	case "films":
		if !user.FilmsAccess {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		results, err := s.Catalog.SearchFilms(r.Context(), q)
		if err != nil {
			log.Printf("search films %q: %v", q, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		data["FilmResults"] = results
	case "tv":
		if !user.StreamsAccess {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		results, err := s.Catalog.SearchChannels(r.Context(), q)
		if err != nil {
			log.Printf("search tv %q: %v", q, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		data["ChannelResults"] = results
	default:
		http.Error(w, "invalid search type", http.StatusBadRequest)
		return
	}

	s.render(w, http.StatusOK, "search.html", data)
}

// handleStatistics shows stored row counts and per-resource freshness.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request, user *store.User) {
	stats, err := s.Catalog.Stats(r.Context())
	if err != nil {
		log.Printf("statistics: %v", err)
		s.renderDegraded(w, "statistics.html", user, "An error occurred while reading statistics.")
		return
	}

	type resourceAge struct {
		Resource  string
		Refreshed string
	}
	overview := make([]resourceAge, 0, 7)
	for _, key := range []string{
		"user_info",
		"live_categories", "all_live_channels",
		"series_categories", "all_series",
		"film_categories", "all_films",
	} {
		at, ok, err := store.LastRefresh(r.Context(), s.DB, key)
		if err != nil {
			log.Printf("statistics: freshness %s: %v", key, err)
			continue
		}
		age := resourceAge{Resource: key, Refreshed: "never"}
		if ok {
			age.Refreshed = catalog.FormatTime(at)
		}
		overview = append(overview, age)
	}

	s.render(w, http.StatusOK, "statistics.html", map[string]interface{}{
		"CurrentUser": user,
		"Stats":       stats,
		"Freshness":   overview,
	})
}
