// Package auth ties page sessions to user rows: bcrypt password
// checks, signed session cookies, and the per-request user lookup.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/telecast/telecast/internal/store"
)

// CookieName is the session cookie. Its value is the token prefixed
// with "Bearer ", the same shape the Authorization header carries.
const CookieName = "access_token"

const bearerPrefix = "Bearer "

const bcryptCost = 12

// ErrBadCredentials covers unknown users and wrong passwords alike;
// callers cannot tell the two apart.
var ErrBadCredentials = errors.New("auth: incorrect username or password")

// dummyHash is compared against when the username is unknown, so both
// outcomes cost one bcrypt verification.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// HashPassword returns the bcrypt hash stored in the user table.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Gate authenticates requests against the user table.
type Gate struct {
	DB     *sql.DB
	Tokens *Tokens
}

// SignIn checks a username/password pair and returns the user row.
func (g *Gate) SignIn(ctx context.Context, username, password string) (*store.User, error) {
	user, err := store.GetUserByUsername(ctx, g.DB, username)
	if err != nil {
		return nil, err
	}
	hashed := dummyHash
	if user != nil {
		hashed = []byte(user.HashedPassword)
	}
	if err := bcrypt.CompareHashAndPassword(hashed, []byte(password)); err != nil || user == nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// CurrentUser resolves the request session to a user row. The
// Authorization header wins over the cookie. Anonymous, expired, and
// forged sessions all resolve to (nil, nil).
func (g *Gate) CurrentUser(r *http.Request) (*store.User, error) {
	raw := r.Header.Get("Authorization")
	if raw == "" {
		if c, err := r.Cookie(CookieName); err == nil {
			raw = c.Value
		}
	}
	raw = strings.TrimPrefix(raw, bearerPrefix)
	if raw == "" {
		return nil, nil
	}
	username, err := g.Tokens.Verify(raw)
	if err != nil {
		return nil, nil
	}
	return store.GetUserByUsername(r.Context(), g.DB, username)
}

// StartSession issues a token for user and installs the session cookie.
func (g *Gate) StartSession(w http.ResponseWriter, user *store.User) error {
	token, err := g.Tokens.Issue(user.Username)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    bearerPrefix + token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// EndSession deletes the session cookie.
func EndSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
