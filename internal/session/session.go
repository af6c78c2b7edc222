// Package session carries the backend bearer token explicitly.
//
// A Session is a value handed to the gateway; nothing in the module reads the
// token from ambient state. The web server keeps it in a cookie and the CLI
// keeps it in SQLite, both under TokenKey.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// TokenKey is the fixed key under which the token is persisted.
const TokenKey = "token"

var ErrNoSession = errors.New("not logged in")

// Session is an opaque credential issued by the backend at login.
type Session struct {
	token string
}

func New(token string) Session {
	return Session{token: strings.TrimSpace(token)}
}

func (s Session) Token() string { return s.token }

// Authenticated reports whether a token is present. The token itself is
// never checked here; the backend rejects it on the next call if stale.
func (s Session) Authenticated() bool { return s.token != "" }

// Store persists a session between process runs.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

type contextKey struct{}

func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok && s.Authenticated()
}

// FromRequest reads the session cookie.
func FromRequest(r *http.Request) Session {
	c, err := r.Cookie(TokenKey)
	if err != nil {
		return Session{}
	}
	return New(c.Value)
}

// CookieOptions controls the attributes of the session cookie.
type CookieOptions struct {
	Secure bool
	MaxAge int
}

// SetCookie persists s in the response.
func SetCookie(w http.ResponseWriter, s Session, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenKey,
		Value:    s.Token(),
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenKey,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
