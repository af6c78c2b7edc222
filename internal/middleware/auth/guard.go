package auth

import (
	"log/slog"
	"net/http"

	"smartbill/internal/session"
)

// LoginPath is where unauthenticated navigation is sent.
const LoginPath = "/login"

// Guard only lets requests carrying a session cookie reach next. It checks
// presence, not validity; the backend rejects a stale token on the next call.
func Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := session.FromRequest(r)
		if !s.Authenticated() {
			slog.DebugContext(r.Context(), "Redirecting unauthenticated request", "path", r.URL.Path)
			Redirect(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
	})
}

// Redirect sends the client to the login page. htmx requests get an
// HX-Redirect header so the whole page navigates.
func Redirect(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", LoginPath)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}
