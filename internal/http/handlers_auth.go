package http

import (
	"context"
	"net/http"
	"sync/atomic"

	"smartbill/internal/gateway"
	applog "smartbill/internal/log"
	"smartbill/internal/session"
)

const (
	loginFailed    = "Login failed"
	registerFailed = "Register failed"
)

// authView refills the form after a failed attempt. Passwords are never
// echoed back.
type authView struct {
	Name  string
	Email string
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "home", s.page(r, "SmartBill"))
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if session.FromRequest(r).Authenticated() {
		redirect(w, r, "/dashboard")
		return
	}
	p := s.page(r, "Login")
	p.View = authView{}
	s.renderPage(w, r, "login", p)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if session.FromRequest(r).Authenticated() {
		redirect(w, r, "/dashboard")
		return
	}
	p := s.page(r, "Register")
	p.View = authView{}
	s.renderPage(w, r, "register", p)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	view := authView{Email: formValue(r, "email")}
	password := r.FormValue("password")

	if view.Email == "" || password == "" {
		s.authFailed(w, r, "login", view, http.StatusUnprocessableEntity, "Email and password are required")
		return
	}

	sess, err := s.loader.Login(r.Context(), view.Email, password)
	s.completeAuth(w, r, "login", view, sess, err, applog.OpLogin, loginFailed)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	view := authView{Name: formValue(r, "name"), Email: formValue(r, "email")}
	password := r.FormValue("password")

	if view.Name == "" || view.Email == "" || password == "" {
		s.authFailed(w, r, "register", view, http.StatusUnprocessableEntity, "Name, email and password are required")
		return
	}

	sess, err := s.loader.Register(r.Context(), view.Name, view.Email, password)
	s.completeAuth(w, r, "register", view, sess, err, applog.OpRegister, registerFailed)
}

func (s *Server) completeAuth(w http.ResponseWriter, r *http.Request, page string, view authView, sess session.Session, err error, op, fallback string) {
	if err != nil {
		logAuthFailure(r.Context(), op, err)
		s.authFailed(w, r, page, view, http.StatusOK, gateway.Message(err, fallback))
		return
	}

	atomic.AddInt64(&s.appMetrics.logins, 1)
	session.SetCookie(w, sess, s.cookie)
	redirect(w, r, "/dashboard")
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, page string, view authView, status int, msg string) {
	title := "Login"
	if page == "register" {
		title = "Register"
	}
	p := s.page(r, title)
	p.View = view
	p.flash(NotificationError, msg)
	s.render(w, r, NewHTMXResponse().Status(status), page, p)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w, s.cookie)
	redirect(w, r, "/")
}

func logAuthFailure(ctx context.Context, op string, err error) {
	applog.FromContext(ctx).WarnContext(ctx, "Authentication failed",
		applog.NewFields().
			WithError(err).
			WithOperation(op).
			WithComponent(applog.ComponentSession).
			ToSlice()...)
}
