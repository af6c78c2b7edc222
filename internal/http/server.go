package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"smartbill/internal/config"
	"smartbill/internal/core"
	applog "smartbill/internal/log"
	"smartbill/internal/middleware/auth"
	"smartbill/internal/middleware/ratelimit"
	"smartbill/internal/middleware/security"
	"smartbill/internal/middleware/trace"
	"smartbill/internal/services"
	"smartbill/internal/session"
	"smartbill/internal/storage"
	appweb "smartbill/web"
)

// sessionMaxAge keeps the cookie for a week; the backend decides when the
// token itself expires.
const sessionMaxAge = 7 * 24 * 60 * 60

// Exporter creates bill report export jobs. services.ExportService
// implements it.
type Exporter interface {
	Request(ctx context.Context, bill core.BillRecord) (storage.ExportJob, error)
}

// Pinger reports whether local storage is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server to its collaborators. Exports and Storage may be
// nil; the export route then answers 503 and readiness skips the check.
type Options struct {
	Loader   *services.Loader
	Exports  Exporter
	Storage  Pinger
	Settings *config.SettingsStore
	Logger   *applog.Logger

	CookieSecure       bool
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	templates *template.Template

	loader   *services.Loader
	exports  Exporter
	storage  Pinger
	settings *config.SettingsStore
	logger   *applog.Logger
	cookie   session.CookieOptions

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime      time.Time
	logins      int64
	uploads     int64
	exports     int64
	fetchErrors int64
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	settings := opts.Settings
	if settings == nil {
		settings = config.StaticSettings(config.DefaultSettings())
	}

	s := &Server{
		loader:   opts.Loader,
		exports:  opts.Exports,
		storage:  opts.Storage,
		settings: settings,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		cookie: session.CookieOptions{
			Secure: opts.CookieSecure,
			MaxAge: sessionMaxAge,
		},
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Error("Failed parsing templates", "error", err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)
	guarded := func(h http.HandlerFunc) http.Handler { return auth.Guard(h) }

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleLanding)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.Handle("POST /login", limited(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.Handle("POST /register", limited(http.HandlerFunc(s.handleRegister)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /dashboard", guarded(s.handleDashboard))
	mux.Handle("GET /history", guarded(s.handleHistory))
	mux.Handle("GET /my-bills", guarded(s.handleMyBills))
	mux.Handle("GET /bills/{id}", guarded(s.handleBill))
	mux.Handle("POST /bills/{id}/export", guarded(s.handleExport))
	mux.Handle("GET /upload-bill", guarded(s.handleUploadPage))
	mux.Handle("POST /upload-bill", auth.Guard(limited(http.HandlerFunc(s.handleUpload))))
	mux.Handle("GET /savings-calculator", guarded(s.handleSavings))

	mux.HandleFunc("/", s.handleNotFound)
}

// Shutdown gracefully shuts down the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(c core.Currency, d decimal.Decimal) string { return c.Format(d) },
		"moneyFixed": func(c core.Currency, d decimal.Decimal) string {
			return c.FormatFixed(d)
		},
		"date":       core.FormatDate,
		"progress":   progressWidth,
		"ratio":      formatRatio,
		"preview":    preview,
		"categories": func() []core.Category { return core.Categories },
	}
}

// pageData is the root value of every page template.
type pageData struct {
	Title         string
	Authenticated bool
	Currency      core.Currency
	Flash         string
	FlashType     NotificationType
	View          any
}

func (s *Server) page(r *http.Request, title string) pageData {
	return pageData{
		Title:         title,
		Authenticated: session.FromRequest(r).Authenticated(),
		Currency:      s.settings.Get().CurrencySymbol(),
	}
}

func (p *pageData) flash(t NotificationType, msg string) {
	p.FlashType = t
	p.Flash = msg
}

// render executes name into a buffer and writes it through b. The flash, if
// any, is also raised as a show-notification event for htmx clients.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, p pageData) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", "template", name, "path", r.URL.Path)
		InternalServerError("templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, p); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.NewFields().
				WithError(err).
				WithOperation(applog.OpRender).
				WithComponent(applog.ComponentTemplate).
				ToSlice()...)
		InternalServerError("Error rendering page").Write(w)
		return
	}

	if p.Flash != "" {
		duration := 5000
		if p.FlashType == NotificationSuccess {
			duration = 3000
		}
		b.TriggerNotification(p.FlashType, p.Flash, duration)
	}
	b.BodyHTML(buf.Bytes()).Write(w)
}

// renderPage renders name with status 200.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name string, p pageData) {
	s.render(w, r, NewHTMXResponse(), name, p)
}

// redirect navigates the browser; htmx requests get HX-Redirect instead of
// a 303 so the whole page changes.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "Too many attempts. Please wait a minute and try again.").
		TriggerErrorNotification("Too many attempts. Please wait a minute and try again.").
		Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "Not found")
	s.render(w, r, NewHTMXResponse().Status(http.StatusNotFound), "notfound", p)
}
