package http

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"smartbill/internal/budget"
	"smartbill/internal/core"
	"smartbill/internal/gateway"
	applog "smartbill/internal/log"
	"smartbill/internal/middleware/auth"
	"smartbill/internal/reflow"
	"smartbill/internal/services"
	"smartbill/internal/session"
	"smartbill/internal/storage"
	"smartbill/internal/timeline"
)

const (
	fetchFailedMessage = "Could not load your data. Please try again."
	emptyHistory       = "No history found. Start by analyzing a bill."
	emptyBills         = "No bills analyzed yet."
)

type dashboardView struct {
	Greeting    string
	Budget      budget.State
	Bills       []core.BillRecord
	Suggestions []core.SuggestionRecord
}

type historyView struct {
	Entries []core.TimelineEntry
	Empty   string
}

type billsView struct {
	Bills []core.BillRecord
	Total decimal.Decimal
	Query string
	Empty string
}

type billView struct {
	Bill     core.BillRecord
	Found    bool
	Summary  []string
	Analysis []string
	// Exactly one of these is set when the bill carries suggestions.
	SuggestionParagraphs []string
	SuggestionItems      []string
	CanExport            bool
}

type uploadView struct {
	Categories []core.Category
	Selected   core.Category
	Result     *uploadResult
}

type uploadResult struct {
	Bill      core.BillRecord
	Percent   int
	Projected decimal.Decimal
}

type savingsView struct {
	Monthly    string
	Percent    int
	MinPercent int
	MaxPercent int
	Yearly     decimal.Decimal
	Computed   bool
}

type exportView struct {
	Job storage.ExportJob
}

func upstreamErrorType(err error) string {
	if errors.Is(err, gateway.ErrTransport) {
		return applog.ErrorTypeNetwork
	}
	return applog.ErrorTypeUpstream
}

// fetchFailed handles a backend error on a page that can degrade. It
// returns true when the response was already written: an unauthorized
// session is cleared and sent to login.
func (s *Server) fetchFailed(w http.ResponseWriter, r *http.Request, err error, p *pageData) bool {
	ctx := r.Context()
	if errors.Is(err, gateway.ErrUnauthorized) {
		applog.FromContext(ctx).InfoContext(ctx, "Session rejected by backend, redirecting to login", "path", r.URL.Path)
		session.ClearCookie(w, s.cookie)
		auth.Redirect(w, r)
		return true
	}

	atomic.AddInt64(&s.appMetrics.fetchErrors, 1)
	fields := applog.NewFields().
		WithError(err).
		WithErrorType(upstreamErrorType(err)).
		WithOperation(applog.OpFetch).
		WithComponent(applog.ComponentGateway)
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		fields = fields.WithUpstream(gerr.Path, gerr.StatusCode)
	}
	applog.FromContext(ctx).ErrorContext(ctx, "Backend fetch failed", fields.ToSlice()...)

	p.flash(NotificationError, gateway.Message(err, fetchFailedMessage))
	return false
}

func currentSession(r *http.Request) session.Session {
	if s, ok := session.FromContext(r.Context()); ok {
		return s
	}
	return session.FromRequest(r)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := s.settings.Get()
	p := s.page(r, "Dashboard")

	d, err := s.loader.Dashboard(r.Context(), currentSession(r), services.DashboardOptions{
		RecentLimit: st.Budget.RecentLimit,
		BudgetLimit: st.BudgetLimit(),
	})
	if err != nil && s.fetchFailed(w, r, err, &p) {
		return
	}

	p.View = dashboardView{
		Greeting:    d.Profile.Greeting(),
		Budget:      d.Budget,
		Bills:       d.RecentBills,
		Suggestions: d.RecentSuggestions,
	}
	s.renderPage(w, r, "dashboard", p)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	st := s.settings.Get()
	p := s.page(r, "History")

	entries, err := s.loader.History(r.Context(), currentSession(r), timeline.WithCurrency(st.CurrencySymbol()))
	if err != nil && s.fetchFailed(w, r, err, &p) {
		return
	}

	p.View = historyView{Entries: entries, Empty: emptyHistory}
	s.renderPage(w, r, "history", p)
}

func (s *Server) handleMyBills(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "My Bills")
	q := sanitizeInput(r.URL.Query().Get("q"))

	bills, err := s.loader.Bills(r.Context(), currentSession(r))
	if err != nil && s.fetchFailed(w, r, err, &p) {
		return
	}

	bills = services.FilterBills(bills, q)
	p.View = billsView{Bills: bills, Total: sumAmounts(bills), Query: q, Empty: emptyBills}
	s.renderPage(w, r, "bills", p)
}

func (s *Server) handleBill(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "Bill Analysis")
	status := http.StatusOK

	bill, err := s.loader.Bill(r.Context(), currentSession(r), r.PathValue("id"))
	switch {
	case errors.Is(err, services.ErrBillNotFound):
		status = http.StatusNotFound
	case err != nil:
		if s.fetchFailed(w, r, err, &p) {
			return
		}
	}

	view := billView{Bill: bill, Found: err == nil, CanExport: s.exports != nil}
	if view.Found {
		opts := s.settings.Get().ReflowOptions()
		view.Summary = opts.Reflow(bill.AISummary)
		view.Analysis = opts.Reflow(bill.Analysis)
		view.SuggestionParagraphs, view.SuggestionItems = suggestionBlocks(bill.Suggestions, opts)
	}
	p.View = view
	s.render(w, r, NewHTMXResponse().Status(status), "bill", p)
}

// suggestionBlocks renders text suggestions as reflowed paragraphs and list
// suggestions as items.
func suggestionBlocks(sg core.Suggestions, opts reflow.Options) (paragraphs, items []string) {
	switch v := sg.(type) {
	case core.SuggestionText:
		return opts.Reflow(string(v)), nil
	case core.SuggestionList:
		for _, item := range v {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return nil, items
	}
	return nil, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.exports == nil {
		ErrorResponse(http.StatusServiceUnavailable, "Report export is not configured").Write(w)
		return
	}

	bill, err := s.loader.Bill(ctx, currentSession(r), r.PathValue("id"))
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		session.ClearCookie(w, s.cookie)
		auth.Redirect(w, r)
		return
	case errors.Is(err, services.ErrBillNotFound):
		ErrorResponse(http.StatusNotFound, services.ErrBillNotFound.Error()).Write(w)
		return
	case err != nil:
		atomic.AddInt64(&s.appMetrics.fetchErrors, 1)
		applog.FromContext(ctx).ErrorContext(ctx, "Export bill fetch failed", "error", err)
		ErrorResponse(http.StatusBadGateway, gateway.Message(err, fetchFailedMessage)).Write(w)
		return
	}

	job, err := s.exports.Request(ctx, bill)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Export request failed",
			applog.NewFields().
				WithBill(bill.ID, bill.Category.String()).
				WithError(err).
				WithErrorType(applog.ErrorTypeInternal).
				WithOperation(applog.OpExport).
				WithComponent(applog.ComponentExport).
				ToSlice()...)
		InternalServerError("Report export failed").
			TriggerErrorNotification("Report export failed").
			Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.exports, 1)

	status, msg := http.StatusAccepted, "Report export queued"
	if job.Status == storage.JobDone {
		status, msg = http.StatusOK, "Report exported"
	}
	p := s.page(r, "Export")
	p.View = exportView{Job: job}
	p.flash(NotificationSuccess, msg)
	s.render(w, r, NewHTMXResponse().
		Status(status).
		TriggerExportQueued(bill.ID, job.ID, string(job.Status)),
		"export_result", p)
}

func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "Upload Bill")
	p.View = uploadView{Categories: core.Categories}
	s.renderPage(w, r, "upload", p)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := s.page(r, "Upload Bill")
	view := uploadView{Categories: core.Categories}

	req, err := ParseUploadRequest(w, r)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Malformed upload",
			applog.NewFields().WithError(err).WithErrorType(applog.ErrorTypeValidation).ToSlice()...)
		BadRequestError("Invalid upload").Write(w)
		return
	}
	view.Selected = req.Category

	if err := req.Validate(); err != nil {
		p.View = view
		p.flash(NotificationWarning, err.Error())
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "upload", p)
		return
	}

	bill, err := s.loader.Upload(ctx, currentSession(r), req)
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			session.ClearCookie(w, s.cookie)
			auth.Redirect(w, r)
			return
		}
		applog.FromContext(ctx).ErrorContext(ctx, "Bill upload failed",
			applog.NewFields().
				WithError(err).
				WithErrorType(upstreamErrorType(err)).
				WithOperation(applog.OpUpload).
				WithComponent(applog.ComponentGateway).
				ToSlice()...)
		p.View = view
		p.flash(NotificationError, gateway.Message(err, "Upload failed"))
		s.renderPage(w, r, "upload", p)
		return
	}
	atomic.AddInt64(&s.appMetrics.uploads, 1)

	percent := s.settings.Get().Savings.UploadPercent
	view.Result = &uploadResult{
		Bill:      bill,
		Percent:   percent,
		Projected: budget.ProjectYearlySavings(bill.TotalAmount, percent),
	}
	p.View = view
	p.flash(NotificationSuccess, "Bill analyzed")
	s.render(w, r, NewHTMXResponse().TriggerBillUploaded(bill.ID).TriggerFormReset(), "upload", p)
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "Savings Calculator")
	params := ParseSavingsParams(r.URL.Query(), s.settings.Get().Savings.DefaultPercent)

	view := savingsView{
		Monthly:    sanitizeInput(r.URL.Query().Get("monthly")),
		Percent:    params.Percent,
		MinPercent: budget.MinSavingsPercent,
		MaxPercent: budget.MaxSavingsPercent,
	}
	if params.Err != nil {
		p.flash(NotificationWarning, "Enter a valid monthly amount")
	} else if params.Provided {
		view.Yearly = budget.ProjectYearlySavings(params.Monthly, params.Percent)
		view.Computed = true
	}
	p.View = view
	s.renderPage(w, r, "savings", p)
}
