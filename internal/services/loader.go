package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"smartbill/internal/budget"
	"smartbill/internal/cache"
	"smartbill/internal/core"
	"smartbill/internal/gateway"
	"smartbill/internal/normalize"
	"smartbill/internal/session"
	"smartbill/internal/timeline"
)

var (
	ErrBillNotFound = errors.New("Bill not found")
	ErrNoToken      = errors.New("backend returned no token")
)

// Loader fetches backend data for one session and normalizes it. Every view
// and CLI command goes through it.
type Loader struct {
	client *gateway.Client
	bills  *cache.LRU[core.BillRecord]
}

func NewLoader(client *gateway.Client) *Loader {
	return &Loader{client: client}
}

// WithBillCache keeps single-bill lookups in c, keyed per session. Lists
// are always fetched fresh.
func (l *Loader) WithBillCache(c *cache.LRU[core.BillRecord]) *Loader {
	l.bills = c
	return l
}

func billKey(s session.Session, id string) string {
	return s.Token() + "\x00" + id
}

func (l *Loader) Bills(ctx context.Context, s session.Session) ([]core.BillRecord, error) {
	var raws []normalize.Raw
	if err := l.client.WithSession(s).Get(ctx, gateway.PathUserBills, &raws); err != nil {
		return nil, fmt.Errorf("fetch bills: %w", err)
	}
	return normalize.Bills(raws), nil
}

func (l *Loader) Suggestions(ctx context.Context, s session.Session) ([]core.SuggestionRecord, error) {
	var raws []normalize.Raw
	if err := l.client.WithSession(s).Get(ctx, gateway.PathSuggestions, &raws); err != nil {
		return nil, fmt.Errorf("fetch suggestions: %w", err)
	}
	return normalize.Suggestions(raws), nil
}

func (l *Loader) Profile(ctx context.Context, s session.Session) (core.Profile, error) {
	var resp struct {
		User normalize.Raw `json:"user"`
	}
	if err := l.client.WithSession(s).Get(ctx, gateway.PathDashboard, &resp); err != nil {
		return core.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	return normalize.NormalizeProfile(resp.User), nil
}

// Bill fetches one bill. A 404 or an empty id yields ErrBillNotFound.
func (l *Loader) Bill(ctx context.Context, s session.Session, id string) (core.BillRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.BillRecord{}, ErrBillNotFound
	}
	if l.bills != nil {
		if b, ok := l.bills.Get(billKey(s, id)); ok {
			return b, nil
		}
	}
	var raw normalize.Raw
	err := l.client.WithSession(s).Get(ctx, gateway.BillPath(id), &raw)
	if errors.Is(err, gateway.ErrNotFound) {
		return core.BillRecord{}, fmt.Errorf("%w: %s", ErrBillNotFound, id)
	}
	if err != nil {
		return core.BillRecord{}, fmt.Errorf("fetch bill %s: %w", id, err)
	}
	if raw == nil {
		return core.BillRecord{}, fmt.Errorf("%w: %s", ErrBillNotFound, id)
	}
	bill := normalize.NormalizeBill(raw)
	if l.bills != nil {
		l.bills.Set(billKey(s, id), bill)
	}
	return bill, nil
}

// FilterBills keeps bills whose category contains q, ignoring case. An
// empty query keeps everything.
func FilterBills(bills []core.BillRecord, q string) []core.BillRecord {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return bills
	}
	out := make([]core.BillRecord, 0, len(bills))
	for _, b := range bills {
		if strings.Contains(strings.ToLower(b.Category.String()), q) {
			out = append(out, b)
		}
	}
	return out
}

// Dashboard is the data behind the dashboard page.
type Dashboard struct {
	Profile           core.Profile
	RecentBills       []core.BillRecord
	RecentSuggestions []core.SuggestionRecord
	Budget            budget.State
}

// DashboardOptions bounds the dashboard lists and sets the budget.
type DashboardOptions struct {
	RecentLimit int
	BudgetLimit decimal.Decimal
}

// Dashboard fetches profile, bills and suggestions concurrently. A failed
// fetch leaves its part empty; the joined errors are returned alongside
// whatever did load.
func (l *Loader) Dashboard(ctx context.Context, s session.Session, opts DashboardOptions) (Dashboard, error) {
	var (
		d                          Dashboard
		profileErr, billsErr, sErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		d.Profile, profileErr = l.Profile(ctx, s)
		return nil
	})
	g.Go(func() error {
		bills, err := l.Bills(ctx, s)
		d.RecentBills, billsErr = firstN(bills, opts.RecentLimit), err
		return nil
	})
	g.Go(func() error {
		sugg, err := l.Suggestions(ctx, s)
		d.RecentSuggestions, sErr = firstN(sugg, opts.RecentLimit), err
		return nil
	})
	_ = g.Wait()

	d.Budget = budget.ComputeBudget(d.RecentBills, d.RecentSuggestions, opts.BudgetLimit)

	err := errors.Join(profileErr, billsErr, sErr)
	if err != nil {
		slog.WarnContext(ctx, "Dashboard loaded partially", "error", err)
	}
	return d, err
}

// History fetches bills and suggestions concurrently and merges them into
// one timeline.
func (l *Loader) History(ctx context.Context, s session.Session, opts ...timeline.Option) ([]core.TimelineEntry, error) {
	var (
		bills []core.BillRecord
		sugg  []core.SuggestionRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bills, err = l.Bills(gctx, s)
		return err
	})
	g.Go(func() error {
		var err error
		sugg, err = l.Suggestions(gctx, s)
		return err
	})
	if err := g.Wait(); err != nil {
		return []core.TimelineEntry{}, err
	}
	return timeline.Merge(bills, sugg, opts...), nil
}

// Upload validates req locally and only then posts it to the analyzer.
func (l *Loader) Upload(ctx context.Context, s session.Session, req core.UploadRequest) (core.BillRecord, error) {
	if err := req.Validate(); err != nil {
		return core.BillRecord{}, err
	}
	category, _ := core.ParseCategory(string(req.Category))

	form := gateway.Form{
		Fields: map[string]string{"billType": category.String()},
		Files:  []gateway.File{{Field: "file", Name: req.FileName, Content: req.Content}},
	}
	var resp struct {
		Bill normalize.Raw `json:"bill"`
	}
	if err := l.client.WithSession(s).PostMultipart(ctx, gateway.PathUpload, form, &resp); err != nil {
		return core.BillRecord{}, fmt.Errorf("upload bill: %w", err)
	}
	bill := normalize.NormalizeBill(resp.Bill)
	if l.bills != nil && bill.ID != "" {
		l.bills.Set(billKey(s, bill.ID), bill)
	}
	slog.InfoContext(ctx, "Bill analyzed", "bill_id", bill.ID, "category", bill.Category)
	return bill, nil
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a session.
func (l *Loader) Login(ctx context.Context, email, password string) (session.Session, error) {
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}
	return l.authenticate(ctx, gateway.PathLogin, body)
}

// Register creates an account and returns its session.
func (l *Loader) Register(ctx context.Context, name, email, password string) (session.Session, error) {
	body := map[string]string{
		"name":     strings.TrimSpace(name),
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	return l.authenticate(ctx, gateway.PathRegister, body)
}

func (l *Loader) authenticate(ctx context.Context, path string, body any) (session.Session, error) {
	var resp tokenResponse
	if err := l.client.Post(ctx, path, body, &resp); err != nil {
		return session.Session{}, err
	}
	s := session.New(resp.Token)
	if !s.Authenticated() {
		return session.Session{}, ErrNoToken
	}
	return s, nil
}

func firstN[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
