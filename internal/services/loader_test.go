package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartbill/internal/cache"
	"smartbill/internal/core"
	"smartbill/internal/gateway"
	"smartbill/internal/session"
)

const (
	billsJSON = `[
		{"_id":"b1","billType":"Electricity","totalAmount":30000,"billDate":"2024-03-01T00:00:00Z"},
		{"_id":"b2","billType":"water","totalAmount":"45000","billDate":"2024-02-01"},
		{"_id":"b3","billType":"Gas","totalAmount":5000,"billDate":"2024-01-01"}
	]`
	suggestionsJSON = `[
		{"_id":"s1","billCategory":"Electricity","savingsEstimate":1200,"createdAt":"2024-03-02T00:00:00Z"}
	]`
)

// fakeBackend serves canned responses keyed by path and records the
// Authorization header of every call.
type fakeBackend struct {
	routes map[string]func(w http.ResponseWriter, r *http.Request)
	auth   atomic.Value
	hits   atomic.Int32
}

func newFakeBackend(t *testing.T) (*fakeBackend, *gateway.Client) {
	t.Helper()
	fb := &fakeBackend{routes: map[string]func(http.ResponseWriter, *http.Request){
		gateway.PathUserBills:   jsonHandler(http.StatusOK, billsJSON),
		gateway.PathSuggestions: jsonHandler(http.StatusOK, suggestionsJSON),
		gateway.PathDashboard:   jsonHandler(http.StatusOK, `{"user":{"name":"Asha","email":"asha@example.com"}}`),
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.hits.Add(1)
		fb.auth.Store(r.Header.Get("Authorization"))
		if h, ok := fb.routes[r.URL.Path]; ok {
			h(w, r)
			return
		}
		jsonHandler(http.StatusNotFound, `{"message":"Bill not found"}`)(w, r)
	}))
	t.Cleanup(srv.Close)
	return fb, gateway.New(gateway.Config{BaseURL: srv.URL})
}

func jsonHandler(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

var testSession = session.New("tok")

func TestLoader_Bills(t *testing.T) {
	fb, client := newFakeBackend(t)
	bills, err := NewLoader(client).Bills(context.Background(), testSession)
	if err != nil {
		t.Fatalf("Bills: %v", err)
	}
	if len(bills) != 3 || bills[1].Category != core.Water || !bills[1].TotalAmount.Equal(decimal.NewFromInt(45000)) {
		t.Fatalf("bills = %+v", bills)
	}
	if got := fb.auth.Load(); got != "Bearer tok" {
		t.Fatalf("Authorization = %v", got)
	}
}

func TestLoader_Bill(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.routes["/bills/b1"] = jsonHandler(http.StatusOK, `{"_id":"b1","billType":"Gas","suggestions":["a","b"]}`)
	l := NewLoader(client)

	bill, err := l.Bill(context.Background(), testSession, "b1")
	if err != nil {
		t.Fatalf("Bill: %v", err)
	}
	if bill.Category != core.Gas {
		t.Fatalf("bill = %+v", bill)
	}
	if list, ok := bill.Suggestions.(core.SuggestionList); !ok || len(list) != 2 {
		t.Fatalf("suggestions = %#v", bill.Suggestions)
	}

	if _, err := l.Bill(context.Background(), testSession, "missing"); !errors.Is(err, ErrBillNotFound) {
		t.Fatalf("missing bill err = %v", err)
	}

	before := fb.hits.Load()
	if _, err := l.Bill(context.Background(), testSession, " "); !errors.Is(err, ErrBillNotFound) {
		t.Fatalf("empty id err = %v", err)
	}
	if fb.hits.Load() != before {
		t.Fatalf("empty id should not reach the backend")
	}
}

func TestLoader_BillCache(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.routes[gateway.BillPath("b1")] = jsonHandler(http.StatusOK, `{"_id":"b1","billType":"Gas","totalAmount":10}`)
	loader := NewLoader(client).WithBillCache(cache.NewLRU[core.BillRecord](10, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b, err := loader.Bill(ctx, testSession, "b1")
		if err != nil || b.Category != core.Gas {
			t.Fatalf("Bill #%d = %+v, %v", i, b, err)
		}
	}
	if n := fb.hits.Load(); n != 1 {
		t.Fatalf("backend hits = %d, want 1", n)
	}

	// Another session does not see the cached bill.
	if _, err := loader.Bill(ctx, session.New("other"), "b1"); err != nil {
		t.Fatalf("Bill other session: %v", err)
	}
	if n := fb.hits.Load(); n != 2 {
		t.Fatalf("backend hits = %d, want 2", n)
	}
}

func TestLoader_Dashboard(t *testing.T) {
	_, client := newFakeBackend(t)

	d, err := NewLoader(client).Dashboard(context.Background(), testSession, DashboardOptions{
		RecentLimit: 2,
		BudgetLimit: decimal.NewFromInt(50000),
	})
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Profile.Greeting() != "asha" {
		t.Fatalf("greeting = %q", d.Profile.Greeting())
	}
	if len(d.RecentBills) != 2 {
		t.Fatalf("recent bills = %d, want 2", len(d.RecentBills))
	}
	// First two bills only: 30000 + 45000.
	if !d.Budget.TotalSpent.Equal(decimal.NewFromInt(75000)) || !d.Budget.OverBudget {
		t.Fatalf("budget = %+v", d.Budget)
	}
	if d.Budget.UtilizationRatio != 1.5 {
		t.Fatalf("ratio = %v", d.Budget.UtilizationRatio)
	}
	if !d.Budget.TotalSavings.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("savings = %s", d.Budget.TotalSavings)
	}
}

func TestLoader_DashboardPartialFailure(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.routes[gateway.PathSuggestions] = jsonHandler(http.StatusInternalServerError, `{"message":"db down"}`)

	d, err := NewLoader(client).Dashboard(context.Background(), testSession, DashboardOptions{
		RecentLimit: 5,
		BudgetLimit: decimal.NewFromInt(50000),
	})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("err = %v", err)
	}
	if len(d.RecentBills) != 3 || len(d.RecentSuggestions) != 0 {
		t.Fatalf("partial dashboard = %+v", d)
	}
	if d.Profile.Email == "" {
		t.Fatalf("profile should still load")
	}
}

func TestLoader_DashboardUnauthorized(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.routes[gateway.PathDashboard] = jsonHandler(http.StatusUnauthorized, `{"message":"jwt expired"}`)

	_, err := NewLoader(client).Dashboard(context.Background(), testSession, DashboardOptions{})
	if !errors.Is(err, gateway.ErrUnauthorized) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

func TestLoader_History(t *testing.T) {
	_, client := newFakeBackend(t)
	entries, err := NewLoader(client).History(context.Background(), testSession)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	if entries[0].Kind != core.KindSavings || entries[0].Title != "Electricity Optimization" {
		t.Fatalf("newest entry = %+v", entries[0])
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Date.After(entries[i-1].Date) {
			t.Fatalf("timeline not sorted at %d", i)
		}
	}
}

func TestLoader_HistoryFailure(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.routes[gateway.PathUserBills] = jsonHandler(http.StatusBadGateway, ``)

	entries, err := NewLoader(client).History(context.Background(), testSession)
	if err == nil {
		t.Fatalf("expected error")
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("entries = %v, want empty non-nil", entries)
	}
}

func TestFilterBills(t *testing.T) {
	bills := []core.BillRecord{{ID: "1", Category: core.Electricity}, {ID: "2", Category: core.Water}}
	tests := []struct {
		q    string
		want int
	}{
		{"", 2},
		{"  ", 2},
		{"elec", 1},
		{"WATER", 1},
		{"gas", 0},
	}
	for _, tt := range tests {
		if got := FilterBills(bills, tt.q); len(got) != tt.want {
			t.Errorf("FilterBills(%q) = %d bills, want %d", tt.q, len(got), tt.want)
		}
	}
}

func TestLoader_Upload(t *testing.T) {
	fb, client := newFakeBackend(t)
	var gotType string
	fb.routes[gateway.PathUpload] = func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse: %v", err)
		}
		gotType = r.FormValue("billType")
		jsonHandler(http.StatusOK, `{"bill":{"_id":"n1","billType":"Water","totalAmount":800}}`)(w, r)
	}
	l := NewLoader(client)

	bill, err := l.Upload(context.Background(), testSession, core.UploadRequest{
		FileName: "march.pdf",
		Content:  []byte("%PDF"),
		Category: "water",
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotType != "Water" || bill.ID != "n1" {
		t.Fatalf("billType=%q bill=%+v", gotType, bill)
	}
}

func TestLoader_UploadValidationSkipsNetwork(t *testing.T) {
	fb, client := newFakeBackend(t)
	l := NewLoader(client)

	tests := []struct {
		name string
		req  core.UploadRequest
		want error
	}{
		{"no file", core.UploadRequest{Category: core.Water}, core.ErrMissingFile},
		{"no category", core.UploadRequest{FileName: "a.pdf", Content: []byte("x")}, core.ErrMissingCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := fb.hits.Load()
			if _, err := l.Upload(context.Background(), testSession, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if fb.hits.Load() != before {
				t.Fatalf("validation failure reached the backend")
			}
		})
	}
}

func TestLoader_Login(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.routes[gateway.PathLogin] = jsonHandler(http.StatusOK, `{"token":"jwt-1"}`)
	fb.routes[gateway.PathRegister] = jsonHandler(http.StatusBadRequest, `{"message":"User already exists"}`)
	l := NewLoader(client)

	s, err := l.Login(context.Background(), "a@b.c", "pw")
	if err != nil || s.Token() != "jwt-1" {
		t.Fatalf("Login = %q, %v", s.Token(), err)
	}
	if got := fb.auth.Load(); got != "" {
		t.Fatalf("login sent Authorization %v", got)
	}

	_, err = l.Register(context.Background(), "A", "a@b.c", "pw")
	if gateway.Message(err, "Register failed") != "User already exists" {
		t.Fatalf("Register err = %v", err)
	}
}

func TestLoader_LoginWithoutToken(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.routes[gateway.PathLogin] = jsonHandler(http.StatusOK, `{}`)

	if _, err := NewLoader(client).Login(context.Background(), "a@b.c", "pw"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}
