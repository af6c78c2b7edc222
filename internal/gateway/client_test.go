package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"smartbill/internal/session"
)

func TestClient_BearerToken(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	if err := c.Get(context.Background(), PathUserBills, nil); err != nil {
		t.Fatalf("anonymous Get: %v", err)
	}
	if got := gotAuth.Load().(string); got != "" {
		t.Fatalf("anonymous Authorization = %q, want none", got)
	}

	if err := c.WithSession(session.New("tok")).Get(context.Background(), PathUserBills, nil); err != nil {
		t.Fatalf("session Get: %v", err)
	}
	if got := gotAuth.Load().(string); got != "Bearer tok" {
		t.Fatalf("Authorization = %q, want %q", got, "Bearer tok")
	}

	// the original client is not mutated by WithSession
	if err := c.Get(context.Background(), PathUserBills, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := gotAuth.Load().(string); got != "" {
		t.Fatalf("Authorization leaked into base client: %q", got)
	}
}

func TestClient_PathJoin(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/api/"})
	var out []any
	if err := c.Get(context.Background(), BillPath("abc 1"), &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotPath != "/api/bills/abc 1" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		sentinel error
	}{
		{"message field", http.StatusBadRequest, `{"message":"Email already used"}`, "Email already used", nil},
		{"error field", http.StatusInternalServerError, `{"error":"OCR failed"}`, "OCR failed", nil},
		{"plain body", http.StatusBadGateway, `upstream down`, "Bad Gateway", nil},
		{"unauthorized", http.StatusUnauthorized, ``, "Unauthorized", ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{"message":"expired"}`, "expired", ErrUnauthorized},
		{"not found", http.StatusNotFound, `{"message":"Bill not found"}`, "Bill not found", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := New(Config{BaseURL: srv.URL}).Get(context.Background(), "/x", nil)

			var gerr *Error
			if !errors.As(err, &gerr) {
				t.Fatalf("error %v is not *Error", err)
			}
			if gerr.StatusCode != tt.status || gerr.Message != tt.wantMsg {
				t.Fatalf("got %d %q, want %d %q", gerr.StatusCode, gerr.Message, tt.status, tt.wantMsg)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
			if errors.Is(err, ErrTransport) {
				t.Fatalf("HTTP error classified as transport failure")
			}
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(Config{BaseURL: url, Timeout: time.Second}).Get(context.Background(), "/bills/user", nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want transport failure", err)
	}
	if Message(err, "Failed to fetch bills") != "Failed to fetch bills" {
		t.Fatalf("transport errors should use the fallback message")
	}
}

func TestClient_NoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_ = New(Config{BaseURL: srv.URL}).Get(context.Background(), "/x", nil)
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("method=%s content-type=%s", r.Method, r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"email":"a@b.c"`) {
			t.Errorf("body = %s", body)
		}
		w.Write([]byte(`{"token":"jwt"}`))
	}))
	defer srv.Close()

	var out struct {
		Token string `json:"token"`
	}
	in := map[string]string{"email": "a@b.c", "password": "x"}
	if err := New(Config{BaseURL: srv.URL}).Post(context.Background(), PathLogin, in, &out); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if out.Token != "jwt" {
		t.Fatalf("token = %q", out.Token)
	}
}

func TestClient_PostMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("billType"); got != "Water" {
			t.Errorf("billType = %q", got)
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if fh.Filename != `bill "march".pdf` || string(data) != "%PDF" {
			t.Errorf("file = %q %q", fh.Filename, data)
		}
		w.Write([]byte(`{"bill":{"_id":"n1"}}`))
	}))
	defer srv.Close()

	var out struct {
		Bill map[string]any `json:"bill"`
	}
	form := Form{
		Fields: map[string]string{"billType": "Water"},
		Files:  []File{{Field: "file", Name: `bill "march".pdf`, Content: []byte("%PDF")}},
	}
	if err := New(Config{BaseURL: srv.URL}).PostMultipart(context.Background(), PathUpload, form, &out); err != nil {
		t.Fatalf("PostMultipart: %v", err)
	}
	if out.Bill["_id"] != "n1" {
		t.Fatalf("bill = %v", out.Bill)
	}
}

func TestClient_CookieJar(t *testing.T) {
	var second string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "c1", Path: "/"})
			w.Write([]byte(`{}`))
			return
		}
		if c, err := r.Cookie("jwt"); err == nil {
			second = c.Value
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	c := New(Config{BaseURL: srv.URL, Jar: jar})
	if err := c.Post(context.Background(), PathLogin, map[string]string{}, nil); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := c.Get(context.Background(), PathDashboard, nil); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if second != "c1" {
		t.Fatalf("cookie not replayed: %q", second)
	}
}

func TestMessage(t *testing.T) {
	err := &Error{StatusCode: 400, Message: "bad file"}
	if got := Message(err, "fallback"); got != "bad file" {
		t.Fatalf("Message = %q", got)
	}
	if got := Message(errors.New("other"), "fallback"); got != "fallback" {
		t.Fatalf("Message = %q", got)
	}
}
