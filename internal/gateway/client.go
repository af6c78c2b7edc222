// Package gateway is the single HTTP client for the SmartBill backend.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"smartbill/internal/session"
)

const (
	DefaultBaseURL = "http://localhost:5000/api"
	DefaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is read for its message.
	maxErrorBody = 4 << 10
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Jar enables credentialed requests: cookies set by the backend are
	// replayed on later calls. Leave nil on multi-user servers.
	Jar http.CookieJar
	// HTTPClient overrides the transport entirely; Timeout and Jar are
	// ignored when set.
	HTTPClient *http.Client
}

// Client talks to the backend. It is safe for concurrent use; WithSession
// returns a copy bound to a caller's credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    session.Session
}

func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout, Jar: cfg.Jar}
	}
	return &Client{baseURL: base, httpClient: hc}
}

// WithSession returns a client that authenticates as s.
func (c *Client) WithSession(s session.Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

func (c *Client) BaseURL() string { return c.baseURL }

// Get decodes the JSON response of GET path into out. out may be nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, "", out)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	return c.Do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json", out)
}

// File is one multipart file part.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     []byte
}

// Form is a multipart body made of plain fields and files.
type Form struct {
	Fields map[string]string
	Files  []File
}

// PostMultipart sends form as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path string, form Form, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form.Fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, f := range form.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Name)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}
	return c.Do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), out)
}

// Do performs one request. There are no retries: any transport fault or
// non-2xx status is returned as *Error.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+c.session.Token())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "Backend request failed", "method", method, "path", path, "error", err)
		return &Error{Method: method, Path: path, Message: "network error: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Backend request completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, data),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// errorMessage prefers the backend's own message field.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if m := strings.TrimSpace(payload.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(payload.Error); m != "" {
			return m
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", status)
}
