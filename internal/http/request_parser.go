package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"smartbill/internal/budget"
	"smartbill/internal/core"
)

// maxUploadSize caps a bill upload, multipart overhead included.
const maxUploadSize = 10 << 20

// SavingsParams are the savings calculator inputs.
type SavingsParams struct {
	Monthly decimal.Decimal
	Percent int
	// Provided is false when no monthly amount was submitted.
	Provided bool
	Err      error
}

// ParseSavingsParams reads monthly and percent from the query. A missing or
// unparsable percent falls back to defaultPercent; anything else is clamped
// into the calculator range.
func ParseSavingsParams(query url.Values, defaultPercent int) SavingsParams {
	p := SavingsParams{Percent: defaultPercent}

	if v := strings.TrimSpace(query.Get("percent")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n != 0 {
			p.Percent = budget.ClampSavingsPercent(n)
		}
	}

	if v := strings.TrimSpace(query.Get("monthly")); v != "" {
		amount, err := core.ParseAmount(v)
		if err != nil {
			p.Err = err
			return p
		}
		p.Monthly = amount
		p.Provided = true
	}
	return p
}

// ParseUploadRequest reads the billType field and the file part. A request
// without a file yields an UploadRequest that fails Validate; only a
// malformed body is an error here.
func ParseUploadRequest(w http.ResponseWriter, r *http.Request) (core.UploadRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return core.UploadRequest{}, fmt.Errorf("parse upload form: %w", err)
	}

	req := core.UploadRequest{
		Category: core.Category(sanitizeInput(r.FormValue("billType"))),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return req, nil
	case err != nil:
		return req, fmt.Errorf("read upload file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return req, fmt.Errorf("read upload file: %w", err)
	}
	req.FileName = header.Filename
	req.Content = content
	return req, nil
}

// formValue returns a trimmed, control-character-free form field.
func formValue(r *http.Request, key string) string {
	return sanitizeInput(r.FormValue(key))
}
