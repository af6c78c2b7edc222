package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Electricity Category = "Electricity"
	Water       Category = "Water"
	Gas         Category = "Gas"
	Internet    Category = "Internet"
	Phone       Category = "Phone"
	Other       Category = "Other"
)

const (
	KindAnalysis EntryKind = "analysis"
	KindSavings  EntryKind = "savings"
)

// Categories lists every bill category in display order.
var Categories = []Category{Electricity, Water, Gas, Internet, Phone, Other}

type (
	Category string

	EntryKind string

	Tax struct {
		Name   string
		Amount decimal.Decimal
	}

	// BillRecord is one analyzed utility bill as returned by the backend.
	BillRecord struct {
		ID          string
		Category    Category
		TotalAmount decimal.Decimal
		BillDate    time.Time
		Taxes       []Tax
		AISummary   string
		Analysis    string
		Suggestions Suggestions // nil when the backend sent none
		FileURL     string
	}

	// SuggestionRecord is one optimization-engine run.
	SuggestionRecord struct {
		ID              string
		Category        Category
		SavingsEstimate decimal.Decimal
		CreatedAt       time.Time
	}

	TimelineEntry struct {
		Date     time.Time
		Title    string
		Text     string
		Kind     EntryKind
		SourceID string
	}

	// Profile is the signed-in user as reported by the dashboard endpoint.
	Profile struct {
		Name  string
		Email string
	}
)

var (
	ErrMissingFile     = errors.New("Please select a file")
	ErrMissingCategory = errors.New("Select bill type")
	ErrInvalidCategory = errors.New("invalid bill type")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// ParseCategory matches s against the known categories ignoring case.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

func (c Category) IsValid() bool {
	_, ok := ParseCategory(string(c))
	return ok
}

func (c Category) String() string { return string(c) }

// Greeting returns the local part of the e-mail address.
func (p Profile) Greeting() string {
	if i := strings.Index(p.Email, "@"); i >= 0 {
		return p.Email[:i]
	}
	if p.Email != "" {
		return p.Email
	}
	return p.Name
}

// TaxTotal sums the tax breakdown. It is not expected to match TotalAmount.
func (b BillRecord) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, t := range b.Taxes {
		total = total.Add(t.Amount)
	}
	return total
}

// Insight returns the text shown as a bill preview: the AI summary when
// present, otherwise the flattened suggestions.
func (b BillRecord) Insight() string {
	if strings.TrimSpace(b.AISummary) != "" {
		return b.AISummary
	}
	return FlattenSuggestions(b.Suggestions)
}

// DateLayout is the display format for bill and suggestion dates.
const DateLayout = "Jan 2, 2006"

// FormatDate renders t with DateLayout. The zero time renders as "-".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(DateLayout)
}
