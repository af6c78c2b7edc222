// Package timeline merges bills and optimization runs into one feed.
package timeline

import (
	"slices"

	"smartbill/internal/core"
)

type options struct {
	currency core.Currency
}

type Option func(*options)

// WithCurrency sets the symbol used in entry texts.
func WithCurrency(c core.Currency) Option {
	return func(o *options) { o.currency = c }
}

// Merge builds the history feed, most recent first.
//
// Savings entries are laid out before analysis entries and the sort is
// stable, so on equal timestamps a savings entry precedes an analysis entry
// and each kind keeps its input order. No deduplication is performed.
func Merge(bills []core.BillRecord, suggestions []core.SuggestionRecord, opts ...Option) []core.TimelineEntry {
	o := options{currency: core.DefaultCurrency}
	for _, opt := range opts {
		opt(&o)
	}

	entries := make([]core.TimelineEntry, 0, len(bills)+len(suggestions))
	for _, s := range suggestions {
		entries = append(entries, FromSuggestion(s, o.currency))
	}
	for _, b := range bills {
		entries = append(entries, FromBill(b, o.currency))
	}

	slices.SortStableFunc(entries, func(a, b core.TimelineEntry) int {
		return b.Date.Compare(a.Date)
	})
	return entries
}

func FromBill(b core.BillRecord, c core.Currency) core.TimelineEntry {
	return core.TimelineEntry{
		Date:     b.BillDate,
		Title:    b.Category.String() + " Analysis",
		Text:     "Total Amount: " + c.Format(b.TotalAmount),
		Kind:     core.KindAnalysis,
		SourceID: b.ID,
	}
}

func FromSuggestion(s core.SuggestionRecord, c core.Currency) core.TimelineEntry {
	return core.TimelineEntry{
		Date:     s.CreatedAt,
		Title:    s.Category.String() + " Optimization",
		Text:     "Savings Found: " + c.Format(s.SavingsEstimate),
		Kind:     core.KindSavings,
		SourceID: s.ID,
	}
}
