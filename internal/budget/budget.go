// Package budget derives spend and savings metrics from loaded records.
package budget

import (
	"math"

	"github.com/shopspring/decimal"

	"smartbill/internal/core"
)

// DefaultLimit is the monthly budget used when none is configured.
var DefaultLimit = decimal.NewFromInt(50000)

// State is the aggregate view of a bill and suggestion set.
type State struct {
	TotalSpent   decimal.Decimal
	TotalSavings decimal.Decimal
	Limit        decimal.Decimal
	OverBudget   bool
	// UtilizationRatio is TotalSpent/Limit and may exceed 1.
	UtilizationRatio float64
}

// ComputeBudget sums the records and compares the spend against limit.
func ComputeBudget(bills []core.BillRecord, suggestions []core.SuggestionRecord, limit decimal.Decimal) State {
	spent := decimal.Zero
	for _, b := range bills {
		spent = spent.Add(b.TotalAmount)
	}
	saved := decimal.Zero
	for _, s := range suggestions {
		saved = saved.Add(s.SavingsEstimate)
	}

	return State{
		TotalSpent:       spent,
		TotalSavings:     saved,
		Limit:            limit,
		OverBudget:       spent.GreaterThan(limit),
		UtilizationRatio: ratio(spent, limit),
	}
}

func ratio(spent, limit decimal.Decimal) float64 {
	if !limit.IsPositive() {
		if spent.IsPositive() {
			return math.Inf(1)
		}
		return 0
	}
	f, _ := spent.Div(limit).Float64()
	return f
}

// Excess is how far the spend exceeds the limit, zero when within budget.
func (s State) Excess() decimal.Decimal {
	if !s.OverBudget {
		return decimal.Zero
	}
	return s.TotalSpent.Sub(s.Limit)
}

// Remaining is the unused part of the limit, zero when over budget.
func (s State) Remaining() decimal.Decimal {
	if s.TotalSpent.GreaterThanOrEqual(s.Limit) {
		return decimal.Zero
	}
	return s.Limit.Sub(s.TotalSpent)
}

// ClampPercent converts a utilization ratio to a progress-bar percentage in
// [0, 100].
func ClampPercent(ratio float64) float64 {
	switch {
	case math.IsNaN(ratio), ratio <= 0:
		return 0
	case ratio >= 1:
		return 100
	default:
		return ratio * 100
	}
}
