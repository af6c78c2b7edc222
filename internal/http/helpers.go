package http

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"smartbill/internal/budget"
	"smartbill/internal/core"
)

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// progressWidth converts a utilization ratio to a CSS width percentage.
func progressWidth(ratio float64) string {
	return strconv.FormatFloat(budget.ClampPercent(ratio), 'f', 0, 64)
}

// formatRatio renders an unclamped utilization ratio, e.g. "150%".
func formatRatio(ratio float64) string {
	if math.IsInf(ratio, 1) {
		return "∞"
	}
	return strconv.FormatFloat(ratio*100, 'f', 0, 64) + "%"
}

// preview shortens a bill's insight text for its card.
func preview(b core.BillRecord) string {
	text := strings.TrimSpace(b.Insight())
	const limit = 160
	if r := []rune(text); len(r) > limit {
		return strings.TrimSpace(string(r[:limit])) + "…"
	}
	return text
}

func sumAmounts(bills []core.BillRecord) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(b.TotalAmount)
	}
	return total
}
