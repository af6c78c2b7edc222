package budget

import "github.com/shopspring/decimal"

const (
	MinSavingsPercent     = 1
	MaxSavingsPercent     = 40
	DefaultSavingsPercent = 15
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// ProjectYearlySavings returns monthly * percent/100 * 12.
func ProjectYearlySavings(monthly decimal.Decimal, percent int) decimal.Decimal {
	if monthly.IsNegative() {
		monthly = decimal.Zero
	}
	return monthly.Mul(decimal.NewFromInt(int64(percent))).Div(hundred).Mul(twelve)
}

// ClampSavingsPercent keeps a user-supplied percentage inside the calculator
// range. Zero means unset and maps to the default.
func ClampSavingsPercent(p int) int {
	switch {
	case p == 0:
		return DefaultSavingsPercent
	case p < MinSavingsPercent:
		return MinSavingsPercent
	case p > MaxSavingsPercent:
		return MaxSavingsPercent
	default:
		return p
	}
}
