/*
Package locale provides the fixed Indian presentation rules used across the system.

PURPOSE:
  Every amount shown to a user goes through this package. Formatting is
  fixed to the Indian convention (lakh/crore digit grouping, rupee symbol)
  and fiscal years run April to March on calendar dates. Nothing here is configurable
  and nothing here holds state.

KEY FUNCTIONS IN THIS FILE (currency.go):
  - FormatCurrency:       ₹ 12,34,567.25
  - FormatPlainNumber:    12,34,567 (integer part only)
  - AmountInLakhsCrores:  "12.35 Lakhs", "1.20 Crores"

GROUPING:
  The rightmost three digits form one group; everything to the left is
  grouped in pairs.

    1234567   -> 12,34,567
    100000    -> 1,00,000
    999       -> 999

SEE ALSO:
  - date.go: Flexible date parsing
  - fiscal.go: Fiscal year labels
*/
package locale

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	currencySymbol = "₹ "

	// Amounts are shown with at most this many decimals.
	maxDecimals = 4
)

var (
	oneLakh  = decimal.NewFromInt(100_000)
	oneCrore = decimal.NewFromInt(10_000_000)
)

// =============================================================================
// CURRENCY
// =============================================================================

// FormatCurrency renders an amount as rupees with Indian digit grouping.
// Zero renders as "₹ 0". Decimals are kept up to four places with trailing
// zeros stripped. Negative amounts are prefixed with "-" ahead of the symbol.
func FormatCurrency(amount decimal.Decimal) string {
	rounded := amount.Round(maxDecimals)
	if rounded.IsZero() {
		return currencySymbol + "0"
	}
	if rounded.IsNegative() {
		return "-" + FormatCurrency(rounded.Neg())
	}

	whole := rounded.Truncate(0)
	out := currencySymbol + groupIndian(whole.String())

	if frac := fractionDigits(rounded.Sub(whole)); frac != "" {
		out += "." + frac
	}
	return out
}

// FormatCurrencyFloat is FormatCurrency for raw float input.
// NaN and infinities render as "₹ 0".
func FormatCurrencyFloat(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return currencySymbol + "0"
	}
	return FormatCurrency(decimal.NewFromFloat(amount))
}

// FormatPlainNumber groups the integer part of amount without a currency
// symbol. The fractional part is truncated, not rounded.
func FormatPlainNumber(amount decimal.Decimal) string {
	whole := amount.Truncate(0)
	if whole.IsNegative() {
		return "-" + groupIndian(whole.Neg().String())
	}
	return groupIndian(whole.String())
}

// AmountInLakhsCrores returns a short magnitude hint for large amounts.
// Below one lakh the hint is empty.
func AmountInLakhsCrores(amount decimal.Decimal) string {
	switch {
	case amount.LessThan(oneLakh):
		return ""
	case amount.LessThan(oneCrore):
		return amount.Div(oneLakh).StringFixed(2) + " Lakhs"
	default:
		return amount.Div(oneCrore).StringFixed(2) + " Crores"
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// groupIndian inserts separators into a string of digits.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	groups = append(groups, tail)
	return strings.Join(groups, ",")
}

// fractionDigits returns the digits after the decimal point of a value in
// [0, 1), without trailing zeros.
func fractionDigits(frac decimal.Decimal) string {
	if frac.IsZero() {
		return ""
	}
	fixed := frac.StringFixed(maxDecimals) // "0.1200"
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		fixed = fixed[i+1:]
	}
	return strings.TrimRight(fixed, "0")
}
