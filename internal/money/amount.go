package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerflow/internal/domain"
)

// MinorDigits is the number of decimal places in one major unit.
const MinorDigits = 2

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// ParseMinor converts a decimal string such as "-1,234.56" into minor units.
// Commas are thousands separators. More than MinorDigits fractional digits
// is rejected, not rounded.
func ParseMinor(s string) (int64, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return 0, domain.InvalidArgument("amount", "empty amount")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, domain.InvalidArgument("amount", "not a number: %q", s)
	}
	scaled := d.Shift(MinorDigits)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, domain.InvalidArgument("amount", "more than %d decimal places: %q", MinorDigits, s)
	}
	if scaled.GreaterThan(maxMinor) || scaled.LessThan(minMinor) {
		return 0, domain.InvalidArgument("amount", "out of range: %q", s)
	}
	return scaled.IntPart(), nil
}

// ToDecimal converts minor units into a fixed-point decimal.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorDigits)
}

// FormatMinor renders minor units with exactly MinorDigits decimals.
func FormatMinor(minor int64) string {
	return ToDecimal(minor).StringFixed(MinorDigits)
}
