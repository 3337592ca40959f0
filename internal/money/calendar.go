package money

import (
	"fmt"
	"time"

	"github.com/jask/ledgerflow/internal/domain"
)

// DateLayout is the storage and input format for calendar dates.
const DateLayout = "2006-01-02"

// YearMonth is a calendar month without a day.
type YearMonth struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth parses "2006-01".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, domain.InvalidArgument("month", "expected YYYY-MM, got %q", s)
	}
	return MonthOf(t), nil
}

// ParseDate parses "2006-01-02" into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, domain.InvalidArgument("date", "expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// Date builds a UTC midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOnly truncates t to UTC midnight of its calendar day.
func DateOnly(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func (m YearMonth) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// index is a monotonic month counter, used for ordering and stepping.
func (m YearMonth) index() int { return m.Year*12 + int(m.Month) - 1 }

func fromIndex(i int) YearMonth {
	year := floorDiv(i, 12)
	return YearMonth{Year: year, Month: time.Month(i-year*12) + 1}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Compare returns -1, 0 or +1.
func (m YearMonth) Compare(o YearMonth) int {
	switch a, b := m.index(), o.index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (m YearMonth) Before(o YearMonth) bool { return m.Compare(o) < 0 }
func (m YearMonth) After(o YearMonth) bool  { return m.Compare(o) > 0 }

// FirstDay is the first calendar day of the month.
func (m YearMonth) FirstDay() time.Time { return Date(m.Year, m.Month, 1) }

// LastDay is the last calendar day of the month.
func (m YearMonth) LastDay() time.Time { return m.FirstDay().AddDate(0, 1, -1) }

// Day returns the given day in m, clamped to the month's length.
func (m YearMonth) Day(day int) time.Time {
	if last := m.LastDay().Day(); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return Date(m.Year, m.Month, day)
}

// StepMonths adds n (possibly negative) months.
func StepMonths(m YearMonth, n int) YearMonth {
	return fromIndex(m.index() + n)
}

// MonthsBetween counts the months from a to b (b - a).
func MonthsBetween(a, b YearMonth) int { return b.index() - a.index() }

// ResolveStatementMonth returns the card statement month a purchase falls
// into: the purchase month when the day is on or before closingDay,
// otherwise the following month.
func ResolveStatementMonth(purchase time.Time, closingDay int) YearMonth {
	m := MonthOf(purchase)
	if purchase.Day() <= closingDay {
		return m
	}
	return StepMonths(m, 1)
}

// GenerateMonthlySequence lists every month from start's month through end's
// month inclusive. Empty when end is before start.
func GenerateMonthlySequence(start, end time.Time) []YearMonth {
	if end.Before(start) {
		return nil
	}
	return MonthRange(MonthOf(start), MonthOf(end))
}

// MonthRange lists months from..to inclusive.
func MonthRange(from, to YearMonth) []YearMonth {
	n := MonthsBetween(from, to)
	if n < 0 {
		return nil
	}
	out := make([]YearMonth, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, StepMonths(from, i))
	}
	return out
}
