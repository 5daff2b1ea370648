package locale

import (
	"fmt"
	"time"
)

// =============================================================================
// FISCAL YEAR - April to March, on calendar dates
// =============================================================================

// IST is the zone timestamps are rendered in. Dates are bucketed on their
// own calendar day and never converted, so a date means the same day to
// FiscalPeriodOf and DaysBetween.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// FiscalYearStartMonth is the first month of the Indian fiscal year.
const FiscalYearStartMonth = time.April

// Period is an inclusive date range.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in [Start, End] by calendar date.
func (p Period) Contains(t time.Time) bool {
	d := dateOf(t)
	return !d.Before(dateOf(p.Start)) && !d.After(dateOf(p.End))
}

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// FiscalPeriodOf returns the fiscal year containing the calendar date of t.
func FiscalPeriodOf(t time.Time) Period {
	d := dateOf(t)
	year := d.Year()
	if d.Month() < FiscalYearStartMonth {
		year--
	}
	start := time.Date(year, FiscalYearStartMonth, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(1, 0, -1)}
}

// FiscalYearOf labels the fiscal year containing t, e.g. "FY2024-2025".
// The zero time yields "".
func FiscalYearOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	start := FiscalPeriodOf(t).Start.Year()
	return fmt.Sprintf("FY%d-%d", start, start+1)
}

// FiscalYearOfValue is FiscalYearOf over anything ParseFlexibleDate accepts.
// Unparseable input yields "" and is not an error.
func FiscalYearOfValue(v any) string {
	t, err := ParseFlexibleDate(v)
	if err != nil {
		return ""
	}
	return FiscalYearOf(t)
}

// DaysBetween counts calendar days from one date to another. Clock time and
// zone are ignored. The result is negative when to is before from.
func DaysBetween(from, to time.Time) int {
	return int(dateOf(to).Sub(dateOf(from)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
