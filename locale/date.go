package locale

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// =============================================================================
// DATE PARSING - Ordered strategies, first success wins
// =============================================================================

// ErrUnparseableDate is wrapped by every DateParseError.
var ErrUnparseableDate = errors.New("unparseable date")

// DateParseError reports input that no parsing strategy accepted.
// Callers treat the field as absent rather than failing the whole form.
type DateParseError struct {
	Input string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("cannot parse %q as a date", e.Input)
}

func (e *DateParseError) Unwrap() error { return ErrUnparseableDate }

// dateStrategy tries one family of layouts. ok=false means "not mine",
// never a hard failure.
type dateStrategy struct {
	name  string
	parse func(s string) (t time.Time, ok bool)
}

var (
	dayFirstLayouts = []string{
		"2/1/2006",
		"2-1-2006",
		"2.1.2006",
		"2/1/2006 15:04:05",
		"2-1-2006 15:04:05",
		"2/1/2006 15:04",
		"02/01/06",
	}

	isoLayouts = []string{
		"2006-01-02",
		"2006-1-2",
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006/1/2",
		"2006.01.02",
	}

	monthFirstLayouts = []string{
		"1/2/2006",
		"1-2-2006",
		"1/2/2006 15:04:05",
	}

	commonLayouts = []string{
		"02 Jan 2006",
		"2 Jan 2006",
		"02-Jan-2006",
		"2-Jan-2006",
		"02-Jan-06",
		"02/Jan/2006",
		"2 January 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 2 2006",
		"2006-Jan-02",
		"Mon, 02 Jan 2006",
		"Monday, 02 January 2006",
		time.RFC1123,
		time.RFC1123Z,
		time.RFC822,
	}

	dateStrategies = []dateStrategy{
		{name: "compact-dmy", parse: compact("02012006")},
		{name: "compact-ymd", parse: compact("20060102")},
		{name: "day-first", parse: layouts(dayFirstLayouts)},
		{name: "iso", parse: layouts(isoLayouts)},
		{name: "month-first", parse: layouts(monthFirstLayouts)},
		{name: "common", parse: layouts(commonLayouts)},
		{name: "best-guess", parse: bestGuess},
	}
)

// ParseFlexibleDate turns user input into a time.
//
// time.Time and *time.Time are returned as-is. Strings are tried against,
// in order: 8-digit DDMMYYYY, 8-digit YYYYMMDD, day-first, ISO year-first,
// US month-first, a list of common written formats and finally a
// best-guess parser. A *DateParseError is returned only when all fail.
func ParseFlexibleDate(input any) (time.Time, error) {
	switch v := input.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, &DateParseError{Input: ""}
		}
		return v, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, &DateParseError{Input: ""}
		}
		return *v, nil
	case string:
		return parseDateString(v)
	case fmt.Stringer:
		return parseDateString(v.String())
	default:
		return time.Time{}, &DateParseError{Input: fmt.Sprint(input)}
	}
}

// ParseOptionalDate parses s, returning nil for blank or unparseable input.
func ParseOptionalDate(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseFlexibleDate(s)
	if err != nil {
		return nil
	}
	return &t
}

func parseDateString(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, &DateParseError{Input: raw}
	}
	for _, strategy := range dateStrategies {
		if t, ok := strategy.parse(s); ok {
			return t, nil
		}
	}
	return time.Time{}, &DateParseError{Input: raw}
}

func compact(layout string) func(string) (time.Time, bool) {
	return func(s string) (time.Time, bool) {
		if len(s) != 8 || !allDigits(s) {
			return time.Time{}, false
		}
		t, err := time.Parse(layout, s)
		return t, err == nil
	}
}

func layouts(candidates []string) func(string) (time.Time, bool) {
	return func(s string) (time.Time, bool) {
		for _, layout := range candidates {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
}

func bestGuess(s string) (time.Time, bool) {
	t, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(false))
	return t, err == nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
