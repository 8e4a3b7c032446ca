package utils

import (
	"strconv"
	"strings"
	"time"
)

// FormatDateInput rebuilds a partially typed date as a DD.MM.YYYY string.
// Non-digit characters are stripped, input is capped at 8 digits and dots
// are inserted after the day and month groups. Total function, safe to call
// on every keystroke.
func FormatDateInput(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	limited := digits.String()
	if len(limited) > 8 {
		limited = limited[:8]
	}

	switch {
	case len(limited) <= 2:
		return limited
	case len(limited) <= 4:
		return limited[:2] + "." + limited[2:]
	default:
		return limited[:2] + "." + limited[2:4] + "." + limited[4:]
	}
}

// ParseDate parses a DD.MM.YYYY string into a local-midnight time.
// Validation is deliberately coarse: day 1-31, month 1-12, year 2000-2100,
// no days-per-month or leap-year check.
func ParseDate(dateStr string) (time.Time, bool) {
	if len(dateStr) != 10 {
		return time.Time{}, false
	}

	parts := strings.Split(dateStr, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, false
	}

	if day < 1 || day > 31 || month < 1 || month > 12 || year < 2000 || year > 2100 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local), true
}

// ConvertToISOString converts a DD.MM.YYYY string to an RFC3339 timestamp.
// Unparseable input falls back to the current time instead of failing;
// callers that must reject bad input validate with ParseDate first.
func ConvertToISOString(dateStr string) string {
	date, ok := ParseDate(dateStr)
	if !ok {
		return time.Now().Format(time.RFC3339)
	}
	return date.Format(time.RFC3339)
}
