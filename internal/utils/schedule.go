package utils

import "time"

// NextPaymentDate selects the date to surface as a customer's next payment
// date from a set of DD.MM.YYYY candidates. Unparseable entries are dropped.
// The closest date on or after today wins; if every candidate is in the
// past, the most recent one is returned so the operator can follow up.
// Returns false when nothing usable remains.
func NextPaymentDate(dateStrings []string, today time.Time) (string, bool) {
	if len(dateStrings) == 0 {
		return "", false
	}

	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	type candidate struct {
		str  string
		date time.Time
	}

	var parsed []candidate
	for _, str := range dateStrings {
		if date, ok := ParseDate(str); ok {
			parsed = append(parsed, candidate{str: str, date: date})
		}
	}
	if len(parsed) == 0 {
		return "", false
	}

	var future []candidate
	for _, c := range parsed {
		if !c.date.Before(midnight) {
			future = append(future, c)
		}
	}

	if len(future) > 0 {
		best := future[0]
		for _, c := range future[1:] {
			if c.date.Before(best.date) {
				best = c
			}
		}
		return best.str, true
	}

	latest := parsed[0]
	for _, c := range parsed[1:] {
		if c.date.After(latest.date) {
			latest = c
		}
	}
	return latest.str, true
}
