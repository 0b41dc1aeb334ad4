package services

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date (YYYY-MM-DD) or an RFC 3339 timestamp and
// returns midnight UTC of that calendar day.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return dateOnly(t), nil
}

// dateOnly drops the clock part, keeping the calendar day t falls on in its
// own location.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// isFutureDay reports whether day is strictly after the calendar day of now.
func isFutureDay(day, now time.Time) bool {
	return dateOnly(day).After(dateOnly(now))
}
