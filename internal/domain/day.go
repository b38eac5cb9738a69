package domain

import (
	"fmt"
	"time"
)

// DateFormat is the ISO-8601 day format used in URLs, flags and exports.
const DateFormat = "2006-01-02"

// Day is 24 hours.
const Day = 24 * time.Hour

// NormalizeDay returns the instant truncated to midnight UTC.
func NormalizeDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayFromUnix returns the midnight UTC day containing the unix timestamp.
func DayFromUnix(sec int64) time.Time {
	return NormalizeDay(time.Unix(sec, 0))
}

// ParseDay parses a YYYY-MM-DD string into a midnight UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}
