package core

import (
	"math"
	"strings"
	"time"
)

const millisPerDay = 86_400_000

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2",
}

// ParseDate accepts a calendar date (read as UTC midnight, month and day may
// be unpadded), a local date-time without zone (read as UTC) or an RFC 3339
// timestamp.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysUntil returns ceil((date - now) / 1 day) at millisecond resolution.
// ok is false when date is blank or unparseable; that "unknown" result is
// distinct from zero or negative days.
func DaysUntil(date string, now time.Time) (days int, ok bool) {
	t, ok := ParseDate(date)
	if !ok {
		return 0, false
	}
	ms := t.Sub(now).Milliseconds()
	return int(math.Ceil(float64(ms) / millisPerDay)), true
}
