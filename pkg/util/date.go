package util

import (
	"fmt"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// ParseTime tries YYYY-MM-DD, RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// TruncateDay drops the clock part of t in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange resolves a [start, end) calendar range. An empty end means the day after now,
// so bars dated today are included.
func DateRange(start, end string, now time.Time) (time.Time, time.Time, error) {
	from, ok := ParseTime(start)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", start)
	}
	to := TruncateDay(now).AddDate(0, 0, 1)
	if end != "" {
		t, ok := ParseTime(end)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", end)
		}
		to = TruncateDay(t)
	}
	from = TruncateDay(from)
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", from.Format(dateLayout), to.Format(dateLayout))
	}
	return from, to, nil
}
