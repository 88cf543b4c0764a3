package ingest

import (
	"fmt"
	"strconv"
	"time"
)

// Timestamp layouts tried in order. Zoneless layouts are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// epochMillisFloor separates epoch seconds from epoch milliseconds.
// Values at or above it would be year 33658 as seconds.
const epochMillisFloor = 1e12

// ParseTimestamp parses a raw timestamp string into a UTC time. Accepts
// RFC3339, space-separated exports with or without zone, bare dates, and
// integer epoch seconds or milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if isDigits(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return timeFromEpoch(float64(n)), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// timeFromEpoch converts a numeric epoch value, choosing seconds or
// milliseconds by magnitude.
func timeFromEpoch(f float64) time.Time {
	if f >= epochMillisFloor {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
