package util

import (
	"strconv"
	"time"
)

// ParseTime accepts RFC3339 (with or without fraction), unix seconds and unix
// milliseconds. It reports false for anything else.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 {
		return time.Time{}, false
	}
	if ts >= 1e12 {
		return time.UnixMilli(ts), true
	}
	return time.Unix(ts, 0), true
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}
