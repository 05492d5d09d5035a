package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultTokenTTL = time.Hour

var expiryPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d|w|y)?$`)

var expiryUnits = map[string]time.Duration{
	"":   time.Millisecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
	"y":  time.Duration(365.25 * float64(24*time.Hour)),
}

// ParseExpiry turns JWT_EXPIRES_IN into a duration. Bare digits are
// milliseconds. Empty, unrecognised or overflowing input yields one hour.
func ParseExpiry(raw string) time.Duration {
	m := expiryPattern.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return defaultTokenTTL
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return defaultTokenTTL
	}
	unit := expiryUnits[m[2]]
	if n > int64(1<<63-1)/int64(unit) {
		return defaultTokenTTL
	}
	return time.Duration(n) * unit
}
