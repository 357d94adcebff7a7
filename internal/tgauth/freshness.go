package tgauth

import (
	"strconv"
	"strings"
	"time"
)

// DefaultMaxAge is the default freshness window for auth_date.
const DefaultMaxAge = 24 * time.Hour

// ParseAuthDate parses an auth_date claim in Unix seconds. Empty, zero,
// negative and non-integer values are rejected.
func ParseAuthDate(raw string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// IsFresh reports whether asserted (Unix seconds) is at most maxAge old at
// now. Only the lower bound is checked here; see withinSkew.
func IsFresh(asserted int64, now time.Time, maxAge time.Duration) bool {
	if asserted <= 0 {
		return false
	}
	age := now.Unix() - asserted
	return age <= int64(maxAge/time.Second)
}

// withinSkew reports whether asserted is no further in the future than skew.
// A zero skew disables the check.
func withinSkew(asserted int64, now time.Time, skew time.Duration) bool {
	if skew <= 0 {
		return true
	}
	return asserted-now.Unix() <= int64(skew/time.Second)
}
