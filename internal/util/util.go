package util

import (
	"strconv"
	"strings"
)

// CoerceInt parses s as a non-negative integer and returns def for anything
// else: empty, malformed, fractional or negative input. Pagination values
// arrive as strings from query parameters and are coerced, never rejected.
func CoerceInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		// accept "20.0" style values from loosely typed clients
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return def
		}
		v = int(f)
	}

	if v < 0 {
		return def
	}
	return v
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
