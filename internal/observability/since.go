package observability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultWindow is the metrics window used when none is given.
const DefaultWindow = 7 * 24 * time.Hour

// ParseSince turns a metrics window into the start time relative to now.
// Accepted forms: "" (seven days), "<n>d", "<n>w", any Go duration such as
// "24h" or "90m", and an absolute date "2006-01-02" or RFC 3339 timestamp.
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Add(-DefaultWindow), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t, nil
	}

	unit := s[len(s)-1]
	if unit == 'd' || unit == 'w' {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("invalid window %q (use e.g. 7d, 2w, 24h or 2025-06-01)", s)
		}
		if unit == 'w' {
			n *= 7
		}
		return now.AddDate(0, 0, -n), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("invalid window %q (use e.g. 7d, 2w, 24h or 2025-06-01)", s)
	}
	return now.Add(-d), nil
}
