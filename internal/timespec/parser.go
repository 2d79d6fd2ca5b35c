// Package timespec parses the --since/--until values accepted by the CLI.
package timespec

import (
	"fmt"
	"time"
)

// Parse parses a time specification relative to now into Unix milliseconds.
// Supports two formats:
//   - Go duration format, meaning that long ago: "1h", "30m", "72h"
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
//
// A bare date such as "2025-10-29" is read as midnight UTC.
func Parse(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}
	if t, err := time.Parse(time.DateOnly, spec); err == nil {
		return t.UnixMilli(), nil
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("duration must not be negative: %s", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use a duration like '24h' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// Range is a closed time window in Unix milliseconds. A zero bound is open.
type Range struct {
	SinceMs int64
	UntilMs int64
}

// ParseRange parses both --since and --until flags relative to now and
// validates that since precedes until when both are given.
func ParseRange(since, until string, now time.Time) (Range, error) {
	var r Range
	var err error

	if since != "" {
		if r.SinceMs, err = Parse(since, now); err != nil {
			return Range{}, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if r.UntilMs, err = Parse(until, now); err != nil {
			return Range{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if r.SinceMs > 0 && r.UntilMs > 0 && r.SinceMs >= r.UntilMs {
		return Range{}, fmt.Errorf("--since must be before --until")
	}
	return r, nil
}

// Contains reports whether ms falls inside the range.
func (r Range) Contains(ms int64) bool {
	if r.SinceMs > 0 && ms < r.SinceMs {
		return false
	}
	if r.UntilMs > 0 && ms > r.UntilMs {
		return false
	}
	return true
}
