// Package duration parses the compact duration grammar used throughout the
// service configuration: an integer followed by a single unit, e.g. "30s",
// "15m", "2h", "7d". The same parser feeds both token expiry and cookie
// max-age so the two cannot silently diverge.
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default is the fallback applied when an expiry string cannot be parsed.
const Default = 15 * time.Minute

const Day = 24 * time.Hour

// Parse converts a compact duration string into a time.Duration.
// Supported units: s (seconds), m (minutes), h (hours), d (days).
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("parse duration %q: too short", s)
	}

	value, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("parse duration %q: value must be positive", s)
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = Day
	default:
		return 0, fmt.Errorf("parse duration %q: unknown unit %q", s, s[len(s)-1])
	}

	return time.Duration(value) * unit, nil
}

// ParseOrDefault parses s, falling back to Default on any parse failure.
func ParseOrDefault(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		return Default
	}
	return d
}
