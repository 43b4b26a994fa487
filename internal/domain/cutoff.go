package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used throughout the NHL APIs.
const DateLayout = "2006-01-02"

// Cutoff is the latest date treated as known. The zero value means no
// temporal restriction.
type Cutoff struct {
	date time.Time
	set  bool
}

// ParseCutoff parses an as-of date. An empty string yields an unset cutoff.
func ParseCutoff(raw string) (Cutoff, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Cutoff{}, nil
	}
	date, err := ParseDate(raw)
	if err != nil {
		return Cutoff{}, E(CodeTemporalViolation, "cutoff", fmt.Sprintf("invalid as-of date %q", raw), ErrInvalidCutoff)
	}
	return Cutoff{date: date, set: true}, nil
}

// CutoffAt builds a cutoff from a date, truncated to the UTC day.
func CutoffAt(date time.Time) Cutoff {
	y, m, d := date.UTC().Date()
	return Cutoff{date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), set: true}
}

// IsSet reports whether a restriction applies.
func (c Cutoff) IsSet() bool { return c.set }

// Date returns the cutoff date; it is zero when unset.
func (c Cutoff) Date() time.Time { return c.date }

// After reports whether date is later than the cutoff. It is always false
// when the cutoff is unset.
func (c Cutoff) After(date time.Time) bool {
	return c.set && date.After(c.date)
}

func (c Cutoff) String() string {
	if !c.set {
		return ""
	}
	return c.date.Format(DateLayout)
}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp and returns the UTC day.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(DateLayout) {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			y, m, d := ts.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Parse(DateLayout, raw)
}

// Window is an inclusive date range.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
