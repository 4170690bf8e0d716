package engine

import (
	"time"
)

// =============================================================================
// DATE ONLY - UTC calendar dates, compared by year/month/day
// =============================================================================

// DateOnly is a calendar date pinned to UTC midnight. All date reasoning in
// the engine happens at day granularity; time-of-day and timezone never
// influence a comparison.
type DateOnly struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a DateOnly.
func ParseDate(s string) (DateOnly, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return DateOnly{}, err
	}
	return DateOnly{Time: t}, nil
}

// NewDate builds a DateOnly from components.
func NewDate(year int, month time.Month, day int) DateOnly {
	return DateOnly{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d DateOnly) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d DateOnly) Before(other DateOnly) bool        { return d.normalize().Before(other.normalize()) }
func (d DateOnly) After(other DateOnly) bool         { return d.normalize().After(other.normalize()) }
func (d DateOnly) Equal(other DateOnly) bool         { return d.normalize().Equal(other.normalize()) }
func (d DateOnly) BeforeOrEqual(other DateOnly) bool { return d.Before(other) || d.Equal(other) }
func (d DateOnly) AfterOrEqual(other DateOnly) bool  { return d.After(other) || d.Equal(other) }

// Compare returns -1, 0 or 1, for mapping relational operators onto a
// single three-way comparator.
func (d DateOnly) Compare(other DateOnly) int {
	switch {
	case d.Before(other):
		return -1
	case d.After(other):
		return 1
	default:
		return 0
	}
}

func (d DateOnly) IsZero() bool   { return d.Time.IsZero() }
func (d DateOnly) String() string { return d.Time.Format(dateLayout) }

// InClosedRange reports whether d lies in [from, to], inclusive on both ends.
func (d DateOnly) InClosedRange(from, to DateOnly) bool {
	return d.AfterOrEqual(from) && d.BeforeOrEqual(to)
}
