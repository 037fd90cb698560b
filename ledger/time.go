package ledger

import (
	"time"
)

// =============================================================================
// CIVIL DATES
// =============================================================================
// Dates are represented as time.Time at UTC midnight. DateOf normalizes any
// time to that form using the calendar day in the time's own location.

func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// DaysBetween returns whole calendar days from -> to (negative if to is earlier).
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)) / (24 * time.Hour))
}

// =============================================================================
// TEMPORAL CALCULATOR
// =============================================================================

// CountMondaysSince counts Mondays in [start, today], inclusive of both ends.
// Each Monday is one week of contribution owed.
func CountMondaysSince(start, today time.Time) int {
	s, t := DateOf(start), DateOf(today)
	if t.Before(s) {
		return 0
	}

	offset := (int(time.Monday) - int(s.Weekday()) + 7) % 7
	first := s.AddDate(0, 0, offset)
	if first.After(t) {
		return 0
	}
	return DaysBetween(first, t)/7 + 1
}

// WeeksSince is floor(days elapsed / 7), never negative.
func WeeksSince(start, today time.Time) int {
	days := DaysBetween(start, today)
	if days < 0 {
		return 0
	}
	return days / 7
}

// =============================================================================
// CLOCK - "today" supplier
// =============================================================================

// Clock supplies the current civil date. The engine never reads the system
// clock itself.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in Location (UTC when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() time.Time {
	now := time.Now()
	if c.Location != nil {
		now = now.In(c.Location)
	}
	return DateOf(now)
}

// FixedClock always returns the same day.
type FixedClock time.Time

func (c FixedClock) Today() time.Time { return DateOf(time.Time(c)) }
