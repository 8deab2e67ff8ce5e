// Package timeutil provides calendar helpers bound to an explicit *time.Location.
// Streaks, "today" counters and digests are all evaluated in the bot's configured
// timezone, so nothing here reads time.Local.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Clock returns the current instant. Production code uses SystemClock; tests pin it.
type Clock func() time.Time

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return time.Now
}

// Fixed returns a clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR DATE
// ══════════════════════════════════════════════════════════════════════════════

// Date is a calendar day without time or zone. The zero value means "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// DateFromTime reads the date fields of t without converting zones.
// PostgreSQL DATE columns are scanned as UTC midnight, so this is the inverse of UTC.
func DateFromTime(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// UTC returns midnight UTC of the date, the representation stored in DATE columns.
func (d Date) UTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays shifts the date by n days, normalizing month and year overflow.
func (d Date) AddDays(n int) Date {
	return DateFromTime(d.UTC().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.UTC().Before(other.UTC())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.UTC().After(other.UTC())
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// DaysBetween returns the number of whole days from a to b (negative if b is earlier).
func DaysBetween(a, b Date) int {
	return int(b.UTC().Sub(a.UTC()).Hours() / 24)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY BOUNDARIES
// ══════════════════════════════════════════════════════════════════════════════

// StartOfDay returns 00:00:00 of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	return DateOf(t, loc).In(loc)
}

// EndOfDay returns the last minute of t's day in loc (23:59:00).
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).Add(23*time.Hour + 59*time.Minute)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DateOf(a, loc) == DateOf(b, loc)
}

// ══════════════════════════════════════════════════════════════════════════════
// FORMATTING & PARSING
// ══════════════════════════════════════════════════════════════════════════════

// Common layouts.
const (
	FormatDate            = "2006-01-02"
	FormatTime            = "15:04"
	FormatRussianDate     = "02.01.2006"
	FormatRussianDateTime = "02.01.2006 15:04"
	FormatRussianShort    = "02.01"
)

// ParseDue parses a user-entered deadline in loc. Accepted forms are
// "DD.MM.YYYY" (deadline at the end of that day) and "DD.MM.YYYY HH:MM".
// The words "сегодня" and "завтра" resolve relative to now.
func ParseDue(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "сегодня", "today":
		return EndOfDay(now, loc), nil
	case "завтра", "tomorrow":
		return EndOfDay(now.In(loc).AddDate(0, 0, 1), loc), nil
	}

	if t, err := time.ParseInLocation(FormatRussianDateTime, s, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(FormatRussianDate, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q: expected DD.MM.YYYY [HH:MM]", s)
	}
	return EndOfDay(t, loc), nil
}

// LoadLocation resolves a zone name and falls back to UTC when it is unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
