// Package calendar implements the exchange-local date/time arithmetic that
// bar replay, session-boundary detection, and the exit-switch rely on.
package calendar

import (
	"fmt"
	"time"
)

// Time is a wall-clock time of day, exchange-local, with minute resolution.
type Time struct {
	Hour   int
	Minute int
}

// NewTime constructs a Time, panicking on an out-of-range hour/minute since
// all callers pass compile-time-known session constants.
func NewTime(hour, minute int) Time {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		panic(fmt.Sprintf("calendar: invalid time %02d:%02d", hour, minute))
	}
	return Time{Hour: hour, Minute: minute}
}

// Minutes returns the time of day expressed as minutes since midnight.
func (t Time) Minutes() int { return t.Hour*60 + t.Minute }

// Before reports whether t is strictly earlier than other within one day.
func (t Time) Before(other Time) bool { return t.Minutes() < other.Minutes() }

// Compare returns -1, 0, 1 as t is before, equal to, or after other.
func (t Time) Compare(other Time) int {
	switch {
	case t.Minutes() < other.Minutes():
		return -1
	case t.Minutes() > other.Minutes():
		return 1
	default:
		return 0
	}
}

func (t Time) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Date is a calendar day with no time-of-day component.
type Date struct {
	Year, Month, Day int
}

// DateOf builds a Date from its year, month and day.
func DateOf(y, m, d int) Date { return Date{Year: y, Month: m, Day: d} }

func (d Date) toTime() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.toTime().Before(other.toTime()) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.toTime().After(other.toTime()) }

// Equal reports calendar-day equality.
func (d Date) Equal(other Date) bool { return d == other }

// Weekday returns the ISO weekday with Monday == 1 ... Sunday == 7, per
// SPEC_FULL.md Design Note 3.
func (d Date) Weekday() int {
	wd := int(d.toTime().Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// IsFriday reports whether d falls on an ISO Friday (weekday 5).
func (d Date) IsFriday() bool { return d.Weekday() == 5 }

func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// DateTime is a (Date, Time) pair, the unit of timestamp used by every Event.
type DateTime struct {
	D Date
	T Time
}

// NewDateTime builds a DateTime from a standard library time.Time, truncated
// to minute resolution (bar timestamps never carry seconds).
func NewDateTime(t time.Time) DateTime {
	return DateTime{
		D: Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()},
		T: Time{Hour: t.Hour(), Minute: t.Minute()},
	}
}

// Before reports whether dt is strictly earlier than other.
func (dt DateTime) Before(other DateTime) bool {
	if !dt.D.Equal(other.D) {
		return dt.D.Before(other.D)
	}
	return dt.T.Minutes() < other.T.Minutes()
}

// MinutesSince returns the signed number of whole minutes elapsed from
// earlier to dt, assuming both fall within the same or adjacent days
// (sufficient for intrabar/session-gap arithmetic; no timezone handling).
func (dt DateTime) MinutesSince(earlier DateTime) int {
	a := earlier.D.toTime().Add(time.Duration(earlier.T.Minutes()) * time.Minute)
	b := dt.D.toTime().Add(time.Duration(dt.T.Minutes()) * time.Minute)
	return int(b.Sub(a).Minutes())
}

func (dt DateTime) String() string { return dt.D.String() + " " + dt.T.String() }

// SessionBoundary reports whether the bar timestamped `cur`, for an
// instrument whose session opens at `sessionOpen` and may span two calendar
// days (`twoDaySession`), starts a new trading session relative to the prior
// intraday bar timestamped `prev`. Mirrors spec §4.1's synthesis rule: a new
// session begins at the first intraday bar whose date differs from the
// prior bar's date AND whose time-of-day is at or after the session open.
func SessionBoundary(prev, cur DateTime, sessionOpen Time, twoDaySession bool) bool {
	if prev == (DateTime{}) {
		return true
	}
	if cur.D.Equal(prev.D) {
		return false
	}
	if twoDaySession {
		// A two-day session (e.g. 18:00 -> next-day 17:00) only rolls to a
		// new session once the wall-clock reaches the open time on the new
		// calendar day; bars before that on the new day still belong to the
		// session that started the previous day.
		return !cur.T.Before(sessionOpen) || cur.T.Compare(sessionOpen) == 0
	}
	return !cur.T.Before(sessionOpen)
}

// EndOfSessionGapMinutes is the minimum gap, in minutes, between a session's
// close and the next session's open, used by Exit_switch case 1 to detect
// that a session ended early (spec §4.3 case 1).
func EndOfSessionGapMinutes(sessionClose, sessionOpen Time, twoDaySession bool) int {
	closeMin := sessionClose.Minutes()
	openMin := sessionOpen.Minutes()
	if twoDaySession {
		// close and the next session's open fall on the same calendar day
		// (e.g. 17:00 close, 18:00 reopen).
		return openMin - closeMin
	}
	// the next open is on the following calendar day.
	return (24*60 - closeMin) + openMin
}
