package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeOrdering(t *testing.T) {
	require.True(t, NewTime(9, 0).Before(NewTime(9, 30)))
	assert.Equal(t, -1, NewTime(9, 0).Compare(NewTime(9, 30)))
	assert.Equal(t, 0, NewTime(9, 0).Compare(NewTime(9, 0)))
	assert.Equal(t, 1, NewTime(10, 0).Compare(NewTime(9, 30)))
}

func TestDateWeekdayISO(t *testing.T) {
	// 2026-07-31 is a Friday.
	d := DateOf(2026, 7, 31)
	assert.Equal(t, 5, d.Weekday())
	assert.True(t, d.IsFriday())

	sunday := DateOf(2026, 8, 2)
	assert.Equal(t, 7, sunday.Weekday())
}

func TestSessionBoundaryTwoDaySession(t *testing.T) {
	open := NewTime(18, 0)
	prev := DateTime{D: DateOf(2026, 1, 5), T: NewTime(23, 0)}
	sameDayLater := DateTime{D: DateOf(2026, 1, 5), T: NewTime(23, 30)}
	assert.False(t, SessionBoundary(prev, sameDayLater, open, true))

	nextDayBeforeOpen := DateTime{D: DateOf(2026, 1, 6), T: NewTime(9, 0)}
	assert.False(t, SessionBoundary(prev, nextDayBeforeOpen, open, true))

	nextDayAtOpen := DateTime{D: DateOf(2026, 1, 6), T: NewTime(18, 0)}
	assert.True(t, SessionBoundary(prev, nextDayAtOpen, open, true))
}

func TestSessionBoundarySingleDaySession(t *testing.T) {
	open := NewTime(9, 30)
	prev := DateTime{D: DateOf(2026, 1, 5), T: NewTime(15, 0)}
	next := DateTime{D: DateOf(2026, 1, 6), T: NewTime(9, 30)}
	assert.True(t, SessionBoundary(prev, next, open, false))

	tooEarly := DateTime{D: DateOf(2026, 1, 6), T: NewTime(8, 0)}
	assert.False(t, SessionBoundary(prev, tooEarly, open, false))
}

func TestFirstBarIsAlwaysSessionStart(t *testing.T) {
	assert.True(t, SessionBoundary(DateTime{}, DateTime{D: DateOf(2026, 1, 2), T: NewTime(9, 30)}, NewTime(9, 30), false))
}

func TestEndOfSessionGapMinutes(t *testing.T) {
	// Single-day session 09:30-16:00: gap from the 16:00 close to the next
	// day's 09:30 open runs through midnight.
	gap := EndOfSessionGapMinutes(NewTime(16, 0), NewTime(9, 30), false)
	assert.Equal(t, (24*60-16*60)+9*60+30, gap)

	// Two-day session 18:00 -> next-day 17:00: the 17:00 close and the 18:00
	// reopen fall on the same calendar day.
	twoDayGap := EndOfSessionGapMinutes(NewTime(17, 0), NewTime(18, 0), true)
	assert.Equal(t, 18*60-17*60, twoDayGap)
}
