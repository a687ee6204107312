package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/instrument"
	"btfast/internal/pricecollection"
)

func es(t *testing.T) instrument.Instrument {
	inst, err := instrument.Lookup("ES")
	require.NoError(t, err)
	return inst
}

func dailyBar(y, m, d int, o, h, l, c float64) pricecollection.Bar {
	return pricecollection.Bar{Timestamp: calendar.DateTime{D: calendar.DateOf(y, m, d)}, OHLCV: event.OHLCV{Open: o, High: h, Low: l, Close: c}}
}

func TestComputePreliminariesNotReadyWithInsufficientSessions(t *testing.T) {
	var state PreliminariesState
	p := ComputePreliminaries(&state, []pricecollection.Bar{dailyBar(2026, 1, 5, 100, 101, 99, 100)}, 0, calendar.DateTime{})
	assert.False(t, p.Ready)
}

func sixSessions() []pricecollection.Bar {
	return []pricecollection.Bar{
		dailyBar(2026, 1, 9, 110, 112, 108, 111),
		dailyBar(2026, 1, 8, 108, 111, 106, 109),
		dailyBar(2026, 1, 7, 105, 109, 103, 107),
		dailyBar(2026, 1, 6, 102, 106, 100, 104),
		dailyBar(2026, 1, 5, 100, 104, 98, 101),
		dailyBar(2026, 1, 2, 98, 102, 96, 99),
	}
}

func TestComputePreliminariesDetectsNewSession(t *testing.T) {
	var state PreliminariesState
	p := ComputePreliminaries(&state, sixSessions(), 0, calendar.DateTime{})
	require.True(t, p.Ready)
	assert.True(t, p.NewSession)
	assert.True(t, p.TradingEnabled)

	// Same session open price again => not a new session.
	p2 := ComputePreliminaries(&state, sixSessions(), 0, calendar.DateTime{})
	assert.False(t, p2.NewSession)
}

func TestComputePreliminariesDisablesTradingWhileInPosition(t *testing.T) {
	var state PreliminariesState
	ComputePreliminaries(&state, sixSessions(), 1, calendar.DateTime{})
	assert.False(t, state.TradingEnabled)
}

func TestExitConditionEndOfSession(t *testing.T) {
	close_ := calendar.NewTime(16, 55)
	hit, err := ExitCondition(ExitEndOfSession, ExitParams{CurrentTime: close_, PrevTime: calendar.NewTime(16, 50), OneBarBeforeClose: close_, CloseToOpenGapMinutes: 990, TimeframeMinutes: 5})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestExitConditionEndOfWeekRequiresFriday(t *testing.T) {
	close_ := calendar.NewTime(16, 55)
	hit, err := ExitCondition(ExitEndOfWeek, ExitParams{CurrentTime: close_, PrevTime: calendar.NewTime(16, 50), CurrentDOW: 3, OneBarBeforeClose: close_, CloseToOpenGapMinutes: 990, TimeframeMinutes: 5})
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = ExitCondition(ExitEndOfWeek, ExitParams{CurrentTime: close_, PrevTime: calendar.NewTime(16, 50), CurrentDOW: 5, OneBarBeforeClose: close_, CloseToOpenGapMinutes: 990, TimeframeMinutes: 5})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestExitConditionUnknownCaseIsContractViolation(t *testing.T) {
	_, err := ExitCondition(ExitCase(99), ExitParams{})
	assert.Error(t, err)
}

