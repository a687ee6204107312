package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/pricecollection"
)

func TestBreakoutSetParameterValuesRejectsUnknownName(t *testing.T) {
	b := NewBreakout("bo")
	err := b.SetParameterValues(Params{"bogus": 1})
	assert.Error(t, err)
}

func TestBreakoutSetParameterValuesAcceptsKnownNames(t *testing.T) {
	b := NewBreakout("bo")
	err := b.SetParameterValues(Params{"MyStop": 10, "Side_switch": 1, "fractN_long": 50, "TFMinutes": 10})
	require.NoError(t, err)
	assert.Equal(t, 10, b.stopTicks)
	assert.Equal(t, 10, b.timeframeMinutes)
}

func TestBreakoutEntersLongOnExpansion(t *testing.T) {
	b := NewBreakout("bo")
	require.NoError(t, b.SetParameterValues(Params{"MyStop": 10, "Side_switch": 1}))
	inst := es(t)
	in := Inputs{
		Daily: []pricecollection.Bar{
			dailyBar(2026, 1, 9, 110, 116, 108, 111), // current: expanding more than prior
			dailyBar(2026, 1, 8, 108, 111, 106, 109),
			dailyBar(2026, 1, 7, 105, 109, 103, 107),
			dailyBar(2026, 1, 6, 102, 106, 100, 104),
			dailyBar(2026, 1, 5, 100, 104, 98, 101),
			dailyBar(2026, 1, 2, 98, 102, 96, 99),
		},
		Intraday:       []pricecollection.Bar{{Timestamp: calendar.DateTime{T: calendar.NewTime(9, 30)}}},
		MarketPosition: 0,
		Now:            calendar.DateTime{T: calendar.NewTime(9, 30)},
	}
	long, short := b.ComputeSignals(in, inst)
	require.NotNil(t, long)
	assert.Nil(t, short)
	assert.Equal(t, event.Buy, long.Action)
	assert.Equal(t, event.Stop, long.OrderType)
}

func TestBreakoutNoEntryWithoutExpansion(t *testing.T) {
	b := NewBreakout("bo")
	require.NoError(t, b.SetParameterValues(Params{"MyStop": 10, "Side_switch": 3}))
	inst := es(t)
	in := Inputs{
		Daily: []pricecollection.Bar{
			dailyBar(2026, 1, 9, 110, 111, 108, 110), // current: barely moved
			dailyBar(2026, 1, 8, 108, 120, 100, 109), // prior: range 20, open->high 12
			dailyBar(2026, 1, 7, 105, 109, 103, 107),
			dailyBar(2026, 1, 6, 102, 106, 100, 104),
			dailyBar(2026, 1, 5, 100, 104, 98, 101),
			dailyBar(2026, 1, 2, 98, 102, 96, 99),
		},
		Intraday:       []pricecollection.Bar{{Timestamp: calendar.DateTime{T: calendar.NewTime(9, 30)}}},
		MarketPosition: 0,
		Now:            calendar.DateTime{T: calendar.NewTime(9, 30)},
	}
	long, short := b.ComputeSignals(in, inst)
	assert.Nil(t, long)
	assert.Nil(t, short)
}

func TestBreakoutSideSwitchRestrictsToLongOnly(t *testing.T) {
	b := NewBreakout("bo")
	require.NoError(t, b.SetParameterValues(Params{"Side_switch": 1}))
	inst := es(t)
	in := Inputs{
		Daily: []pricecollection.Bar{
			dailyBar(2026, 1, 9, 110, 116, 108, 111),
			dailyBar(2026, 1, 8, 108, 111, 106, 109),
			dailyBar(2026, 1, 7, 105, 109, 103, 107),
			dailyBar(2026, 1, 6, 102, 106, 100, 104),
			dailyBar(2026, 1, 5, 100, 104, 98, 101),
			dailyBar(2026, 1, 2, 98, 102, 96, 99),
		},
		Intraday:       []pricecollection.Bar{{Timestamp: calendar.DateTime{T: calendar.NewTime(9, 30)}}},
		MarketPosition: 0,
		Now:            calendar.DateTime{T: calendar.NewTime(9, 30)},
	}
	long, short := b.ComputeSignals(in, inst)
	assert.NotNil(t, long)
	assert.Nil(t, short)
}

func TestBreakoutRequiresTwoDailyBars(t *testing.T) {
	b := NewBreakout("bo")
	inst := es(t)
	in := Inputs{
		Daily:    []pricecollection.Bar{dailyBar(2026, 1, 9, 110, 116, 108, 111)},
		Intraday: []pricecollection.Bar{{Timestamp: calendar.DateTime{T: calendar.NewTime(9, 30)}}},
	}
	long, short := b.ComputeSignals(in, inst)
	assert.Nil(t, long)
	assert.Nil(t, short)
}

func TestBreakoutExitsOneBarBeforeSessionClose(t *testing.T) {
	b := NewBreakout("bo")
	require.NoError(t, b.SetParameterValues(Params{"TFMinutes": 5}))
	inst := es(t)
	daily := sixSessions()
	closeTime := inst.SessionCloseTime
	oneBarBefore := calendar.NewTime((closeTime.Minutes()-5+24*60)%(24*60)/60, (closeTime.Minutes()-5+24*60)%60)
	in := Inputs{
		Daily:          daily,
		Intraday:       []pricecollection.Bar{{Timestamp: calendar.DateTime{T: oneBarBefore}}},
		MarketPosition: -1,
		Now:            calendar.DateTime{T: oneBarBefore},
	}
	long, short := b.ComputeSignals(in, inst)
	assert.Nil(t, long)
	require.NotNil(t, short)
	assert.Equal(t, event.BuyToCover, short.Action)
}
