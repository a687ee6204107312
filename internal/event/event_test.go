package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"btfast/internal/calendar"
	"btfast/internal/instrument"
)

func sample() instrument.Instrument {
	inst, err := instrument.Lookup("ES")
	if err != nil {
		panic(err)
	}
	return inst
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "BAR", Bar.String())
	assert.Equal(t, "SIGNAL", Signal.String())
	assert.Equal(t, "ORDER", Order.String())
	assert.Equal(t, "FILL", Fill.String())
	assert.Equal(t, "NONE", None.String())
}

func TestActionClassification(t *testing.T) {
	assert.True(t, Buy.IsEntry())
	assert.True(t, SellShort.IsEntry())
	assert.False(t, Buy.IsExit())
	assert.True(t, Sell.IsExit())
	assert.True(t, BuyToCover.IsExit())
}

func TestNewBarCarriesOnlyBarFields(t *testing.T) {
	inst := sample()
	dt := calendar.DateTime{D: calendar.DateOf(2026, 1, 5), T: calendar.NewTime(9, 30)}
	e := NewBar(inst, dt, "5min", OHLCV{Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10})
	assert.Equal(t, Bar, e.Kind)
	assert.Equal(t, "5min", e.Timeframe)
	assert.Equal(t, 0.0, e.StopLoss)
	assert.Equal(t, "", e.Ticket)
}

func TestNewFillCarriesCommission(t *testing.T) {
	inst := sample()
	dt := calendar.DateTime{D: calendar.DateOf(2026, 1, 5), T: calendar.NewTime(9, 30)}
	e := NewFill(inst, dt, Buy, Market, 100.25, 1, "donchian", 95, 110, "T1", 4.0)
	assert.Equal(t, Fill, e.Kind)
	assert.Equal(t, 4.0, e.Commission)
	assert.Equal(t, "T1", e.Ticket)
}

func TestReorderOHLC(t *testing.T) {
	var e Event
	e.ReorderOHLC(100, 98, 103, 101)
	assert.Equal(t, 103.0, e.OHLCV.High)
	assert.Equal(t, 98.0, e.OHLCV.Low)
	assert.Equal(t, 100.0, e.OHLCV.Open)
	assert.Equal(t, 101.0, e.OHLCV.Close)
}
