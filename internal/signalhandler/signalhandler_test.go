package signalhandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/instrument"
)

func es(t *testing.T) instrument.Instrument {
	inst, err := instrument.Lookup("ES")
	require.NoError(t, err)
	return inst
}

func ts(h, m int) calendar.DateTime {
	return calendar.DateTime{D: calendar.DateOf(2026, 1, 5), T: calendar.NewTime(h, m)}
}

func TestFixedSizeSizing(t *testing.T) {
	s := Sizing{Policy: FixedSize, Contracts: 3}
	assert.Equal(t, 3, s.Quantity(10000, 500, 100, 50))
}

func TestFixedFractionalSizing(t *testing.T) {
	s := Sizing{Policy: FixedFractional, RiskFraction: 0.02}
	qty := s.Quantity(10000, 100, 0, 0)
	assert.Equal(t, 2, qty) // floor(0.02*10000/100) = 2
}

func TestFixedNotionalSizing(t *testing.T) {
	s := Sizing{Policy: FixedNotional, RiskFraction: 0.5}
	qty := s.Quantity(10000, 0, 100, 50)
	assert.Equal(t, 1, qty) // floor(0.5*10000/(100*50)) = 1
}

func TestDuplicateSignalCoalesced(t *testing.T) {
	h := New(Sizing{Policy: FixedSize, Contracts: 1})
	inst := es(t)
	sig := event.NewSignal(inst, ts(9, 30), event.Buy, event.Stop, 105, 1, 0, "donchian", 5, 10)
	h.Ingest(sig)
	h.Ingest(sig)
	orders := h.EmitOrders(inst, 10000, ts(9, 35))
	require.Len(t, orders, 1)
}

func TestEmitOrdersPersistsUnfilledSignalAcrossBars(t *testing.T) {
	h := New(Sizing{Policy: FixedSize, Contracts: 1})
	inst := es(t)
	h.Ingest(event.NewSignal(inst, ts(9, 30), event.Buy, event.Stop, 105, 1, 0, "donchian", 5, 10))
	orders := h.EmitOrders(inst, 10000, ts(9, 35))
	require.Len(t, orders, 1)

	orders = h.EmitOrders(inst, 10000, ts(9, 40))
	require.Len(t, orders, 1) // still pending: no fill, no session boundary yet
}

func TestClearFilledDropsPendingSignal(t *testing.T) {
	h := New(Sizing{Policy: FixedSize, Contracts: 1})
	inst := es(t)
	h.Ingest(event.NewSignal(inst, ts(9, 30), event.Buy, event.Stop, 105, 1, 0, "donchian", 5, 10))
	h.EmitOrders(inst, 10000, ts(9, 35))

	h.ClearFilled("donchian", event.Buy)
	orders := h.EmitOrders(inst, 10000, ts(9, 40))
	assert.Empty(t, orders)
}

func TestClearSessionDropsUnfilledSignal(t *testing.T) {
	h := New(Sizing{Policy: FixedSize, Contracts: 1})
	inst := es(t)
	h.Ingest(event.NewSignal(inst, ts(9, 30), event.Buy, event.Stop, 105, 1, 0, "donchian", 5, 10))
	h.ClearSession()
	orders := h.EmitOrders(inst, 10000, ts(9, 35))
	assert.Empty(t, orders)
}

func TestZeroQuantitySignalDropped(t *testing.T) {
	h := New(Sizing{Policy: FixedFractional, RiskFraction: 0.01})
	inst := es(t)
	h.Ingest(event.NewSignal(inst, ts(9, 30), event.Buy, event.Stop, 105, 1, 0, "donchian", 0, 10))
	orders := h.EmitOrders(inst, 10000, ts(9, 35))
	assert.Empty(t, orders)
}

func TestExitSignalBypassesSizingUnderFixedFractional(t *testing.T) {
	// An exit signal carries StopLoss 0, which would zero out under
	// FixedFractional's stopPerContract<=0 guard if sized like an entry.
	h := New(Sizing{Policy: FixedFractional, RiskFraction: 0.01})
	inst := es(t)
	sig := event.NewSignal(inst, ts(9, 30), event.Sell, event.Market, 105, 1, 0, "donchian", 0, 0)
	h.Ingest(sig)
	orders := h.EmitOrders(inst, 10000, ts(9, 35))
	require.Len(t, orders, 1)
	assert.Equal(t, 1, orders[0].Quantity)
}

func TestExitSignalBypassesSizingUnderFixedNotional(t *testing.T) {
	h := New(Sizing{Policy: FixedNotional, RiskFraction: 0.5})
	inst := es(t)
	sig := event.NewSignal(inst, ts(9, 30), event.BuyToCover, event.Market, 0, 1, 0, "donchian", 0, 0)
	h.Ingest(sig)
	orders := h.EmitOrders(inst, 10000, ts(9, 35))
	require.Len(t, orders, 1)
	assert.Equal(t, 1, orders[0].Quantity)
}
