// Package signalhandler deduplicates per-(strategy,side) signals and
// converts them into sized ORDER events. No signal_handler.h survived
// retrieval for this component, so behavior follows spec §4.6 directly;
// the dedup-cache idiom mirrors the teacher's strategy.Engine.runs map
// keyed by "instrument|period".
package signalhandler

import (
	"math"

	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/instrument"
	"btfast/internal/telemetry"
)

// SizingPolicy computes an order quantity from account state and a signal.
type SizingPolicy int

const (
	FixedSize SizingPolicy = iota
	FixedFractional
	FixedNotional
)

// Sizing configures one of the three policies from spec §4.6.
type Sizing struct {
	Policy       SizingPolicy
	Contracts    int     // FixedSize
	RiskFraction float64 // FixedFractional, FixedNotional
}

// Quantity computes the order size for a signal given the current balance,
// the per-contract stop distance in account currency, the suggested price,
// and the instrument's big point value.
func (s Sizing) Quantity(balance, stopPerContract, price, bpv float64) int {
	switch s.Policy {
	case FixedFractional:
		if stopPerContract <= 0 {
			return 0
		}
		return int(math.Floor(s.RiskFraction * balance / stopPerContract))
	case FixedNotional:
		if price <= 0 || bpv <= 0 {
			return 0
		}
		return int(math.Floor(s.RiskFraction * balance / (price * bpv)))
	default:
		return s.Contracts
	}
}

type key struct {
	strategy string
	action   event.Action
}

// Handler holds the most-recent signal per (strategy, side) and emits
// sized orders once per bar, clearing stale entries at session boundaries.
type Handler struct {
	sizing  Sizing
	signals map[key]event.Event
}

// New constructs a Handler using the given sizing policy.
func New(sizing Sizing) *Handler {
	return &Handler{sizing: sizing, signals: make(map[key]event.Event)}
}

// Ingest records a SIGNAL, coalescing duplicates (same side, timestamp,
// price already on file).
func (h *Handler) Ingest(sig event.Event) {
	if sig.Kind != event.Signal {
		return
	}
	k := key{strategy: sig.StrategyName, action: sig.Action}
	if existing, ok := h.signals[k]; ok &&
		existing.Timestamp == sig.Timestamp && existing.SuggestedPrice == sig.SuggestedPrice {
		return
	}
	h.signals[k] = sig
	telemetry.SignalsEmitted.WithLabelValues(sig.StrategyName, string(sig.Action)).Inc()
}

// ClearSession drops every pending signal, called at a detected session
// boundary so an unfilled signal never carries into the next session.
func (h *Handler) ClearSession() {
	h.signals = make(map[key]event.Event)
}

// ClearFilled drops the pending signal for (strategyName, action) once its
// order has filled, so a filled entry is not resubmitted for the rest of
// the session.
func (h *Handler) ClearFilled(strategyName string, action event.Action) {
	delete(h.signals, key{strategy: strategyName, action: action})
}

// EmitOrders converts every pending signal into an ORDER sized by the
// handler's policy. A signal with no sizeable quantity is dropped; an order
// is otherwise left pending until ClearFilled or ClearSession removes it, so
// it is re-offered on subsequent bars until filled or the session ends,
// per spec §4.6.
func (h *Handler) EmitOrders(inst instrument.Instrument, balance float64, ts calendar.DateTime) []event.Event {
	var orders []event.Event
	for k, sig := range h.signals {
		qty := h.quantityFor(inst, balance, sig)
		if qty <= 0 {
			delete(h.signals, k)
			continue
		}
		orderType := event.Market
		if sig.OrderType != "" {
			orderType = sig.OrderType
		}
		price := inst.Round(sig.SuggestedPrice)
		orders = append(orders, event.NewOrder(inst, ts, sig.Action, orderType, price, qty, sig.StrategyName, sig.StopLoss, sig.TakeProfit, ""))
	}
	return orders
}

// quantityFor sizes an entry per the configured policy. Exit signals bypass
// sizing entirely: PositionHandler closes the full open position regardless
// of the fill's quantity, so an exit only needs a positive placeholder to
// avoid being dropped as zero-size by EmitOrders (sizing formulas like
// fixed-fractional would otherwise divide by the exit's zero stop-loss).
func (h *Handler) quantityFor(inst instrument.Instrument, balance float64, sig event.Event) int {
	if sig.Action.IsExit() {
		return 1
	}
	stopPerContract := sig.StopLoss
	return h.sizing.Quantity(balance, stopPerContract, sig.SuggestedPrice, inst.BigPointValue)
}
