// Package execution matches ORDER events against the bar that follows the
// one that produced them, emitting FILL events. No original header for
// execution_handler.h survived retrieval, so the matching table is taken
// directly from spec §4.4.
package execution

import (
	"math"

	"btfast/internal/event"
	"btfast/internal/telemetry"
)

// Options tunes slippage and commission application, read from config.
type Options struct {
	Slippage           float64 // added against the position, in price units
	IncludeCommissions bool
	Commission         float64 // per round-turn; half applied per fill side
}

// Handler matches queued ORDER events against the next bar's OHLC.
type Handler struct {
	opts Options
}

// New constructs a Handler with the given slippage/commission options.
func New(opts Options) *Handler {
	return &Handler{opts: opts}
}

// Match attempts to fill order against the bar that follows it. ForcedExit
// marks MARKET orders that must fill at the bar's close (an exit queued by
// PositionHandler for the very next bar) rather than its open.
func (h *Handler) Match(order event.Event, bar event.OHLCV, forcedExit bool) (fill event.Event, filled bool) {
	price, ok := h.matchPrice(order, bar, forcedExit)
	if !ok {
		return event.Event{}, false
	}
	price += h.slippageFor(order.Action) * h.opts.Slippage
	commission := 0.0
	if h.opts.IncludeCommissions {
		commission = h.opts.Commission / 2
	}
	telemetry.OrdersFilled.WithLabelValues(order.StrategyName, string(order.Action)).Inc()
	return event.NewFill(order.Symbol, order.Timestamp, order.Action, order.OrderType, price, order.Quantity, order.StrategyName, order.StopLoss, order.TakeProfit, order.Ticket, commission), true
}

func (h *Handler) matchPrice(order event.Event, bar event.OHLCV, forcedExit bool) (float64, bool) {
	switch order.OrderType {
	case event.Stop:
		switch order.Action {
		case event.Buy:
			if bar.High >= order.SuggestedPrice {
				return math.Max(bar.Open, order.SuggestedPrice), true
			}
		case event.SellShort:
			if bar.Low <= order.SuggestedPrice {
				return math.Min(bar.Open, order.SuggestedPrice), true
			}
		}
		return 0, false
	case event.Limit:
		switch order.Action {
		case event.Buy:
			if bar.Low <= order.SuggestedPrice {
				return math.Min(bar.Open, order.SuggestedPrice), true
			}
		case event.SellShort:
			if bar.High >= order.SuggestedPrice {
				return math.Max(bar.Open, order.SuggestedPrice), true
			}
		}
		return 0, false
	default: // MARKET
		if forcedExit {
			return bar.Close, true
		}
		return bar.Open, true
	}
}

// slippageFor returns the sign slippage is applied with: entries get worse
// fills (higher buys, lower sells), so does slippage on exits.
func (h *Handler) slippageFor(action event.Action) float64 {
	switch action {
	case event.Buy, event.BuyToCover:
		return 1
	default:
		return -1
	}
}
