// Package position tracks open trades and realizes their PnL at fills.
// Grounded on original_source/include/position.h and position_handler.h;
// the mutex-guarded slice-of-open-positions shape mirrors the teacher's
// internal/ledger.CentralLedger command-processing loop.
package position

import (
	"sync"

	"github.com/google/uuid"

	"btfast/internal/account"
	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/instrument"
)

// Side is which direction a Position holds.
type Side int

const (
	Long Side = iota
	Short
)

// Position is an open trade: exactly one of Side ∈ {Long, Short}; Quantity
// strictly positive for the lifetime of the position (spec §4.5 invariant).
type Position struct {
	StrategyName string
	Symbol       string
	Side         Side
	Quantity     int
	EntryTime    calendar.DateTime
	EntryPrice   float64
	StopLoss     float64
	TakeProfit   float64
	Ticket       string
	MAETicks     float64
	MFETicks     float64
	BarsInTrade  int
	DaysInTrade  int
	PL           float64
	KeepOpen     bool
}

// sign is +1 for Long, -1 for Short, used in every PnL/excursion formula.
func (s Side) sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// update folds one bar into the position's running MAE/MFE and PnL, and
// reports whether its stop-loss or take-profit was hit this bar.
func (p *Position) update(bar event.OHLCV, bpv float64, sessionBoundary bool) (hitStop, hitTarget bool) {
	sign := p.Side.sign()
	var adverse, favorable float64
	if p.Side == Long {
		adverse = p.EntryPrice - bar.Low
		favorable = bar.High - p.EntryPrice
	} else {
		adverse = bar.High - p.EntryPrice
		favorable = p.EntryPrice - bar.Low
	}
	if adverse > p.MAETicks {
		p.MAETicks = adverse
	}
	if favorable > p.MFETicks {
		p.MFETicks = favorable
	}
	p.PL = (bar.Close - p.EntryPrice) * sign * float64(p.Quantity) * bpv
	p.BarsInTrade++
	if sessionBoundary {
		p.DaysInTrade++
	}
	hitStop = p.StopLoss > 0 && p.MAETicks*bpv >= p.StopLoss
	hitTarget = p.TakeProfit > 0 && p.MFETicks*bpv >= p.TakeProfit
	return hitStop, hitTarget
}

// Handler owns the open-position set for one replay and realizes PnL into
// an Account at closing fills.
type Handler struct {
	mu      sync.Mutex
	account *account.Account
	open    []*Position
}

// NewHandler constructs a Handler posting closed trades to acct.
func NewHandler(acct *account.Account) *Handler {
	return &Handler{account: acct}
}

// Open returns a defensive copy of the currently open positions.
func (h *Handler) Open() []*Position {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Position, len(h.open))
	copy(out, h.open)
	return out
}

// MarketPosition returns +1/0/-1 for the net long/flat/short exposure of
// strategyName, per spec §4.3's strategy preliminaries.
func (h *Handler) MarketPosition(strategyName string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.open {
		if p.StrategyName != strategyName {
			continue
		}
		if p.Side == Long {
			return 1
		}
		return -1
	}
	return 0
}

// OnBar marks every open position to the bar, queuing a MARKET exit ORDER
// for any position whose stop or target was hit this bar (to be matched
// against the next bar by the engine's execution handler).
func (h *Handler) OnBar(inst instrument.Instrument, bar event.Event, sessionBoundary bool) []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var orders []event.Event
	for _, p := range h.open {
		hitStop, hitTarget := p.update(bar.OHLCV, inst.BigPointValue, sessionBoundary)
		if (hitStop || hitTarget) && p.KeepOpen {
			p.KeepOpen = false
			orders = append(orders, exitOrder(inst, bar, p))
		}
	}
	return orders
}

func exitOrder(inst instrument.Instrument, bar event.Event, p *Position) event.Event {
	action := event.Sell
	if p.Side == Short {
		action = event.BuyToCover
	}
	return event.NewOrder(inst, bar.Timestamp, action, event.Market, 0, p.Quantity, p.StrategyName, 0, 0, p.Ticket)
}

// OnFill opens a new Position for an entry fill, or closes and realizes PnL
// for an exit fill matching the strategy name already open.
func (h *Handler) OnFill(inst instrument.Instrument, fill event.Event) {
	if fill.Action.IsEntry() {
		ticket := fill.Ticket
		if ticket == "" {
			ticket = uuid.NewString()
		}
		h.mu.Lock()
		side := Long
		if fill.Action == event.SellShort {
			side = Short
		}
		h.open = append(h.open, &Position{
			StrategyName: fill.StrategyName,
			Symbol:       inst.Name,
			Side:         side,
			Quantity:     fill.Quantity,
			EntryTime:    fill.Timestamp,
			EntryPrice:   fill.FillPrice,
			StopLoss:     fill.StopLoss,
			TakeProfit:   fill.TakeProfit,
			Ticket:       ticket,
			KeepOpen:     true,
		})
		h.mu.Unlock()
		return
	}
	h.closeMatching(inst, fill.StrategyName, fill.Timestamp, fill.FillPrice, fill.Commission)
}

func (h *Handler) closeMatching(inst instrument.Instrument, strategyName string, exitTime calendar.DateTime, exitPrice, commission float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, p := range h.open {
		if p.StrategyName != strategyName {
			continue
		}
		netPL := (exitPrice-p.EntryPrice)*p.Side.sign()*float64(p.Quantity)*inst.BigPointValue - commission
		h.account.AddTransaction(account.Transaction{
			Ticket:       p.Ticket,
			StrategyName: p.StrategyName,
			Symbol:       p.Symbol,
			Side:         sideAction(p.Side),
			Quantity:     p.Quantity,
			EntryTime:    p.EntryTime,
			ExitTime:     exitTime,
			EntryPrice:   p.EntryPrice,
			ExitPrice:    exitPrice,
			MAETicks:     p.MAETicks / inst.TickSize,
			MFETicks:     p.MFETicks / inst.TickSize,
			BarsInTrade:  p.BarsInTrade,
			NetPL:        netPL,
			TickValue:    inst.TickValue,
		})
		h.open = append(h.open[:i], h.open[i+1:]...)
		return
	}
}

func sideAction(s Side) event.Action {
	if s == Short {
		return event.SellShort
	}
	return event.Buy
}

// CloseAll closes every open position at bar's close as if a MARKET exit
// had filled, called once at end of replay (spec §4.5).
func (h *Handler) CloseAll(inst instrument.Instrument, bar event.Event) {
	for _, p := range h.Open() {
		h.closeMatching(inst, p.StrategyName, bar.Timestamp, bar.OHLCV.Close, 0)
	}
}
