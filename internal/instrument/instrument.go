// Package instrument holds the immutable per-symbol contract specification
// and its fixed lookup table, grounded on original_source/include/instruments.h.
package instrument

import (
	"fmt"
	"math"

	"btfast/internal/btferr"
	"btfast/internal/calendar"
)

// Instrument is an immutable contract specification for one tradable symbol.
type Instrument struct {
	Name              string
	ContractUnit      int
	Margin            float64
	Commission        float64
	TickSize          float64
	TickValue         float64
	SessionOpenTime   calendar.Time
	SessionCloseTime  calendar.Time
	SettlementTime    calendar.Time
	TwoDaySession     bool
	TransactionCost   float64 // commission + 2*tick_value
	TransactionCostTk float64 // commission/tick_value + 2, in ticks
	BigPointValue     float64 // tick_value / tick_size
	Digits            int
}

// New builds an Instrument from its primary fields, deriving the rest per
// spec §3 (two_days_session, transaction_cost, big_point_value, digits).
func New(name string, contractUnit int, margin, commission, tickSize, tickValue float64, open, close, settlement calendar.Time) Instrument {
	inst := Instrument{
		Name:             name,
		ContractUnit:     contractUnit,
		Margin:           margin,
		Commission:       commission,
		TickSize:         tickSize,
		TickValue:        tickValue,
		SessionOpenTime:  open,
		SessionCloseTime: close,
		SettlementTime:   settlement,
	}
	inst.TwoDaySession = close.Minutes() < open.Minutes()
	inst.TransactionCost = commission + 2*tickValue
	if tickValue != 0 {
		inst.TransactionCostTk = commission/tickValue + 2
		inst.BigPointValue = tickValue / tickSize
	}
	inst.Digits = digitsOf(tickSize)
	return inst
}

func digitsOf(tickSize float64) int {
	d := 0
	v := tickSize
	for d < 12 {
		rounded := math.Round(v)
		if math.Abs(v-rounded) < 1e-9 {
			break
		}
		v *= 10
		d++
	}
	return d
}

// Round rounds a price to the instrument's tick digits.
func (i Instrument) Round(price float64) float64 {
	mul := math.Pow(10, float64(i.Digits))
	return math.Round(price*mul) / mul
}

// table is the fixed symbol -> Instrument lookup, populated by Register
// (teacher analogue: a compiled-in constant map, not a parsed settings file —
// the concrete symbol universe is outside this package's non-goal boundary).
var table = map[string]Instrument{}

// Register adds or replaces an instrument in the fixed lookup table. Called
// from init() in a companion file per deployment, not from user input.
func Register(inst Instrument) { table[inst.Name] = inst }

// Lookup finds an instrument by name, returning a Configuration error
// (fatal at startup per spec §7) if unknown.
func Lookup(name string) (Instrument, error) {
	inst, ok := table[name]
	if !ok {
		return Instrument{}, fmt.Errorf("%winstrument %q not found", btferr.Configuration, name)
	}
	return inst, nil
}

func init() {
	// A representative fixed table of intraday futures contracts, in the
	// spirit of original_source/src/instruments.cpp's compiled-in set.
	Register(New("ES", 50, 12000, 4.0, 0.25, 12.50, calendar.NewTime(18, 0), calendar.NewTime(17, 0), calendar.NewTime(15, 15)))
	Register(New("NQ", 20, 17600, 4.0, 0.25, 5.00, calendar.NewTime(18, 0), calendar.NewTime(17, 0), calendar.NewTime(15, 15)))
	Register(New("CL", 1000, 6050, 4.5, 0.01, 10.00, calendar.NewTime(18, 0), calendar.NewTime(17, 0), calendar.NewTime(14, 30)))
	Register(New("GC", 100, 11000, 4.5, 0.10, 10.00, calendar.NewTime(18, 0), calendar.NewTime(17, 0), calendar.NewTime(13, 30)))
	Register(New("ZN", 1000, 2420, 4.0, 0.015625, 15.625, calendar.NewTime(18, 0), calendar.NewTime(17, 0), calendar.NewTime(15, 0)))
}
