// Package strategy defines the pluggable signal-generator contract, the
// shared preliminaries every strategy computes before emitting signals, and
// the canonical exit-switch cases. Grounded on the teacher's
// internal/strategy.{Strategy,Parametrizable} interfaces and concrete
// strategies (Key/SetParams/Evaluate shape), and on
// original_source/Strategies/{gc1,gc2,template}.cpp for the preliminaries
// and ExitCondition bodies (original_source/Strategies/filters/exits.cpp).
// The concrete trading rules of any one strategy are an explicit spec
// non-goal; the two strategies here exist only to exercise the shared
// machinery end to end.
package strategy

import (
	"fmt"

	"btfast/internal/btferr"
	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/indicator"
	"btfast/internal/instrument"
	"btfast/internal/pricecollection"
)

// Params is a concrete named-integer parameter assignment, spec §3's
// `parameters` layer.
type Params map[string]int

// Signal is what ComputeSignals hands back for one side: at most one per
// call, or nil if that side has nothing to do this bar.
type Signal struct {
	Action     event.Action
	OrderType  event.OrderType
	Price      float64
	StopLoss   float64
	TakeProfit float64
}

// Inputs bundles the bar histories and position context ComputeSignals
// needs, both ordered newest-first per spec §3.
type Inputs struct {
	Intraday       []pricecollection.Bar
	Daily          []pricecollection.Bar
	MarketPosition int
	Now            calendar.DateTime
}

// Strategy is the polymorphic interface every concrete trading rule
// implements: set_parameter_values + compute_signals from spec §4.3.
type Strategy interface {
	Name() string
	// SetParameterValues binds named integer parameters; an unknown name
	// is a ContractViolation (fatal), per spec §7.
	SetParameterValues(p Params) error
	// ComputeSignals runs once per bar after preliminaries and returns at
	// most one long and one short signal.
	ComputeSignals(in Inputs, inst instrument.Instrument) (long, short *Signal)
}

// PreliminariesState is the cross-bar memory every strategy carries:
// session-open detection, the trading-enabled toggle, and the indicator set
// "refresh indicators" updates once per completed session, mirroring GC1's
// SessionOpenPrice_/TradingEnabled_ member fields plus the indicator deques
// every original_source strategy file carries alongside them.
type PreliminariesState struct {
	SessionOpenPrice float64
	TradingEnabled   bool
	initialized      bool

	roc *indicator.ROC
	atr *indicator.ATR
	adx *indicator.ADX
	hh  *indicator.HighestHigh
	ll  *indicator.LowestLow

	rocValue, atrValue, adxValue, hhValue, llValue float64
	rocReady, atrReady, adxReady, rangeReady       bool
}

// indicatorLength is the smoothing/window length preliminaries run
// ATR/ADX/HighestHigh/LowestLow over (ROC uses a one-session lookback),
// matching the ATR(10) convention
// used across original_source/Strategies/{template,mrtest,ng6,mastercode}.cpp.
const indicatorLength = 10

// adxTrendThreshold is Wilder's conventional ADX cutoff between range-bound
// and trending conditions, used by MeanReversion to gate entries against a
// strongly trending session.
const adxTrendThreshold = 25.0

// refreshIndicators feeds one newly-closed session's OHLC into the shared
// indicator set, mirroring the original's "Update Indicator Values" block
// (called with make_new_entry tied to the session boundary, not every bar,
// so a session contributes exactly one sample).
func (s *PreliminariesState) refreshIndicators(session event.OHLCV) {
	if s.roc == nil {
		s.roc = indicator.NewROC(1)
		s.atr = indicator.NewATR(indicatorLength)
		s.adx = indicator.NewADX(indicatorLength)
		s.hh = indicator.NewHighestHigh(indicatorLength)
		s.ll = indicator.NewLowestLow(indicatorLength)
	}
	s.rocValue, s.rocReady = s.roc.Update(session.Close)
	s.atrValue, s.atrReady = s.atr.Update(session.High, session.Low, session.Close)
	s.adxValue, s.adxReady = s.adx.Update(session.High, session.Low)
	hh, hhReady := s.hh.Update(session.High)
	ll, llReady := s.ll.Update(session.Low)
	if hhReady && llReady {
		s.hhValue, s.llValue, s.rangeReady = hh, ll, true
	}
}

// Preliminaries is the per-bar snapshot every strategy computes before
// signal generation, per spec §4.3.
type Preliminaries struct {
	Now            calendar.DateTime
	DOW            int
	MarketPosition int
	SessionOHLC    [6]event.OHLCV // index 0 = current session
	NewSession     bool
	TradingEnabled bool

	// Indicator readings as of the last completed session; *Ready is false
	// until indicatorLength (2*indicatorLength for ADX, two for ROC)
	// sessions have been observed, mirroring the original's "require at least N bars of
	// indicator history" gate.
	ROC         float64
	ROCReady    bool
	ATR         float64
	ATRReady    bool
	ADX         float64
	ADXReady    bool
	HighestHigh float64
	LowestLow   float64
	RangeReady  bool

	Ready bool
}

// sessionHistoryDepth is how many trailing sessions the preliminaries
// snapshot (spec §4.3: "the last 6 session OHLC").
const sessionHistoryDepth = 6

// ComputePreliminaries folds one bar's daily-session history into state and
// returns the shared preliminaries snapshot. Ready is false (and the rest
// of the snapshot zero) when fewer than sessionHistoryDepth sessions exist
// yet — the engine must skip signal generation for this bar in that case.
func ComputePreliminaries(state *PreliminariesState, daily []pricecollection.Bar, marketPosition int, now calendar.DateTime) Preliminaries {
	if len(daily) < sessionHistoryDepth {
		return Preliminaries{Ready: false}
	}
	var snapshot [6]event.OHLCV
	for i := 0; i < sessionHistoryDepth; i++ {
		snapshot[i] = daily[i].OHLCV
	}

	newSession := !state.initialized || state.SessionOpenPrice != snapshot[0].Open
	if newSession {
		if state.initialized {
			state.refreshIndicators(snapshot[1])
		}
		state.TradingEnabled = true
		state.SessionOpenPrice = snapshot[0].Open
		state.initialized = true
	}
	if marketPosition != 0 {
		state.TradingEnabled = false
	}

	return Preliminaries{
		Now:            now,
		DOW:            now.D.Weekday(),
		MarketPosition: marketPosition,
		SessionOHLC:    snapshot,
		NewSession:     newSession,
		TradingEnabled: state.TradingEnabled,
		ROC:            state.rocValue,
		ROCReady:       state.rocReady,
		ATR:            state.atrValue,
		ATRReady:       state.atrReady,
		ADX:            state.adxValue,
		ADXReady:       state.adxReady,
		HighestHigh:    state.hhValue,
		LowestLow:      state.llValue,
		RangeReady:     state.rangeReady,
		Ready:          true,
	}
}

// ExitCase selects one of the four canonical exit conditions from spec
// §4.3.
type ExitCase int

const (
	ExitEndOfSession ExitCase = iota + 1
	ExitEndOfWeek
	ExitAfterNBars
	ExitAfterNSessions
)

// ExitParams carries the bar-timing context ExitCondition needs, mirroring
// original_source/Strategies/filters/exits.cpp's ExitCondition arguments.
type ExitParams struct {
	CurrentTime           calendar.Time
	PrevTime              calendar.Time
	CurrentDOW            int
	OneBarBeforeClose     calendar.Time
	TimeframeMinutes      int
	CloseToOpenGapMinutes int
	BarsInTrade           int
	SessionsInTrade       int
	NBars                 int
	NSessions             int
}

// ExitCondition evaluates one of the four canonical exit cases, per
// original_source/Strategies/filters/exits.cpp generalized with cases 3/4
// (N-bars/N-sessions in trade) per spec §4.3.
func ExitCondition(c ExitCase, p ExitParams) (bool, error) {
	gapMinutes := p.CurrentTime.Minutes() - p.PrevTime.Minutes()
	sessionEndedEarly := gapMinutes > p.CloseToOpenGapMinutes+p.TimeframeMinutes
	switch c {
	case ExitEndOfSession:
		return p.CurrentTime == p.OneBarBeforeClose || sessionEndedEarly, nil
	case ExitEndOfWeek:
		return p.CurrentDOW == 5 && (p.CurrentTime == p.OneBarBeforeClose || sessionEndedEarly), nil
	case ExitAfterNBars:
		return p.BarsInTrade >= p.NBars, nil
	case ExitAfterNSessions:
		return p.SessionsInTrade >= p.NSessions, nil
	default:
		return false, fmt.Errorf("%wunknown exit case %d", btferr.ContractViolation, c)
	}
}
