package strategy

import (
	"fmt"

	"btfast/internal/btferr"
	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/instrument"
)

// Breakout is a session-range breakout strategy, adapted from
// original_source/Strategies/gc1.cpp: it places a STOP entry at the prior
// session's high/low plus a fraction of a distance (the prior session's
// range, or ATR once it is warm), gated on both sides by the current
// session's high-minus-open exceeding the prior session's and, once warm,
// by a HighestHigh/LowestLow confirmation, and exits per the shared
// exit-switch (default: one bar before session close).
type Breakout struct {
	name string

	stopTicks        int // MyStop
	sideSwitch       int // 1=long only, 2=short only, 3=both
	fractLong        int // percent of prior session range added past POI
	fractShort       int
	exitSwitch       int
	timeframeMinutes int

	state    PreliminariesState
	prevTime calendar.Time
	havePrev bool
}

// NewBreakout constructs a Breakout strategy instance named name.
func NewBreakout(name string) *Breakout {
	return &Breakout{
		name: name, sideSwitch: 3, fractLong: 100, fractShort: 100,
		exitSwitch: int(ExitEndOfSession), timeframeMinutes: 5,
	}
}

func (s *Breakout) Name() string { return s.name }

// SetParameterValues binds MyStop/Side_switch/fractN_long/fractN_short/
// Exit_switch/TFMinutes, per gc1.cpp's set_param_values.
func (s *Breakout) SetParameterValues(p Params) error {
	for k, v := range p {
		switch k {
		case "MyStop":
			s.stopTicks = v
		case "Side_switch":
			s.sideSwitch = v
		case "fractN_long":
			s.fractLong = v
		case "fractN_short":
			s.fractShort = v
		case "Exit_switch":
			s.exitSwitch = v
		case "TFMinutes":
			s.timeframeMinutes = v
		default:
			return fmt.Errorf("%wunknown parameter %q for strategy %q", btferr.ContractViolation, k, s.name)
		}
	}
	return nil
}

func (s *Breakout) ComputeSignals(in Inputs, inst instrument.Instrument) (long, short *Signal) {
	if len(in.Daily) < 2 || len(in.Intraday) < 1 {
		return nil, nil
	}
	prelim := ComputePreliminaries(&s.state, in.Daily, in.MarketPosition, in.Now)
	if !prelim.Ready {
		return nil, nil
	}

	prior := in.Daily[1].OHLCV
	current := in.Daily[0].OHLCV
	// Distance_switch==2 from mastercode_old.cpp: once ATR has enough
	// session history, scale the breakout distance off volatility instead
	// of the raw prior-session range.
	distance := prior.High - prior.Low
	if prelim.ATRReady {
		distance = prelim.ATR
	}
	levelLong := inst.Round(prior.High + float64(s.fractLong)/100*distance)
	levelShort := inst.Round(prior.Low - float64(s.fractShort)/100*distance)

	expanding := (current.High - current.Open) > (prior.High - prior.Open)
	// Once the rolling HighestHigh/LowestLow channel is warm, require the
	// current session to actually clear it — confirmation borrowed from
	// bomrcharacter.cpp's highesthigh_[0]/lowestlow_[0] breakout levels.
	confirmedLong := !prelim.RangeReady || current.High > prelim.HighestHigh
	confirmedShort := !prelim.RangeReady || current.Low < prelim.LowestLow
	enterLong := prelim.TradingEnabled && (s.sideSwitch == 1 || s.sideSwitch == 3) && expanding && confirmedLong
	enterShort := prelim.TradingEnabled && (s.sideSwitch == 2 || s.sideSwitch == 3) && expanding && confirmedShort
	stop := float64(s.stopTicks) * inst.TickValue

	if enterLong {
		long = &Signal{Action: event.Buy, OrderType: event.Stop, Price: levelLong, StopLoss: stop}
	}
	if enterShort {
		short = &Signal{Action: event.SellShort, OrderType: event.Stop, Price: levelShort, StopLoss: stop}
	}

	exit, _ := ExitCondition(ExitCase(s.exitSwitch), s.exitParams(inst, prelim))
	s.prevTime, s.havePrev = in.Now.T, true
	if exit {
		if prelim.MarketPosition > 0 {
			long = &Signal{Action: event.Sell, OrderType: event.Market}
		}
		if prelim.MarketPosition < 0 {
			short = &Signal{Action: event.BuyToCover, OrderType: event.Market}
		}
	}
	return long, short
}

func (s *Breakout) exitParams(inst instrument.Instrument, prelim Preliminaries) ExitParams {
	delta := calendar.NewTime(s.timeframeMinutes/60, s.timeframeMinutes%60)
	oneBarBeforeClose := calendar.NewTime(
		(inst.SessionCloseTime.Minutes()-delta.Minutes()+24*60)%(24*60)/60,
		(inst.SessionCloseTime.Minutes()-delta.Minutes()+24*60)%60,
	)
	prev := s.prevTime
	if !s.havePrev {
		prev = prelim.Now.T
	}
	return ExitParams{
		CurrentTime:           prelim.Now.T,
		PrevTime:              prev,
		CurrentDOW:            prelim.DOW,
		OneBarBeforeClose:     oneBarBeforeClose,
		TimeframeMinutes:      s.timeframeMinutes,
		CloseToOpenGapMinutes: calendar.EndOfSessionGapMinutes(inst.SessionCloseTime, inst.SessionOpenTime, inst.TwoDaySession),
	}
}
