package strategy

import (
	"fmt"

	"btfast/internal/btferr"
	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/instrument"
)

// MeanReversion fades the prior session's range: it places LIMIT entries a
// fraction of the range inside the prior high/low, gated by a
// range-contraction filter (the inverse of Breakout's expansion filter),
// adapted from original_source/Strategies/gc2.cpp's midpoint-based POI and
// fractional-distance level construction.
type MeanReversion struct {
	name string

	stopTicks        int
	sideSwitch       int
	fractLong        int
	fractShort       int
	exitSwitch       int
	timeframeMinutes int

	state    PreliminariesState
	prevTime calendar.Time
	havePrev bool
}

// NewMeanReversion constructs a MeanReversion strategy instance named name.
func NewMeanReversion(name string) *MeanReversion {
	return &MeanReversion{name: name, sideSwitch: 3, fractLong: 25, fractShort: 25, exitSwitch: int(ExitEndOfSession), timeframeMinutes: 5}
}

func (s *MeanReversion) Name() string { return s.name }

func (s *MeanReversion) SetParameterValues(p Params) error {
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

func (s *MeanReversion) ComputeSignals(in Inputs, inst instrument.Instrument) (long, short *Signal) {
	if len(in.Daily) < 3 || len(in.Intraday) < 1 {
		return nil, nil
	}
	prelim := ComputePreliminaries(&s.state, in.Daily, in.MarketPosition, in.Now)
	if !prelim.Ready {
		return nil, nil
	}

	prior := in.Daily[1].OHLCV
	priorPrior := in.Daily[2].OHLCV
	distance := prior.High - prior.Low
	poi := 0.5 * (prior.High + prior.Low)

	levelLong := inst.Round(poi - float64(s.fractLong)/100*distance)
	levelShort := inst.Round(poi + float64(s.fractShort)/100*distance)

	// Contraction filter: the prior session's range narrowed relative to
	// the one before it — the inverse of Breakout's expansion filter.
	contracting := (prior.High - prior.Low) < (priorPrior.High - priorPrior.Low)
	// Once warm, ADX below the conventional Wilder trending threshold (25)
	// favors range-bound conditions mean reversion is built for; ROC adds
	// a momentum-direction check (buy a session that just fell, sell one
	// that just rose) once enough session history exists.
	rangeBound := !prelim.ADXReady || prelim.ADX < adxTrendThreshold
	momentumDown := !prelim.ROCReady || prelim.ROC <= 0
	momentumUp := !prelim.ROCReady || prelim.ROC >= 0
	enterLong := prelim.TradingEnabled && (s.sideSwitch == 1 || s.sideSwitch == 3) && contracting && rangeBound && momentumDown
	enterShort := prelim.TradingEnabled && (s.sideSwitch == 2 || s.sideSwitch == 3) && contracting && rangeBound && momentumUp
	stop := float64(s.stopTicks) * inst.TickValue

	if enterLong {
		long = &Signal{Action: event.Buy, OrderType: event.Limit, Price: levelLong, StopLoss: stop}
	}
	if enterShort {
		short = &Signal{Action: event.SellShort, OrderType: event.Limit, Price: levelShort, StopLoss: stop}
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

func (s *MeanReversion) exitParams(inst instrument.Instrument, prelim Preliminaries) ExitParams {
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
