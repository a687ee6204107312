// Package pricecollection holds the bounded, per-(symbol,timeframe) bar
// history the replay loop and indicators read from, plus synthesis of the
// "D" (session) timeframe from intraday bars. Grounded on spec §4.1 and
// the teacher's internal/state.StateManager ring-buffer map-of-slices
// pattern (mutex-guarded, copy-on-read, trim-from-front on overflow).
package pricecollection

import (
	"sync"

	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/instrument"
	"btfast/internal/telemetry"
)

// DefaultCapacity mirrors the teacher's barRingBufferSize; callers needing
// deeper lookback (e.g. a 200-period SMA on a sparse timeframe) pass their
// own capacity to New.
const DefaultCapacity = 500

// Bar is one synthesized/raw price bar stored by PriceCollection, carrying
// just the OHLCV fields an indicator needs (no event routing metadata).
type Bar struct {
	Timestamp calendar.DateTime
	OHLCV     event.OHLCV
}

// PriceCollection is a thread-safe, capacity-bounded store of bars per
// (symbol, timeframe), plus same-session "D" bar synthesis.
type PriceCollection struct {
	mu       sync.RWMutex
	capacity int
	bars     map[string]map[string][]Bar // symbol -> timeframe -> bars, oldest first
	building map[string]Bar              // symbol -> session bar currently being built
	lastBar  map[string]Bar              // symbol -> last intraday bar seen, for session-boundary detection
}

// New constructs an empty PriceCollection bounded to capacity bars per
// (symbol, timeframe) series. A non-positive capacity is replaced with
// DefaultCapacity.
func New(capacity int) *PriceCollection {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PriceCollection{
		capacity: capacity,
		bars:     make(map[string]map[string][]Bar),
		building: make(map[string]Bar),
		lastBar:  make(map[string]Bar),
	}
}

// OnBar ingests one intraday BAR event: appends it to the collection at its
// native timeframe, and folds it into the in-progress "D" bar, emitting the
// completed session bar (and starting the next) at a session boundary.
func (pc *PriceCollection) OnBar(inst instrument.Instrument, e event.Event) (sessionClosed Bar, closedSession bool) {
	if e.Kind != event.Bar {
		return Bar{}, false
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	telemetry.BarsProcessed.WithLabelValues(inst.Name, e.Timeframe).Inc()

	b := Bar{Timestamp: e.Timestamp, OHLCV: e.OHLCV}
	pc.appendLocked(inst.Name, e.Timeframe, b)

	// A native-"D" feed already delivers one bar per session: append it
	// and stop, or the synthesis below would also fold it into
	// pc.building and re-append it a second time at the next boundary.
	if e.Timeframe == "D" {
		return Bar{}, false
	}

	prev := pc.lastBar[inst.Name]
	boundary := calendar.SessionBoundary(prev.Timestamp, b.Timestamp, inst.SessionOpenTime, inst.TwoDaySession)
	pc.lastBar[inst.Name] = b

	building, inProgress := pc.building[inst.Name]
	if boundary && inProgress {
		pc.appendLocked(inst.Name, "D", building)
		sessionClosed, closedSession = building, true
		delete(pc.building, inst.Name)
		inProgress = false
	}
	if !inProgress {
		pc.building[inst.Name] = b
		return sessionClosed, closedSession
	}
	building = pc.building[inst.Name]
	building.OHLCV.High = max(building.OHLCV.High, b.OHLCV.High)
	building.OHLCV.Low = min(building.OHLCV.Low, b.OHLCV.Low)
	building.OHLCV.Close = b.OHLCV.Close
	building.OHLCV.Volume += b.OHLCV.Volume
	building.Timestamp = b.Timestamp
	pc.building[inst.Name] = building
	return sessionClosed, closedSession
}

func (pc *PriceCollection) appendLocked(symbol, timeframe string, b Bar) {
	if _, ok := pc.bars[symbol]; !ok {
		pc.bars[symbol] = make(map[string][]Bar)
	}
	series := append(pc.bars[symbol][timeframe], b)
	if len(series) > pc.capacity {
		series = series[len(series)-pc.capacity:]
	}
	pc.bars[symbol][timeframe] = series
}

// Bars returns a defensive copy of the stored series, oldest first.
func (pc *PriceCollection) Bars(symbol, timeframe string) []Bar {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	src := pc.bars[symbol][timeframe]
	out := make([]Bar, len(src))
	copy(out, src)
	return out
}

// BarsNewestFirst returns a defensive copy of the stored series reversed to
// index 0 = current, matching spec §3's bar-history ordering convention
// (the internal store itself stays oldest-first/append-friendly).
func (pc *PriceCollection) BarsNewestFirst(symbol, timeframe string) []Bar {
	src := pc.Bars(symbol, timeframe)
	out := make([]Bar, len(src))
	for i, b := range src {
		out[len(src)-1-i] = b
	}
	return out
}

// Last returns the most recently stored bar for (symbol, timeframe) and
// whether one exists.
func (pc *PriceCollection) Last(symbol, timeframe string) (Bar, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	src := pc.bars[symbol][timeframe]
	if len(src) == 0 {
		return Bar{}, false
	}
	return src[len(src)-1], true
}

// CurrentSession returns the in-progress "D" bar being built for symbol,
// and whether a session is currently open.
func (pc *PriceCollection) CurrentSession(symbol string) (Bar, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	b, ok := pc.building[symbol]
	return b, ok
}
