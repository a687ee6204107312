// Package datafeed defines the abstract streaming source of BAR events the
// replay loop pulls from, plus a slice-backed double used by tests and the
// optimization/validation workers that clone a feed per parallel run. The
// concrete CSV/SQLite readers are an explicit spec non-goal; only this
// contract and a fixture implementation live here. Grounded on
// original_source/include/datafeed.h.
package datafeed

import (
	"btfast/internal/calendar"
	"btfast/internal/event"
	"btfast/internal/instrument"
)

// Feed is an abstract streaming source of BAR events for one (symbol,
// timeframe), matching the capability set {open, close, reset,
// advance-one-bar, clone} from SPEC_FULL.md's design notes.
type Feed interface {
	Open() error
	Close() error
	Reset()
	// StreamNextBar advances the cursor and returns the next BAR event,
	// or ok=false once the feed is exhausted.
	StreamNextBar() (bar event.Event, ok bool)
	// TotalBars reports how many bars remain to be streamed (best-effort,
	// used for elapsed-time estimation in serial optimization).
	TotalBars() int
	// Clone returns an independent copy positioned at its own start, for a
	// parallel worker's private DataFeed instance.
	Clone() Feed
}

// SliceFeed is an in-memory Feed over a fixed slice of bars, used by tests
// and by cmd/btfast's built-in demo feed.
type SliceFeed struct {
	Symbol    instrument.Instrument
	Timeframe string
	bars      []event.OHLCV
	times     []calendar.DateTime
	cursor    int
	opened    bool
}

// NewSliceFeed builds a SliceFeed over parallel bars/times slices (same
// length); callers typically build these from a parsed CSV fixture.
func NewSliceFeed(sym instrument.Instrument, timeframe string, times []calendar.DateTime, bars []event.OHLCV) *SliceFeed {
	return &SliceFeed{Symbol: sym, Timeframe: timeframe, bars: bars, times: times}
}

func (f *SliceFeed) Open() error { f.opened = true; return nil }
func (f *SliceFeed) Close() error {
	f.opened = false
	return nil
}
func (f *SliceFeed) Reset() { f.cursor = 0 }

func (f *SliceFeed) StreamNextBar() (event.Event, bool) {
	if f.cursor >= len(f.bars) {
		return event.Event{}, false
	}
	e := event.NewBar(f.Symbol, f.times[f.cursor], f.Timeframe, f.bars[f.cursor])
	f.cursor++
	return e, true
}

func (f *SliceFeed) TotalBars() int {
	if f.cursor >= len(f.bars) {
		return 0
	}
	return len(f.bars) - f.cursor
}

// Clone returns an independent SliceFeed sharing the same underlying bar
// data (read-only) but with its own cursor, matching the "no shared
// mutable state across workers" requirement of spec §5.
func (f *SliceFeed) Clone() Feed {
	return &SliceFeed{Symbol: f.Symbol, Timeframe: f.Timeframe, bars: f.bars, times: f.times}
}
