package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btfast/internal/calendar"
	"btfast/internal/datafeed"
	"btfast/internal/event"
	"btfast/internal/execution"
	"btfast/internal/instrument"
	"btfast/internal/search"
	"btfast/internal/signalhandler"
	"btfast/internal/strategy"
)

func es(t *testing.T) instrument.Instrument {
	inst, err := instrument.Lookup("ES")
	require.NoError(t, err)
	return inst
}

// breakoutFeed builds an 8-session fixture, one bar per session (each
// timestamped at the instrument's session open), engineered so the 6th/7th
// sessions form an expansion Breakout reads as an entry signal and the 8th
// session's bar crosses the resulting STOP level.
func breakoutFeed(t *testing.T) *datafeed.SliceFeed {
	inst := es(t)
	var times []calendar.DateTime
	var bars []event.OHLCV
	add := func(day int, o, h, l, c float64) {
		times = append(times, calendar.DateTime{D: calendar.DateOf(2026, 1, day), T: calendar.NewTime(18, 0)})
		bars = append(bars, event.OHLCV{Open: o, High: h, Low: l, Close: c, Volume: 100})
	}
	add(1, 100, 101, 99, 100.5)
	add(2, 100, 101, 99, 100.5)
	add(3, 100, 101, 99, 100.5)
	add(4, 100, 101, 99, 100.5)
	add(5, 100, 101, 99, 100.5) // "prior" session at the decision bar
	add(6, 100, 103, 99, 102)   // "current" session: wider high-open than the prior, triggers expansion
	add(7, 102, 104, 101, 103)  // arrival closes session 6, queuing the STOP entry for the next bar
	add(8, 102, 110, 101, 108)  // crosses the STOP level; position is closed at replay end at this bar's close
	return datafeed.NewSliceFeed(inst, "RAW", times, bars)
}

func baseConfig(inst instrument.Instrument) Config {
	return Config{
		StrategyName:   "breakout",
		Instrument:     inst,
		Timeframe:      "RAW",
		MaxBarsBack:    50,
		InitialBalance: 100000,
		Sizing:         signalhandler.Sizing{Policy: signalhandler.FixedSize, Contracts: 1},
		Execution:      execution.Options{},
	}
}

func breakoutParams(fractLong int) strategy.Params {
	return strategy.Params{
		"MyStop": 20, "Side_switch": 3,
		"fractN_long": fractLong, "fractN_short": 100,
		"Exit_switch": int(strategy.ExitEndOfSession), "TFMinutes": 5,
	}
}

func TestRunBacktestOpensAndClosesPositionOnBreakoutSignal(t *testing.T) {
	inst := es(t)
	result, err := RunBacktest(baseConfig(inst), breakoutFeed(t), breakoutParams(100), nil)
	require.NoError(t, err)
	assert.Equal(t, 8, result.BarCount)
	assert.Equal(t, 7, result.DayCount)

	txs := result.Account.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, 103.0, txs[0].EntryPrice)
	assert.InDelta(t, 250, txs[0].NetPL, 1e-9)
}

func TestRunBacktestWithRandomNoiseStillCompletes(t *testing.T) {
	cfg := baseConfig(es(t))
	cfg.NoiseStdevTicks = 1
	rng := rand.New(rand.NewSource(42))
	result, err := RunBacktest(cfg, breakoutFeed(t), breakoutParams(100), rng)
	require.NoError(t, err)
	assert.Equal(t, 8, result.BarCount)
}

func TestRunNoTradeCountsBarsAndDaysWithoutTrading(t *testing.T) {
	result, err := RunNoTrade(baseConfig(es(t)), breakoutFeed(t))
	require.NoError(t, err)
	assert.Equal(t, 8, result.BarCount)
	assert.Equal(t, 7, result.DayCount)
	assert.Empty(t, result.Account.Transactions())
}

func TestRunOverviewAccumulatesVolumeAndRangeStats(t *testing.T) {
	inst := es(t)
	res, err := RunOverview(inst, breakoutFeed(t), 50)
	require.NoError(t, err)
	assert.Equal(t, 8, res.BarCount)
	assert.Equal(t, 7, res.DayCount)
	assert.Len(t, res.HLRange, 7)
	assert.Equal(t, 800, res.VolumeHour[18]) // all 8 bars land at 18:00, 100 volume each

	var coSum float64
	for _, v := range res.CORangeDOW {
		coSum += v
	}
	assert.InDelta(t, 22, coSum, 1e-9) // sum of (close-open) for sessions 1-7, in ticks of 0.25
}

func fractRange(values ...int) search.ParamRanges {
	return search.ParamRanges{
		{Name: "MyStop", Values: []int{20}},
		{Name: "Side_switch", Values: []int{3}},
		{Name: "fractN_long", Values: values},
		{Name: "fractN_short", Values: []int{100}},
		{Name: "Exit_switch", Values: []int{int(strategy.ExitEndOfSession)}},
		{Name: "TFMinutes", Values: []int{5}},
	}
}

func TestRunParallelOptimizationProducesOneRowPerChromosome(t *testing.T) {
	cfg := baseConfig(es(t))
	space := search.CartesianProduct(fractRange(50, 100))
	rows, err := RunParallelOptimization(context.Background(), cfg, breakoutFeed(t), space)
	require.NoError(t, err)
	require.Len(t, rows, len(space))
	for _, row := range rows {
		assert.Equal(t, 1.0, row.NTrades)
	}
}

func TestRunSerialOptimizationReportsElapsedEstimateAfterFifthIteration(t *testing.T) {
	cfg := baseConfig(es(t))
	space := search.CartesianProduct(fractRange(50, 60, 70, 80, 100, 120))

	var progressCalls int
	rows, err := RunSerialOptimization(cfg, breakoutFeed(t), space, func(done, total int, estimated time.Duration) {
		progressCalls++
		assert.Equal(t, 5, done)
		assert.Equal(t, len(space), total)
	})
	require.NoError(t, err)
	assert.Len(t, rows, len(space))
	assert.Equal(t, 1, progressCalls)
}

func TestRunGeneticOptimizationProducesRowsAcrossGenerations(t *testing.T) {
	cfg := baseConfig(es(t))
	space := search.CartesianProduct(fractRange(50, 100))
	rng := rand.New(rand.NewSource(1))
	rows, err := RunGeneticOptimization(context.Background(), cfg, breakoutFeed(t), space, 2, 0, 0.0, 2, 10, "AvgTicks", rng)
	require.NoError(t, err)
	assert.Len(t, rows, 2*2)
}
