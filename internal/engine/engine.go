// Package engine drives the event-driven replay loop and every run mode
// built on top of it: no-trade data parsing, a single backtest, exhaustive
// optimization (parallel or serial), genetic optimization, and the market
// overview pass. Grounded on original_source/include/btfast.h's BTfast
// class; per-run component construction (a fresh PriceCollection,
// PositionHandler, SignalHandler, Strategy instance for every independent
// replay) follows the "no shared mutable state across workers" requirement
// and mirrors the teacher's internal/strategy.Engine's per-run runConfig,
// without its goroutine-per-run shape — the replay dispatch itself is a
// strict single-threaded state machine.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"btfast/internal/account"
	"btfast/internal/btferr"
	"btfast/internal/datafeed"
	"btfast/internal/event"
	"btfast/internal/execution"
	"btfast/internal/instrument"
	"btfast/internal/performance"
	"btfast/internal/position"
	"btfast/internal/pricecollection"
	"btfast/internal/search"
	"btfast/internal/signalhandler"
	"btfast/internal/strategy"
)

// Config holds the settings one replay (of any run mode) is parameterized
// by, the Go analogue of BTfast's constructor fields.
type Config struct {
	StrategyName    string
	Instrument      instrument.Instrument
	Timeframe       string
	MaxBarsBack     int
	InitialBalance  float64
	Sizing          signalhandler.Sizing
	Execution       execution.Options
	PrintProgress   bool
	NoiseStdevTicks float64 // 0 disables random noise mode
}

// Result is the outcome of one replay: the account carrying the closed
// trade history, plus the bar/day counters BTfast exposes via getters.
type Result struct {
	Account  *account.Account
	BarCount int
	DayCount int
}

// components is the full, independent set of stateful collaborators one
// replay needs — never shared across concurrent runs.
type components struct {
	feed      datafeed.Feed
	prices    *pricecollection.PriceCollection
	positions *position.Handler
	signals   *signalhandler.Handler
	exec      *execution.Handler
	acct      *account.Account
	strat     strategy.Strategy
}

func newComponents(cfg Config, feed datafeed.Feed, params strategy.Params) (*components, error) {
	strat, err := strategy.New(cfg.StrategyName)
	if err != nil {
		return nil, err
	}
	if err := strat.SetParameterValues(params); err != nil {
		return nil, err
	}
	acct := account.New(cfg.InitialBalance)
	return &components{
		feed:      feed,
		prices:    pricecollection.New(cfg.MaxBarsBack),
		positions: position.NewHandler(acct),
		signals:   signalhandler.New(cfg.Sizing),
		exec:      execution.New(cfg.Execution),
		acct:      acct,
		strat:     strat,
	}, nil
}

// RunNoTrade parses the feed without generating any strategy signal,
// tracking only the bar/day counters — the Go analogue of run_notrade.
func RunNoTrade(cfg Config, feed datafeed.Feed) (*Result, error) {
	if err := feed.Open(); err != nil {
		return nil, err
	}
	defer feed.Close()

	acct := account.New(cfg.InitialBalance)
	prices := pricecollection.New(cfg.MaxBarsBack)
	var barCount, dayCount int
	for {
		bar, ok := feed.StreamNextBar()
		if !ok {
			break
		}
		barCount++
		if cfg.PrintProgress && barCount%10000 == 0 {
			fmt.Printf("parsed %d bars\n", barCount)
		}
		if _, closed := prices.OnBar(cfg.Instrument, bar); closed {
			dayCount++
		}
	}
	return &Result{Account: acct, BarCount: barCount, DayCount: dayCount}, nil
}

// RunBacktest replays feed under a single parameter assignment, returning
// the closed-trade Account plus bar/day counters. rng is consulted only
// when cfg.NoiseStdevTicks > 0 (random noise mode); pass nil otherwise.
func RunBacktest(cfg Config, feed datafeed.Feed, params strategy.Params, rng *rand.Rand) (*Result, error) {
	comps, err := newComponents(cfg, feed, params)
	if err != nil {
		return nil, err
	}
	barCount, dayCount, err := runReplay(comps, cfg, rng)
	if err != nil {
		return nil, err
	}
	return &Result{Account: comps.acct, BarCount: barCount, DayCount: dayCount}, nil
}

// runReplay is the strict single-threaded dispatch loop from spec §4.7:
// for each bar, match orders queued on the prior bar, fold the bar into
// price history, update open positions (queuing any forced exit for the
// NEXT bar), then generate this bar's signals and queue their sized orders
// for the next bar in turn. Two separate pending queues distinguish a
// forced exit (matches at the next bar's close) from a strategy-emitted
// order (matches at the next bar's open per its order type).
func runReplay(comps *components, cfg Config, rng *rand.Rand) (barCount, dayCount int, err error) {
	if err := comps.feed.Open(); err != nil {
		return 0, 0, err
	}
	defer comps.feed.Close()

	var pendingForced, pendingNormal []event.Event
	var lastBar event.Event
	haveBar := false

	for {
		bar, ok := comps.feed.StreamNextBar()
		if !ok {
			break
		}
		if cfg.NoiseStdevTicks > 0 && rng != nil {
			applyNoise(&bar, cfg.Instrument, cfg.NoiseStdevTicks, rng)
		}
		barCount++
		if cfg.PrintProgress && barCount%10000 == 0 {
			fmt.Printf("parsed %d bars\n", barCount)
		}

		for _, ord := range pendingForced {
			if fill, filled := comps.exec.Match(ord, bar.OHLCV, true); filled {
				comps.positions.OnFill(cfg.Instrument, fill)
			}
		}
		for _, ord := range pendingNormal {
			if fill, filled := comps.exec.Match(ord, bar.OHLCV, false); filled {
				comps.positions.OnFill(cfg.Instrument, fill)
				comps.signals.ClearFilled(fill.StrategyName, fill.Action)
			}
		}
		pendingForced, pendingNormal = nil, nil

		_, closedSession := comps.prices.OnBar(cfg.Instrument, bar)
		if closedSession {
			dayCount++
			comps.signals.ClearSession()
		}

		pendingForced = append(pendingForced, comps.positions.OnBar(cfg.Instrument, bar, closedSession)...)

		if comps.strat != nil {
			name := comps.strat.Name()
			in := strategy.Inputs{
				Intraday:       comps.prices.BarsNewestFirst(cfg.Instrument.Name, bar.Timeframe),
				Daily:          comps.prices.BarsNewestFirst(cfg.Instrument.Name, "D"),
				MarketPosition: comps.positions.MarketPosition(name),
				Now:            bar.Timestamp,
			}
			long, short := comps.strat.ComputeSignals(in, cfg.Instrument)
			if long != nil {
				comps.signals.Ingest(event.NewSignal(cfg.Instrument, bar.Timestamp, long.Action, long.OrderType, long.Price, 1, 0, name, long.StopLoss, long.TakeProfit))
			}
			if short != nil {
				comps.signals.Ingest(event.NewSignal(cfg.Instrument, bar.Timestamp, short.Action, short.OrderType, short.Price, 1, 0, name, short.StopLoss, short.TakeProfit))
			}
			pendingNormal = append(pendingNormal, comps.signals.EmitOrders(cfg.Instrument, comps.acct.Balance(), bar.Timestamp)...)
		}

		lastBar, haveBar = bar, true
	}

	if haveBar {
		comps.positions.CloseAll(cfg.Instrument, lastBar)
	}
	return barCount, dayCount, nil
}

// applyNoise perturbs each OHLC field by an independent gaussian draw
// (stdevTicks in instrument ticks) and re-establishes the bar invariant,
// per spec §4.7's random noise mode.
func applyNoise(bar *event.Event, inst instrument.Instrument, stdevTicks float64, rng *rand.Rand) {
	draw := func() float64 { return rng.NormFloat64() * stdevTicks * inst.TickSize }
	bar.ReorderOHLC(
		bar.OHLCV.Open+draw(),
		bar.OHLCV.High+draw(),
		bar.OHLCV.Low+draw(),
		bar.OHLCV.Close+draw(),
	)
}

// runOneOptimizationIteration runs a full backtest for one candidate
// chromosome and reduces it to its ALL-trades StrategyRow, the unit of
// work shared by every optimization mode.
func runOneOptimizationIteration(cfg Config, feed datafeed.Feed, chromosome search.Chromosome) (search.StrategyRow, error) {
	result, err := RunBacktest(cfg, feed, chromosome.ToParams(), nil)
	if err != nil {
		return search.StrategyRow{}, err
	}
	report := performance.Compute(result.Account, result.DayCount, cfg.Instrument.Margin)
	return search.NewStrategyRow(report.All, chromosome), nil
}

// RunParallelOptimization runs every chromosome in searchSpace as an
// independent backtest over its own feed.Clone(), concurrently, collecting
// results at the candidate's own index (no shared mutable state across
// workers, per spec §5).
func RunParallelOptimization(ctx context.Context, cfg Config, feed datafeed.Feed, searchSpace []search.Chromosome) ([]search.StrategyRow, error) {
	rows := make([]search.StrategyRow, len(searchSpace))
	g, _ := errgroup.WithContext(ctx)
	for i, chromosome := range searchSpace {
		i, chromosome := i, chromosome
		g.Go(func() error {
			row, err := runOneOptimizationIteration(cfg, feed.Clone(), chromosome)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// RunSerialOptimization runs the same exhaustive search single-threaded,
// reporting an elapsed-time estimate for the full search after the fifth
// iteration completes (spec §4.7).
func RunSerialOptimization(cfg Config, feed datafeed.Feed, searchSpace []search.Chromosome, onProgress func(done, total int, estimated time.Duration)) ([]search.StrategyRow, error) {
	rows := make([]search.StrategyRow, 0, len(searchSpace))
	start := time.Now()
	for i, chromosome := range searchSpace {
		row, err := runOneOptimizationIteration(cfg, feed.Clone(), chromosome)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if i == 4 && onProgress != nil {
			perRun := time.Since(start) / 5
			onProgress(5, len(searchSpace), perRun*time.Duration(len(searchSpace)))
		}
	}
	return rows, nil
}

// RunGeneticOptimization drives search.RunGeneticSearch with a fitness
// function that backtests each candidate chromosome and extracts
// fitnessMetric from its resulting StrategyRow.
func RunGeneticOptimization(ctx context.Context, cfg Config, feed datafeed.Feed, searchSpace []search.Chromosome, populationSize, eliteNum int, mutationRate float64, generations, stagnationLimit int, fitnessMetric string, rng *rand.Rand) ([]search.StrategyRow, error) {
	fitnessFn := func(c search.Chromosome) (float64, search.StrategyRow, error) {
		row, err := runOneOptimizationIteration(cfg, feed.Clone(), c)
		if err != nil {
			return 0, search.StrategyRow{}, err
		}
		v, ok := row.AttributeByName(fitnessMetric)
		if !ok {
			return 0, search.StrategyRow{}, fmt.Errorf("%wunknown fitness metric %q", btferr.Configuration, fitnessMetric)
		}
		return v, row, nil
	}
	return search.RunGeneticSearch(ctx, searchSpace, populationSize, eliteNum, mutationRate, generations, stagnationLimit, fitnessMetric, fitnessFn, rng)
}

// OverviewResult is BTfast's market-overview statistics: per-hour volume,
// per-weekday close-minus-open range (in ticks), and the daily high-low
// range series (in ticks), one entry per session.
type OverviewResult struct {
	BarCount   int
	DayCount   int
	VolumeHour [24]int
	CORangeDOW [7]float64
	HLRange    []float64
}

// RunOverview parses feed and accumulates market-overview statistics
// without any strategy or position machinery, the Go analogue of
// run_overview.
func RunOverview(inst instrument.Instrument, feed datafeed.Feed, maxBarsBack int) (*OverviewResult, error) {
	if err := feed.Open(); err != nil {
		return nil, err
	}
	defer feed.Close()

	prices := pricecollection.New(maxBarsBack)
	res := &OverviewResult{}
	for {
		bar, ok := feed.StreamNextBar()
		if !ok {
			break
		}
		res.BarCount++
		res.VolumeHour[bar.Timestamp.T.Hour] += bar.OHLCV.Volume

		session, closed := prices.OnBar(inst, bar)
		if !closed {
			continue
		}
		res.DayCount++
		dow := session.Timestamp.D.Weekday() // ISO Monday=1..Sunday=7
		res.CORangeDOW[dow-1] += (session.OHLCV.Close - session.OHLCV.Open) / inst.TickSize
		res.HLRange = append(res.HLRange, (session.OHLCV.High-session.OHLCV.Low)/inst.TickSize)
	}
	return res, nil
}
