// Command btfast wires the engine, validation, persistence, and
// observability packages together into one running process. Building a
// settings-document parser (XML, flags) is an explicit non-goal, so this
// entry point reads its operational knobs from a handful of environment
// variables with fixed defaults, the way the teacher's main.go reads its
// RabbitMQ/Postgres endpoints from package-level constants, rather than
// from a config file format of its own.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"btfast/internal/bus"
	"btfast/internal/calendar"
	"btfast/internal/config"
	"btfast/internal/dashboard"
	"btfast/internal/datafeed"
	"btfast/internal/engine"
	"btfast/internal/event"
	"btfast/internal/instrument"
	"btfast/internal/obslog"
	"btfast/internal/search"
	"btfast/internal/store"
	"btfast/internal/strategy"
	"btfast/internal/telemetry"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func settingsFromEnv() config.Settings {
	return config.Settings{
		RunMode:         config.Genetic,
		StrategyName:    getenv("BTFAST_STRATEGY", "breakout"),
		SymbolName:      getenv("BTFAST_SYMBOL", "ES"),
		Timeframe:       getenv("BTFAST_TIMEFRAME", "RAW"),
		StartDate:       calendar.DateOf(2026, 1, 1),
		EndDate:         calendar.DateOf(2026, 12, 31),
		MaxBarsBack:     50,
		InitialBalance:  100000,
		NumContracts:    1,
		PopulationSize:  8,
		Generations:     3,
		FitnessMetric:   "AvgTicks",
		MaxVariationPct: 0.3,
		NumNoiseTests:   20,
	}
}

// demoFeed stands in for the concrete CSV/SQLite datafeed reader spec's
// non-goals exclude: a small in-memory replay so the wiring below has bars
// to run against. A real deployment supplies its own datafeed.Feed.
func demoFeed(inst instrument.Instrument) *datafeed.SliceFeed {
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
	add(5, 100, 101, 99, 100.5)
	add(6, 100, 103, 99, 102)
	add(7, 102, 104, 101, 103)
	add(8, 102, 110, 101, 108)
	return datafeed.NewSliceFeed(inst, "RAW", times, bars)
}

func searchSpace() []search.Chromosome {
	return search.CartesianProduct(search.ParamRanges{
		{Name: "MyStop", Values: []int{15, 20, 25}},
		{Name: "Side_switch", Values: []int{3}},
		{Name: "fractN_long", Values: []int{50, 75, 100}},
		{Name: "fractN_short", Values: []int{100}},
		{Name: "Exit_switch", Values: []int{int(strategy.ExitEndOfSession)}},
		{Name: "TFMinutes", Values: []int{5}},
	})
}

func main() {
	runID := uuid.NewString()
	settings := settingsFromEnv()
	space := searchSpace()
	if err := settings.Validate(space); err != nil {
		fmt.Fprintf(os.Stderr, "btfast: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := obslog.New(runID, fmt.Sprint(settings.RunMode), settings.SymbolName)
	logger.Info().Msg("starting")

	inst, err := instrument.Lookup(settings.SymbolName)
	if err != nil {
		logger.Fatal().Err(err).Msg("unknown instrument")
	}

	cfg := engine.Config{
		StrategyName:   settings.StrategyName,
		Instrument:     inst,
		Timeframe:      settings.Timeframe,
		MaxBarsBack:    settings.MaxBarsBack,
		InitialBalance: settings.InitialBalance,
		Sizing:         settings.Sizing(),
	}

	dashHub := dashboard.NewHub()
	go dashHub.Run()

	var progress *bus.ProgressPublisher
	if amqpURI := os.Getenv("BTFAST_AMQP_URI"); amqpURI != "" {
		progress, err = bus.NewProgressPublisher(amqpURI)
		if err != nil {
			logger.Warn().Err(err).Msg("progress publisher unavailable, continuing without it")
		} else {
			defer progress.Close()
		}
	}

	stop := make(chan struct{})
	go dashHub.RunStatusLoop(func() dashboard.RunStatus {
		return dashboard.RunStatus{RunID: runID, Mode: fmt.Sprint(settings.RunMode)}
	}, stop)
	defer close(stop)

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	mux.HandleFunc("/ws", dashHub.ServeWs)
	httpAddr := getenv("BTFAST_HTTP_ADDR", ":8090")
	httpServer := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		logger.Info().Str("addr", httpAddr).Msg("serving metrics and dashboard")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server failed")
		}
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rows, err := engine.RunGeneticOptimization(context.Background(), cfg, demoFeed(inst), space,
		settings.PopulationSize, 2, 0.1, settings.Generations, settings.Generations, settings.FitnessMetric, rng)
	if err != nil {
		logger.Fatal().Err(err).Msg("optimization failed")
	}
	telemetry.BacktestsCompleted.WithLabelValues(fmt.Sprint(settings.RunMode)).Add(float64(len(rows)))
	logger.Info().Int("rows", len(rows)).Msg("optimization complete")

	resultDir := getenv("BTFAST_RESULT_DIR", ".")
	textStore := store.TextStore{Dir: resultDir}
	resultSet := store.ResultSet{
		RunID: runID,
		Meta:  map[string]string{"symbol": settings.SymbolName, "strategy": settings.StrategyName},
		Rows:  rows,
	}
	if err := textStore.WriteStrategies(resultSet); err != nil {
		logger.Error().Err(err).Msg("writing result file failed")
	}

	if progress != nil {
		if err := progress.PublishOptimizationProgress(bus.OptimizationProgress{
			RunID: runID, Done: len(rows), Total: len(space),
		}); err != nil {
			logger.Warn().Err(err).Msg("publishing final progress failed")
		}
	}

	logger.Info().Str("addr", httpAddr).Msg("run complete, serving dashboard/metrics until interrupted")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}
