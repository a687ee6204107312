// Package telemetry exposes Prometheus counters and histograms for a
// running engine process. Grounded on chidi150c-coinbase's metrics.go: a
// package-level var block of prometheus.New*Vec metrics registered in
// init(), served by promhttp.Handler() the way that repo's main.go mounts
// "/metrics".
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bars_processed_total",
			Help: "OHLCV bars consumed from a datafeed, by symbol and timeframe.",
		},
		[]string{"symbol", "timeframe"},
	)

	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_emitted_total",
			Help: "Strategy signals emitted, by strategy and action.",
		},
		[]string{"strategy", "action"},
	)

	OrdersFilled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_filled_total",
			Help: "Orders matched to a fill, by strategy and action.",
		},
		[]string{"strategy", "action"},
	)

	BacktestsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtests_completed_total",
			Help: "Single-chromosome backtest replays completed, by run mode.",
		},
		[]string{"mode"},
	)

	OptimizationGenerationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optimization_generation_seconds",
			Help:    "Wall-clock time to evaluate one genetic-optimization generation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"fitness_metric"},
	)
)

func init() {
	prometheus.MustRegister(BarsProcessed, SignalsEmitted, OrdersFilled, BacktestsCompleted, OptimizationGenerationSeconds)
}

// Handler returns the promhttp handler to mount at "/metrics".
func Handler() http.Handler {
	return promhttp.Handler()
}
