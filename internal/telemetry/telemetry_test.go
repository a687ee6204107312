package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBarsProcessedIncrementsPerSymbolTimeframe(t *testing.T) {
	BarsProcessed.Reset()
	BarsProcessed.WithLabelValues("ES", "RAW").Inc()
	BarsProcessed.WithLabelValues("ES", "RAW").Inc()
	BarsProcessed.WithLabelValues("NQ", "RAW").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(BarsProcessed.WithLabelValues("ES", "RAW")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BarsProcessed.WithLabelValues("NQ", "RAW")))
}

func TestOptimizationGenerationSecondsObservesSamples(t *testing.T) {
	OptimizationGenerationSeconds.Reset()
	OptimizationGenerationSeconds.WithLabelValues("run-1").Observe(1.5)

	assert.Equal(t, 1, testutil.CollectAndCount(OptimizationGenerationSeconds, "optimization_generation_seconds"))
}
