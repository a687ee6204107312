// Package obslog provides the structured, per-run logger cmd/btfast and the
// wiring layer log through, replacing the teacher's bare log.Printf calls
// with zerolog's chained-field idiom (grounded on other_examples'
// web3guy0-polybot engine: "log.Info().Str(...).Msg(...)").
package obslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds a JSON zerolog.Logger writing to stderr, carrying runID/mode/symbol as
// permanent fields, so every subsequent call site only adds what's specific
// to that event.
func New(runID, mode, symbol string) zerolog.Logger {
	return NewWithWriter(os.Stderr, runID, mode, symbol)
}

// NewWithWriter is New with an explicit sink, for tests and for redirecting
// a run's log lines to a file.
func NewWithWriter(w io.Writer, runID, mode, symbol string) zerolog.Logger {
	return zerolog.New(w).With().
		Timestamp().
		Str("run_id", runID).
		Str("mode", mode).
		Str("symbol", symbol).
		Logger()
}

// WithIteration returns a child logger with the current optimization
// iteration/generation attached, for per-iteration progress logging.
func WithIteration(l zerolog.Logger, iteration int) zerolog.Logger {
	return l.With().Int("iteration", iteration).Logger()
}
