// Package store persists optimization/validation results: strategy_t rows
// (the fixed 7-metric head plus a named parameter tail) under a run
// identifier, plus the free-form metadata header spec §6 requires on every
// result file, transaction list and performance report. Grounded on
// original_source's result-file writer (utils_optim::save_to_file) for the
// text format, and on the teacher's internal/db.Logger for the SQL-backed
// stores.
package store

import "btfast/internal/search"

// ResultSet is one persisted optimization/validation run: a metadata header
// (free-form key/value, e.g. "symbol", "strategy", "run_mode") plus the rows
// it produced, in the order they were generated.
type ResultSet struct {
	RunID string
	Meta  map[string]string
	Rows  []search.StrategyRow
}

// StrategyStore writes and reads back ResultSets. ReadStrategies(id) after
// WriteStrategies(set) with set.RunID == id must reproduce a ResultSet equal
// to set (spec §8's write/read identity law).
type StrategyStore interface {
	WriteStrategies(set ResultSet) error
	ReadStrategies(runID string) (ResultSet, error)
}

// columns is the fixed metric column order from spec §6: Ntrades, AvgTicks,
// WinPerc, PftFactor, NP/MDD, Expectancy, Z-score, in that order, before any
// parameter columns.
var columns = []string{"Ntrades", "AvgTicks", "WinPerc", "PftFactor", "NP/MDD", "Expectancy", "Z-score"}

// paramNames returns the ordered, deduplicated parameter names appearing
// across rows, used as the header's trailing columns. Rows produced from the
// same ParamRanges all carry the same gene names in the same order, so the
// first row's order is taken as canonical.
func paramNames(rows []search.StrategyRow) []string {
	if len(rows) == 0 {
		return nil
	}
	names := make([]string, len(rows[0].Params))
	for i, g := range rows[0].Params {
		names[i] = g.Name
	}
	return names
}

func rowValues(row search.StrategyRow, params []string) []float64 {
	out := make([]float64, 0, len(columns)+len(params))
	for _, c := range columns {
		v, _ := row.AttributeByName(c)
		out = append(out, v)
	}
	for _, p := range params {
		v, _ := row.AttributeByName(p)
		out = append(out, v)
	}
	return out
}
