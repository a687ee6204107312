// Package search implements the parameter model (param_ranges/parameters/
// strategy_t) and the Cartesian-product grid builder feeding both
// exhaustive and genetic optimization. Grounded on
// original_source/include/utils_params.h (cartesian_product,
// extract_parameters_from_single_strategy, strategy_attribute_by_name) and
// original_source/include/btfast.h's single_param_t/parameters_t/
// param_ranges_t/strategy_t type aliases.
package search

import "btfast/internal/performance"

// Gene is a single named parameter value, the Go analogue of
// original_source's single_param_t pair ("p1", 2).
type Gene struct {
	Name  string
	Value int
}

// Chromosome is an ordered parameter assignment, the Go analogue of
// parameters_t. Order is significant: crossover and mutation operate on
// gene position, not name.
type Chromosome []Gene

// ToParams converts the chromosome to the strategy package's named-value
// map, the form SetParameterValues consumes.
func (c Chromosome) ToParams() map[string]int {
	m := make(map[string]int, len(c))
	for _, g := range c {
		m[g.Name] = g.Value
	}
	return m
}

// Equal reports whether two chromosomes carry identical genes in the same
// order, used to enforce GA parent distinctness.
func (c Chromosome) Equal(other Chromosome) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// ParamRange is one (name, values) entry of param_ranges_t: either a
// singleton (fixed parameter) or a stepped range already expanded into its
// full integer set.
type ParamRange struct {
	Name   string
	Values []int
}

// ParamRanges is the full param_ranges_t grid specification.
type ParamRanges []ParamRange

// CartesianProduct enumerates the full grid in row-major order, the last
// range varying fastest, per spec §3. An empty ranges list yields a single
// empty chromosome (matching the C++ implementation's fold-starting-from-
// one-empty-tuple behavior).
func CartesianProduct(ranges ParamRanges) []Chromosome {
	result := []Chromosome{{}}
	for _, r := range ranges {
		next := make([]Chromosome, 0, len(result)*len(r.Values))
		for _, existing := range result {
			for _, v := range r.Values {
				row := make(Chromosome, len(existing), len(existing)+1)
				copy(row, existing)
				row = append(row, Gene{Name: r.Name, Value: v})
				next = append(next, row)
			}
		}
		result = next
	}
	return result
}

// StrategyRow is the Go analogue of strategy_t: the fixed 7-metric head
// (Ntrades, AvgTicks, WinPerc, PftFactor, NP/MDD, Expectancy, Z-score, in
// that order per spec §3) plus the parameter tail that produced them.
type StrategyRow struct {
	NTrades      float64
	AvgTicks     float64
	WinPerc      float64
	ProfitFactor float64
	NetPLOverMDD float64
	Expectancy   float64
	ZScore       float64
	Params       Chromosome
}

// NewStrategyRow extracts the fixed metric head from a computed Metrics set
// and attaches the parameter tail, mirroring
// utils_optim::append_to_optim_results.
func NewStrategyRow(m performance.Metrics, params Chromosome) StrategyRow {
	return StrategyRow{
		NTrades:      m[performance.NTrades],
		AvgTicks:     m[performance.AvgTicks],
		WinPerc:      m[performance.WinPerc],
		ProfitFactor: m[performance.ProfitFactor],
		NetPLOverMDD: m[performance.NetPLMaxDD],
		Expectancy:   m[performance.Expectancy],
		ZScore:       m[performance.ZScore],
		Params:       params,
	}
}

// AttributeByName returns the named metric or parameter value from row,
// mirroring utils_params::strategy_attribute_by_name. Unknown names return
// (0, false).
func (r StrategyRow) AttributeByName(name string) (float64, bool) {
	switch name {
	case "Ntrades":
		return r.NTrades, true
	case "AvgTicks":
		return r.AvgTicks, true
	case "WinPerc":
		return r.WinPerc, true
	case "PftFactor":
		return r.ProfitFactor, true
	case "NP/MDD":
		return r.NetPLOverMDD, true
	case "Expectancy":
		return r.Expectancy, true
	case "Z-score":
		return r.ZScore, true
	}
	for _, g := range r.Params {
		if g.Name == name {
			return float64(g.Value), true
		}
	}
	return 0, false
}
