// Package validation implements the composable strategy-selection pipeline:
// selection on in-sample metrics, an out-of-sample metrics test, an
// out-of-sample consistency test (Mann-Whitney U on per-trade ticks), a
// profitability sweep, a stability sweep, and a noise test. Each step is a
// pure function over a Candidate slice, mirroring the Go analogue of
// original_source/include/validation.h's Validation class method set
// (selection/OOS_metrics_test/OOS_consistency_test/profitability_test/
// stability_test/noise_test), composed by the caller instead of driven by a
// single run_validation orchestrator.
package validation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"btfast/internal/account"
	"btfast/internal/btferr"
	"btfast/internal/datafeed"
	"btfast/internal/engine"
	"btfast/internal/performance"
	"btfast/internal/search"
)

// Candidate is one strategy under validation: its parameter assignment, its
// in-sample performance, and (once OOSMetrics has run) its out-of-sample
// counterpart.
type Candidate struct {
	Params   search.Chromosome
	IS       performance.Metrics
	ISDays   int
	ISTicks  []float64
	OOS      performance.Metrics
	OOSDays  int
	OOSTicks []float64
}

// ticksOf reduces an account's closed trades to their per-trade tick P&L,
// the series both the consistency and noise tests compare distributions of.
func ticksOf(acct *account.Account) []float64 {
	var out []float64
	for _, t := range acct.Transactions() {
		if t.Quantity > 0 && t.TickValue != 0 {
			out = append(out, t.NetPL/(float64(t.Quantity)*t.TickValue))
		}
	}
	return out
}

// FromBacktests backtests every chromosome in searchSpace against feed and
// keeps only those that produced at least one closed trade, the entry point
// the pipeline steps below consume (the Go analogue of Validation receiving
// an already-optimized strategy list from a prior exhaustive/genetic run).
func FromBacktests(cfg engine.Config, feed datafeed.Feed, searchSpace []search.Chromosome) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(searchSpace))
	for _, params := range searchSpace {
		result, err := engine.RunBacktest(cfg, feed.Clone(), params.ToParams(), nil)
		if err != nil {
			return nil, err
		}
		if len(result.Account.Transactions()) == 0 {
			continue
		}
		report := performance.Compute(result.Account, result.DayCount, cfg.Instrument.Margin)
		candidates = append(candidates, Candidate{
			Params:  params,
			IS:      report.All,
			ISDays:  result.DayCount,
			ISTicks: ticksOf(result.Account),
		})
	}
	return candidates, nil
}

// Selection keeps candidates passing the six in-sample thresholds of spec
// §4.10 step 1, grounded on Validation::selection_conditions.
func Selection(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		ndays := float64(c.ISDays)
		m := c.IS
		if m[performance.NTrades] > 20*(ndays/252.0) &&
			m[performance.AvgTicks] > 12 &&
			m[performance.NetPLMaxDD] > 4 &&
			m[performance.ProfitFactor] > 1.2 &&
			m[performance.Expectancy] > 0.1 &&
			m[performance.ZScore] > 2 {
			out = append(out, c)
		}
	}
	return out
}

func rate(count float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return count / float64(days)
}

// profitableYears buckets txs by the calendar year of their exit and counts
// how many years have AvgTicks >= 6, per Performance::profitable_yrs.
func profitableYears(acct *account.Account) (total, profitable int) {
	byYear := map[int][]float64{}
	for _, t := range acct.Transactions() {
		tk := 0.0
		if t.Quantity > 0 && t.TickValue != 0 {
			tk = t.NetPL / (float64(t.Quantity) * t.TickValue)
		}
		byYear[t.ExitTime.D.Year] = append(byYear[t.ExitTime.D.Year], tk)
	}
	for _, ticks := range byYear {
		total++
		if mean(ticks) >= 6 {
			profitable++
		}
	}
	return total, profitable
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// OOSMetrics reruns every candidate against oosFeed, attaches its
// out-of-sample performance, and keeps those satisfying spec §4.10 step 2:
// similar trade rate, positive OOS net P&L, OOS AvgTicks and NetPL/MaxDD at
// least half their IS counterpart, and 75% of all IS+OOS years profitable.
func OOSMetrics(cfg engine.Config, isFeed, oosFeed datafeed.Feed, candidates []Candidate) ([]Candidate, error) {
	var out []Candidate
	for _, c := range candidates {
		isResult, err := engine.RunBacktest(cfg, isFeed.Clone(), c.Params.ToParams(), nil)
		if err != nil {
			return nil, err
		}
		oosResult, err := engine.RunBacktest(cfg, oosFeed.Clone(), c.Params.ToParams(), nil)
		if err != nil {
			return nil, err
		}
		if len(isResult.Account.Transactions()) == 0 || len(oosResult.Account.Transactions()) == 0 {
			continue
		}
		oosReport := performance.Compute(oosResult.Account, oosResult.DayCount, cfg.Instrument.Margin)
		c.OOS = oosReport.All
		c.OOSDays = oosResult.DayCount
		c.OOSTicks = ticksOf(oosResult.Account)

		isRate := rate(c.IS[performance.NTrades], c.ISDays)
		oosRate := rate(c.OOS[performance.NTrades], c.OOSDays)
		isYears, isProfitable := profitableYears(isResult.Account)
		oosYears, oosProfitable := profitableYears(oosResult.Account)
		nyears := float64(isYears + oosYears)

		condTradeRate := oosRate >= 0.3*isRate && oosRate <= 3.0*isRate
		condNetPL := c.OOS[performance.NetPL] > 0
		condAvgTicks := c.OOS[performance.AvgTicks] >= 0.5*c.IS[performance.AvgTicks]
		condNpMdd := c.OOS[performance.NetPLMaxDD] >= 0.5*c.IS[performance.NetPLMaxDD]
		condProfitableYears := nyears > 0 && float64(isProfitable+oosProfitable)/nyears >= 0.75

		if condTradeRate && condNetPL && condAvgTicks && condNpMdd && condProfitableYears {
			out = append(out, c)
		}
	}
	return out, nil
}

// mannWhitneyPValue computes the two-sided p-value of the Mann-Whitney U
// test between two independent samples, grounded on
// utils_math::mannwhitney/ranks (lower_bound rank with tie-averaged
// midranks, normal approximation to U).
func mannWhitneyPValue(v, w []float64) float64 {
	if len(v) == 0 || len(w) == 0 {
		return 0
	}
	pool := make([]float64, 0, len(v)+len(w))
	pool = append(pool, v...)
	pool = append(pool, w...)
	r := ranks(pool)

	n1, n2 := len(v), len(w)
	var r1, r2 float64
	for i := 0; i < n1; i++ {
		r1 += r[i]
	}
	for i := n1; i < n1+n2; i++ {
		r2 += r[i]
	}
	u1 := r1 - float64(n1*(n1+1))*0.5
	u2 := r2 - float64(n2*(n2+1))*0.5
	umin := math.Min(u1, u2)
	meanU := float64(n1*n2) * 0.5
	sigmaU := math.Sqrt(float64(n1*n2*(n1+n2+1)) / 12.0)
	if sigmaU == 0 {
		return 0
	}
	z := (umin - meanU) / sigmaU
	return 2 * (1 - 0.5*math.Erfc(-math.Abs(z)/math.Sqrt2))
}

// ranks returns the midrank of each element of xs, averaging tied ranks the
// way utils_math::ranks does (rank of the first occurrence plus half the
// tie-run length minus one).
func ranks(xs []float64) []float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	out := make([]float64, len(xs))
	for i, x := range xs {
		lo := sort.SearchFloat64s(sorted, x)
		ties := 0
		for _, v := range sorted {
			if v == x {
				ties++
			}
		}
		out[i] = float64(lo+1) + float64(ties-1)/2.0
	}
	return out
}

// OOSConsistency keeps candidates whose IS and OOS per-trade tick
// distributions are statistically indistinguishable (Mann-Whitney two-sided
// p-value >= 0.05), per spec §4.10 step 3.
func OOSConsistency(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if len(c.ISTicks) == 0 || len(c.OOSTicks) == 0 {
			continue
		}
		if mannWhitneyPValue(c.ISTicks, c.OOSTicks) >= 0.05 {
			out = append(out, c)
		}
	}
	return out
}

// withOverride returns a copy of chromosome with paramName's gene replaced
// by value (appending it if absent); chromosome itself is left untouched.
func withOverride(chromosome search.Chromosome, paramName string, value int) search.Chromosome {
	out := make(search.Chromosome, len(chromosome))
	copy(out, chromosome)
	for i, g := range out {
		if g.Name == paramName {
			out[i].Value = value
			return out
		}
	}
	return append(out, search.Gene{Name: paramName, Value: value})
}

// ProfitabilitySweep varies paramName across values (holding every other
// parameter fixed at the candidate's own value), backtests each point, and
// keeps candidates with at least 80% of runs showing AvgTicks above
// transactionCostTicks, per spec §4.10 step 4. Call once per side enabled
// (Side_switch 1/2/3 selects "fractN_long"/"fractN_short"/both upstream).
func ProfitabilitySweep(cfg engine.Config, feed datafeed.Feed, candidates []Candidate, paramName string, values []int, transactionCostTicks float64) ([]Candidate, error) {
	var out []Candidate
	for _, c := range candidates {
		var metric []float64
		for _, v := range values {
			params := withOverride(c.Params, paramName, v)
			result, err := engine.RunBacktest(cfg, feed.Clone(), params.ToParams(), nil)
			if err != nil {
				return nil, err
			}
			if len(result.Account.Transactions()) == 0 {
				continue
			}
			report := performance.Compute(result.Account, result.DayCount, cfg.Instrument.Margin)
			metric = append(metric, report.All[performance.AvgTicks])
		}
		if len(metric) == 0 {
			return nil, fmt.Errorf("%wempty metric vector sweeping %s", btferr.RuntimeDegenerate, paramName)
		}
		profitable := 0
		for _, m := range metric {
			if m > transactionCostTicks {
				profitable++
			}
		}
		if float64(profitable) >= 0.8*float64(len(metric)) {
			out = append(out, c)
		}
	}
	return out, nil
}

// StabilitySweep sweeps epsilonParam over {-2,-1,0,1,2} (conventionally
// +/-10%, +/-5%, 0% parameter perturbations), backtests each point, and
// keeps candidates whose fitnessMetric stays within maxVariation of its
// neighborhood max, per spec §4.10 step 5.
func StabilitySweep(cfg engine.Config, feed datafeed.Feed, candidates []Candidate, epsilonParam, fitnessMetric string, maxVariation float64) ([]Candidate, error) {
	epsilons := []int{-2, -1, 0, 1, 2}
	var out []Candidate
	for _, c := range candidates {
		var metric []float64
		for _, eps := range epsilons {
			params := withOverride(c.Params, epsilonParam, eps)
			result, err := engine.RunBacktest(cfg, feed.Clone(), params.ToParams(), nil)
			if err != nil {
				return nil, err
			}
			if len(result.Account.Transactions()) == 0 {
				continue
			}
			report := performance.Compute(result.Account, result.DayCount, cfg.Instrument.Margin)
			row := search.NewStrategyRow(report.All, params)
			v, ok := row.AttributeByName(fitnessMetric)
			if !ok {
				return nil, fmt.Errorf("%wunknown fitness metric %q", btferr.Configuration, fitnessMetric)
			}
			metric = append(metric, v)
		}
		if len(metric) == 0 {
			return nil, fmt.Errorf("%wempty metric vector in stability sweep", btferr.RuntimeDegenerate)
		}
		maxM, minM := metric[0], metric[0]
		for _, m := range metric {
			if m > maxM {
				maxM = m
			}
			if m < minM {
				minM = m
			}
		}
		if minM >= (1-maxVariation)*maxM {
			out = append(out, c)
		}
	}
	return out, nil
}

// NoiseTest runs numNoiseTests backtests with independent OHLC noise
// (cfg.NoiseStdevTicks, applied by engine.RunBacktest via rng) alongside the
// unperturbed candidate, and keeps candidates whose unperturbed AvgTicks
// falls within mean +/- 2*stdev of the noised distribution, per spec §4.10
// step 6. cfg.NoiseStdevTicks must already be > 0; the single rng is drawn
// from by every noised run of every candidate in turn, so results are
// deterministic for a fixed seed and candidate order.
func NoiseTest(cfg engine.Config, feed datafeed.Feed, candidates []Candidate, numNoiseTests int, rng *rand.Rand) ([]Candidate, error) {
	var out []Candidate
	for _, c := range candidates {
		original := c.IS[performance.AvgTicks]

		metric := make([]float64, 0, numNoiseTests)
		for i := 0; i < numNoiseTests; i++ {
			result, err := engine.RunBacktest(cfg, feed.Clone(), c.Params.ToParams(), rng)
			if err != nil {
				return nil, err
			}
			if len(result.Account.Transactions()) == 0 {
				continue
			}
			report := performance.Compute(result.Account, result.DayCount, cfg.Instrument.Margin)
			metric = append(metric, report.All[performance.AvgTicks])
		}
		if len(metric) == 0 {
			return nil, fmt.Errorf("%wempty AvgTicks vector in noise test", btferr.RuntimeDegenerate)
		}

		mu := mean(metric)
		sd := stdev(metric, mu)
		lower, upper := mu-2*sd, mu+2*sd
		if lower < upper && original >= lower && original <= upper {
			out = append(out, c)
		}
	}
	return out, nil
}

func stdev(xs []float64, mu float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mu
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}
