// Package performance derives the full metrics set from a transaction
// list. Grounded on original_source/include/performance.h (its
// metrics_all_/metrics_long_/metrics_short_ unordered_maps, computed by
// compute_metrics/drawdown/avgticks/zscore/cagr/rsquared); formulas follow
// spec §4.8 exactly.
package performance

import (
	"math"

	"btfast/internal/account"
	"btfast/internal/event"
)

// Metrics is the named set of performance figures for one transaction
// subset (ALL, LONG, or SHORT), keyed the same way the original's
// unordered_map<string,double> was.
type Metrics map[string]float64

// Named metric keys of a Metrics map.
const (
	NTrades       = "ntrades"
	NWins         = "nwins"
	GrossProfit   = "gross_profit"
	GrossLoss     = "gross_loss"
	NetPL         = "net_pl"
	NetPLPct      = "net_pl_pct"
	AvgTrade      = "avg_trade"
	StdTrade      = "std_trade"
	AvgTicks      = "avg_ticks"
	StdTicks      = "std_ticks"
	AvgProfit     = "avg_profit"
	AvgLoss       = "avg_loss"
	WinPerc       = "win_perc"
	ProfitFactor  = "profit_factor"
	Expectancy    = "expectancy"
	ZScore        = "z_score"
	MaxDD         = "max_dd"
	MaxDDPct      = "max_dd_pct"
	AvgDD         = "avg_dd"
	AvgDDDuration = "avg_dd_duration"
	NetPLMaxDD    = "netpl_maxdd"
	MAR           = "mar"
	MaxConsecWin  = "max_consec_win"
	MaxConsecLoss = "max_consec_loss"
	CAGR          = "cagr"
	RSquared      = "rsquared"
	MinCapital    = "min_capital"
)

// Report bundles the three metric maps Performance produces from one
// transaction list.
type Report struct {
	All, Long, Short Metrics
}

// Compute derives a full Report from an Account's transaction history.
// ndays is the number of trading sessions in the source data (callers pass
// the replay's DayCount), used by CAGR; margin is the instrument's initial margin, used by min_capital.
func Compute(acct *account.Account, ndays int, margin float64) Report {
	all := acct.Transactions()
	var longs, shorts []account.Transaction
	for _, t := range all {
		if t.Side == event.Buy {
			longs = append(longs, t)
		} else {
			shorts = append(shorts, t)
		}
	}
	return Report{
		All:   computeSubset(all, acct.InitialBalance, ndays, margin),
		Long:  computeSubset(longs, acct.InitialBalance, ndays, margin),
		Short: computeSubset(shorts, acct.InitialBalance, ndays, margin),
	}
}

func computeSubset(txs []account.Transaction, initialBalance float64, ndays int, margin float64) Metrics {
	m := Metrics{}
	n := len(txs)
	m[NTrades] = float64(n)
	if n == 0 {
		return m
	}

	var grossProfit, grossLoss, netPL float64
	var nwins int
	netPLs := make([]float64, n)
	ticks := make([]float64, n)
	for i, t := range txs {
		netPLs[i] = t.NetPL
		netPL += t.NetPL
		if t.NetPL > 0 {
			grossProfit += t.NetPL
			nwins++
		} else {
			grossLoss += t.NetPL
		}
		if t.Quantity > 0 && t.TickValue != 0 {
			ticks[i] = t.NetPL / (float64(t.Quantity) * t.TickValue)
		}
	}

	m[NWins] = float64(nwins)
	m[GrossProfit] = grossProfit
	m[GrossLoss] = grossLoss
	m[NetPL] = netPL
	m[NetPLPct] = netPL / initialBalance * 100

	avgTrade := mean(netPLs)
	stdTrade := stdev(netPLs, avgTrade)
	m[AvgTrade] = avgTrade
	m[StdTrade] = stdTrade

	avgTicks := mean(ticks)
	m[AvgTicks] = avgTicks
	m[StdTicks] = stdev(ticks, avgTicks)

	nlosses := n - nwins
	if nwins > 0 {
		m[AvgProfit] = grossProfit / float64(nwins)
	}
	if nlosses > 0 {
		m[AvgLoss] = grossLoss / float64(nlosses)
	}
	winPerc := float64(nwins) / float64(n) * 100
	m[WinPerc] = winPerc
	if grossLoss != 0 {
		m[ProfitFactor] = grossProfit / math.Abs(grossLoss)
	}
	if m[AvgLoss] != 0 {
		m[Expectancy] = (m[AvgProfit]*winPerc/100 - math.Abs(m[AvgLoss])*(1-winPerc/100)) / math.Abs(m[AvgLoss])
	}
	if n >= 30 && stdTrade != 0 {
		m[ZScore] = math.Sqrt(float64(n)) * avgTrade / stdTrade
	}

	computeDrawdown(txs, netPLs, m)
	if m[MaxDD] != 0 {
		m[NetPLMaxDD] = netPL / math.Abs(m[MaxDD])
	}
	computeConsecutive(netPLs, m)
	computeCAGR(netPL, initialBalance, ndays, m)
	if m[MaxDDPct] != 0 {
		m[MAR] = m[CAGR] / math.Abs(m[MaxDDPct])
	}
	m[RSquared] = rsquared(netPLs)
	m[MinCapital] = margin + 1.5*math.Abs(m[MaxDD])

	return m
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

func computeDrawdown(txs []account.Transaction, netPLs []float64, m Metrics) {
	n := len(netPLs)
	cumul := make([]float64, n)
	var running float64
	for i, pl := range netPLs {
		running += pl
		cumul[i] = running
	}
	var peak, maxDD, ddSum float64
	var lastPeakIdx int
	var gapSum float64
	var gapCount int
	for i, c := range cumul {
		if i == 0 || c > peak {
			if i > 0 {
				gapSum += float64(i - lastPeakIdx)
				gapCount++
			}
			peak = c
			lastPeakIdx = i
		}
		dd := c - peak
		ddSum += dd
		if dd < maxDD {
			maxDD = dd
		}
	}
	m[MaxDD] = maxDD
	m[AvgDD] = ddSum / float64(n)
	if gapCount > 0 {
		m[AvgDDDuration] = gapSum / float64(gapCount)
	}
	if peak != 0 {
		m[MaxDDPct] = maxDD / peak * 100
	}
}

func computeConsecutive(netPLs []float64, m Metrics) {
	var curWin, curLoss, maxWin, maxLoss int
	for _, pl := range netPLs {
		switch {
		case pl > 0:
			curWin++
			curLoss = 0
		case pl < 0:
			curLoss++
			curWin = 0
		default:
			curWin, curLoss = 0, 0
		}
		maxWin = max(maxWin, curWin)
		maxLoss = max(maxLoss, curLoss)
	}
	m[MaxConsecWin] = float64(maxWin)
	m[MaxConsecLoss] = float64(maxLoss)
}

func computeCAGR(netPL, initialBalance float64, ndays int, m Metrics) {
	nyears := int(math.Round(float64(ndays) / 252))
	if nyears < 1 {
		nyears = 1
	}
	base := (initialBalance + netPL) / initialBalance
	if base <= 0 {
		m[CAGR] = -100
		return
	}
	m[CAGR] = (math.Pow(base, 1.0/float64(nyears)) - 1) * 100
}

// rsquared computes the coefficient of determination of cumulative equity
// regressed against trade index; 0 when degenerate (fewer than 2 points or
// zero total variance).
func rsquared(netPLs []float64) float64 {
	n := len(netPLs)
	if n < 2 {
		return 0
	}
	cumul := make([]float64, n)
	var running float64
	for i, pl := range netPLs {
		running += pl
		cumul[i] = running
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	xbar, ybar := mean(xs), mean(cumul)
	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - xbar
		dy := cumul[i] - ybar
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	corr := sxy / math.Sqrt(sxx*syy)
	return corr * corr
}
