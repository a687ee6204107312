// Package indicator implements the incremental/recursive technical
// indicators used by strategies and the exit-switch: ROC, TrueRange, ATR
// (Wilder), ADX (Wilder ±DM), HighestHigh/LowestLow. Grounded on
// original_source/Strategies/filters/TA_indicators.cpp, reworked from that
// file's deque-rescan-per-bar style into streaming state — each indicator
// is a struct updated one bar at a time rather than a function handed the
// whole history (HighestHigh/LowestLow still rescan their own window of
// length bars on each update).
//
// ADX intentionally keeps its ±DM smoothing averages as struct fields, not
// package-level statics: the original C++ used function-local `static`
// variables for them, which silently shares state across every strategy
// instance using the indicator. Each ADX value here lives on its own
// *ADX, so concurrent parameter-search workers never cross-contaminate.
package indicator

import "math"

func theta(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// ROC computes the rate of change versus the price `length` bars back.
type ROC struct {
	length int
	window []float64 // oldest first, capacity length+1
}

// NewROC constructs a ROC indicator over the given lookback length. Panics
// if length <= 0, matching the original's fatal-on-invalid-argument
// behavior (a ContractViolation at construction time, not per-update).
func NewROC(length int) *ROC {
	if length <= 0 {
		panic("indicator: ROC length must be positive")
	}
	return &ROC{length: length}
}

// Update feeds one new applied price and returns the ROC value once at
// least length+1 prices have been observed.
func (r *ROC) Update(price float64) (value float64, ready bool) {
	r.window = append(r.window, price)
	if len(r.window) > r.length+1 {
		r.window = r.window[len(r.window)-(r.length+1):]
	}
	if len(r.window) <= r.length {
		return 0, false
	}
	oldest := r.window[0]
	current := r.window[len(r.window)-1]
	if oldest == 0 {
		return 0, false
	}
	return (current/oldest - 1) * 100, true
}

// TrueRange computes Max(H, prevClose) - Min(L, prevClose), falling back to
// H-L on the first bar.
type TrueRange struct {
	have      bool
	prevClose float64
}

// Update feeds one bar's H/L/C and returns the true range; ready from the
// very first call.
func (t *TrueRange) Update(high, low, close float64) float64 {
	var tr float64
	if !t.have {
		tr = high - low
	} else {
		tr = math.Max(high, t.prevClose) - math.Min(low, t.prevClose)
	}
	t.have = true
	t.prevClose = close
	return tr
}

// ATR is Wilder's average true range: a simple average of the first
// `length` true ranges, then recursively smoothed with alpha = 1/length.
type ATR struct {
	length    int
	length_f  float64
	tr        TrueRange
	seedSum   float64
	seedCount int
	value     float64
	ready     bool
}

// NewATR constructs an ATR indicator over the given smoothing length.
func NewATR(length int) *ATR {
	if length <= 0 {
		panic("indicator: ATR length must be positive")
	}
	return &ATR{length: length, length_f: float64(length)}
}

// Update feeds one bar's H/L/C and returns the ATR value once the seed
// window (length true ranges) has been filled.
func (a *ATR) Update(high, low, close float64) (value float64, ready bool) {
	tr := a.tr.Update(high, low, close)
	if !a.ready && a.seedCount < a.length {
		a.seedSum += tr / a.length_f
		a.seedCount++
		if a.seedCount == a.length {
			a.value = a.seedSum
			a.ready = true
			return a.value, true
		}
		return 0, false
	}
	alpha := 1 / a.length_f
	a.value = (1-alpha)*a.value + alpha*tr
	return a.value, true
}

// ADX is Wilder's average directional index: +DM/-DM smoothed averages
// feed a DX oscillator, itself smoothed into ADX. See the package doc for
// why this keeps its state per-instance.
type ADX struct {
	length    int
	alpha     float64
	n         int
	havePrev  bool
	prevHigh  float64
	prevLow   float64
	dmAvgP    float64
	dmAvgM    float64
	dxSeedSum float64
	value     float64
	ready     bool
}

// NewADX constructs an ADX indicator over the given smoothing length.
func NewADX(length int) *ADX {
	if length <= 0 {
		panic("indicator: ADX length must be positive")
	}
	return &ADX{length: length, alpha: 1 / float64(length)}
}

// Update feeds one bar's H/L and returns the ADX value once 2*length
// directional-movement samples (2*length+1 bars) have been observed.
func (a *ADX) Update(high, low float64) (value float64, ready bool) {
	if !a.havePrev {
		a.prevHigh, a.prevLow = high, low
		a.havePrev = true
		return 0, false
	}
	moveUp := high - a.prevHigh
	moveDn := a.prevLow - low
	a.prevHigh, a.prevLow = high, low

	pDM := theta(moveUp-moveDn) * math.Max(moveUp, 0)
	mDM := theta(moveDn-moveUp) * math.Max(moveDn, 0)
	a.n++

	switch {
	case a.n <= a.length:
		// Seed +DMavg/-DMavg as a simple average of the first `length` samples.
		a.dmAvgP += pDM * a.alpha
		a.dmAvgM += mDM * a.alpha
		return 0, false
	case a.n <= 2*a.length:
		// DMavg now recursively smoothed; DX simple-averaged to seed ADX.
		a.dmAvgP = (1-a.alpha)*a.dmAvgP + a.alpha*pDM
		a.dmAvgM = (1-a.alpha)*a.dmAvgM + a.alpha*mDM
		dx := dxOf(a.dmAvgP, a.dmAvgM)
		a.dxSeedSum += dx * a.alpha
		if a.n == 2*a.length {
			a.value = a.dxSeedSum
			a.ready = true
			return a.value, true
		}
		return 0, false
	default:
		a.dmAvgP = (1-a.alpha)*a.dmAvgP + a.alpha*pDM
		a.dmAvgM = (1-a.alpha)*a.dmAvgM + a.alpha*mDM
		dx := dxOf(a.dmAvgP, a.dmAvgM)
		a.value = (1-a.alpha)*a.value + a.alpha*dx
		return a.value, true
	}
}

func dxOf(dmAvgP, dmAvgM float64) float64 {
	denom := dmAvgP + dmAvgM
	if denom == 0 {
		return 0
	}
	return math.Abs(dmAvgP-dmAvgM) / denom * 100
}

// HighestHigh tracks the highest high of the preceding `length` bars,
// excluding the current bar.
type HighestHigh struct {
	length int
	window []float64
}

// NewHighestHigh constructs a HighestHigh indicator over the given window.
func NewHighestHigh(length int) *HighestHigh {
	if length <= 0 {
		panic("indicator: HighestHigh length must be positive")
	}
	return &HighestHigh{length: length}
}

// Update returns the highest high over the window preceding the bar whose
// high is passed in now; the passed-in high is stored for future windows,
// not included in the returned value.
func (h *HighestHigh) Update(high float64) (value float64, ready bool) {
	if len(h.window) == h.length {
		value, ready = maxOf(h.window), true
	}
	h.push(high)
	return value, ready
}

func (h *HighestHigh) push(high float64) {
	h.window = append(h.window, high)
	if len(h.window) > h.length {
		h.window = h.window[len(h.window)-h.length:]
	}
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m
}

// LowestLow tracks the lowest low of the preceding `length` bars, excluding
// the current bar.
type LowestLow struct {
	length int
	window []float64
}

// NewLowestLow constructs a LowestLow indicator over the given window.
func NewLowestLow(length int) *LowestLow {
	if length <= 0 {
		panic("indicator: LowestLow length must be positive")
	}
	return &LowestLow{length: length}
}

// Update returns the lowest low over the window preceding the bar whose low
// is passed in now.
func (l *LowestLow) Update(low float64) (value float64, ready bool) {
	if len(l.window) == l.length {
		value, ready = minOf(l.window), true
	}
	l.push(low)
	return value, ready
}

func (l *LowestLow) push(low float64) {
	l.window = append(l.window, low)
	if len(l.window) > l.length {
		l.window = l.window[len(l.window)-l.length:]
	}
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m
}
