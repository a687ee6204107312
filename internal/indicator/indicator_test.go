package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestROCRequiresLengthPlusOneSamples(t *testing.T) {
	r := NewROC(2)
	_, ready := r.Update(100)
	assert.False(t, ready)
	_, ready = r.Update(102)
	assert.False(t, ready)
	v, ready := r.Update(110)
	require.True(t, ready)
	assert.InDelta(t, (110.0/100.0-1)*100, v, 1e-9)
}

func TestTrueRangeFirstBarIsHighMinusLow(t *testing.T) {
	var tr TrueRange
	v := tr.Update(105, 100, 102)
	assert.Equal(t, 5.0, v)
	v = tr.Update(110, 101, 108)
	assert.Equal(t, 110.0-101.0, v) // max(110,102)-min(101,102) = 110-101
}

func TestATRSeedsWithSimpleAverage(t *testing.T) {
	a := NewATR(3)
	bars := [][3]float64{
		{101, 99, 100},
		{102, 100, 101},
		{103, 101, 102},
		{104, 102, 103},
	}
	var last float64
	var ready bool
	for _, b := range bars {
		last, ready = a.Update(b[0], b[1], b[2])
	}
	require.True(t, ready)
	assert.Greater(t, last, 0.0)
}

func TestADXReadyAfterTwoLengthSamples(t *testing.T) {
	a := NewADX(2)
	highs := []float64{100, 101, 99, 103, 104, 106}
	lows := []float64{98, 99, 97, 100, 102, 103}
	var ready bool
	for i := range highs {
		_, ready = a.Update(highs[i], lows[i])
	}
	assert.True(t, ready)
}

func TestADXPerInstanceStateIsolation(t *testing.T) {
	a1 := NewADX(2)
	a2 := NewADX(2)
	a1.Update(100, 98)
	a1.Update(105, 99)
	// a2 has seen nothing; its internal averages must still be zero-state,
	// proving the two indicators don't share package-level statics.
	v2, ready2 := a2.Update(100, 98)
	assert.False(t, ready2)
	assert.Equal(t, 0.0, v2)
}

func TestHighestHighExcludesCurrentBar(t *testing.T) {
	h := NewHighestHigh(2)
	_, ready := h.Update(100)
	assert.False(t, ready)
	_, ready = h.Update(105)
	assert.False(t, ready)
	v, ready := h.Update(90)
	require.True(t, ready)
	assert.Equal(t, 105.0, v)
}

func TestLowestLowExcludesCurrentBar(t *testing.T) {
	l := NewLowestLow(2)
	l.Update(100)
	l.Update(95)
	v, ready := l.Update(200)
	require.True(t, ready)
	assert.Equal(t, 95.0, v)
}
