package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btfast/internal/performance"
)

func TestCartesianProductRowMajorLastFastest(t *testing.T) {
	ranges := ParamRanges{
		{Name: "a", Values: []int{1, 2}},
		{Name: "b", Values: []int{10, 20, 30}},
	}
	rows := CartesianProduct(ranges)
	require.Len(t, rows, 6)

	expected := []Chromosome{
		{{Name: "a", Value: 1}, {Name: "b", Value: 10}},
		{{Name: "a", Value: 1}, {Name: "b", Value: 20}},
		{{Name: "a", Value: 1}, {Name: "b", Value: 30}},
		{{Name: "a", Value: 2}, {Name: "b", Value: 10}},
		{{Name: "a", Value: 2}, {Name: "b", Value: 20}},
		{{Name: "a", Value: 2}, {Name: "b", Value: 30}},
	}
	for i, row := range expected {
		assert.True(t, rows[i].Equal(row), "row %d: got %v want %v", i, rows[i], row)
	}
}

func TestCartesianProductSizeIsProduct(t *testing.T) {
	ranges := ParamRanges{
		{Name: "a", Values: []int{1, 2, 3}},
		{Name: "b", Values: []int{10}},
		{Name: "c", Values: []int{4, 5}},
	}
	rows := CartesianProduct(ranges)
	assert.Len(t, rows, 3*1*2)
}

func TestCartesianProductSingletonRange(t *testing.T) {
	rows := CartesianProduct(ParamRanges{{Name: "a", Values: []int{7}}})
	require.Len(t, rows, 1)
	assert.Equal(t, 7, rows[0][0].Value)
}

func TestChromosomeToParams(t *testing.T) {
	c := Chromosome{{Name: "MyStop", Value: 10}, {Name: "Side_switch", Value: 1}}
	params := c.ToParams()
	assert.Equal(t, 10, params["MyStop"])
	assert.Equal(t, 1, params["Side_switch"])
}

func TestChromosomeEqual(t *testing.T) {
	a := Chromosome{{Name: "x", Value: 1}}
	b := Chromosome{{Name: "x", Value: 1}}
	c := Chromosome{{Name: "x", Value: 2}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestNewStrategyRowExtractsFixedHead(t *testing.T) {
	m := performance.Metrics{
		performance.NTrades:      30,
		performance.AvgTicks:     5.5,
		performance.WinPerc:      60,
		performance.ProfitFactor: 1.8,
		performance.NetPLMaxDD:   2.1,
		performance.Expectancy:   0.3,
		performance.ZScore:       2.5,
	}
	row := NewStrategyRow(m, Chromosome{{Name: "MyStop", Value: 10}})
	assert.Equal(t, 30.0, row.NTrades)
	assert.Equal(t, 5.5, row.AvgTicks)
	assert.Equal(t, 2.1, row.NetPLOverMDD)
	assert.Equal(t, Chromosome{{Name: "MyStop", Value: 10}}, row.Params)
}

func TestStrategyRowAttributeByName(t *testing.T) {
	row := StrategyRow{AvgTicks: 7.2, Params: Chromosome{{Name: "MyStop", Value: 10}}}
	v, ok := row.AttributeByName("AvgTicks")
	require.True(t, ok)
	assert.Equal(t, 7.2, v)

	v, ok = row.AttributeByName("MyStop")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	_, ok = row.AttributeByName("bogus")
	assert.False(t, ok)
}
