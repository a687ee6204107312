package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"btfast/internal/calendar"
	"btfast/internal/search"
	"btfast/internal/signalhandler"
)

func validSettings() Settings {
	return Settings{
		RunMode:      Backtest,
		SymbolName:   "ES",
		StartDate:    calendar.DateOf(2026, 1, 1),
		EndDate:      calendar.DateOf(2026, 6, 1),
		NumContracts: 1,
	}
}

func TestValidateAcceptsWellFormedSettings(t *testing.T) {
	assert.NoError(t, validSettings().Validate(nil))
}

func TestValidateRejectsUnknownRunMode(t *testing.T) {
	s := validSettings()
	s.RunMode = RunMode(99)
	assert.Error(t, s.Validate(nil))
}

func TestValidateRejectsStartAfterEnd(t *testing.T) {
	s := validSettings()
	s.StartDate, s.EndDate = s.EndDate, s.StartDate
	assert.Error(t, s.Validate(nil))
}

func TestValidateRejectsUnknownInstrument(t *testing.T) {
	s := validSettings()
	s.SymbolName = "ZZZ"
	assert.Error(t, s.Validate(nil))
}

func TestValidateRejectsOversizedPopulation(t *testing.T) {
	s := validSettings()
	s.PopulationSize = 10
	space := search.CartesianProduct(search.ParamRanges{{Name: "p", Values: []int{1, 2, 3}}})
	assert.Error(t, s.Validate(space))
}

func TestValidateAcceptsPopulationWithinSearchSpace(t *testing.T) {
	s := validSettings()
	s.PopulationSize = 2
	space := search.CartesianProduct(search.ParamRanges{{Name: "p", Values: []int{1, 2, 3}}})
	assert.NoError(t, s.Validate(space))
}

func TestSizingBuildsFixedSizeByDefault(t *testing.T) {
	s := validSettings()
	s.NumContracts = 3
	got := s.Sizing()
	assert.Equal(t, signalhandler.Sizing{Policy: signalhandler.FixedSize, Contracts: 3}, got)
}

func TestSizingBuildsFixedFractional(t *testing.T) {
	s := validSettings()
	s.PositionSizeType = FixedFractional
	s.RiskFraction = 0.02
	got := s.Sizing()
	assert.Equal(t, signalhandler.Sizing{Policy: signalhandler.FixedFractional, RiskFraction: 0.02}, got)
}
