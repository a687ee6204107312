// Package config models the recognized settings-document key set (spec §6)
// as a typed struct, plus the run-mode enum and the fatal-at-startup checks
// from spec §7. No XML or CLI parsing is implemented — an explicit
// non-goal; callers populate Settings however their own entry point reads
// a document (environment, flags, file) and call Validate before use.
package config

import (
	"fmt"

	"btfast/internal/btferr"
	"btfast/internal/calendar"
	"btfast/internal/instrument"
	"btfast/internal/search"
	"btfast/internal/signalhandler"
)

// RunMode is one of spec §6's eleven recognized run modes.
type RunMode int

const (
	NoTrade            RunMode = 0
	Backtest           RunMode = 1
	ParallelExhaustive RunMode = 2
	Genetic            RunMode = 22
	SerialExhaustive   RunMode = 222
	Validation         RunMode = 3
	FactorySequential  RunMode = 4
	FactoryParallel    RunMode = 44
	FactoryGenetic     RunMode = 444
	FactoryImport      RunMode = 4444
	MarketOverview     RunMode = 6
)

// knownRunModes is the closed set Validate checks run_mode against.
var knownRunModes = map[RunMode]bool{
	NoTrade: true, Backtest: true, ParallelExhaustive: true, Genetic: true,
	SerialExhaustive: true, Validation: true, FactorySequential: true,
	FactoryParallel: true, FactoryGenetic: true, FactoryImport: true,
	MarketOverview: true,
}

// PositionSizeType selects which of signalhandler's three sizing policies
// Settings.Sizing() builds.
type PositionSizeType int

const (
	FixedContracts  PositionSizeType = 0
	FixedFractional PositionSizeType = 1
	FixedNotional   PositionSizeType = 2
)

// Settings is the full recognized key set from spec §6.
type Settings struct {
	MainDir      string
	RunMode      RunMode
	StrategyName string
	SymbolName   string
	Timeframe    string

	StartDate calendar.Date
	EndDate   calendar.Date

	DataDir      string
	DataFile     string
	CSVFormat    int
	DatafeedType string
	DataFileOOS  string

	PrintProgress          bool
	PrintPerformanceReport bool
	PrintTradeList         bool
	WriteTradesToFile      bool

	FitnessMetric string

	PopulationSize int
	Generations    int

	MaxBarsBack    int
	InitialBalance float64

	PositionSizeType PositionSizeType
	NumContracts     int
	RiskFraction     float64

	IncludeCommissions bool
	Slippage           float64

	MaxVariationPct float64
	NumNoiseTests   int
}

// Sizing builds the signalhandler.Sizing these Settings describe.
func (s Settings) Sizing() signalhandler.Sizing {
	switch s.PositionSizeType {
	case FixedFractional:
		return signalhandler.Sizing{Policy: signalhandler.FixedFractional, RiskFraction: s.RiskFraction}
	case FixedNotional:
		return signalhandler.Sizing{Policy: signalhandler.FixedNotional, RiskFraction: s.RiskFraction}
	default:
		return signalhandler.Sizing{Policy: signalhandler.FixedSize, Contracts: s.NumContracts}
	}
}

// Validate performs the fatal-at-startup checks spec §7 assigns to
// Configuration errors: unknown run mode, start_date > end_date, unknown
// instrument, and (when space is non-nil, i.e. a search mode) population
// size exceeding the cartesian search space.
func (s Settings) Validate(space []search.Chromosome) error {
	if !knownRunModes[s.RunMode] {
		return fmt.Errorf("%wunrecognized run_mode %d", btferr.Configuration, s.RunMode)
	}
	if s.EndDate.Before(s.StartDate) {
		return fmt.Errorf("%wstart_date %v is after end_date %v", btferr.Configuration, s.StartDate, s.EndDate)
	}
	if _, err := instrument.Lookup(s.SymbolName); err != nil {
		return fmt.Errorf("%wunknown instrument %q: %v", btferr.Configuration, s.SymbolName, err)
	}
	if space != nil && s.PopulationSize > len(space) {
		return fmt.Errorf("%wpopulation_size %d exceeds search space of %d chromosomes", btferr.Configuration, s.PopulationSize, len(space))
	}
	return nil
}
