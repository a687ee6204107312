package strategy

import (
	"fmt"

	"btfast/internal/btferr"
)

// New builds a registered strategy by name, the Go analogue of
// original_source/Strategies/strategy.h's select_strategy factory. Unknown
// names are a Configuration error (fatal at startup per spec §7).
func New(name string) (Strategy, error) {
	switch name {
	case "breakout":
		return NewBreakout(name), nil
	case "meanreversion":
		return NewMeanReversion(name), nil
	default:
		return nil, fmt.Errorf("%wunknown strategy %q", btferr.Configuration, name)
	}
}
