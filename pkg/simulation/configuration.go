package simulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

var (
	ErrInvalidPeriod = errors.New("start must be before end")
	ErrNoSymbols     = errors.New("no symbols configured")
	ErrNoStrategy    = errors.New("no strategy factory")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Configuration is the immutable description of one replay.
type Configuration struct {
	Symbols      []string
	Start        time.Time
	End          time.Time
	Rate         fixed.Point // commission as a fraction of turnover
	Slippage     fixed.Point // price units per traded unit
	Size         fixed.Point // contract multiplier
	PriceTick    fixed.Point
	Capital      fixed.Point
	Inverse      bool
	PartialFills bool
	AnnualDays   int
	RiskFree     fixed.Point
}

func DefaultConfiguration() Configuration {
	return Configuration{
		Rate:       fixed.Zero,
		Slippage:   fixed.Zero,
		Size:       fixed.One,
		PriceTick:  fixed.Zero,
		Capital:    fixed.FromInt(1_000_000, 0),
		AnnualDays: 240,
		RiskFree:   fixed.FromInt64(4, 2),
	}
}

func (c Configuration) Validate() error {
	if !c.Start.Before(c.End) {
		return fmt.Errorf("%s >= %s: %w", c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339), ErrInvalidPeriod)
	}
	if len(c.Symbols) == 0 {
		return ErrNoSymbols
	}
	seen := make(map[string]struct{}, len(c.Symbols))
	for _, symbol := range c.Symbols {
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("duplicate symbol %q: %w", symbol, ErrInvalidConfig)
		}
		seen[symbol] = struct{}{}
	}
	if !c.Size.IsPos() {
		return fmt.Errorf("contract size %s: %w", c.Size, ErrInvalidConfig)
	}
	if c.PriceTick.IsNeg() || c.Rate.IsNeg() || c.Slippage.IsNeg() {
		return fmt.Errorf("negative price tick, rate or slippage: %w", ErrInvalidConfig)
	}
	if c.AnnualDays <= 0 {
		return fmt.Errorf("annual days %d: %w", c.AnnualDays, ErrInvalidConfig)
	}
	return nil
}
