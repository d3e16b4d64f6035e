package sandbox

import (
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

type Option func(*Matcher)

// WithContractSize sets the multiplier used to turn turnover deltas into an average trade price.
func WithContractSize(size fixed.Point) Option {
	return func(m *Matcher) {
		m.size = size
	}
}

// WithPriceTick makes SendOrder round limit prices to the nearest multiple of tick.
func WithPriceTick(tick fixed.Point) Option {
	return func(m *Matcher) {
		m.priceTick = tick
	}
}

// WithPartialFills lets a queued order fill only the volume estimated to have
// traded through it, instead of its whole remaining volume. An order whose
// queue position is exactly zero sits at the front and fills nothing until a
// later tick trades volume through its price.
func WithPartialFills() Option {
	return func(m *Matcher) {
		m.partialFills = true
	}
}
