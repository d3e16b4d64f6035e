package common

import (
	"time"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

// Depth is the number of visible order book levels carried by a tick.
const Depth = 5

type Level struct {
	Price  fixed.Point `json:"price"`
	Volume fixed.Point `json:"volume"`
}

// Tick is an immutable market snapshot. Volume and Turnover are cumulative for the trading session.
type Tick struct {
	Symbol       string       `json:"symbol"`
	TimeStamp    time.Time    `json:"ts"`
	LastPrice    fixed.Point  `json:"last_price"`
	Volume       fixed.Point  `json:"volume"`
	Turnover     fixed.Point  `json:"turnover"`
	OpenInterest fixed.Point  `json:"open_interest"`
	Bids         [Depth]Level `json:"bids"`
	Asks         [Depth]Level `json:"asks"`
	Source       string       `json:"src,omitempty"`
}

func (t Tick) BidPrice1() fixed.Point { return t.Bids[0].Price }
func (t Tick) AskPrice1() fixed.Point { return t.Asks[0].Price }

// Date returns midnight of the tick's calendar day in the tick's own location.
func (t Tick) Date() time.Time {
	y, m, d := t.TimeStamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.TimeStamp.Location())
}

// RestingVolume returns the visible volume resting at price on the side of the book
// an order of the given direction joins: bids for long, asks for short.
// The second return value is false when price is not among the visible levels.
func (t Tick) RestingVolume(direction Direction, price fixed.Point) (fixed.Point, bool) {
	levels := &t.Bids
	if direction == DirectionShort {
		levels = &t.Asks
	}
	for _, level := range levels {
		if level.Price.IsPos() && level.Price.Eq(price) {
			return level.Volume, true
		}
	}
	return fixed.Zero, false
}
