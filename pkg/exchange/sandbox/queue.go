package sandbox

import (
	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

// QueueUnknown marks an order whose price has not been seen among the visible
// levels yet. Resting size is not tracked beyond the fifth level, so a queue
// deeper than this value is indistinguishable from an unknown one.
var QueueUnknown = fixed.FromInt(123456, 0)

// AverageTradePrice is the mean price of the volume traded between last and tick.
// It reports false when nothing traded or turnover is missing.
func AverageTradePrice(last, tick common.Tick, size fixed.Point) (fixed.Point, bool) {
	volume := tick.Volume.Sub(last.Volume)
	turnover := tick.Turnover.Sub(last.Turnover)
	if !volume.IsPos() || turnover.IsZero() || !size.IsPos() {
		return fixed.Zero, false
	}
	return turnover.Div(volume).Div(size), true
}

// EstimateSideVolume splits the volume traded between last and tick into the part
// that hit the bid and the part that lifted the ask.
//
// The average trade price is compared against the best bid and ask of last: a trade
// at the bid counts fully as bid volume, one at the ask fully as ask volume. A
// locked or crossed book splits evenly. No trading, or no turnover, yields zero.
func EstimateSideVolume(last, tick common.Tick, size fixed.Point) (onBid, onAsk fixed.Point) {
	avgPrice, ok := AverageTradePrice(last, tick, size)
	if !ok {
		return fixed.Zero, fixed.Zero
	}
	volume := tick.Volume.Sub(last.Volume)
	bid, ask := last.BidPrice1(), last.AskPrice1()

	ratio := fixed.FromInt64(5, 1)
	if ask.Gt(bid) {
		ratio = avgPrice.Sub(bid).Div(ask.Sub(bid)).Clamp(fixed.Zero, fixed.One)
	}

	onAsk = ratio.Mul(volume)
	onBid = volume.Sub(onAsk)
	return onBid, onAsk
}

// advanceQueue returns the new queue position of an order resting at price.
// The position shrinks by the volume traded on the order's side only when its
// level stays visible in both snapshots and the average trade price reached the
// order's price, so prints at better levels never consume a deeper queue. The
// result is capped by the size currently resting at that level. It never grows.
func advanceQueue(position fixed.Point, order *common.Order, last, tick common.Tick, size fixed.Point) fixed.Point {
	resting, visible := tick.RestingVolume(order.Direction, order.Price)
	if !visible {
		return position
	}

	if _, wasVisible := last.RestingVolume(order.Direction, order.Price); wasVisible && tradedThrough(order, last, tick, size) {
		onBid, onAsk := EstimateSideVolume(last, tick, size)
		if order.Direction == common.DirectionLong {
			position = position.Sub(onBid)
		} else {
			position = position.Sub(onAsk)
		}
	}

	return position.Min(resting)
}

// tradedThrough reports whether trading between last and tick printed at or
// through the order's price.
func tradedThrough(order *common.Order, last, tick common.Tick, size fixed.Point) bool {
	avgPrice, ok := AverageTradePrice(last, tick, size)
	if !ok {
		return false
	}
	if order.Direction == common.DirectionLong {
		return avgPrice.Lte(order.Price)
	}
	return avgPrice.Gte(order.Price)
}

func initialQueue(order *common.Order, tick common.Tick) fixed.Point {
	if resting, visible := tick.RestingVolume(order.Direction, order.Price); visible {
		return resting
	}
	return QueueUnknown
}
