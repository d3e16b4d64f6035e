package sandbox

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const testSymbol = "IF2406"

var t0 = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func p(v int) fixed.Point { return fixed.FromInt(v, 0) }

// book builds a tick with one unit wide levels below bid and above ask.
func book(sec int, bid, ask int, bidVol, askVol int, volume, turnover int) common.Tick {
	tick := common.Tick{
		Symbol:    testSymbol,
		TimeStamp: t0.Add(time.Duration(sec) * time.Second),
		LastPrice: p(bid),
		Volume:    p(volume),
		Turnover:  p(turnover),
	}
	for i := 0; i < common.Depth; i++ {
		tick.Bids[i] = common.Level{Price: p(bid - i), Volume: p(bidVol)}
		tick.Asks[i] = common.Level{Price: p(ask + i), Volume: p(askVol)}
	}
	return tick
}

type recorder struct {
	orders  []common.Order
	trades  []common.Trade
	onTrade func(common.Trade) error
}

func (r *recorder) OnOrder(order common.Order) error {
	r.orders = append(r.orders, order)
	return nil
}

func (r *recorder) OnTrade(trade common.Trade) error {
	r.trades = append(r.trades, trade)
	if r.onTrade != nil {
		return r.onTrade(trade)
	}
	return nil
}

func newTestMatcher(options ...Option) (*Matcher, *recorder) {
	rec := &recorder{}
	return NewMatcher(zap.NewNop(), rec, options...), rec
}

func TestMatcher_SendOrder(t *testing.T) {
	m, _ := newTestMatcher(WithPriceTick(fixed.MustParse("0.2")))

	id, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, fixed.MustParse("100.13"), p(1))
	require.NoError(t, err)
	assert.Equal(t, common.OrderId(1), id)

	order, ok := m.Order(id)
	require.True(t, ok)
	assert.True(t, order.Price.Eq(fixed.MustParse("100.2")), "got %s", order.Price)
	assert.Equal(t, common.OrderStatusSubmitting, order.Status)

	pos, ok := m.QueuePosition(id)
	require.True(t, ok)
	assert.True(t, pos.Eq(QueueUnknown))

	_, err = m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(100), fixed.Zero)
	assert.ErrorIs(t, err, ErrInvalidVolume)

	_, err = m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, fixed.Zero, p(1))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestMatcher_PriceCrossSameTick(t *testing.T) {
	m, rec := newTestMatcher()

	longId, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(103), p(2))
	require.NoError(t, err)
	shortId, err := m.SendOrder(testSymbol, common.DirectionShort, common.OffsetOpen, p(98), p(3))
	require.NoError(t, err)

	require.NoError(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)))

	require.Len(t, rec.trades, 2)
	assert.Equal(t, longId, rec.trades[0].OrderId)
	assert.True(t, rec.trades[0].Price.Eq(p(101)))
	assert.True(t, rec.trades[0].Volume.Eq(p(2)))
	assert.Equal(t, shortId, rec.trades[1].OrderId)
	assert.True(t, rec.trades[1].Price.Eq(p(100)))
	assert.True(t, rec.trades[1].Volume.Eq(p(3)))

	for _, id := range []common.OrderId{longId, shortId} {
		order, _ := m.Order(id)
		assert.Equal(t, common.OrderStatusAllTraded, order.Status)
	}
	assert.Empty(t, m.ActiveOrders(""))
	assert.Equal(t, 2, m.PriceCrossFills())
	assert.Equal(t, 0, m.QueueFills())
}

func TestMatcher_PriceCrossBounds(t *testing.T) {
	tests := []struct {
		name      string
		direction common.Direction
		price     int
		expected  int
	}{
		{"long at bid fills at own price", common.DirectionLong, 100, 100},
		{"long through ask fills at ask", common.DirectionLong, 105, 101},
		{"short at ask fills at own price", common.DirectionShort, 101, 101},
		{"short through bid fills at bid", common.DirectionShort, 95, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec := newTestMatcher()
			_, err := m.SendOrder(testSymbol, tt.direction, common.OffsetOpen, p(tt.price), p(1))
			require.NoError(t, err)
			require.NoError(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)))

			require.Len(t, rec.trades, 1)
			fill := rec.trades[0].Price
			assert.True(t, fill.Eq(p(tt.expected)), "got %s", fill)
			if tt.direction == common.DirectionLong {
				assert.True(t, fill.Lte(p(tt.price)))
			} else {
				assert.True(t, fill.Gte(p(tt.price)))
			}
		})
	}
}

func TestMatcher_NoCrossOnEmptyOppositeSide(t *testing.T) {
	m, rec := newTestMatcher()
	_, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(100), p(1))
	require.NoError(t, err)

	tick := book(0, 100, 101, 10, 10, 0, 0)
	tick.Asks = [common.Depth]common.Level{}
	require.NoError(t, m.OnTick(tick))
	assert.Empty(t, rec.trades)
}

func TestMatcher_QueueFillOnThirdTick(t *testing.T) {
	m, rec := newTestMatcher()

	id, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(98), p(1))
	require.NoError(t, err)

	// The market dips to 98 between snapshots, so every trade prints at the order's level.
	ticks := []common.Tick{
		book(0, 100, 101, 10, 10, 0, 0),
		book(1, 100, 101, 10, 10, 6, 6*98),
		book(2, 100, 101, 10, 10, 12, 12*98),
	}
	expectedQueue := []int{10, 4}

	for idx, tick := range ticks[:2] {
		require.NoError(t, m.OnTick(tick))
		order, _ := m.Order(id)
		assert.Equal(t, common.OrderStatusNotTraded, order.Status, "tick %d", idx+1)
		pos, _ := m.QueuePosition(id)
		assert.True(t, pos.Eq(p(expectedQueue[idx])), "tick %d queue %s", idx+1, pos)
	}
	assert.Empty(t, rec.trades)

	require.NoError(t, m.OnTick(ticks[2]))
	order, _ := m.Order(id)
	assert.Equal(t, common.OrderStatusAllTraded, order.Status)
	require.Len(t, rec.trades, 1)
	assert.True(t, rec.trades[0].Price.Eq(p(98)))
	assert.True(t, rec.trades[0].TimeStamp.Equal(ticks[2].TimeStamp))
	assert.Equal(t, 1, m.QueueFills())

	_, tracked := m.QueuePosition(id)
	assert.False(t, tracked)
}

func TestMatcher_DeepLevelIgnoresPrintsAtBetterPrices(t *testing.T) {
	tests := []struct {
		name      string
		direction common.Direction
		price     int
		turnover  int
	}{
		{"long on fifth bid, trades at best bid", common.DirectionLong, 96, 20 * 100},
		{"long on fifth bid, trades at best ask", common.DirectionLong, 96, 20 * 101},
		{"short on fifth ask, trades at best ask", common.DirectionShort, 105, 20 * 101},
		{"short on fifth ask, trades at best bid", common.DirectionShort, 105, 20 * 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec := newTestMatcher()
			id, err := m.SendOrder(testSymbol, tt.direction, common.OffsetOpen, p(tt.price), p(1))
			require.NoError(t, err)

			require.NoError(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)))
			require.NoError(t, m.OnTick(book(1, 100, 101, 10, 10, 20, tt.turnover)))
			require.NoError(t, m.OnTick(book(2, 100, 101, 10, 10, 40, 2*tt.turnover)))

			assert.Empty(t, rec.trades)
			order, _ := m.Order(id)
			assert.Equal(t, common.OrderStatusNotTraded, order.Status)
			pos, _ := m.QueuePosition(id)
			assert.True(t, pos.Eq(p(10)), "queue %s", pos)
			assert.Equal(t, 0, m.QueueFills())
		})
	}
}

func TestMatcher_ShortQueueFillAtOwnLevel(t *testing.T) {
	m, rec := newTestMatcher()
	_, err := m.SendOrder(testSymbol, common.DirectionShort, common.OffsetOpen, p(103), p(2))
	require.NoError(t, err)

	require.NoError(t, m.OnTick(book(0, 100, 101, 10, 4, 0, 0)))
	require.NoError(t, m.OnTick(book(1, 100, 101, 10, 4, 5, 5*103)))

	require.Len(t, rec.trades, 1)
	assert.True(t, rec.trades[0].Price.Eq(p(103)))
	assert.True(t, rec.trades[0].Volume.Eq(p(2)))
	assert.Equal(t, 1, m.QueueFills())
}

func TestAverageTradePrice(t *testing.T) {
	last := book(0, 100, 101, 10, 10, 10, 1000)

	avg, ok := AverageTradePrice(last, book(1, 100, 101, 10, 10, 20, 1980), p(1))
	require.True(t, ok)
	assert.True(t, avg.Eq(p(98)), "got %s", avg)

	avg, ok = AverageTradePrice(last, book(1, 100, 101, 10, 10, 20, 1000+10*98*10), p(10))
	require.True(t, ok)
	assert.True(t, avg.Eq(p(98)), "got %s", avg)

	_, ok = AverageTradePrice(last, last, p(1))
	assert.False(t, ok)
	_, ok = AverageTradePrice(last, book(1, 100, 101, 10, 10, 20, 1000), p(1))
	assert.False(t, ok)
}

func TestMatcher_FirstObservationHasNoQueueDelta(t *testing.T) {
	m, rec := newTestMatcher()

	// Submitted after heavy trading; the first tick it sees must not count that volume.
	require.NoError(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)))
	id, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(98), p(1))
	require.NoError(t, err)
	require.NoError(t, m.OnTick(book(1, 100, 101, 10, 10, 500, 50000)))

	assert.Empty(t, rec.trades)
	pos, _ := m.QueuePosition(id)
	assert.True(t, pos.Eq(p(10)))
}

func TestMatcher_OutsideVisibleLevels(t *testing.T) {
	m, rec := newTestMatcher()

	id, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(94), p(1))
	require.NoError(t, err)

	require.NoError(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)))
	require.NoError(t, m.OnTick(book(1, 100, 101, 10, 10, 1000, 100000)))

	pos, _ := m.QueuePosition(id)
	assert.True(t, pos.Eq(QueueUnknown))
	assert.Empty(t, rec.trades)

	// The level becomes the fifth visible bid; the position is capped to its size.
	require.NoError(t, m.OnTick(book(2, 98, 99, 3, 10, 1000, 100000)))
	pos, _ = m.QueuePosition(id)
	assert.True(t, pos.Eq(p(3)))
	assert.Empty(t, rec.trades)
}

func TestMatcher_QueueNeverGrows(t *testing.T) {
	m, _ := newTestMatcher()

	id, err := m.SendOrder(testSymbol, common.DirectionShort, common.OffsetOpen, p(103), p(1))
	require.NoError(t, err)

	require.NoError(t, m.OnTick(book(0, 100, 101, 10, 5, 0, 0)))
	require.NoError(t, m.OnTick(book(1, 100, 101, 10, 50, 0, 0)))
	pos, _ := m.QueuePosition(id)
	assert.True(t, pos.Eq(p(5)))

	require.NoError(t, m.OnTick(book(2, 100, 101, 10, 2, 0, 0)))
	pos, _ = m.QueuePosition(id)
	assert.True(t, pos.Eq(p(2)))
}

func TestMatcher_PartialFills(t *testing.T) {
	m, rec := newTestMatcher(WithPartialFills())

	id, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(98), p(5))
	require.NoError(t, err)

	ticks := []common.Tick{
		book(0, 100, 101, 10, 10, 0, 0),
		book(1, 100, 101, 10, 10, 12, 12*98),
		book(2, 100, 101, 10, 10, 12, 12*98),
		book(3, 100, 101, 10, 10, 18, 18*98),
	}

	traded := fixed.Zero
	for _, tick := range ticks {
		require.NoError(t, m.OnTick(tick))
		order, _ := m.Order(id)
		assert.True(t, order.Traded.Gte(traded))
		assert.True(t, order.Traded.Lte(order.Volume))
		traded = order.Traded
	}

	require.Len(t, rec.trades, 2)
	assert.True(t, rec.trades[0].Volume.Eq(p(2)))
	assert.True(t, rec.trades[1].Volume.Eq(p(3)))

	order, _ := m.Order(id)
	assert.Equal(t, common.OrderStatusAllTraded, order.Status)

	var statuses []common.OrderStatus
	for _, o := range rec.orders {
		statuses = append(statuses, o.Status)
	}
	assert.Equal(t, []common.OrderStatus{
		common.OrderStatusNotTraded,
		common.OrderStatusPartTraded,
		common.OrderStatusAllTraded,
	}, statuses)
}

func TestMatcher_PartialFillsWaitAtFrontOfQueue(t *testing.T) {
	m, rec := newTestMatcher(WithPartialFills())
	id, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(98), p(5))
	require.NoError(t, err)

	require.NoError(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)))
	require.NoError(t, m.OnTick(book(1, 100, 101, 10, 10, 10, 10*98)))
	require.NoError(t, m.OnTick(book(2, 100, 101, 10, 10, 10, 10*98)))

	assert.Empty(t, rec.trades)
	pos, _ := m.QueuePosition(id)
	assert.True(t, pos.IsZero(), "queue %s", pos)

	require.NoError(t, m.OnTick(book(3, 100, 101, 10, 10, 11, 11*98)))
	require.Len(t, rec.trades, 1)
	assert.True(t, rec.trades[0].Volume.Eq(p(1)))
	order, _ := m.Order(id)
	assert.Equal(t, common.OrderStatusPartTraded, order.Status)
}

func TestMatcher_CancelOrder(t *testing.T) {
	m, rec := newTestMatcher()

	id, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(90), p(1))
	require.NoError(t, err)
	require.NoError(t, m.CancelOrder(id))

	order, _ := m.Order(id)
	assert.Equal(t, common.OrderStatusCancelled, order.Status)
	require.Len(t, rec.orders, 1)
	assert.Equal(t, common.OrderStatusCancelled, rec.orders[0].Status)

	assert.ErrorIs(t, m.CancelOrder(id), ErrOrderNotFound)
	assert.ErrorIs(t, m.CancelOrder(42), ErrOrderNotFound)

	require.NoError(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)))
	assert.Empty(t, rec.trades)
}

func TestMatcher_CancelAll(t *testing.T) {
	m, _ := newTestMatcher()

	for _, symbol := range []string{testSymbol, testSymbol, "IC2406"} {
		_, err := m.SendOrder(symbol, common.DirectionLong, common.OffsetOpen, p(90), p(1))
		require.NoError(t, err)
	}

	require.NoError(t, m.CancelAll(testSymbol))
	assert.Empty(t, m.ActiveOrders(testSymbol))
	assert.Len(t, m.ActiveOrders("IC2406"), 1)

	require.NoError(t, m.CancelAll(""))
	assert.Empty(t, m.ActiveOrders(""))
}

func TestMatcher_OrdersFromCallbacksWaitForNextTick(t *testing.T) {
	m, rec := newTestMatcher()

	var followUp common.OrderId
	rec.onTrade = func(trade common.Trade) error {
		if followUp != 0 {
			return nil
		}
		var err error
		followUp, err = m.SendOrder(testSymbol, common.DirectionShort, common.OffsetClose, p(100), trade.Volume)
		return err
	}

	_, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(101), p(1))
	require.NoError(t, err)

	require.NoError(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)))
	require.Len(t, rec.trades, 1)
	order, _ := m.Order(followUp)
	assert.Equal(t, common.OrderStatusSubmitting, order.Status)

	require.NoError(t, m.OnTick(book(1, 100, 101, 10, 10, 0, 0)))
	require.Len(t, rec.trades, 2)
	assert.Equal(t, followUp, rec.trades[1].OrderId)
}

func TestMatcher_ListenerErrorAborts(t *testing.T) {
	m, rec := newTestMatcher()
	boom := errors.New("boom")
	rec.onTrade = func(common.Trade) error { return boom }

	_, err := m.SendOrder(testSymbol, common.DirectionLong, common.OffsetOpen, p(101), p(1))
	require.NoError(t, err)
	assert.ErrorIs(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)), boom)
}

func TestMatcher_OtherSymbolUntouched(t *testing.T) {
	m, rec := newTestMatcher()
	id, err := m.SendOrder("IC2406", common.DirectionLong, common.OffsetOpen, p(101), p(1))
	require.NoError(t, err)

	require.NoError(t, m.OnTick(book(0, 100, 101, 10, 10, 0, 0)))
	assert.Empty(t, rec.trades)
	order, _ := m.Order(id)
	assert.Equal(t, common.OrderStatusSubmitting, order.Status)
}

func TestEstimateSideVolume(t *testing.T) {
	last := book(0, 100, 102, 10, 10, 100, 10000)

	tests := []struct {
		name     string
		last     common.Tick
		tick     common.Tick
		size     fixed.Point
		bid, ask fixed.Point
	}{
		{"all at bid", last, book(1, 100, 102, 10, 10, 110, 11000), p(1), p(10), p(0)},
		{"all at ask", last, book(1, 100, 102, 10, 10, 110, 11020), p(1), p(0), p(10)},
		{"mid splits evenly", last, book(1, 100, 102, 10, 10, 110, 11010), p(1), p(5), p(5)},
		{"above ask is clamped", last, book(1, 100, 102, 10, 10, 110, 11100), p(1), p(0), p(10)},
		{"contract size scales price", last, book(1, 100, 102, 10, 10, 110, 10000+10*102*10), p(10), p(0), p(10)},
		{"no volume", last, book(1, 100, 102, 10, 10, 100, 10000), p(1), p(0), p(0)},
		{"no turnover", last, book(1, 100, 102, 10, 10, 110, 10000), p(1), p(0), p(0)},
		{"locked book splits evenly", book(0, 100, 100, 10, 10, 100, 10000), book(1, 100, 100, 10, 10, 110, 11000), p(1), p(5), p(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			onBid, onAsk := EstimateSideVolume(tt.last, tt.tick, tt.size)
			assert.True(t, onBid.Eq(tt.bid), "bid side %s", onBid)
			assert.True(t, onAsk.Eq(tt.ask), "ask side %s", onAsk)
		})
	}
}
