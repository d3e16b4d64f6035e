package sandbox

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const (
	matcherComponentName = "exchange.sandbox.matcher"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidVolume = errors.New("order volume must be positive")
	ErrInvalidPrice  = errors.New("order price must be positive")
)

// Listener receives order and trade updates synchronously from within OnTick,
// CancelOrder and CancelAll. A returned error aborts the call that produced it.
type Listener interface {
	OnOrder(order common.Order) error
	OnTrade(trade common.Trade) error
}

// Matcher simulates limit order execution against 5-level tick snapshots.
// It is not safe for concurrent use; every replay owns its own instance.
type Matcher struct {
	logger   *zap.Logger
	listener Listener

	size         fixed.Point
	priceTick    fixed.Point
	partialFills bool

	clock          time.Time
	orderIdCounter common.OrderId
	tradeIdCounter common.TradeId

	orders   []*common.Order
	active   []*common.Order
	queue    map[common.OrderId]fixed.Point
	lastTick map[common.OrderId]common.Tick
	trades   []common.Trade

	priceCrossFills int
	queueFills      int
}

func NewMatcher(logger *zap.Logger, listener Listener, options ...Option) *Matcher {
	m := &Matcher{
		logger:    logger.With(zap.String("component", matcherComponentName)),
		listener:  listener,
		size:      fixed.One,
		priceTick: fixed.Zero,
		queue:     make(map[common.OrderId]fixed.Point),
		lastTick:  make(map[common.OrderId]common.Tick),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

func (m *Matcher) SetListener(listener Listener) {
	m.listener = listener
}

// SendOrder registers a limit order. It is evaluated from the next tick of its symbol on.
func (m *Matcher) SendOrder(symbol string, direction common.Direction, offset common.Offset, price, volume fixed.Point) (common.OrderId, error) {
	if !volume.IsPos() {
		return 0, fmt.Errorf("%s %s %s@%s: %w", symbol, direction, volume, price, ErrInvalidVolume)
	}

	price = price.RoundTo(m.priceTick)
	if !price.IsPos() {
		return 0, fmt.Errorf("%s %s %s@%s: %w", symbol, direction, volume, price, ErrInvalidPrice)
	}

	m.orderIdCounter++
	order := &common.Order{
		Id:        m.orderIdCounter,
		Symbol:    symbol,
		Direction: direction,
		Offset:    offset,
		Price:     price,
		Volume:    volume,
		Traded:    fixed.Zero,
		Status:    common.OrderStatusSubmitting,
		TimeStamp: m.clock,
	}

	m.orders = append(m.orders, order)
	m.active = append(m.active, order)
	m.queue[order.Id] = QueueUnknown

	return order.Id, nil
}

func (m *Matcher) CancelOrder(id common.OrderId) error {
	order := m.findActive(id)
	if order == nil {
		return fmt.Errorf("cancel %d: %w", id, ErrOrderNotFound)
	}

	order.Status = common.OrderStatusCancelled
	m.deactivate(order)

	return m.notifyOrder(order)
}

// CancelAll cancels every active order of symbol, or of every symbol when symbol is empty.
func (m *Matcher) CancelAll(symbol string) error {
	for _, order := range m.snapshot(symbol) {
		if !order.Status.IsActive() {
			continue
		}
		if err := m.CancelOrder(order.Id); err != nil {
			return err
		}
	}
	return nil
}

// OnTick evaluates every order of the tick's symbol that was active when the tick arrived.
func (m *Matcher) OnTick(tick common.Tick) error {
	m.clock = tick.TimeStamp

	for _, order := range m.snapshot(tick.Symbol) {
		if !order.Status.IsActive() {
			continue
		}
		if err := m.evaluate(order, tick); err != nil {
			return err
		}
	}

	return nil
}

func (m *Matcher) evaluate(order *common.Order, tick common.Tick) error {
	if order.Status == common.OrderStatusSubmitting {
		order.Status = common.OrderStatusNotTraded
		m.queue[order.Id] = initialQueue(order, tick)
		if err := m.notifyOrder(order); err != nil {
			return err
		}
	}

	last, seen := m.lastTick[order.Id]
	m.lastTick[order.Id] = tick

	if price, ok := m.crossPrice(order, tick); ok {
		m.priceCrossFills++
		return m.fill(order, price, order.Remaining(), tick)
	}

	if !seen {
		return nil
	}

	position := advanceQueue(m.queue[order.Id], order, last, tick, m.size)
	m.queue[order.Id] = position
	if position.IsPos() {
		return nil
	}

	volume := order.Remaining()
	if m.partialFills {
		if !position.IsNeg() {
			return nil
		}
		volume = volume.Min(position.Neg())
		m.queue[order.Id] = fixed.Zero
	}

	m.queueFills++
	return m.fill(order, order.Price, volume, tick)
}

func (m *Matcher) crossPrice(order *common.Order, tick common.Tick) (fixed.Point, bool) {
	bid, ask := tick.BidPrice1(), tick.AskPrice1()

	switch order.Direction {
	case common.DirectionLong:
		if ask.IsPos() && order.Price.Gte(bid) {
			return order.Price.Min(ask), true
		}
	case common.DirectionShort:
		if bid.IsPos() && order.Price.Lte(ask) {
			return order.Price.Max(bid), true
		}
	}

	return fixed.Zero, false
}

func (m *Matcher) fill(order *common.Order, price, volume fixed.Point, tick common.Tick) error {
	order.Traded = order.Traded.Add(volume)
	if order.Traded.Gte(order.Volume) {
		order.Status = common.OrderStatusAllTraded
		m.deactivate(order)
	} else {
		order.Status = common.OrderStatusPartTraded
	}

	m.tradeIdCounter++
	trade := common.Trade{
		Id:        m.tradeIdCounter,
		OrderId:   order.Id,
		Symbol:    order.Symbol,
		Direction: order.Direction,
		Offset:    order.Offset,
		Price:     price,
		Volume:    volume,
		TimeStamp: tick.TimeStamp,
	}
	m.trades = append(m.trades, trade)

	m.logger.Debug("order filled",
		zap.Int64("order_id", order.Id),
		zap.String("symbol", order.Symbol),
		zap.Stringer("direction", order.Direction),
		zap.Stringer("price", price),
		zap.Stringer("volume", volume),
		zap.String("status", string(order.Status)))

	if err := m.notifyOrder(order); err != nil {
		return err
	}
	if m.listener != nil {
		if err := m.listener.OnTrade(trade); err != nil {
			return err
		}
	}
	return nil
}

func (m *Matcher) notifyOrder(order *common.Order) error {
	if m.listener == nil {
		return nil
	}
	return m.listener.OnOrder(*order)
}

func (m *Matcher) snapshot(symbol string) []*common.Order {
	out := make([]*common.Order, 0, len(m.active))
	for _, order := range m.active {
		if symbol == "" || order.Symbol == symbol {
			out = append(out, order)
		}
	}
	return out
}

func (m *Matcher) findActive(id common.OrderId) *common.Order {
	for _, order := range m.active {
		if order.Id == id {
			return order
		}
	}
	return nil
}

func (m *Matcher) deactivate(order *common.Order) {
	for idx, o := range m.active {
		if o == order {
			m.active = append(m.active[:idx], m.active[idx+1:]...)
			break
		}
	}
	delete(m.queue, order.Id)
	delete(m.lastTick, order.Id)
}

// Order returns a copy of any order ever sent.
func (m *Matcher) Order(id common.OrderId) (common.Order, bool) {
	if id < 1 || int(id) > len(m.orders) {
		return common.Order{}, false
	}
	return *m.orders[id-1], true
}

func (m *Matcher) Orders() []common.Order {
	out := make([]common.Order, len(m.orders))
	for idx, order := range m.orders {
		out[idx] = *order
	}
	return out
}

func (m *Matcher) ActiveOrders(symbol string) []common.Order {
	snapshot := m.snapshot(symbol)
	out := make([]common.Order, len(snapshot))
	for idx, order := range snapshot {
		out[idx] = *order
	}
	return out
}

func (m *Matcher) Trades() []common.Trade {
	out := make([]common.Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

// QueuePosition returns the estimated volume ahead of an active order.
func (m *Matcher) QueuePosition(id common.OrderId) (fixed.Point, bool) {
	position, ok := m.queue[id]
	return position, ok
}

func (m *Matcher) PriceCrossFills() int { return m.priceCrossFills }
func (m *Matcher) QueueFills() int      { return m.queueFills }
func (m *Matcher) Clock() time.Time     { return m.clock }
