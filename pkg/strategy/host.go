package strategy

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/exchange/sandbox"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const (
	hostComponentName = "strategy.host"
)

var ErrNotBound = errors.New("host has no strategy bound")

// Broker is the order entry side of the matching engine.
type Broker interface {
	SendOrder(symbol string, direction common.Direction, offset common.Offset, price, volume fixed.Point) (common.OrderId, error)
	CancelOrder(id common.OrderId) error
	CancelAll(symbol string) error
	ActiveOrders(symbol string) []common.Order
}

// Host sits between the matching engine and a strategy. It forwards order and
// trade updates to the strategy and keeps the per-symbol position, which only
// changes when a trade is reported.
type Host struct {
	logger    *zap.Logger
	broker    Broker
	strategy  Strategy
	priceTick fixed.Point

	positions map[string]fixed.Point
	logs      []string
}

var _ sandbox.Listener = (*Host)(nil)

func NewHost(logger *zap.Logger, broker Broker, priceTick fixed.Point) *Host {
	return &Host{
		logger:    logger.With(zap.String("component", hostComponentName)),
		broker:    broker,
		priceTick: priceTick,
		positions: make(map[string]fixed.Point),
	}
}

// Bind attaches the strategy that receives updates. It is done once, right after the factory returns.
func (h *Host) Bind(strategy Strategy) {
	h.strategy = strategy
}

func (h *Host) Strategy() Strategy {
	return h.strategy
}

func (h *Host) Buy(symbol string, price, volume fixed.Point) ([]common.OrderId, error) {
	return h.send(symbol, common.DirectionLong, common.OffsetOpen, price, volume)
}

func (h *Host) Sell(symbol string, price, volume fixed.Point) ([]common.OrderId, error) {
	return h.send(symbol, common.DirectionShort, common.OffsetClose, price, volume)
}

func (h *Host) Short(symbol string, price, volume fixed.Point) ([]common.OrderId, error) {
	return h.send(symbol, common.DirectionShort, common.OffsetOpen, price, volume)
}

func (h *Host) Cover(symbol string, price, volume fixed.Point) ([]common.OrderId, error) {
	return h.send(symbol, common.DirectionLong, common.OffsetClose, price, volume)
}

func (h *Host) send(symbol string, direction common.Direction, offset common.Offset, price, volume fixed.Point) ([]common.OrderId, error) {
	id, err := h.broker.SendOrder(symbol, direction, offset, price, volume)
	if err != nil {
		return nil, fmt.Errorf("unable to send %s %s order: %w", direction, offset, err)
	}
	return []common.OrderId{id}, nil
}

// CancelOrder cancels an active order. Orders that already reached a terminal state are ignored.
func (h *Host) CancelOrder(id common.OrderId) error {
	if err := h.broker.CancelOrder(id); err != nil {
		if errors.Is(err, sandbox.ErrOrderNotFound) {
			h.logger.Debug("cancel of inactive order ignored", zap.Int64("order_id", id))
			return nil
		}
		return err
	}
	return nil
}

// CancelAll cancels every active order, across all symbols.
func (h *Host) CancelAll() error {
	return h.broker.CancelAll("")
}

func (h *Host) ActiveOrders(symbol string) []common.Order {
	return h.broker.ActiveOrders(symbol)
}

func (h *Host) Pos(symbol string) fixed.Point {
	if pos, ok := h.positions[symbol]; ok {
		return pos
	}
	return fixed.Zero
}

func (h *Host) PriceTick() fixed.Point {
	return h.priceTick
}

// Log records a strategy message in the run log and emits it at info level.
func (h *Host) Log(msg string, fields ...zap.Field) {
	h.logs = append(h.logs, msg)
	h.logger.Info(msg, fields...)
}

func (h *Host) Logs() []string {
	out := make([]string, len(h.logs))
	copy(out, h.logs)
	return out
}

func (h *Host) OnOrder(order common.Order) error {
	if h.strategy == nil {
		return ErrNotBound
	}
	return h.strategy.OnOrder(order)
}

func (h *Host) OnTrade(trade common.Trade) error {
	if h.strategy == nil {
		return ErrNotBound
	}
	h.positions[trade.Symbol] = h.Pos(trade.Symbol).Add(trade.PositionChange())
	return h.strategy.OnTrade(trade)
}
