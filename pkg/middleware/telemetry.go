package middleware

import (
	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
)

// Telemetry counts the callbacks delivered to the strategies it wraps.
type Telemetry struct {
	logger *zap.Logger

	tickEventCounter  int64
	orderEventCounter int64
	tradeEventCounter int64
	errorCounter      int64
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger: logger,
	}
}

func (t *Telemetry) Wrap(next strategy.Strategy) strategy.Strategy {
	return &telemetryStrategy{Strategy: next, telemetry: t}
}

func (t *Telemetry) Ticks() int64  { return t.tickEventCounter }
func (t *Telemetry) Orders() int64 { return t.orderEventCounter }
func (t *Telemetry) Trades() int64 { return t.tradeEventCounter }
func (t *Telemetry) Errors() int64 { return t.errorCounter }

func (t *Telemetry) PrintStatistics() {
	t.logger.Info("event statistics",
		zap.Int64("tick_events", t.tickEventCounter),
		zap.Int64("order_events", t.orderEventCounter),
		zap.Int64("trade_events", t.tradeEventCounter),
		zap.Int64("callback_errors", t.errorCounter))
}

func (t *Telemetry) count(err error) error {
	if err != nil {
		t.errorCounter++
	}
	return err
}

type telemetryStrategy struct {
	strategy.Strategy
	telemetry *Telemetry
}

func (s *telemetryStrategy) OnTick(tick common.Tick) error {
	s.telemetry.tickEventCounter++
	return s.telemetry.count(s.Strategy.OnTick(tick))
}

func (s *telemetryStrategy) OnOrder(order common.Order) error {
	s.telemetry.orderEventCounter++
	return s.telemetry.count(s.Strategy.OnOrder(order))
}

func (s *telemetryStrategy) OnTrade(trade common.Trade) error {
	s.telemetry.tradeEventCounter++
	return s.telemetry.count(s.Strategy.OnTrade(trade))
}
