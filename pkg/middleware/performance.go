package middleware

import (
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
)

// Performance accumulates the wall time spent inside strategy callbacks.
// It only observes; replay results do not depend on it.
type Performance struct {
	logger *zap.Logger

	totalTickHandlerDur  time.Duration
	totalOrderHandlerDur time.Duration
	totalTradeHandlerDur time.Duration
}

func NewPerformance(logger *zap.Logger) *Performance {
	return &Performance{
		logger: logger,
	}
}

func (p *Performance) Wrap(next strategy.Strategy) strategy.Strategy {
	return &performanceStrategy{Strategy: next, performance: p}
}

func (p *Performance) PrintStatistics() {
	p.logger.Info("callback durations",
		zap.Duration("tick_handler", p.totalTickHandlerDur),
		zap.Duration("order_handler", p.totalOrderHandlerDur),
		zap.Duration("trade_handler", p.totalTradeHandlerDur))
}

type performanceStrategy struct {
	strategy.Strategy
	performance *Performance
}

func (s *performanceStrategy) OnTick(tick common.Tick) error {
	startTime := time.Now()
	err := s.Strategy.OnTick(tick)
	s.performance.totalTickHandlerDur += time.Since(startTime)
	return err
}

func (s *performanceStrategy) OnOrder(order common.Order) error {
	startTime := time.Now()
	err := s.Strategy.OnOrder(order)
	s.performance.totalOrderHandlerDur += time.Since(startTime)
	return err
}

func (s *performanceStrategy) OnTrade(trade common.Trade) error {
	startTime := time.Now()
	err := s.Strategy.OnTrade(trade)
	s.performance.totalTradeHandlerDur += time.Since(startTime)
	return err
}
