package middleware

import (
	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorTicks
	MonitorOrders
	MonitorTrades
	MonitorLifecycle
)

// Monitor logs the callbacks selected by its flags before passing them on.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) Wrap(next strategy.Strategy) strategy.Strategy {
	return &monitorStrategy{Strategy: next, monitor: m}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

type monitorStrategy struct {
	strategy.Strategy
	monitor *Monitor
}

func (s *monitorStrategy) OnInit() error {
	if s.monitor.enabled(MonitorLifecycle) {
		s.monitor.logger.Info("event", zap.String("lifecycle", "init"))
	}
	return s.Strategy.OnInit()
}

func (s *monitorStrategy) OnStart() error {
	if s.monitor.enabled(MonitorLifecycle) {
		s.monitor.logger.Info("event", zap.String("lifecycle", "start"))
	}
	return s.Strategy.OnStart()
}

func (s *monitorStrategy) OnStop() error {
	if s.monitor.enabled(MonitorLifecycle) {
		s.monitor.logger.Info("event", zap.String("lifecycle", "stop"))
	}
	return s.Strategy.OnStop()
}

func (s *monitorStrategy) OnTick(tick common.Tick) error {
	if s.monitor.enabled(MonitorTicks) {
		s.monitor.logger.Info("event", zap.Any("tick", tick))
	}
	return s.Strategy.OnTick(tick)
}

func (s *monitorStrategy) OnOrder(order common.Order) error {
	if s.monitor.enabled(MonitorOrders) {
		s.monitor.logger.Info("event", zap.Any("order", order))
	}
	return s.Strategy.OnOrder(order)
}

func (s *monitorStrategy) OnTrade(trade common.Trade) error {
	if s.monitor.enabled(MonitorTrades) {
		s.monitor.logger.Info("event", zap.Any("trade", trade))
	}
	return s.Strategy.OnTrade(trade)
}
