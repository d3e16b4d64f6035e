package middleware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
)

type stubStrategy struct {
	strategy.Base
	calls   []string
	tickErr error
}

func (s *stubStrategy) OnInit() error {
	s.calls = append(s.calls, "init")
	return nil
}

func (s *stubStrategy) OnTick(common.Tick) error {
	s.calls = append(s.calls, "tick")
	return s.tickErr
}

func (s *stubStrategy) OnTrade(common.Trade) error {
	s.calls = append(s.calls, "trade")
	return nil
}

func TestChain_Order(t *testing.T) {
	type handler func([]string) []string

	appendTag := func(tag string) func(handler) handler {
		return func(h handler) handler {
			return func(s []string) []string {
				return h(append(s, tag))
			}
		}
	}

	base := func(s []string) []string { return append(s, "base") }

	assert.Equal(t, []string{"A", "B", "base"}, Chain(appendTag("A"), appendTag("B"))(base)(nil))
	assert.Equal(t, []string{"base"}, Chain[handler]()(base)(nil))
}

func TestTelemetry_Counts(t *testing.T) {
	inner := &stubStrategy{}
	telemetry := NewTelemetry(zap.NewNop())
	wrapped := telemetry.Wrap(inner)

	require.NoError(t, wrapped.OnInit())
	require.NoError(t, wrapped.OnTick(common.Tick{}))
	require.NoError(t, wrapped.OnTick(common.Tick{}))
	require.NoError(t, wrapped.OnOrder(common.Order{}))
	require.NoError(t, wrapped.OnTrade(common.Trade{}))

	inner.tickErr = errors.New("bad tick")
	assert.Error(t, wrapped.OnTick(common.Tick{}))

	assert.Equal(t, int64(3), telemetry.Ticks())
	assert.Equal(t, int64(1), telemetry.Orders())
	assert.Equal(t, int64(1), telemetry.Trades())
	assert.Equal(t, int64(1), telemetry.Errors())
	assert.Equal(t, []string{"init", "tick", "tick", "trade", "tick"}, inner.calls)
}

func TestMonitor_Flags(t *testing.T) {
	tests := []struct {
		name     string
		flags    MonitorFlags
		expected int
	}{
		{"none", MonitorNone, 0},
		{"ticks only", MonitorTicks, 1},
		{"ticks and trades", MonitorTicks | MonitorTrades, 2},
		{"all", MonitorAll, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			wrapped := NewMonitor(zap.New(core), tt.flags).Wrap(&stubStrategy{})

			require.NoError(t, wrapped.OnInit())
			require.NoError(t, wrapped.OnTick(common.Tick{Symbol: "IF"}))
			require.NoError(t, wrapped.OnOrder(common.Order{}))
			require.NoError(t, wrapped.OnTrade(common.Trade{}))

			assert.Equal(t, tt.expected, logs.Len())
		})
	}
}

func TestPerformance_PassesThrough(t *testing.T) {
	inner := &stubStrategy{tickErr: errors.New("stop")}
	perf := NewPerformance(zap.NewNop())
	wrapped := perf.Wrap(inner)

	assert.EqualError(t, wrapped.OnTick(common.Tick{}), "stop")
	require.NoError(t, wrapped.OnTrade(common.Trade{}))
	assert.Equal(t, []string{"tick", "trade"}, inner.calls)
	assert.GreaterOrEqual(t, int64(perf.totalTickHandlerDur), int64(0))
}

func TestChain_Strategies(t *testing.T) {
	inner := &stubStrategy{}
	telemetry := NewTelemetry(zap.NewNop())
	core, logs := observer.New(zapcore.InfoLevel)
	monitor := NewMonitor(zap.New(core), MonitorTicks)

	wrapped := Chain(telemetry.Wrap, monitor.Wrap)(inner)
	require.NoError(t, wrapped.OnTick(common.Tick{}))

	assert.Equal(t, int64(1), telemetry.Ticks())
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, []string{"tick"}, inner.calls)
}
