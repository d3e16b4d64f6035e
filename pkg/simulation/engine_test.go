package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/datasource"
	"github.com/peter-kozarec/ticksim/pkg/datasource/synthetic"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

// pingPong alternates between buying at the ask and selling at the bid whenever it has no working order.
type pingPong struct {
	strategy.Base
	host   *strategy.Host
	volume fixed.Point
	ticks  int
}

func (p *pingPong) OnTick(tick common.Tick) error {
	p.ticks++
	if len(p.host.ActiveOrders(tick.Symbol)) > 0 {
		return nil
	}
	var err error
	if p.host.Pos(tick.Symbol).IsZero() {
		_, err = p.host.Buy(tick.Symbol, tick.AskPrice1(), p.volume)
	} else {
		_, err = p.host.Sell(tick.Symbol, tick.BidPrice1(), p.host.Pos(tick.Symbol))
	}
	return err
}

func newPingPong(host *strategy.Host, _ string, _ []string, params strategy.Params) (strategy.Strategy, error) {
	return &pingPong{host: host, volume: params.GetOr("volume", fixed.One)}, nil
}

type panicky struct {
	strategy.Base
}

func (panicky) OnTick(common.Tick) error {
	panic("boom")
}

type failingTrade struct {
	pingPong
}

func (failingTrade) OnTrade(common.Trade) error {
	return errors.New("rejected")
}

func testConfiguration() Configuration {
	cfg := DefaultConfiguration()
	cfg.Symbols = []string{"rb"}
	cfg.Start = time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
	cfg.End = time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC)
	cfg.PriceTick = fixed.FromInt64(2, 1)
	cfg.Size = fixed.FromInt(10, 0)
	cfg.Rate = fixed.FromInt64(1, 4)
	cfg.Slippage = fixed.FromInt64(2, 1)
	return cfg
}

func bookTick(sec int64, last, bid, ask int) common.Tick {
	tick := common.Tick{
		Symbol:    "rb",
		TimeStamp: time.Date(2024, 3, 4, 23, 59, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second),
		LastPrice: fixed.FromInt(last, 0),
	}
	tick.Bids[0] = common.Level{Price: fixed.FromInt(bid, 0), Volume: fixed.FromInt(5, 0)}
	tick.Asks[0] = common.Level{Price: fixed.FromInt(ask, 0), Volume: fixed.FromInt(5, 0)}
	return tick
}

func TestEngine_DeterministicReplay(t *testing.T) {
	rc := RunContext{
		Logger:   zap.NewNop(),
		Config:   testConfiguration(),
		Factory:  newPingPong,
		Provider: synthetic.NewProvider(synthetic.DefaultConfig(), 7),
	}
	params := strategy.Params{{Name: "volume", Value: fixed.FromInt(2, 0)}}

	first, err := Evaluate(context.Background(), rc, params)
	require.NoError(t, err)
	second, err := Evaluate(context.Background(), rc, params)
	require.NoError(t, err)

	require.Positive(t, first.TradeCount)
	assert.Equal(t, first.TradeCount, second.TradeCount)
	assert.Equal(t, first.Statistics, second.Statistics)
	assert.Equal(t, first.Daily, second.Daily)
	assert.NotEqual(t, first.ExecutionId, second.ExecutionId)

	assert.Equal(t, 2, first.Statistics.TotalDays, "replay spans midnight")
}

func TestEngine_TradesAreIdenticalAcrossRuns(t *testing.T) {
	provider := datasource.NewCachedProvider(synthetic.NewProvider(synthetic.DefaultConfig(), 11))

	run := func() []common.Trade {
		engine, err := NewEngine(zap.NewNop(), testConfiguration(), newPingPong, nil)
		require.NoError(t, err)
		require.NoError(t, engine.LoadData(context.Background(), provider))
		require.NoError(t, engine.Run(context.Background()))
		return engine.Trades()
	}

	assert.Equal(t, run(), run())
}

func TestEngine_NetPnlSumsToBalanceChange(t *testing.T) {
	cfg := testConfiguration()
	engine, err := NewEngine(zap.NewNop(), cfg, newPingPong, nil)
	require.NoError(t, err)
	require.NoError(t, engine.LoadData(context.Background(), synthetic.NewProvider(synthetic.DefaultConfig(), 3)))
	require.NoError(t, engine.Run(context.Background()))

	table := engine.CalculateResult()
	require.NotEmpty(t, table)
	stats, rows := engine.CalculateStatistics()
	require.Len(t, rows, len(table))

	sum := fixed.Zero
	for _, day := range table {
		sum = sum.Add(day.TradingPnl).Add(day.HoldingPnl).Sub(day.Commission).Sub(day.Slippage)
	}
	assert.True(t, sum.Eq(stats.EndBalance.Sub(cfg.Capital)), "%s != %s", sum, stats.EndBalance.Sub(cfg.Capital))
	assert.True(t, stats.TotalNetPnl.Eq(sum))
}

func TestEngine_TradedNeverExceedsVolume(t *testing.T) {
	cfg := testConfiguration()
	cfg.PartialFills = true
	engine, err := NewEngine(zap.NewNop(), cfg, newPingPong, strategy.Params{{Name: "volume", Value: fixed.FromInt(3, 0)}})
	require.NoError(t, err)
	require.NoError(t, engine.LoadData(context.Background(), synthetic.NewProvider(synthetic.DefaultConfig(), 5)))
	require.NoError(t, engine.Run(context.Background()))

	for _, order := range engine.Orders() {
		assert.True(t, order.Traded.Lte(order.Volume), "order %d traded %s of %s", order.Id, order.Traded, order.Volume)
	}
	assert.Equal(t, len(engine.Trades()), engine.PriceCrossFills()+engine.QueueFills())
}

func TestEngine_NoTicks(t *testing.T) {
	cfg := testConfiguration()
	engine, err := NewEngine(zap.NewNop(), cfg, newPingPong, nil)
	require.NoError(t, err)
	require.NoError(t, engine.LoadData(context.Background(), datasource.NewMemoryProvider()))
	require.NoError(t, engine.Run(context.Background()))

	assert.Empty(t, engine.Trades())
	assert.Nil(t, engine.CalculateResult())

	stats, rows := engine.CalculateStatistics()
	assert.Empty(t, rows)
	assert.Equal(t, 0, stats.TotalDays)
	assert.True(t, stats.Capital.Eq(cfg.Capital))
	assert.True(t, stats.EndBalance.IsZero())
	assert.True(t, stats.SharpeRatio.IsZero())
}

func TestEngine_FillsBeforeStrategySeesTick(t *testing.T) {
	provider := datasource.NewMemoryProvider()
	provider.Add(bookTick(0, 100, 100, 101), bookTick(1, 101, 100, 101), bookTick(2, 101, 101, 102))

	var seen []fixed.Point
	factory := func(host *strategy.Host, name string, symbols []string, params strategy.Params) (strategy.Strategy, error) {
		return &recorder{host: host, onTick: func(common.Tick) { seen = append(seen, host.Pos("rb")) }}, nil
	}

	engine, err := NewEngine(zap.NewNop(), testConfiguration(), factory, nil)
	require.NoError(t, err)
	require.NoError(t, engine.LoadData(context.Background(), provider))
	require.NoError(t, engine.Run(context.Background()))

	require.Len(t, engine.Trades(), 1)
	assert.True(t, engine.Trades()[0].Price.Eq(fixed.FromInt(101, 0)))
	require.Len(t, seen, 3)
	assert.True(t, seen[0].IsZero())
	assert.True(t, seen[1].Eq(fixed.One), "fill on tick 2 is visible to tick 2's callback")
}

type recorder struct {
	strategy.Base
	host   *strategy.Host
	onTick func(common.Tick)
	sent   bool
}

func (r *recorder) OnTick(tick common.Tick) error {
	if !r.sent {
		r.sent = true
		if _, err := r.host.Buy(tick.Symbol, tick.AskPrice1(), fixed.One); err != nil {
			return err
		}
	}
	r.onTick(tick)
	return nil
}

func TestEngine_StrategyPanicAbortsRun(t *testing.T) {
	provider := datasource.NewMemoryProvider()
	provider.Add(bookTick(0, 100, 100, 101), bookTick(1, 100, 100, 101))

	factory := func(*strategy.Host, string, []string, strategy.Params) (strategy.Strategy, error) {
		return panicky{}, nil
	}
	engine, err := NewEngine(zap.NewNop(), testConfiguration(), factory, nil)
	require.NoError(t, err)
	require.NoError(t, engine.LoadData(context.Background(), provider))

	err = engine.Run(context.Background())
	var strategyErr *StrategyError
	require.ErrorAs(t, err, &strategyErr)
	assert.Equal(t, "on_tick", strategyErr.Callback)
	assert.NotEmpty(t, strategyErr.Stack)
	assert.Equal(t, 1, engine.TickCount())
}

func TestEngine_TradeCallbackErrorAbortsRun(t *testing.T) {
	provider := datasource.NewMemoryProvider()
	provider.Add(bookTick(0, 100, 100, 101), bookTick(1, 100, 100, 101), bookTick(2, 100, 100, 101))

	factory := func(host *strategy.Host, _ string, _ []string, _ strategy.Params) (strategy.Strategy, error) {
		return &failingTrade{pingPong{host: host, volume: fixed.One}}, nil
	}
	engine, err := NewEngine(zap.NewNop(), testConfiguration(), factory, nil)
	require.NoError(t, err)
	require.NoError(t, engine.LoadData(context.Background(), provider))

	err = engine.Run(context.Background())
	var strategyErr *StrategyError
	require.ErrorAs(t, err, &strategyErr)
	assert.Equal(t, "on_trade", strategyErr.Callback)
	assert.Equal(t, 2, engine.TickCount())
}

func TestEngine_Validation(t *testing.T) {
	cfg := testConfiguration()
	cfg.End = cfg.Start

	_, err := NewEngine(zap.NewNop(), cfg, newPingPong, nil)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = NewEngine(zap.NewNop(), testConfiguration(), nil, nil)
	assert.ErrorIs(t, err, ErrNoStrategy)

	cfg = testConfiguration()
	cfg.Symbols = []string{"rb", "rb"}
	_, err = NewEngine(zap.NewNop(), cfg, newPingPong, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEngine_Cancelled(t *testing.T) {
	engine, err := NewEngine(zap.NewNop(), testConfiguration(), newPingPong, nil,
		WithTicks([]common.Tick{bookTick(0, 100, 100, 101)}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, engine.Run(ctx), context.Canceled)
}

func TestEngine_RunsOnce(t *testing.T) {
	engine, err := NewEngine(zap.NewNop(), testConfiguration(), newPingPong, nil, WithTicks(nil))
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))
	assert.Error(t, engine.Run(context.Background()))
}
