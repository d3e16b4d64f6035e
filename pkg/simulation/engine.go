package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/datasource"
	"github.com/peter-kozarec/ticksim/pkg/exchange/sandbox"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
	"github.com/peter-kozarec/ticksim/pkg/tools/metrics"
	"github.com/peter-kozarec/ticksim/pkg/utility"
)

const (
	engineComponentName = "simulation.engine"
	ctxCheckInterval    = 1024
)

// StrategyError reports a strategy callback that failed or panicked. It aborts the run.
type StrategyError struct {
	Callback string
	Err      error
	Stack    []byte
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s: %v", e.Callback, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

type Option func(*Engine)

// WithStrategyName sets the name handed to the strategy factory.
func WithStrategyName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// WithMiddleware wraps the strategy, first wrapper outermost.
func WithMiddleware(wrappers ...func(strategy.Strategy) strategy.Strategy) Option {
	return func(e *Engine) {
		e.wrappers = append(e.wrappers, wrappers...)
	}
}

// WithExecutionId replaces the generated execution id, e.g. to share it with a trade ledger.
func WithExecutionId(id uuid.UUID) Option {
	return func(e *Engine) {
		e.executionId = id
	}
}

// WithTicks supplies already loaded legs, one per configured symbol, in place of LoadData.
func WithTicks(legs ...[]common.Tick) Option {
	return func(e *Engine) {
		e.legs = legs
	}
}

// Engine replays ticks through the matching engine and one strategy instance.
// An engine runs once; a new replay needs a new engine.
type Engine struct {
	logger   *zap.Logger
	cfg      Configuration
	factory  strategy.Factory
	params   strategy.Params
	name     string
	wrappers []func(strategy.Strategy) strategy.Strategy

	executionId uuid.UUID
	legs        [][]common.Tick

	matcher  *sandbox.Matcher
	host     *strategy.Host
	strategy strategy.Strategy
	daily    *DailyAggregator

	tickCount int
	table     []metrics.Daily
}

func NewEngine(logger *zap.Logger, cfg Configuration, factory strategy.Factory, params strategy.Params, options ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, ErrNoStrategy
	}

	e := &Engine{
		cfg:         cfg,
		factory:     factory,
		params:      params,
		name:        "strategy",
		executionId: utility.NewExecutionID(),
		daily:       NewDailyAggregator(cfg.Symbols),
	}
	for _, option := range options {
		option(e)
	}
	logger = logger.With(zap.Stringer("execution_id", e.executionId))
	e.logger = logger.With(zap.String("component", engineComponentName))

	matcherOptions := []sandbox.Option{
		sandbox.WithContractSize(cfg.Size),
		sandbox.WithPriceTick(cfg.PriceTick),
	}
	if cfg.PartialFills {
		matcherOptions = append(matcherOptions, sandbox.WithPartialFills())
	}
	e.matcher = sandbox.NewMatcher(logger, nil, matcherOptions...)
	e.host = strategy.NewHost(logger, e.matcher, cfg.PriceTick)

	return e, nil
}

// LoadData loads every configured symbol over the configured period. A symbol
// without data contributes no ticks.
func (e *Engine) LoadData(ctx context.Context, provider datasource.TickProvider) error {
	legs := make([][]common.Tick, 0, len(e.cfg.Symbols))
	for _, symbol := range e.cfg.Symbols {
		ticks, err := provider.LoadTicks(ctx, symbol, e.cfg.Start, e.cfg.End)
		if err != nil {
			return fmt.Errorf("unable to load ticks of %s: %w", symbol, err)
		}
		if len(ticks) == 0 {
			e.logger.Warn("no ticks in range", zap.String("symbol", symbol))
		}
		e.logger.Debug("ticks loaded", zap.String("symbol", symbol), zap.Int("count", len(ticks)))
		legs = append(legs, ticks)
	}
	e.legs = legs
	return nil
}

// Run builds the strategy and replays the loaded ticks. Every active order of a
// tick's symbol is matched before the strategy sees that tick.
func (e *Engine) Run(ctx context.Context) error {
	if e.strategy != nil {
		return errors.New("engine already ran")
	}

	var built strategy.Strategy
	if err := guard("factory", func() error {
		var err error
		built, err = e.factory(e.host, e.name, e.cfg.Symbols, e.params)
		return err
	}); err != nil {
		return err
	}
	for i := len(e.wrappers) - 1; i >= 0; i-- {
		built = e.wrappers[i](built)
	}
	e.strategy = built
	e.host.Bind(built)
	e.matcher.SetListener(&guardedListener{next: e.host})

	e.logger.Info("replay started",
		zap.Strings("symbols", e.cfg.Symbols),
		zap.Time("start", e.cfg.Start),
		zap.Time("end", e.cfg.End),
		zap.Stringer("params", e.params))

	if err := guard("on_init", e.strategy.OnInit); err != nil {
		return err
	}
	if err := guard("on_start", e.strategy.OnStart); err != nil {
		return err
	}

	merger := datasource.NewMerger(e.legs...)
	for {
		if e.tickCount%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		tick, err := merger.GetNext()
		if errors.Is(err, datasource.ErrEof) {
			break
		}
		if err != nil {
			return fmt.Errorf("unable to merge ticks: %w", err)
		}
		e.tickCount++

		if err := e.matcher.OnTick(tick); err != nil {
			var strategyErr *StrategyError
			if errors.As(err, &strategyErr) {
				return err
			}
			return fmt.Errorf("unable to match tick of %s at %s: %w", tick.Symbol, tick.TimeStamp, err)
		}
		if err := guard("on_tick", func() error { return e.strategy.OnTick(tick) }); err != nil {
			return err
		}
		e.daily.OnTick(tick)
	}

	if err := guard("on_stop", e.strategy.OnStop); err != nil {
		return err
	}

	e.logger.Info("replay finished",
		zap.Int("ticks", e.tickCount),
		zap.Int("orders", len(e.matcher.Orders())),
		zap.Int("trades", len(e.matcher.Trades())),
		zap.Int("price_cross_fills", e.matcher.PriceCrossFills()),
		zap.Int("queue_fills", e.matcher.QueueFills()))

	return nil
}

// CalculateResult settles the daily results. Without trades there is nothing to settle.
func (e *Engine) CalculateResult() []metrics.Daily {
	trades := e.matcher.Trades()
	if len(trades) == 0 {
		e.logger.Info("no trades, daily results not calculated")
		e.table = nil
		return nil
	}
	e.table = e.daily.Settle(trades, e.cfg)
	return e.table
}

func (e *Engine) CalculateStatistics() (metrics.Statistics, []metrics.DailyRow) {
	return metrics.Calculate(e.cfg.Capital, e.table, e.cfg.AnnualDays, e.cfg.RiskFree)
}

func (e *Engine) ExecutionId() uuid.UUID       { return e.executionId }
func (e *Engine) Configuration() Configuration { return e.cfg }
func (e *Engine) TickCount() int               { return e.tickCount }
func (e *Engine) Trades() []common.Trade       { return e.matcher.Trades() }
func (e *Engine) Orders() []common.Order       { return e.matcher.Orders() }
func (e *Engine) Logs() []string               { return e.host.Logs() }
func (e *Engine) PriceCrossFills() int         { return e.matcher.PriceCrossFills() }
func (e *Engine) QueueFills() int              { return e.matcher.QueueFills() }

func (e *Engine) DailyResults() []DailyResult {
	results := e.daily.Results()
	out := make([]DailyResult, len(results))
	for idx, result := range results {
		out[idx] = *result
	}
	return out
}

// guard runs a strategy callback, turning errors and panics into a StrategyError.
func guard(callback string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StrategyError{Callback: callback, Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()}
		}
	}()
	if err := fn(); err != nil {
		var strategyErr *StrategyError
		if errors.As(err, &strategyErr) {
			return err
		}
		return &StrategyError{Callback: callback, Err: err}
	}
	return nil
}

type guardedListener struct {
	next sandbox.Listener
}

func (g *guardedListener) OnOrder(order common.Order) error {
	return guard("on_order", func() error { return g.next.OnOrder(order) })
}

func (g *guardedListener) OnTrade(trade common.Trade) error {
	return guard("on_trade", func() error { return g.next.OnTrade(trade) })
}
