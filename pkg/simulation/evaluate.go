package simulation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/datasource"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
	"github.com/peter-kozarec/ticksim/pkg/tools/metrics"
)

// RunContext is everything a single evaluation needs besides its parameters.
// It is captured once per optimization and shared read-only by every evaluation.
type RunContext struct {
	Logger       *zap.Logger
	Config       Configuration
	Factory      strategy.Factory
	StrategyName string
	Provider     datasource.TickProvider
	Middleware   []func(strategy.Strategy) strategy.Strategy
}

// BacktestResult is the outcome of one evaluated parameter set.
type BacktestResult struct {
	ExecutionId uuid.UUID
	Params      strategy.Params
	Statistics  metrics.Statistics
	Daily       []metrics.DailyRow
	TradeCount  int
}

// Evaluate runs one isolated replay with params and returns its statistics.
// Nothing is shared between calls except the read-only RunContext.
func Evaluate(ctx context.Context, rc RunContext, params strategy.Params) (BacktestResult, error) {
	logger := rc.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	options := []Option{WithMiddleware(rc.Middleware...)}
	if rc.StrategyName != "" {
		options = append(options, WithStrategyName(rc.StrategyName))
	}

	engine, err := NewEngine(logger, rc.Config, rc.Factory, params, options...)
	if err != nil {
		return BacktestResult{}, err
	}
	if err := engine.LoadData(ctx, rc.Provider); err != nil {
		return BacktestResult{}, err
	}
	if err := engine.Run(ctx); err != nil {
		return BacktestResult{}, fmt.Errorf("replay %s: %w", params.Key(), err)
	}

	engine.CalculateResult()
	stats, rows := engine.CalculateStatistics()

	return BacktestResult{
		ExecutionId: engine.ExecutionId(),
		Params:      params,
		Statistics:  stats,
		Daily:       rows,
		TradeCount:  len(engine.Trades()),
	}, nil
}
