package optimization

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/ticksim/pkg/strategy"
	"github.com/peter-kozarec/ticksim/pkg/tools/metrics"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const gridComponentName = "optimization.grid"

// Grid evaluates every parameter set of the space on up to workers goroutines
// and returns the results ranked by the primary target, best first. A failed
// evaluation is logged and left out of the results.
func Grid(ctx context.Context, logger *zap.Logger, setting *Setting, evaluate Evaluator, workers int) ([]Result, error) {
	logger = logger.With(zap.String("component", gridComponentName))

	space, err := setting.Generate()
	if err != nil {
		return nil, err
	}
	if err := setting.validateTargets(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger.Info("grid search started",
		zap.Int("space", len(space)),
		zap.Int("workers", workers),
		zap.String("target", setting.Target()))
	began := time.Now()

	results := make([]*Result, len(space))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for idx, params := range space {
		g.Go(func() error {
			result, err := evaluateOne(gctx, setting, evaluate, params)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				logger.Warn("evaluation failed", zap.Stringer("params", params), zap.Error(err))
				return nil
			}
			results[idx] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(results))
	for _, result := range results {
		if result != nil {
			out = append(out, *result)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TargetValue.Gt(out[j].TargetValue)
	})

	for _, result := range out {
		logger.Info("optimization result",
			zap.Stringer("params", result.Params),
			zap.String("target", result.Target),
			zap.Stringer("value", result.TargetValue))
	}
	logger.Info("grid search finished",
		zap.Int("evaluated", len(out)),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", time.Since(began)))

	return out, nil
}

func evaluateOne(ctx context.Context, setting *Setting, evaluate Evaluator, params strategy.Params) (*Result, error) {
	backtest, err := evaluate(ctx, params)
	if err != nil {
		return nil, err
	}
	objectives, err := setting.objectives(backtest)
	if err != nil {
		return nil, err
	}
	return &Result{
		Params:      params,
		Target:      setting.Target(),
		TargetValue: objectives[0],
		Objectives:  objectives,
		Backtest:    backtest,
	}, nil
}

// Overfitting estimates the probability of backtest overfitting of a set of
// results from their daily return series. Every result must cover the same days.
func Overfitting(results []Result, segments, annualDays int, riskFree fixed.Point) (fixed.Point, error) {
	returns := make([][]fixed.Point, len(results))
	for idx, result := range results {
		series := make([]fixed.Point, len(result.Backtest.Daily))
		for day, row := range result.Backtest.Daily {
			series[day] = row.Return
		}
		returns[idx] = series
	}
	return metrics.ProbabilityOfOverfitting(returns, segments, annualDays, riskFree)
}
