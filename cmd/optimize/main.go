package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/internal/cfg"
	"github.com/peter-kozarec/ticksim/internal/dbg"
	"github.com/peter-kozarec/ticksim/internal/strategy"
	"github.com/peter-kozarec/ticksim/pkg/data/db/psql"
	"github.com/peter-kozarec/ticksim/pkg/optimization"
	"github.com/peter-kozarec/ticksim/pkg/simulation"
	"github.com/peter-kozarec/ticksim/pkg/utility"
)

func main() {
	configPath := flag.String("config", "optimize.yaml", "run configuration")
	prod := flag.Bool("prod", false, "production logging")
	level := flag.String("level", "info", "log level; replays log at debug")
	mode := flag.String("mode", "", "grid or genetic, overrides optimization.mode")
	flag.Parse()

	logger := dbg.MustLogger(*prod, *level)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *configPath, *mode); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("optimization interrupted")
			return
		}
		logger.Fatal("optimization failed", zap.Error(err))
	}
}

func run(ctx context.Context, logger *zap.Logger, configPath, mode string) error {
	c, err := cfg.Load(configPath)
	if err != nil {
		return err
	}
	if mode != "" {
		c.Optimization.Mode = mode
	}

	simCfg, err := c.Simulation()
	if err != nil {
		return err
	}
	factory, err := strategy.Lookup(c.Strategy.Name)
	if err != nil {
		return err
	}
	provider, closeProvider, err := c.Provider(logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	executionId := utility.NewExecutionID()
	logger = logger.With(zap.Stringer("optimization_id", executionId))

	rc := simulation.RunContext{
		Logger:       logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel)),
		Config:       simCfg,
		Factory:      factory,
		StrategyName: c.Strategy.Name,
		Provider:     provider,
	}
	setting := c.Setting(logger)
	evaluate := optimization.Simulate(rc)

	var results []optimization.Result
	switch c.Optimization.Mode {
	case cfg.ModeGrid:
		results, err = optimization.Grid(ctx, logger, setting, evaluate, c.Optimization.Workers)
	case cfg.ModeGenetic:
		results, err = optimization.Genetic(ctx, logger, setting, evaluate, c.GeneticOptions())
	default:
		err = cfg.ErrUnknownMode
	}
	if err != nil {
		return err
	}

	if len(results) > 0 {
		best := results[0]
		logger.Info("best parameters",
			zap.Stringer("params", best.Params),
			zap.String("target", best.Target),
			zap.Stringer("value", best.TargetValue))
		best.Backtest.Statistics.Print(logger)
	}

	if c.Optimization.Mode == cfg.ModeGrid && c.Optimization.Segments >= 2 {
		pbo, err := optimization.Overfitting(results, c.Optimization.Segments, simCfg.AnnualDays, simCfg.RiskFree)
		if err != nil {
			logger.Warn("overfitting estimate unavailable", zap.Error(err))
		} else {
			logger.Info("probability of backtest overfitting", zap.Stringer("pbo", pbo))
		}
	}

	if c.Output.PsqlDSN != "" {
		return store(ctx, logger, c.Output.PsqlDSN, executionId, results)
	}
	return nil
}

func store(ctx context.Context, logger *zap.Logger, dsn string, executionId uuid.UUID, results []optimization.Result) error {
	db, err := psql.ConnectDSN(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := psql.CreateSchema(ctx, db); err != nil {
		return err
	}
	for _, result := range results {
		raw, err := json.Marshal(result.Backtest.Statistics)
		if err != nil {
			return err
		}
		err = psql.InsertResult(ctx, db, psql.Result{
			ExecutionId: executionId,
			Setting:     result.Params.Key(),
			Target:      result.Target,
			TargetValue: result.TargetValue.String(),
			Statistics:  raw,
		})
		if err != nil {
			return err
		}
	}
	logger.Info("results stored", zap.Int("count", len(results)))
	return nil
}
