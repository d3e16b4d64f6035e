package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/internal/cfg"
	"github.com/peter-kozarec/ticksim/internal/dbg"
	"github.com/peter-kozarec/ticksim/internal/strategy"
	"github.com/peter-kozarec/ticksim/pkg/data/db/psql"
	"github.com/peter-kozarec/ticksim/pkg/middleware"
	"github.com/peter-kozarec/ticksim/pkg/simulation"
	pkgstrategy "github.com/peter-kozarec/ticksim/pkg/strategy"
	"github.com/peter-kozarec/ticksim/pkg/tools/metrics"
	"github.com/peter-kozarec/ticksim/pkg/utility"
)

const MonitorFlags = middleware.MonitorLifecycle | middleware.MonitorTrades

func main() {
	configPath := flag.String("config", "backtest.yaml", "run configuration")
	prod := flag.Bool("prod", false, "production logging")
	level := flag.String("level", "", "log level override")
	export := flag.String("export", "", "statistics export path, overrides output.export")
	flag.Parse()

	logger := dbg.MustLogger(*prod, *level)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *configPath, *export); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("backtest interrupted")
			return
		}
		var strategyErr *simulation.StrategyError
		if errors.As(err, &strategyErr) {
			logger.Error("strategy failed", zap.String("callback", strategyErr.Callback), zap.ByteString("stack", strategyErr.Stack))
		}
		logger.Fatal("backtest failed", zap.Error(err))
	}
}

func run(ctx context.Context, logger *zap.Logger, configPath, export string) error {
	c, err := cfg.Load(configPath)
	if err != nil {
		return err
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
	telemetry := middleware.NewTelemetry(logger)
	performance := middleware.NewPerformance(logger)
	wrappers := []func(pkgstrategy.Strategy) pkgstrategy.Strategy{
		telemetry.Wrap,
		performance.Wrap,
		middleware.NewMonitor(logger, MonitorFlags).Wrap,
	}

	var db *sql.DB
	if c.Output.PsqlDSN != "" {
		if db, err = psql.ConnectDSN(ctx, c.Output.PsqlDSN); err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := psql.CreateSchema(ctx, db); err != nil {
			return err
		}
		wrappers = append(wrappers, middleware.NewLedger(ctx, db, executionId).Wrap)
	}

	engine, err := simulation.NewEngine(logger, simCfg, factory, c.Strategy.Params,
		simulation.WithStrategyName(c.Strategy.Name),
		simulation.WithExecutionId(executionId),
		simulation.WithMiddleware(wrappers...))
	if err != nil {
		return err
	}
	if err := engine.LoadData(ctx, provider); err != nil {
		return err
	}
	if err := engine.Run(ctx); err != nil {
		return err
	}
	defer telemetry.PrintStatistics()
	defer performance.PrintStatistics()

	engine.CalculateResult()
	stats, rows := engine.CalculateStatistics()
	stats.Print(logger)

	if export == "" {
		export = c.Output.Export
	}
	if export != "" {
		if err := writeExport(export, stats, rows); err != nil {
			return err
		}
		logger.Info("statistics exported", zap.String("path", export))
	}

	if db != nil {
		raw, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		err = psql.InsertResult(ctx, db, psql.Result{
			ExecutionId: executionId,
			Setting:     c.Strategy.Params.Key(),
			Target:      "total_net_pnl",
			TargetValue: stats.TotalNetPnl.String(),
			Statistics:  raw,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func writeExport(path string, stats metrics.Statistics, rows []metrics.DailyRow) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return metrics.Export(f, stats, rows)
}
