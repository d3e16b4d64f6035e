package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/internal/dbg"
	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/data/duckdb"
	"github.com/peter-kozarec/ticksim/pkg/datasource/historical"
	"github.com/peter-kozarec/ticksim/pkg/datasource/synthetic"
)

func load(ctx context.Context, symbol string, files []string, from, to string, seed int64) ([]common.Tick, error) {
	if len(files) == 0 {
		start, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, fmt.Errorf("invalid -from: %w", err)
		}
		end, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, fmt.Errorf("invalid -to: %w", err)
		}
		return synthetic.NewProvider(synthetic.DefaultConfig(), seed).LoadTicks(ctx, symbol, start, end)
	}

	var ticks []common.Tick
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		part, err := readTicks(f, symbol)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ticks = append(ticks, part...)
	}
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].TimeStamp.Before(ticks[j].TimeStamp)
	})
	return ticks, nil
}

func writeBinary(dir, symbol string, ticks []common.Tick) (err error) {
	path := historical.NewTickReader(dir).Path(symbol)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return historical.WriteTicks(f, ticks)
}

func writeDuckDB(ctx context.Context, logger *zap.Logger, dsn, symbol string, ticks []common.Tick) error {
	store := duckdb.NewStore(logger, dsn)
	if err := store.Connect(); err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateTable(ctx, symbol); err != nil {
		return err
	}
	return store.Insert(ctx, symbol, ticks)
}

func main() {
	symbol := flag.String("symbol", "", "symbol the ticks belong to")
	out := flag.String("out", "", "directory receiving <symbol>.bin")
	dsn := flag.String("duckdb", "", "duckdb database receiving <symbol>_ticks")
	from := flag.String("from", "", "synthetic data start (RFC3339), used without CSV files")
	to := flag.String("to", "", "synthetic data end (RFC3339)")
	seed := flag.Int64("seed", 1, "synthetic data seed")
	prod := flag.Bool("prod", false, "production logging")
	flag.Parse()

	logger := dbg.MustLogger(*prod, "")
	defer func() { _ = logger.Sync() }()

	if *symbol == "" || (*out == "" && *dsn == "") {
		logger.Fatal("-symbol and one of -out or -duckdb are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ticks, err := load(ctx, *symbol, flag.Args(), *from, *to, *seed)
	if err != nil {
		logger.Fatal("unable to load ticks", zap.Error(err))
	}
	logger.Info("ticks loaded", zap.String("symbol", *symbol), zap.Int("count", len(ticks)))

	if *out != "" {
		if err := writeBinary(*out, *symbol, ticks); err != nil {
			logger.Fatal("unable to write binary ticks", zap.Error(err))
		}
		logger.Info("binary dump finished", zap.String("dir", *out))
	}
	if *dsn != "" {
		if err := writeDuckDB(ctx, logger, *dsn, *symbol, ticks); err != nil {
			logger.Fatal("unable to write duckdb ticks", zap.Error(err))
		}
		logger.Info("duckdb dump finished", zap.String("database", *dsn))
	}
}
