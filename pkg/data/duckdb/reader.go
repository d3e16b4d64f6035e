package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/datasource"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const componentName = "data.duckdb"

var ErrInvalidSymbol = errors.New("symbol is not a valid table name")

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var _ datasource.TickProvider = (*Store)(nil)

// Store keeps ticks in one DuckDB table per symbol, named <symbol>_ticks.
type Store struct {
	logger         *zap.Logger
	dataSourceName string
	db             *sql.DB
}

// NewStore prepares a store for dataSourceName; an empty name is an in-memory database.
func NewStore(logger *zap.Logger, dataSourceName string) *Store {
	return &Store{
		logger:         logger.With(zap.String("component", componentName)),
		dataSourceName: dataSourceName,
	}
}

func (s *Store) Connect() error {
	db, err := sql.Open("duckdb", s.dataSourceName)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Close() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("unable to close database", zap.Error(err))
	}
}

func tableName(symbol string) (string, error) {
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%q: %w", symbol, ErrInvalidSymbol)
	}
	return symbol + "_ticks", nil
}

func columns() []string {
	cols := []string{"ts", "last_price", "volume", "turnover", "open_interest"}
	for _, side := range []string{"bid", "ask"} {
		for level := 1; level <= common.Depth; level++ {
			cols = append(cols, fmt.Sprintf("%s_price_%d", side, level), fmt.Sprintf("%s_volume_%d", side, level))
		}
	}
	return cols
}

// CreateTable creates the tick table of symbol if it does not exist.
func (s *Store) CreateTable(ctx context.Context, symbol string) error {
	table, err := tableName(symbol)
	if err != nil {
		return err
	}

	cols := columns()
	defs := make([]string, len(cols))
	defs[0] = "ts TIMESTAMPTZ NOT NULL"
	for idx, col := range cols[1:] {
		defs[idx+1] = col + " DOUBLE NOT NULL DEFAULT 0"
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("unable to create table %s: %w", table, err)
	}
	return nil
}

// Insert appends ticks to the table of their symbol within one transaction.
func (s *Store) Insert(ctx context.Context, symbol string, ticks []common.Tick) error {
	table, err := tableName(symbol)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cols := columns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, tick := range ticks {
		if _, err := stmt.ExecContext(ctx, row(tick)...); err != nil {
			return fmt.Errorf("unable to insert tick at %s: %w", tick.TimeStamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unable to commit ticks: %w", err)
	}
	s.logger.Debug("ticks stored", zap.String("symbol", symbol), zap.Int("count", len(ticks)))
	return nil
}

func row(tick common.Tick) []any {
	values := []any{tick.TimeStamp, float(tick.LastPrice), float(tick.Volume), float(tick.Turnover), float(tick.OpenInterest)}
	for _, levels := range []*[common.Depth]common.Level{&tick.Bids, &tick.Asks} {
		for _, level := range levels {
			values = append(values, float(level.Price), float(level.Volume))
		}
	}
	return values
}

func float(p fixed.Point) float64 {
	f, _ := p.Float64()
	return f
}

// LoadTicks reads the ticks of symbol in [from, to] ordered by time. A symbol
// without a table has no ticks.
func (s *Store) LoadTicks(ctx context.Context, symbol string, from, to time.Time) ([]common.Tick, error) {
	table, err := tableName(symbol)
	if err != nil {
		return nil, err
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT count(*) > 0 FROM information_schema.tables WHERE table_name = ?`, table).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("unable to look up table %s: %w", table, err)
	}
	if !exists {
		s.logger.Warn("no tick table", zap.String("symbol", symbol))
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE ts BETWEEN ? AND ? ORDER BY ts`, strings.Join(columns(), ", "), table)
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error preparing query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ticks []common.Tick
	values := make([]float64, len(columns())-1)
	dest := make([]any, len(columns()))
	var timeStamp time.Time
	dest[0] = &timeStamp
	for idx := range values {
		dest[idx+1] = &values[idx]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}

		tick := common.Tick{
			Symbol:       symbol,
			TimeStamp:    timeStamp,
			LastPrice:    fixed.FromFloat64(values[0]),
			Volume:       fixed.FromFloat64(values[1]),
			Turnover:     fixed.FromFloat64(values[2]),
			OpenInterest: fixed.FromFloat64(values[3]),
			Source:       componentName,
		}
		offset := 4
		for _, levels := range []*[common.Depth]common.Level{&tick.Bids, &tick.Asks} {
			for level := range levels {
				levels[level] = common.Level{
					Price:  fixed.FromFloat64(values[offset]),
					Volume: fixed.FromFloat64(values[offset+1]),
				}
				offset += 2
			}
		}
		ticks = append(ticks, tick)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}

	s.logger.Debug("ticks loaded", zap.String("symbol", symbol), zap.Int("count", len(ticks)))
	return ticks, nil
}
