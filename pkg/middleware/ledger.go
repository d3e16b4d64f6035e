package middleware

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/data/db/psql"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
)

// Ledger buffers the trades of a run and writes them to postgres when the strategy stops.
type Ledger struct {
	ctx         context.Context
	db          *sql.DB
	executionId uuid.UUID
	trades      []common.Trade
}

func NewLedger(ctx context.Context, db *sql.DB, executionId uuid.UUID) *Ledger {
	return &Ledger{
		ctx:         ctx,
		db:          db,
		executionId: executionId,
	}
}

func (l *Ledger) Wrap(next strategy.Strategy) strategy.Strategy {
	return &ledgerStrategy{Strategy: next, ledger: l}
}

type ledgerStrategy struct {
	strategy.Strategy
	ledger *Ledger
}

func (s *ledgerStrategy) OnTrade(trade common.Trade) error {
	s.ledger.trades = append(s.ledger.trades, trade)
	return s.Strategy.OnTrade(trade)
}

func (s *ledgerStrategy) OnStop() error {
	if err := s.Strategy.OnStop(); err != nil {
		return err
	}
	if len(s.ledger.trades) == 0 {
		return nil
	}
	if err := psql.InsertTrades(s.ledger.ctx, s.ledger.db, s.ledger.executionId, s.ledger.trades); err != nil {
		return fmt.Errorf("unable to persist %d trades: %w", len(s.ledger.trades), err)
	}
	s.ledger.trades = s.ledger.trades[:0]
	return nil
}
