package psql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/peter-kozarec/ticksim/pkg/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS bt_results (
	execution_id UUID    NOT NULL,
	setting      TEXT    NOT NULL,
	target       TEXT    NOT NULL,
	target_value NUMERIC NOT NULL,
	statistics   JSONB   NOT NULL,
	PRIMARY KEY (execution_id, setting)
);
CREATE TABLE IF NOT EXISTS bt_trades (
	execution_id UUID        NOT NULL,
	trade_id     BIGINT      NOT NULL,
	order_id     BIGINT      NOT NULL,
	symbol       TEXT        NOT NULL,
	direction    TEXT        NOT NULL,
	"offset"     TEXT        NOT NULL,
	price        NUMERIC     NOT NULL,
	volume       NUMERIC     NOT NULL,
	ts           TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (execution_id, trade_id)
);`

// Result is one evaluated parameter set of an optimization run.
type Result struct {
	ExecutionId uuid.UUID
	Setting     string
	Target      string
	TargetValue string
	Statistics  []byte
}

func Connect(ctx context.Context, host, port, user, pass, db string) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, db)
	return ConnectDSN(ctx, connStr)
}

func ConnectDSN(ctx context.Context, dsn string) (*sql.DB, error) {
	dbConn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	return dbConn, nil
}

func CreateSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}
	return nil
}

func InsertResult(ctx context.Context, db *sql.DB, result Result) error {
	query := `
	INSERT INTO bt_results (
		execution_id,
		setting,
		target,
		target_value,
		statistics
	) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (execution_id, setting) DO NOTHING;
	`

	_, err := db.ExecContext(
		ctx,
		query,
		result.ExecutionId.String(),
		result.Setting,
		result.Target,
		result.TargetValue,
		string(result.Statistics),
	)

	return err
}

// InsertTrades writes trades of one run in a single transaction.
func InsertTrades(ctx context.Context, db *sql.DB, executionId uuid.UUID, trades []common.Trade) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO bt_trades (
		execution_id,
		trade_id,
		order_id,
		symbol,
		direction,
		"offset",
		price,
		volume,
		ts
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (execution_id, trade_id) DO NOTHING;
	`)
	if err != nil {
		return fmt.Errorf("unable to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, trade := range trades {
		if _, err = stmt.ExecContext(
			ctx,
			executionId.String(),
			trade.Id,
			trade.OrderId,
			trade.Symbol,
			trade.Direction.String(),
			trade.Offset.String(),
			trade.Price.String(),
			trade.Volume.String(),
			trade.TimeStamp,
		); err != nil {
			return fmt.Errorf("unable to insert trade %d: %w", trade.Id, err)
		}
	}

	return tx.Commit()
}
