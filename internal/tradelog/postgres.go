package tradelog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const createTradesTable = `CREATE TABLE IF NOT EXISTS trades (
	id             BIGSERIAL PRIMARY KEY,
	executed_at    TIMESTAMPTZ NOT NULL,
	pair           TEXT NOT NULL,
	side           TEXT NOT NULL,
	order_id       TEXT NOT NULL,
	current_price  NUMERIC NOT NULL,
	investment     NUMERIC NOT NULL,
	quantity       NUMERIC NOT NULL,
	wallet_balance NUMERIC NOT NULL,
	stop_loss      NUMERIC,
	take_profit    NUMERIC,
	initial_price  NUMERIC,
	profit         NUMERIC NOT NULL,
	buy_price      NUMERIC,
	sell_price     NUMERIC,
	reason         TEXT NOT NULL DEFAULT ''
)`

const insertTrade = `INSERT INTO trades (executed_at, pair, side, order_id, current_price, investment, quantity,
	wallet_balance, stop_loss, take_profit, initial_price, profit, buy_price, sell_price, reason)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// PostgresRecorder stores trades in a trades table, amounts as NUMERIC.
type PostgresRecorder struct {
	db *pgxpool.Pool
}

// NewPostgresRecorder connects, pings and makes sure the table exists.
func NewPostgresRecorder(ctx context.Context, connString string) (*PostgresRecorder, error) {
	const op = "tradelog.NewPostgresRecorder"
	db, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}
	if _, err := db.Exec(ctx, createTradesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: create table: %w", op, err)
	}
	return &PostgresRecorder{db: db}, nil
}

func (r *PostgresRecorder) Record(ctx context.Context, t Trade) error {
	const op = "tradelog.PostgresRecorder.Record"
	if _, err := r.db.Exec(ctx, insertTrade, insertArgs(t)...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PostgresRecorder) Close() error {
	r.db.Close()
	return nil
}

func insertArgs(t Trade) []any {
	return []any{
		t.Time.UTC(),
		t.Pair,
		string(t.Side),
		t.OrderID,
		decimal.NewFromFloat(t.CurrentPrice),
		decimal.NewFromFloat(t.Investment),
		decimal.NewFromFloat(t.Quantity),
		decimal.NewFromFloat(t.WalletBalance),
		nullableDecimal(t.StopLoss),
		nullableDecimal(t.TakeProfit),
		nullableDecimal(t.InitialPrice),
		decimal.NewFromFloat(t.Profit),
		nullableDecimal(t.BuyPrice),
		nullableDecimal(t.SellPrice),
		t.Reason,
	}
}

func nullableDecimal(v float64) decimal.NullDecimal {
	if v == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}
