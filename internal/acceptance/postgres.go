package acceptance

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/check8auto/check8auto/internal/ledger"
	"github.com/check8auto/check8auto/internal/orders"
)

// PostgresRunner runs each acceptance in a READ COMMITTED transaction. The
// order row is locked before the balance row on every path.
type PostgresRunner struct {
	pool *pgxpool.Pool
}

func NewPostgresRunner(pool *pgxpool.Pool) *PostgresRunner {
	return &PostgresRunner{pool: pool}
}

func (r *PostgresRunner) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin accept tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	unit := &postgresTx{
		orders: orders.NewPostgresRepository(tx),
		ledger: ledger.NewPostgresLedger(tx),
	}
	if err := fn(unit); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit accept tx: %w", err)
	}
	return nil
}

type postgresTx struct {
	orders *orders.PostgresRepository
	ledger *ledger.PostgresLedger
}

func (t *postgresTx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return t.orders.GetForUpdate(ctx, id)
}

func (t *postgresTx) SaveOrder(ctx context.Context, order orders.Order, from orders.Status) error {
	return t.orders.Update(ctx, order, from)
}

func (t *postgresTx) LockBalance(ctx context.Context, accountID string) (ledger.Balance, error) {
	return t.ledger.Lock(ctx, accountID)
}

func (t *postgresTx) Debit(ctx context.Context, accountID string, amount decimal.Decimal, reason string) (ledger.Balance, error) {
	return t.ledger.Debit(ctx, accountID, amount, reason)
}
