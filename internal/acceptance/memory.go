package acceptance

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/check8auto/check8auto/internal/ledger"
	"github.com/check8auto/check8auto/internal/orders"
)

const reasonAcceptReversal = "order_accept_reversal"

// MemoryRunner serializes acceptances in process. A failed unit reverses any
// debit it made with a compensating credit.
type MemoryRunner struct {
	mu     sync.Mutex
	orders orders.Repository
	ledger ledger.Ledger
	logger *slog.Logger
}

func NewMemoryRunner(repo orders.Repository, l ledger.Ledger, logger *slog.Logger) *MemoryRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryRunner{orders: repo, ledger: l, logger: logger}
}

func (r *MemoryRunner) WithinTx(ctx context.Context, fn func(Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit := &memoryTx{orders: r.orders, ledger: r.ledger}
	err := fn(unit)
	if err != nil {
		for _, d := range unit.debits {
			if _, cerr := r.ledger.Credit(ctx, d.accountID, d.amount, reasonAcceptReversal); cerr != nil {
				r.logger.Error("accept reversal failed", slog.String("account_id", d.accountID), slog.Any("error", cerr))
			}
		}
	}
	return err
}

type debit struct {
	accountID string
	amount    decimal.Decimal
}

type memoryTx struct {
	orders orders.Repository
	ledger ledger.Ledger
	debits []debit
}

func (t *memoryTx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return t.orders.Get(ctx, id)
}

func (t *memoryTx) SaveOrder(ctx context.Context, order orders.Order, from orders.Status) error {
	return t.orders.Update(ctx, order, from)
}

func (t *memoryTx) LockBalance(ctx context.Context, accountID string) (ledger.Balance, error) {
	return t.ledger.GetOrCreate(ctx, accountID)
}

func (t *memoryTx) Debit(ctx context.Context, accountID string, amount decimal.Decimal, reason string) (ledger.Balance, error) {
	after, err := t.ledger.Debit(ctx, accountID, amount, reason)
	if err != nil {
		return ledger.Balance{}, err
	}
	t.debits = append(t.debits, debit{accountID: accountID, amount: amount})
	return after, nil
}
