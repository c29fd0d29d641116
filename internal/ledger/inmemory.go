package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	now      func() time.Time
	balances map[string]Balance
	entries  map[string][]Entry
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		now:      func() time.Time { return time.Now().UTC() },
		balances: make(map[string]Balance),
		entries:  make(map[string][]Entry),
	}
}

func (l *inMemoryLedger) GetOrCreate(_ context.Context, accountID string) (Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensure(accountID), nil
}

func (l *inMemoryLedger) Debit(_ context.Context, accountID string, amount decimal.Decimal, reason string) (Balance, error) {
	if !validAmount(amount) {
		return Balance{}, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.ensure(accountID)
	if !balance.CanAfford(amount) {
		return Balance{}, ErrInsufficientFunds
	}
	return l.post(balance, amount.Neg(), reason), nil
}

func (l *inMemoryLedger) Credit(_ context.Context, accountID string, amount decimal.Decimal, reason string) (Balance, error) {
	if !validAmount(amount) {
		return Balance{}, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.post(l.ensure(accountID), amount, reason), nil
}

func (l *inMemoryLedger) Entries(_ context.Context, accountID string, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	src := l.entries[accountID]
	out := make([]Entry, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ensure must be called with mu held.
func (l *inMemoryLedger) ensure(accountID string) Balance {
	balance, ok := l.balances[accountID]
	if !ok {
		balance = Balance{AccountID: accountID, Amount: decimal.Zero, UpdatedAt: l.now()}
		l.balances[accountID] = balance
	}
	return balance
}

// post must be called with mu held.
func (l *inMemoryLedger) post(balance Balance, delta decimal.Decimal, reason string) Balance {
	now := l.now()
	balance.Amount = balance.Amount.Add(delta)
	balance.UpdatedAt = now
	l.balances[balance.AccountID] = balance
	l.entries[balance.AccountID] = append(l.entries[balance.AccountID], Entry{
		ID:        uuid.New().String(),
		AccountID: balance.AccountID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: now,
	})
	return balance
}
