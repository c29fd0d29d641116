package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when a debit would drive the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero or negative postings.
	ErrInvalidAmount = errors.New("amount must be positive")
)

const (
	// ReasonOrderAccept marks the fee charged when a master accepts an order.
	ReasonOrderAccept = "order_accept"
	// ReasonTopUp marks card top-ups.
	ReasonTopUp = "topup"
)

// Balance is the prepaid amount owned by a single account.
type Balance struct {
	AccountID string
	Amount    decimal.Decimal
	UpdatedAt time.Time
}

// HasMinimum reports whether the balance is at least threshold.
func (b Balance) HasMinimum(threshold decimal.Decimal) bool {
	return b.Amount.GreaterThanOrEqual(threshold)
}

// CanAfford reports whether cost can be debited without going negative.
func (b Balance) CanAfford(cost decimal.Decimal) bool {
	return b.Amount.GreaterThanOrEqual(cost)
}

// Entry is one journal line written alongside every debit or credit.
type Entry struct {
	ID        string
	AccountID string
	Delta     decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Debit and Credit are each a single indivisible read-modify-write.
type Ledger interface {
	GetOrCreate(ctx context.Context, accountID string) (Balance, error)
	Debit(ctx context.Context, accountID string, amount decimal.Decimal, reason string) (Balance, error)
	Credit(ctx context.Context, accountID string, amount decimal.Decimal, reason string) (Balance, error)
	// Entries lists the newest entries first. A limit <= 0 returns all of them.
	Entries(ctx context.Context, accountID string, limit int) ([]Entry, error)
}

func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}
