package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that seeds the balance for an account when using the in-memory ledger.
func SeedBalance(l Ledger, accountID string, amount string) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		balance := mem.ensure(accountID)
		balance.Amount = decimal.RequireFromString(amount)
		mem.balances[accountID] = balance
	}
}
