package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/check8auto/check8auto/internal/infra"
)

// PostgresLedger persists balances in PostgreSQL. It runs against either the
// pool or an open transaction, so acceptance can lock and debit in one unit.
type PostgresLedger struct {
	db infra.Querier
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db infra.Querier) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// GetOrCreate returns the balance for accountID, inserting 0.00 when absent.
func (l *PostgresLedger) GetOrCreate(ctx context.Context, accountID string) (Balance, error) {
	return l.getOrCreate(ctx, accountID, false)
}

// Lock is GetOrCreate holding the row lock until the surrounding transaction ends.
func (l *PostgresLedger) Lock(ctx context.Context, accountID string) (Balance, error) {
	return l.getOrCreate(ctx, accountID, true)
}

func (l *PostgresLedger) getOrCreate(ctx context.Context, accountID string, forUpdate bool) (Balance, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return Balance{}, fmt.Errorf("account id %q: %w", accountID, err)
	}
	if _, err := l.db.Exec(ctx, `INSERT INTO balances (account_id, amount) VALUES ($1, 0)
        ON CONFLICT (account_id) DO NOTHING`, id); err != nil {
		return Balance{}, fmt.Errorf("ensure balance: %w", err)
	}

	query := `SELECT account_id, amount::text, updated_at FROM balances WHERE account_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanBalance(l.db.QueryRow(ctx, query, id))
}

// Debit subtracts amount only if the stored balance covers it. The guard and
// the subtraction are one UPDATE, so concurrent debits cannot overdraw.
func (l *PostgresLedger) Debit(ctx context.Context, accountID string, amount decimal.Decimal, reason string) (Balance, error) {
	if !validAmount(amount) {
		return Balance{}, ErrInvalidAmount
	}
	id, err := uuid.Parse(accountID)
	if err != nil {
		return Balance{}, fmt.Errorf("account id %q: %w", accountID, err)
	}

	const query = `
        WITH updated AS (
            UPDATE balances
            SET amount = amount - $2::numeric, updated_at = NOW()
            WHERE account_id = $1 AND amount >= $2::numeric
            RETURNING account_id, amount, updated_at
        ), journal AS (
            INSERT INTO balance_entries (id, account_id, delta, reason, created_at)
            SELECT $3, account_id, -($2::numeric), $4, updated_at FROM updated
        )
        SELECT account_id, amount::text, updated_at FROM updated`
	balance, err := scanBalance(l.db.QueryRow(ctx, query, id, amount.String(), uuid.New(), reason))
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrInsufficientFunds
	}
	if err != nil {
		return Balance{}, fmt.Errorf("debit balance: %w", err)
	}
	return balance, nil
}

// Credit adds amount, creating the balance row if needed.
func (l *PostgresLedger) Credit(ctx context.Context, accountID string, amount decimal.Decimal, reason string) (Balance, error) {
	if !validAmount(amount) {
		return Balance{}, ErrInvalidAmount
	}
	id, err := uuid.Parse(accountID)
	if err != nil {
		return Balance{}, fmt.Errorf("account id %q: %w", accountID, err)
	}

	const query = `
        WITH upserted AS (
            INSERT INTO balances (account_id, amount, updated_at)
            VALUES ($1, $2::numeric, NOW())
            ON CONFLICT (account_id) DO UPDATE
            SET amount = balances.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at
            RETURNING account_id, amount, updated_at
        ), journal AS (
            INSERT INTO balance_entries (id, account_id, delta, reason, created_at)
            SELECT $3, account_id, $2::numeric, $4, updated_at FROM upserted
        )
        SELECT account_id, amount::text, updated_at FROM upserted`
	balance, err := scanBalance(l.db.QueryRow(ctx, query, id, amount.String(), uuid.New(), reason))
	if err != nil {
		return Balance{}, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

// Entries returns the most recent journal lines for accountID, newest first.
func (l *PostgresLedger) Entries(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, fmt.Errorf("account id %q: %w", accountID, err)
	}
	// LIMIT NULL returns every row.
	var rowLimit *int
	if limit > 0 {
		rowLimit = &limit
	}
	rows, err := l.db.Query(ctx, `SELECT id, account_id, delta::text, reason, created_at
        FROM balance_entries WHERE account_id = $1
        ORDER BY created_at DESC LIMIT $2`, id, rowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entryID, owner uuid.UUID
			delta          string
			e              Entry
		)
		if err := rows.Scan(&entryID, &owner, &delta, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Delta, err = decimal.NewFromString(delta); err != nil {
			return nil, err
		}
		e.ID = entryID.String()
		e.AccountID = owner.String()
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanBalance(row pgx.Row) (Balance, error) {
	var (
		id        uuid.UUID
		amount    string
		updatedAt time.Time
	)
	if err := row.Scan(&id, &amount, &updatedAt); err != nil {
		return Balance{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Balance{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return Balance{AccountID: id.String(), Amount: parsed, UpdatedAt: updatedAt.UTC()}, nil
}
