package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/check8auto/check8auto/internal/infra"
)

// Repository persists accounts.
type Repository interface {
	// GetOrCreate inserts account unless one already holds its phone or email,
	// in which case the stored account is returned with created=false.
	GetOrCreate(ctx context.Context, account Account) (Account, bool, error)
	FindByIdentifier(ctx context.Context, id Identifier) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	// IncrementTokenVersion atomically bumps the account's token version and
	// returns the updated account.
	IncrementTokenVersion(ctx context.Context, id string) (Account, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db infra.Querier
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db infra.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, phone, email, display_name, role, verified, token_version, created_at`

// GetOrCreate relies on the unique phone/email constraints so concurrent first
// logins for the same identifier converge on one row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, account Account) (Account, bool, error) {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return Account{}, false, err
	}
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (`+accountColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT DO NOTHING
        RETURNING `+accountColumns,
		accountID, nullable(account.Phone), nullable(account.Email), account.DisplayName,
		nullable(string(account.Role)), account.Verified, account.TokenVersion, account.CreatedAt.UTC())
	created, err := scanAccount(row)
	switch {
	case err == nil:
		return created, true, nil
	case !errors.Is(err, ErrNotFound):
		return Account{}, false, fmt.Errorf("insert account: %w", err)
	}

	existing, err := r.FindByIdentifier(ctx, account.Identifier())
	if err != nil {
		return Account{}, false, err
	}
	return existing, false, nil
}

// FindByIdentifier fetches an account by phone or email.
func (r *PostgresRepository) FindByIdentifier(ctx context.Context, id Identifier) (Account, error) {
	column := "phone"
	if id.Kind == KindEmail {
		column = "email"
	}
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`, id.Value)
	return scanAccount(row)
}

// FindByID fetches an account by primary key.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

// IncrementTokenVersion bumps token_version in place, so concurrent logouts
// each invalidate a version instead of overwriting one another.
func (r *PostgresRepository) IncrementTokenVersion(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `UPDATE accounts SET token_version = token_version + 1
        WHERE id = $1
        RETURNING `+accountColumns, accountID)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		id        uuid.UUID
		phone     *string
		email     *string
		role      *string
		createdAt time.Time
		account   Account
	)
	if err := row.Scan(&id, &phone, &email, &account.DisplayName, &role, &account.Verified, &account.TokenVersion, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.Phone = deref(phone)
	account.Email = deref(email)
	account.Role = Role(deref(role))
	account.CreatedAt = createdAt.UTC()
	return account, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
