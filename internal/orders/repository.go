package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/check8auto/check8auto/internal/infra"
)

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, order Order) error
	Get(ctx context.Context, id string) (Order, error)
	// Update writes status, master and updated_at only if the stored status is
	// still from. Otherwise ErrStatusChanged is returned and nothing changes.
	Update(ctx context.Context, order Order, from Status) error
	// List returns orders matching f, newest first, at most f.Limit of them.
	List(ctx context.Context, f ListFilter) ([]Order, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db infra.Querier
}

// NewPostgresRepository builds a Postgres-backed order repository. db may be
// a pool or an open transaction.
func NewPostgresRepository(db infra.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `id, owner_id, description, status, priority, data, location,
        latitude, longitude, master_id, created_at, updated_at, expiration_time`

func (r *PostgresRepository) Create(ctx context.Context, o Order) error {
	id, err := uuid.Parse(o.ID)
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	owner, err := uuid.Parse(o.OwnerID)
	if err != nil {
		return fmt.Errorf("owner id: %w", err)
	}
	master, err := parseOptionalID(o.MasterID)
	if err != nil {
		return err
	}
	data := o.Data
	if data == nil {
		data = map[string]any{}
	}
	_, err = r.db.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, owner, o.Description, string(o.Status), string(o.Priority), data, o.Location,
		o.Latitude, o.Longitude, master, o.CreatedAt, o.UpdatedAt, o.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Order, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate loads the order and holds its row lock until the surrounding
// transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (Order, error) {
	return r.get(ctx, id, true)
}

func (r *PostgresRepository) get(ctx context.Context, id string, forUpdate bool) (Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return Order{}, ErrNotFound
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanOrder(r.db.QueryRow(ctx, query, orderID))
}

func (r *PostgresRepository) Update(ctx context.Context, o Order, from Status) error {
	id, err := uuid.Parse(o.ID)
	if err != nil {
		return ErrNotFound
	}
	master, err := parseOptionalID(o.MasterID)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE orders
        SET status = $2, master_id = $3, updated_at = $4
        WHERE id = $1 AND status = $5`,
		id, string(o.Status), master, o.UpdatedAt, string(from))
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.Get(ctx, o.ID); err != nil {
			return err
		}
		return ErrStatusChanged
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	account, err := uuid.Parse(f.AccountID)
	if err != nil {
		return []Order{}, nil
	}
	args := []any{account}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE `
	if f.Open {
		query += `owner_id <> $1 AND (master_id IS NULL OR master_id = $1)`
	} else {
		query += `(owner_id = $1 OR master_id = $1)`
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.Priority != "" {
		args = append(args, string(f.Priority))
		query += fmt.Sprintf(` AND priority = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                   Order
		id, owner           uuid.UUID
		master              *uuid.UUID
		status, priority    string
		created, updated, x time.Time
	)
	err := row.Scan(&id, &owner, &o.Description, &status, &priority, &o.Data, &o.Location,
		&o.Latitude, &o.Longitude, &master, &created, &updated, &x)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.ID = id.String()
	o.OwnerID = owner.String()
	o.Status = Status(status)
	o.Priority = Priority(priority)
	if master != nil {
		s := master.String()
		o.MasterID = &s
	}
	o.CreatedAt = created.UTC()
	o.UpdatedAt = updated.UTC()
	o.ExpiresAt = x.UTC()
	if o.Data == nil {
		o.Data = map[string]any{}
	}
	return o, nil
}

func parseOptionalID(id *string) (*uuid.UUID, error) {
	if id == nil {
		return nil, nil
	}
	parsed, err := uuid.Parse(*id)
	if err != nil {
		return nil, fmt.Errorf("master id: %w", err)
	}
	return &parsed, nil
}
