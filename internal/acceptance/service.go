package acceptance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/ledger"
	"github.com/check8auto/check8auto/internal/metrics"
	"github.com/check8auto/check8auto/internal/orders"
)

var (
	// ErrAlreadyAssigned is returned when another master holds the order.
	ErrAlreadyAssigned = errors.New("order already assigned to another master")
	// ErrOrderExpired is returned when the order passed its expiration time.
	ErrOrderExpired = errors.New("order expired")
	// ErrBelowMinimum is returned when the owner's balance is under the acceptance minimum.
	ErrBelowMinimum = errors.New("owner balance below minimum")
	// ErrNotPending is returned when the order is no longer open for acceptance.
	ErrNotPending = errors.New("order is not pending")
	// ErrOwnOrder is returned when a master tries to accept an order they created.
	ErrOwnOrder = errors.New("cannot accept own order")
)

// Tx is the unit of work the acceptance runs in. Locks taken by LockOrder and
// LockBalance are held until the unit commits or rolls back.
type Tx interface {
	LockOrder(ctx context.Context, id string) (orders.Order, error)
	SaveOrder(ctx context.Context, order orders.Order, from orders.Status) error
	LockBalance(ctx context.Context, accountID string) (ledger.Balance, error)
	Debit(ctx context.Context, accountID string, amount decimal.Decimal, reason string) (ledger.Balance, error)
}

// Runner executes fn atomically: everything fn did is committed if it returns
// nil and discarded otherwise.
type Runner interface {
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Policy is the fee charged to the order owner and the balance they must hold.
type Policy struct {
	Fee        decimal.Decimal
	MinBalance decimal.Decimal
}

// Result of a successful acceptance.
type Result struct {
	Order        orders.Order
	BalanceAfter ledger.Balance
}

// Service assigns masters to orders and charges the acceptance fee.
type Service struct {
	runner  Runner
	policy  Policy
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(runner Runner, policy Policy, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runner: runner, policy: policy, clock: clk, metrics: m, logger: logger}
}

// Accept binds masterID to the order and debits the fee from the owner's
// balance in one unit. Under concurrent calls for the same order exactly one
// succeeds; a failed call leaves both the order and the balance untouched,
// except that an expired pending order is cancelled.
func (s *Service) Accept(ctx context.Context, orderID, masterID string) (Result, error) {
	started := time.Now()
	var (
		res     Result
		expired bool
	)

	err := s.runner.WithinTx(ctx, func(tx Tx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.OwnerID == masterID {
			return ErrOwnOrder
		}
		if order.MasterID != nil && !order.AssignedTo(masterID) {
			return ErrAlreadyAssigned
		}

		now := s.clock.Now()
		if order.IsExpired(now) {
			expired = true
			if order.Status != orders.StatusPending {
				return nil
			}
			order.Status = orders.StatusCancelled
			order.UpdatedAt = now
			return tx.SaveOrder(ctx, order, orders.StatusPending)
		}
		if order.Status != orders.StatusPending {
			return ErrNotPending
		}

		balance, err := tx.LockBalance(ctx, order.OwnerID)
		if err != nil {
			return err
		}
		if !balance.HasMinimum(s.policy.MinBalance) {
			return ErrBelowMinimum
		}
		if !balance.CanAfford(s.policy.Fee) {
			return ledger.ErrInsufficientFunds
		}
		after, err := tx.Debit(ctx, order.OwnerID, s.policy.Fee, ledger.ReasonOrderAccept)
		if err != nil {
			return err
		}

		master := masterID
		order.MasterID = &master
		order.Status = orders.StatusInProgress
		order.UpdatedAt = now
		if err := tx.SaveOrder(ctx, order, orders.StatusPending); err != nil {
			if errors.Is(err, orders.ErrStatusChanged) {
				return ErrAlreadyAssigned
			}
			return err
		}

		res = Result{Order: order, BalanceAfter: after}
		return nil
	})
	if err == nil && expired {
		err = ErrOrderExpired
	}

	s.metrics.ObserveAccept(outcome(err), time.Since(started))
	if err != nil {
		s.logger.Info("order accept refused",
			slog.String("order_id", orderID),
			slog.String("master_id", masterID),
			slog.String("reason", outcome(err)))
		return Result{}, err
	}
	s.metrics.ObservePosting(ledger.ReasonOrderAccept)
	s.logger.Info("order accepted",
		slog.String("order_id", orderID),
		slog.String("master_id", masterID),
		slog.String("balance_after", res.BalanceAfter.Amount.StringFixed(2)))
	return res, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, ErrOrderExpired):
		return "order_expired"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum_balance"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNotPending):
		return "order_not_pending"
	case errors.Is(err, ErrOwnOrder):
		return "own_order"
	case errors.Is(err, orders.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
