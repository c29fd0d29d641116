package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/ledger"
	"github.com/check8auto/check8auto/internal/metrics"
)

const historyLimit = 20

var (
	// ErrInvalidCard is returned for card numbers that fail basic checks.
	ErrInvalidCard = errors.New("card number must be 12 to 19 digits")

	// ErrDeclined is returned when the acquirer refuses the charge.
	ErrDeclined = errors.New("card authorization declined")

	// ErrAcquirer wraps transport failures talking to the card processor.
	ErrAcquirer = errors.New("card processor unavailable")
)

// Service tops up prepaid balances through the acquirer connector.
type Service struct {
	ledger   ledger.Ledger
	acquirer Acquirer
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService wires a funding service. A nil acquirer approves everything.
func NewService(l ledger.Ledger, acquirer Acquirer, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Service {
	if acquirer == nil {
		acquirer = StaticAcquirer{}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: l, acquirer: acquirer, clock: clk, metrics: m, logger: logger}
}

// TopUpInput captures the required data for a card top-up.
type TopUpInput struct {
	AccountID  string
	CardNumber string
	Amount     decimal.Decimal
}

// TopUpResult is the domain outcome of a top-up.
type TopUpResult struct {
	Balance           ledger.Balance
	AcquirerReference string
	CompletedAt       time.Time
}

// TopUp authorizes the card charge and credits the account's balance.
func (s *Service) TopUp(ctx context.Context, input TopUpInput) (TopUpResult, error) {
	if err := validateCardNumber(input.CardNumber); err != nil {
		return TopUpResult{}, err
	}
	if !input.Amount.IsPositive() || !input.Amount.Equal(input.Amount.Round(2)) {
		return TopUpResult{}, ledger.ErrInvalidAmount
	}

	decision, err := s.acquirer.AuthorizeTopUp(ctx, TopUpAuthorization{
		AccountID:  input.AccountID,
		CardNumber: input.CardNumber,
		Amount:     input.Amount,
	})
	if err != nil {
		return TopUpResult{}, fmt.Errorf("%w: %v", ErrAcquirer, err)
	}
	if !decision.Approved {
		return TopUpResult{}, ErrDeclined
	}

	balance, err := s.ledger.Credit(ctx, input.AccountID, input.Amount, ledger.ReasonTopUp)
	if err != nil {
		return TopUpResult{}, err
	}
	s.metrics.ObservePosting(ledger.ReasonTopUp)
	s.logger.Info("balance topped up",
		slog.String("account_id", input.AccountID),
		slog.String("amount", input.Amount.StringFixed(2)),
		slog.String("reference", decision.Reference),
	)

	return TopUpResult{
		Balance:           balance,
		AcquirerReference: decision.Reference,
		CompletedAt:       s.clock.Now(),
	}, nil
}

// Balance returns the account's balance and its most recent journal entries.
func (s *Service) Balance(ctx context.Context, accountID string) (ledger.Balance, []ledger.Entry, error) {
	balance, err := s.ledger.GetOrCreate(ctx, accountID)
	if err != nil {
		return ledger.Balance{}, nil, err
	}
	entries, err := s.ledger.Entries(ctx, accountID, historyLimit)
	if err != nil {
		return ledger.Balance{}, nil, err
	}
	return balance, entries, nil
}

func validateCardNumber(card string) error {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return ErrInvalidCard
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return ErrInvalidCard
		}
	}
	return nil
}
