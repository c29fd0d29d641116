package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/check8auto/check8auto/internal/clock"
)

// Service resolves verified identifiers to accounts.
type Service struct {
	repo   Repository
	clock  clock.Clock
	logger *slog.Logger
}

// NewService creates a new identity service.
func NewService(repo Repository, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clk, logger: logger}
}

// Exists reports whether an account is already bound to id.
func (s *Service) Exists(ctx context.Context, id Identifier) (bool, error) {
	_, err := s.repo.FindByIdentifier(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup account: %w", err)
	}
}

// Resolve returns the account for id, creating a verified one on first use.
// role only applies to newly created accounts.
func (s *Service) Resolve(ctx context.Context, id Identifier, role Role) (Account, bool, error) {
	if existing, err := s.repo.FindByIdentifier(ctx, id); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Account{}, false, fmt.Errorf("lookup account: %w", err)
	}

	candidate := Account{
		ID:          uuid.New().String(),
		DisplayName: DisplayName(id),
		Role:        role,
		Verified:    true,
		CreatedAt:   s.clock.Now(),
	}
	switch id.Kind {
	case KindPhone:
		candidate.Phone = id.Value
	case KindEmail:
		candidate.Email = id.Value
	default:
		return Account{}, false, ErrInvalidIdentifier
	}

	account, created, err := s.repo.GetOrCreate(ctx, candidate)
	if err != nil {
		return Account{}, false, fmt.Errorf("create account: %w", err)
	}
	if created {
		s.logger.Info("account created",
			slog.String("account_id", account.ID),
			slog.String("kind", string(id.Kind)),
			slog.String("role", string(account.Role)))
	}
	return account, created, nil
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// RevokeTokens bumps the token version so previously issued tokens stop validating.
func (s *Service) RevokeTokens(ctx context.Context, id string) (Account, error) {
	return s.repo.IncrementTokenVersion(ctx, id)
}
