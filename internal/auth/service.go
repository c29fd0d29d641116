package auth

import (
	"context"
	"errors"

	"github.com/check8auto/check8auto/internal/identity"
)

// ErrTokenRevoked is returned when a token predates the account's latest logout.
var ErrTokenRevoked = errors.New("token version invalidated")

// Service manages session tokens after the one-time-code login.
type Service struct {
	tokens *TokenIssuer
	ids    *identity.Service
}

func NewService(tokens *TokenIssuer, ids *identity.Service) *Service {
	return &Service{tokens: tokens, ids: ids}
}

// Authenticate validates an access token against the account's current token version.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (identity.Account, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return identity.Account{}, err
	}
	return s.current(ctx, claims)
}

// Refresh verifies the refresh token and returns a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	account, err := s.current(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}
	return s.tokens.Issue(account)
}

// Logout increments token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	_, err := s.ids.RevokeTokens(ctx, accountID)
	return err
}

func (s *Service) current(ctx context.Context, claims Claims) (identity.Account, error) {
	account, err := s.ids.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.Account{}, ErrInvalidToken
		}
		return identity.Account{}, err
	}
	if account.TokenVersion != claims.Version {
		return identity.Account{}, ErrTokenRevoked
	}
	return account, nil
}
