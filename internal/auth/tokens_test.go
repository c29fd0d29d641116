package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/logging"
)

const (
	accessSecret  = "access-secret-0123456789"
	refreshSecret = "refresh-secret-0123456789"
)

func newIssuer(clk clock.Clock) *TokenIssuer {
	return NewTokenIssuer(accessSecret, refreshSecret, time.Hour, 24*time.Hour, "check8auto", clk)
}

func TestIssueAndParse(t *testing.T) {
	clk := clock.NewManual(time.Now())
	issuer := newIssuer(clk)
	account := identity.Account{ID: "acct-1", Role: identity.RoleMaster, TokenVersion: 3}

	pair, err := issuer.Issue(account)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	claims, err := issuer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.Subject)
	assert.Equal(t, "master", claims.Role)
	assert.Equal(t, 3, claims.Version)

	_, err = issuer.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
}

func TestParseRejectsSwappedTokenTypes(t *testing.T) {
	issuer := newIssuer(nil)
	pair, err := issuer.Issue(identity.Account{ID: "acct-1"})
	require.NoError(t, err)

	_, err = issuer.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.ParseAccess("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	clk := clock.NewManual(time.Now())
	issuer := newIssuer(clk)
	pair, err := issuer.Issue(identity.Account{ID: "acct-1"})
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = issuer.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutRevokesTokens(t *testing.T) {
	ctx := context.Background()
	ids := identity.NewService(identity.NewMemoryRepository(), nil, logging.Discard())
	svc := NewService(newIssuer(nil), ids)

	id, err := identity.ParseIdentifier("+998901234567")
	require.NoError(t, err)
	account, _, err := ids.Resolve(ctx, id, identity.RoleDriver)
	require.NoError(t, err)

	pair, err := svc.tokens.Issue(account)
	require.NoError(t, err)

	current, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, current.ID)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	require.NoError(t, svc.Logout(ctx, account.ID))

	_, err = svc.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}
